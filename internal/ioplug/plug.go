package ioplug

import (
	"fmt"
)

// Callbacks is the fixed lifecycle callback set a plugin implements. The
// host invokes these according to its own state machine; every callback
// returns the integer status convention and must never block indefinitely
// except where the contract says so (Stop, Drain and blocking Transfer).
type Callbacks interface {
	Start(io *PCM) Status
	Stop(io *PCM) Status
	Pointer(io *PCM) (uint32, Status)
	Transfer(io *PCM, areas []ChannelArea, offset, frames uint32) (uint32, Status)
	Close(io *PCM) Status
	Prepare(io *PCM) Status
	Drain(io *PCM) Status
	Pause(io *PCM, enable bool) Status
	Resume(io *PCM) Status
}

// PCM is the plugin handle shared between the host driver surface and the
// plugin callbacks. The negotiated descriptor fields are fixed by HwParams
// and remain immutable until Close.
type PCM struct {
	Name     string
	Stream   Direction
	Nonblock bool

	// Negotiated hardware parameters, valid once negotiated is true.
	Access     Access
	Format     Format
	Channels   int
	Rate       int
	PeriodSize uint32 // frames
	BufferSize uint32 // frames

	cb          Callbacks
	constraints map[Param]*paramConstraint
	negotiated  bool
	prepared    bool
	closed      bool
}

// Create builds a plugin handle around the callback set. It mirrors the
// host's plugin creation entry point; parameter constraints are declared
// afterwards with SetParamList and SetParamMinMax.
func Create(name string, stream Direction, nonblock bool, cb Callbacks) (*PCM, error) {
	if cb == nil {
		return nil, StatusInvalid.Err()
	}
	return &PCM{
		Name:        name,
		Stream:      stream,
		Nonblock:    nonblock,
		cb:          cb,
		constraints: make(map[Param]*paramConstraint),
	}, nil
}

// SetParamList declares the allowed values for a parameter.
func (p *PCM) SetParamList(param Param, values []uint32) error {
	if len(values) == 0 {
		return StatusInvalid.Err()
	}
	list := make([]uint32, len(values))
	copy(list, values)
	p.constraints[param] = &paramConstraint{set: true, list: list}
	return nil
}

// SetParamMinMax declares the allowed inclusive range for a parameter.
func (p *PCM) SetParamMinMax(param Param, minVal, maxVal uint32) error {
	if minVal > maxVal {
		return StatusInvalid.Err()
	}
	p.constraints[param] = &paramConstraint{set: true, isRange: true, min: minVal, max: maxVal}
	return nil
}

func (p *PCM) constraint(param Param) *paramConstraint {
	if c, ok := p.constraints[param]; ok {
		return c
	}
	return &paramConstraint{}
}

// HwParams fixes the hardware configuration after validating it against
// the declared constraints. Buffer geometry is given in bytes, matching the
// host's buffer-size negotiation, and converted to frames here.
func (p *PCM) HwParams(access Access, format Format, channels, rate, periods int, bufferBytes uint32) error {
	if p.closed {
		return StatusBadFD.Err()
	}

	checks := []struct {
		param Param
		value uint32
	}{
		{ParamAccess, uint32(access)},
		{ParamFormat, uint32(format)},
		{ParamChannels, uint32(channels)},
		{ParamRate, uint32(rate)},
		{ParamPeriods, uint32(periods)},
		{ParamBufferBytes, bufferBytes},
	}
	for _, c := range checks {
		if !p.constraint(c.param).allows(c.value) {
			return fmt.Errorf("hw param %s rejects %d: %w", c.param, c.value, StatusInvalid.Err())
		}
	}

	frameBytes := uint32(format.BytesPerSample() * channels)
	if frameBytes == 0 || bufferBytes%frameBytes != 0 {
		return fmt.Errorf("buffer of %d bytes is not a whole frame multiple: %w", bufferBytes, StatusInvalid.Err())
	}

	p.Access = access
	p.Format = format
	p.Channels = channels
	p.Rate = rate
	p.BufferSize = bufferBytes / frameBytes
	p.PeriodSize = p.BufferSize / uint32(periods)
	p.negotiated = true
	return nil
}

// FrameBytes returns the byte size of one negotiated frame.
func (p *PCM) FrameBytes() int {
	return p.Format.BytesPerSample() * p.Channels
}

// --- host-side driver surface ---
// These helpers stand in for the host's own PCM state machine: they drive
// the plugin callbacks the way the host would and convert statuses to
// errors for Go callers.

// Prepare readies the plugin. Hardware parameters must have been
// negotiated first.
func (p *PCM) Prepare() error {
	if p.closed {
		return StatusBadFD.Err()
	}
	if !p.negotiated {
		return StatusBadFD.Err()
	}
	if st := p.cb.Prepare(p); st != StatusOK {
		return st.Err()
	}
	p.prepared = true
	return nil
}

// Start starts the stream explicitly.
func (p *PCM) Start() error {
	if p.closed || !p.prepared {
		return StatusBadFD.Err()
	}
	return p.cb.Start(p).Err()
}

// Stop stops the stream, dropping buffered samples.
func (p *PCM) Stop() error {
	if p.closed || !p.prepared {
		return StatusBadFD.Err()
	}
	return p.cb.Stop(p).Err()
}

// Drain blocks until all buffered samples have been consumed, then stops.
func (p *PCM) Drain() error {
	if p.closed || !p.prepared {
		return StatusBadFD.Err()
	}
	return p.cb.Drain(p).Err()
}

// Pause pauses or un-pauses the stream.
func (p *PCM) Pause(enable bool) error {
	if p.closed || !p.prepared {
		return StatusBadFD.Err()
	}
	if enable {
		return p.cb.Pause(p, true).Err()
	}
	return p.cb.Resume(p).Err()
}

// Pointer reports the play position in the imaginary ring buffer.
func (p *PCM) Pointer() (uint32, error) {
	if p.closed || !p.prepared {
		return 0, StatusBadFD.Err()
	}
	pos, st := p.cb.Pointer(p)
	if st != StatusOK {
		return 0, st.Err()
	}
	return pos, nil
}

// Writei writes interleaved frames through the plugin's Transfer callback,
// looping over partial acceptance. In non-blocking mode a would-block
// condition surfaces as StatusAgain once nothing more was accepted.
func (p *PCM) Writei(buf []byte, frames uint32) (uint32, error) {
	if p.closed || !p.prepared {
		return 0, StatusBadFD.Err()
	}
	if !p.negotiated || p.Access != AccessRWInterleaved {
		return 0, StatusInvalid.Err()
	}
	frameBytes := uint32(p.FrameBytes())
	if uint32(len(buf)) < frames*frameBytes {
		return 0, StatusInvalid.Err()
	}

	areas := InterleavedAreas(buf, p.Format, p.Channels)

	var done uint32
	for done < frames {
		n, st := p.cb.Transfer(p, areas, done, frames-done)
		switch st {
		case StatusOK:
			if n == 0 {
				// A conforming plugin never reports zero frames with
				// success; stop rather than spin.
				return done, StatusFailure.Err()
			}
			done += n
		case StatusAgain:
			if done > 0 {
				return done, nil
			}
			return 0, st.Err()
		default:
			return done, st.Err()
		}
	}
	return done, nil
}

// Close tears the plugin down. It is idempotent.
func (p *PCM) Close() error {
	if p.closed {
		return nil
	}
	st := p.cb.Close(p)
	p.closed = true
	p.prepared = false
	return st.Err()
}
