package engine

import (
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/gen2brain/malgo"
	"github.com/smallnest/ringbuffer"

	"github.com/tphakala/pcmbridge/internal/errors"
	"github.com/tphakala/pcmbridge/internal/logging"
)

// writeRetryInterval is how long a blocking Write sleeps when the internal
// buffer has no room for a whole frame.
const writeRetryInterval = 500 * time.Microsecond

// malgoStream is the real engine stream. The malgo device callback is the
// engine's background delivery thread: it drains the internal ring buffer
// and zero-fills on underrun, so underruns recover without surfacing.
type malgoStream struct {
	mu      sync.Mutex
	state   State
	stateCh chan struct{} // closed and replaced on every state transition

	device     *malgo.Device
	ring       *ringbuffer.RingBuffer
	frameBytes int
	capacity   int // frames

	framesWritten atomic.Int64
	framesRead    atomic.Int64

	log *slog.Logger
}

func formatToMalgo(f Format) malgo.FormatType {
	switch f {
	case FormatI16:
		return malgo.FormatS16
	case FormatFloat:
		return malgo.FormatF32
	case FormatI24:
		return malgo.FormatS24
	case FormatI32:
		return malgo.FormatS32
	default:
		return malgo.FormatUnknown
	}
}

// selectPlaybackDevice resolves the configured device name against the
// enumerated playback devices. An empty name selects the backend default.
func selectPlaybackDevice(mctx *malgo.AllocatedContext, name string) (unsafe.Pointer, error) {
	if name == "" {
		return nil, nil
	}

	infos, err := mctx.Devices(malgo.Playback)
	if err != nil {
		return nil, err
	}
	for i := range infos {
		if strings.Contains(infos[i].Name(), name) {
			return infos[i].ID.Pointer(), nil
		}
	}
	return nil, errors.Newf("engine: no playback device matching %q", name).
		Component("engine").
		Category(errors.CategoryValidation).
		Build()
}

// openMalgoStream opens a playback device feeding from an internal ring
// buffer sized to the requested capacity.
func openMalgoStream(b *Builder) (Stream, error) {
	mctx, err := acquireContext(b.Backend)
	if err != nil {
		return nil, err
	}

	frameBytes := b.Format.BytesPerSample() * b.Channels
	s := &malgoStream{
		state:      StateUninitialized,
		stateCh:    make(chan struct{}),
		ring:       ringbuffer.New(b.BufferCapacityFrames * frameBytes),
		frameBytes: frameBytes,
		capacity:   b.BufferCapacityFrames,
		log:        logging.ForService("engine"),
	}
	if s.log == nil {
		s.log = slog.Default()
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = formatToMalgo(b.Format)
	deviceConfig.Playback.Channels = uint32(b.Channels)
	deviceConfig.SampleRate = uint32(b.SampleRate)
	deviceConfig.PerformanceProfile = malgo.Conservative
	if b.Performance == PerformanceLowLatency {
		deviceConfig.PerformanceProfile = malgo.LowLatency
	}
	deviceConfig.Alsa.NoMMap = 1

	devicePtr, err := selectPlaybackDevice(mctx, b.DeviceName)
	if err != nil {
		releaseContext()
		return nil, errors.New(err).
			Component("engine").
			Category(errors.CategoryResource).
			Context("operation", "select_device").
			Build()
	}
	if devicePtr != nil {
		deviceConfig.Playback.DeviceID = devicePtr
	}

	deviceCallbacks := malgo.DeviceCallbacks{
		Data: s.onDeliverFrames,
		Stop: s.onDeviceStop,
	}

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, deviceCallbacks)
	if err != nil {
		releaseContext()
		return nil, errors.New(err).
			Component("engine").
			Category(errors.CategoryResource).
			Context("operation", "init_device").
			Build()
	}

	s.device = device
	s.setState(StateOpen)
	return s, nil
}

// onDeliverFrames runs on the device's delivery thread. It only reads from
// the ring buffer: no locks, no allocation.
func (s *malgoStream) onDeliverFrames(pOutput, _ []byte, frameCount uint32) {
	bytesNeeded := int(frameCount) * s.frameBytes
	if bytesNeeded > len(pOutput) {
		bytesNeeded = len(pOutput)
	}
	n, _ := s.ring.TryRead(pOutput[:bytesNeeded])
	if n < bytesNeeded {
		// Underrun: deliver silence, the stream keeps running.
		clear(pOutput[n:bytesNeeded])
	}
	s.framesRead.Add(int64(n / s.frameBytes))
}

// onDeviceStop fires when the device stops delivering, normally or not.
func (s *malgoStream) onDeviceStop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateStarted {
		// The device went away underneath a running stream.
		s.log.Warn("playback device stopped unexpectedly")
		s.setStateLocked(StateDisconnected)
	}
}

func (s *malgoStream) setState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setStateLocked(st)
}

// setStateLocked publishes a state transition. Waiters block on the state
// channel which is closed and replaced on every transition.
func (s *malgoStream) setStateLocked(st State) {
	if s.state == st {
		return
	}
	s.state = st
	close(s.stateCh)
	s.stateCh = make(chan struct{})
}

func (s *malgoStream) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *malgoStream) WaitForStateChange(current State, timeout time.Duration) (State, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	s.mu.Lock()
	for s.state == current {
		ch := s.stateCh
		s.mu.Unlock()
		select {
		case <-ch:
		case <-deadline.C:
			return current, ErrTimeout
		}
		s.mu.Lock()
	}
	st := s.state
	s.mu.Unlock()
	return st, nil
}

func (s *malgoStream) RequestStart() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateClosed, StateClosing:
		return ErrClosed
	case StateStarted, StateStarting:
		// Starting a started stream is a silent no-op.
		return nil
	case StateDisconnected:
		return ErrDisconnected
	}

	s.setStateLocked(StateStarting)
	if err := s.device.Start(); err != nil {
		s.setStateLocked(StateOpen)
		return errors.New(err).
			Component("engine").
			Category(errors.CategoryAudio).
			Context("operation", "request_start").
			Build()
	}
	s.setStateLocked(StateStarted)
	return nil
}

func (s *malgoStream) RequestPause() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateClosed, StateClosing:
		return ErrClosed
	case StatePaused, StatePausing:
		return nil
	case StateDisconnected:
		return ErrDisconnected
	case StateStarted:
	default:
		// Pausing is only legal from a running stream.
		return ErrInvalidState
	}

	s.setStateLocked(StatePausing)
	if err := s.device.Stop(); err != nil {
		s.setStateLocked(StateStarted)
		return errors.New(err).
			Component("engine").
			Category(errors.CategoryAudio).
			Context("operation", "request_pause").
			Build()
	}
	s.setStateLocked(StatePaused)
	return nil
}

func (s *malgoStream) RequestFlush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateClosed, StateClosing:
		return ErrClosed
	case StatePaused, StateStopped:
	default:
		// Flush is only legal from a settled paused or stopped stream.
		return ErrInvalidState
	}

	s.setStateLocked(StateFlushing)
	// Discarded frames count as consumed: the read counter jumps forward to
	// meet the write counter.
	s.ring.Reset()
	s.framesRead.Store(s.framesWritten.Load())
	s.setStateLocked(StateFlushed)
	return nil
}

func (s *malgoStream) RequestStop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateClosed, StateClosing:
		return ErrClosed
	case StateStopped, StateStopping:
		return nil
	case StateDisconnected:
		return ErrDisconnected
	}

	s.setStateLocked(StateStopping)
	if s.device.IsStarted() {
		if err := s.device.Stop(); err != nil {
			s.setStateLocked(StateStarted)
			return errors.New(err).
				Component("engine").
				Category(errors.CategoryAudio).
				Context("operation", "request_stop").
				Build()
		}
	}
	s.setStateLocked(StateStopped)
	return nil
}

func (s *malgoStream) Write(buf []byte, frames int, timeout time.Duration) (int, error) {
	if frames <= 0 {
		return 0, nil
	}
	if s.State() == StateClosed {
		return 0, ErrClosed
	}
	if len(buf) < frames*s.frameBytes {
		return 0, errors.Newf("engine: short buffer: %d bytes for %d frames", len(buf), frames).
			Component("engine").
			Category(errors.CategoryValidation).
			Build()
	}

	written := s.writeFrames(buf, frames)
	if written == frames || timeout == 0 {
		s.framesWritten.Add(int64(written))
		return written, nil
	}

	// Blocking mode: keep pushing whole frames until everything is written
	// or the timeout ceiling is reached.
	deadline := time.Now().Add(timeout)
	for written < frames {
		if s.State() == StateClosed {
			break
		}
		if time.Now().After(deadline) {
			break
		}
		time.Sleep(writeRetryInterval)
		written += s.writeFrames(buf[written*s.frameBytes:], frames-written)
	}
	s.framesWritten.Add(int64(written))
	return written, nil
}

// writeFrames pushes as many whole frames as currently fit.
func (s *malgoStream) writeFrames(buf []byte, frames int) int {
	fit := s.ring.Free() / s.frameBytes
	if fit > frames {
		fit = frames
	}
	if fit == 0 {
		return 0
	}
	n, _ := s.ring.Write(buf[:fit*s.frameBytes])
	return n / s.frameBytes
}

func (s *malgoStream) FramesWritten() int64 {
	return s.framesWritten.Load()
}

func (s *malgoStream) FramesRead() int64 {
	return s.framesRead.Load()
}

func (s *malgoStream) BufferCapacityInFrames() int {
	return s.capacity
}

func (s *malgoStream) Close() error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	s.setStateLocked(StateClosing)
	device := s.device
	s.device = nil
	s.mu.Unlock()

	if device != nil {
		device.Uninit()
		releaseContext()
	}

	s.setState(StateClosed)
	return nil
}
