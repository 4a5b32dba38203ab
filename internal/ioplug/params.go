package ioplug

import "fmt"

// Direction of a PCM handle.
type Direction int

const (
	StreamPlayback Direction = iota
	StreamCapture
)

func (d Direction) String() string {
	if d == StreamCapture {
		return "capture"
	}
	return "playback"
}

// Access is the transfer layout the host negotiates.
type Access uint32

const (
	AccessRWInterleaved Access = iota
	AccessRWNonInterleaved
	AccessMmapInterleaved
)

// Format is the hardware sample format, little-endian throughout.
type Format uint32

const (
	FormatUnknown Format = iota
	FormatS16LE
	FormatFloatLE
	FormatS243LE
	FormatS32LE
	FormatU8 // not accepted by the bridge, present for negotiation tests
)

// BytesPerSample returns the storage size of one sample, or 0 for an
// unknown format.
func (f Format) BytesPerSample() int {
	switch f {
	case FormatS16LE:
		return 2
	case FormatFloatLE:
		return 4
	case FormatS243LE:
		return 3
	case FormatS32LE:
		return 4
	case FormatU8:
		return 1
	default:
		return 0
	}
}

func (f Format) String() string {
	switch f {
	case FormatS16LE:
		return "S16_LE"
	case FormatFloatLE:
		return "FLOAT_LE"
	case FormatS243LE:
		return "S24_3LE"
	case FormatS32LE:
		return "S32_LE"
	case FormatU8:
		return "U8"
	default:
		return "UNKNOWN"
	}
}

// Param identifies a negotiable hardware parameter.
type Param int

const (
	ParamAccess Param = iota
	ParamFormat
	ParamChannels
	ParamRate
	ParamPeriods
	ParamBufferBytes
)

func (p Param) String() string {
	switch p {
	case ParamAccess:
		return "access"
	case ParamFormat:
		return "format"
	case ParamChannels:
		return "channels"
	case ParamRate:
		return "rate"
	case ParamPeriods:
		return "periods"
	case ParamBufferBytes:
		return "buffer_bytes"
	default:
		return fmt.Sprintf("param(%d)", int(p))
	}
}

// paramConstraint is either a list of allowed values or an inclusive range.
type paramConstraint struct {
	set     bool
	isRange bool
	list    []uint32
	min     uint32
	max     uint32
}

func (c *paramConstraint) allows(v uint32) bool {
	if !c.set {
		return true
	}
	if c.isRange {
		return v >= c.min && v <= c.max
	}
	for _, allowed := range c.list {
		if v == allowed {
			return true
		}
	}
	return false
}

// ChannelArea describes one channel of a transfer buffer, mirroring the
// host's per-channel addressing: a backing byte slice, the bit offset of
// the channel's first sample and the bit stride between consecutive frames.
type ChannelArea struct {
	Addr  []byte
	First uint // bits
	Step  uint // bits
}

// InterleavedAreas builds the channel area descriptors an interleaved
// buffer presents to Transfer: every channel shares the backing slice and
// the frame stride, offset by one sample each.
func InterleavedAreas(buf []byte, format Format, channels int) []ChannelArea {
	sampleBits := uint(format.BytesPerSample()) * 8
	stepBits := sampleBits * uint(channels)

	areas := make([]ChannelArea, channels)
	for ch := range areas {
		areas[ch] = ChannelArea{
			Addr:  buf,
			First: uint(ch) * sampleBits,
			Step:  stepBits,
		}
	}
	return areas
}
