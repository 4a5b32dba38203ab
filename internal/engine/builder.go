package engine

import (
	"github.com/tphakala/pcmbridge/internal/errors"
)

// Builder collects stream configuration before opening. Zero value defaults
// to a shared low-latency output stream on the legacy backend.
type Builder struct {
	Direction                Direction
	Performance              PerformanceMode
	Sharing                  SharingMode
	Format                   Format
	Channels                 int
	SampleRate               int
	ConversionQual           ConversionQuality
	FormatConversionAllowed  bool
	ChannelConversionAllowed bool

	// BufferCapacityFrames is the requested internal buffer capacity. The
	// opened stream reports its actual capacity, which may differ.
	BufferCapacityFrames int

	Backend Backend

	// DeviceName selects the output device by name, empty for the system
	// default.
	DeviceName string
}

// Open builds and opens a stream on the real backend. The returned stream
// is in the Open state.
func (b *Builder) Open() (Stream, error) {
	if b.Direction != DirOutput {
		return nil, errors.Newf("engine: only output streams are supported").
			Component("engine").
			Category(errors.CategoryValidation).
			Context("direction", int(b.Direction)).
			Build()
	}
	if b.Format.BytesPerSample() == 0 {
		return nil, errors.New(ErrInvalidFormat).
			Component("engine").
			Category(errors.CategoryValidation).
			Context("format", b.Format.String()).
			Build()
	}
	if b.Channels <= 0 || b.SampleRate <= 0 || b.BufferCapacityFrames <= 0 {
		return nil, errors.Newf("engine: invalid stream geometry: channels=%d rate=%d capacity=%d",
			b.Channels, b.SampleRate, b.BufferCapacityFrames).
			Component("engine").
			Category(errors.CategoryValidation).
			Build()
	}

	return openMalgoStream(b)
}
