package adapter

import (
	"github.com/tphakala/pcmbridge/internal/conf"
	"github.com/tphakala/pcmbridge/internal/errors"
	"github.com/tphakala/pcmbridge/internal/ioplug"
	"github.com/tphakala/pcmbridge/internal/observability/metrics"
)

// Declared parameter space. The engine decides its real period and buffer
// geometry internally after starting, so these bounds are an approximation
// chosen to be broadly compatible rather than a contract with the hardware
// buffer.
const (
	minChannels = 1
	maxChannels = 2 // more channels would need channel mapping support

	minRate = 8000
	maxRate = 192000

	minPeriods = 2
	maxPeriods = 4

	minBufferBytes = 32 * 1024
	maxBufferBytes = 64 * 1024
)

// Open is the plugin entry point: it creates an adapter, wraps it in a
// host handle and declares the supported parameter space. Only the
// playback direction is supported; capture fails fast with
// invalid-argument.
func Open(name string, stream ioplug.Direction, nonblock bool, settings *conf.Settings, bridgeMetrics *metrics.BridgeMetrics, opts ...Option) (*ioplug.PCM, error) {
	if stream != ioplug.StreamPlayback {
		return nil, errors.New(ioplug.StatusInvalid.Err()).
			Component("adapter").
			Category(errors.CategoryValidation).
			Context("direction", stream.String()).
			Build()
	}

	a := New(settings, bridgeMetrics, opts...)

	pcm, err := ioplug.Create(name, stream, nonblock, a)
	if err != nil {
		return nil, err
	}

	if err := pcm.SetParamList(ioplug.ParamAccess, []uint32{uint32(ioplug.AccessRWInterleaved)}); err != nil {
		return nil, err
	}
	if err := pcm.SetParamList(ioplug.ParamFormat, []uint32{
		uint32(ioplug.FormatS16LE),
		uint32(ioplug.FormatFloatLE),
		uint32(ioplug.FormatS243LE),
		uint32(ioplug.FormatS32LE),
	}); err != nil {
		return nil, err
	}
	if err := pcm.SetParamMinMax(ioplug.ParamChannels, minChannels, maxChannels); err != nil {
		return nil, err
	}
	if err := pcm.SetParamMinMax(ioplug.ParamRate, minRate, maxRate); err != nil {
		return nil, err
	}
	if err := pcm.SetParamMinMax(ioplug.ParamPeriods, minPeriods, maxPeriods); err != nil {
		return nil, err
	}
	if err := pcm.SetParamMinMax(ioplug.ParamBufferBytes, minBufferBytes, maxBufferBytes); err != nil {
		return nil, err
	}

	return pcm, nil
}
