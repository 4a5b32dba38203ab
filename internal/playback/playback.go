// Package playback plays audio files through the PCM bridge, driving the
// plugin callbacks the way a host application would. It exists mainly as an
// end-to-end exercise of the bridge against real hardware.
package playback

import (
	"encoding/binary"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/tphakala/pcmbridge/internal/adapter"
	"github.com/tphakala/pcmbridge/internal/conf"
	"github.com/tphakala/pcmbridge/internal/errors"
	"github.com/tphakala/pcmbridge/internal/ioplug"
	"github.com/tphakala/pcmbridge/internal/logging"
	"github.com/tphakala/pcmbridge/internal/observability/metrics"
)

// Buffer geometry requested from the bridge. 64 KiB split into 4 periods
// sits at the top of the bridge's declared parameter space.
const (
	bufferBytes = 64 * 1024
	periods     = 4
	chunkFrames = 2048
)

// File plays a WAV file to completion: open, negotiate, feed, drain, close.
func File(settings *conf.Settings, bridgeMetrics *metrics.BridgeMetrics, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.New(err).
			Component("playback").
			Category(errors.CategoryResource).
			Context("path", path).
			Build()
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		return errors.Newf("playback: %s is not a valid WAV file", path).
			Component("playback").
			Category(errors.CategoryValidation).
			Build()
	}

	format, err := formatForBitDepth(int(decoder.BitDepth))
	if err != nil {
		return err
	}

	log := logging.ForService("playback")
	if log != nil {
		log.Info("playing file",
			"path", path,
			"format", format.String(),
			"channels", decoder.NumChans,
			"rate", decoder.SampleRate)
	}

	pcm, err := adapter.Open("pcmbridge", ioplug.StreamPlayback, false, settings, bridgeMetrics)
	if err != nil {
		return err
	}
	defer pcm.Close()

	if err := pcm.HwParams(ioplug.AccessRWInterleaved, format,
		int(decoder.NumChans), int(decoder.SampleRate), periods, bufferBytes); err != nil {
		return err
	}
	if err := pcm.Prepare(); err != nil {
		return err
	}

	sampleBytes := format.BytesPerSample()
	frameBytes := pcm.FrameBytes()
	buf := &audio.IntBuffer{
		Data: make([]int, chunkFrames*int(decoder.NumChans)),
		Format: &audio.Format{
			SampleRate:  int(decoder.SampleRate),
			NumChannels: int(decoder.NumChans),
		},
	}
	raw := make([]byte, len(buf.Data)*sampleBytes)

	for {
		n, err := decoder.PCMBuffer(buf)
		if err != nil {
			return errors.New(err).
				Component("playback").
				Category(errors.CategoryResource).
				Context("path", path).
				Build()
		}
		if n == 0 {
			break
		}

		encodeSamples(raw, buf.Data[:n], sampleBytes)
		frames := uint32(n * sampleBytes / frameBytes)
		if _, err := pcm.Writei(raw[:n*sampleBytes], frames); err != nil {
			return err
		}
	}

	if err := pcm.Drain(); err != nil {
		return err
	}
	return pcm.Close()
}

// formatForBitDepth maps the WAV bit depth to a negotiable PCM format.
func formatForBitDepth(bits int) (ioplug.Format, error) {
	switch bits {
	case 16:
		return ioplug.FormatS16LE, nil
	case 24:
		return ioplug.FormatS243LE, nil
	case 32:
		return ioplug.FormatS32LE, nil
	default:
		return ioplug.FormatUnknown, errors.Newf("playback: unsupported bit depth %d", bits).
			Component("playback").
			Category(errors.CategoryValidation).
			Build()
	}
}

// encodeSamples packs decoded integer samples as little-endian PCM.
func encodeSamples(dst []byte, samples []int, sampleBytes int) {
	for i, s := range samples {
		off := i * sampleBytes
		switch sampleBytes {
		case 2:
			binary.LittleEndian.PutUint16(dst[off:], uint16(int16(s)))
		case 3:
			v := uint32(int32(s))
			dst[off] = byte(v)
			dst[off+1] = byte(v >> 8)
			dst[off+2] = byte(v >> 16)
		case 4:
			binary.LittleEndian.PutUint32(dst[off:], uint32(int32(s)))
		}
	}
}
