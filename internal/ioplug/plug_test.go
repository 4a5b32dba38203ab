package ioplug_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/pcmbridge/internal/ioplug"
)

// scriptedPlugin is a minimal Callbacks implementation recording the host
// driver's behavior. Transfer accepts acceptPerCall frames per invocation
// (everything when zero) unless a scripted status says otherwise.
type scriptedPlugin struct {
	prepares, starts, stops, drains, closes int
	pauses                                  []bool
	resumes                                 int

	acceptPerCall uint32
	statuses      []ioplug.Status // consumed one per Transfer call
	offsets       []uint32        // offset argument of every Transfer call
	pointer       uint32
}

func (s *scriptedPlugin) Prepare(io *ioplug.PCM) ioplug.Status {
	s.prepares++
	return ioplug.StatusOK
}

func (s *scriptedPlugin) Start(io *ioplug.PCM) ioplug.Status {
	s.starts++
	return ioplug.StatusOK
}

func (s *scriptedPlugin) Stop(io *ioplug.PCM) ioplug.Status {
	s.stops++
	return ioplug.StatusOK
}

func (s *scriptedPlugin) Drain(io *ioplug.PCM) ioplug.Status {
	s.drains++
	return ioplug.StatusOK
}

func (s *scriptedPlugin) Pause(io *ioplug.PCM, enable bool) ioplug.Status {
	s.pauses = append(s.pauses, enable)
	return ioplug.StatusOK
}

func (s *scriptedPlugin) Resume(io *ioplug.PCM) ioplug.Status {
	s.resumes++
	return ioplug.StatusOK
}

func (s *scriptedPlugin) Pointer(io *ioplug.PCM) (uint32, ioplug.Status) {
	return s.pointer, ioplug.StatusOK
}

func (s *scriptedPlugin) Transfer(io *ioplug.PCM, areas []ioplug.ChannelArea, offset, frames uint32) (uint32, ioplug.Status) {
	s.offsets = append(s.offsets, offset)
	if len(s.statuses) > 0 {
		st := s.statuses[0]
		s.statuses = s.statuses[1:]
		if st != ioplug.StatusOK {
			return 0, st
		}
	}
	n := frames
	if s.acceptPerCall > 0 && n > s.acceptPerCall {
		n = s.acceptPerCall
	}
	return n, ioplug.StatusOK
}

func (s *scriptedPlugin) Close(io *ioplug.PCM) ioplug.Status {
	s.closes++
	return ioplug.StatusOK
}

func newNegotiated(t *testing.T, plugin ioplug.Callbacks) *ioplug.PCM {
	t.Helper()
	pcm, err := ioplug.Create("test", ioplug.StreamPlayback, false, plugin)
	require.NoError(t, err)
	require.NoError(t, pcm.HwParams(ioplug.AccessRWInterleaved, ioplug.FormatS16LE, 2, 44100, 2, 16*1024))
	return pcm
}

func TestCreateRequiresCallbacks(t *testing.T) {
	_, err := ioplug.Create("test", ioplug.StreamPlayback, false, nil)
	assert.Equal(t, ioplug.StatusInvalid, ioplug.AsStatus(err))
}

func TestHwParamsEnforcesDeclaredConstraints(t *testing.T) {
	plugin := &scriptedPlugin{}
	pcm, err := ioplug.Create("test", ioplug.StreamPlayback, false, plugin)
	require.NoError(t, err)

	require.NoError(t, pcm.SetParamList(ioplug.ParamFormat, []uint32{uint32(ioplug.FormatS16LE)}))
	require.NoError(t, pcm.SetParamMinMax(ioplug.ParamRate, 8000, 48000))

	// Constraint violations.
	err = pcm.HwParams(ioplug.AccessRWInterleaved, ioplug.FormatS32LE, 2, 44100, 2, 16*1024)
	assert.Equal(t, ioplug.StatusInvalid, ioplug.AsStatus(err))
	err = pcm.HwParams(ioplug.AccessRWInterleaved, ioplug.FormatS16LE, 2, 96000, 2, 16*1024)
	assert.Equal(t, ioplug.StatusInvalid, ioplug.AsStatus(err))

	// Range bounds are inclusive.
	require.NoError(t, pcm.HwParams(ioplug.AccessRWInterleaved, ioplug.FormatS16LE, 2, 48000, 2, 16*1024))
	require.NoError(t, pcm.HwParams(ioplug.AccessRWInterleaved, ioplug.FormatS16LE, 2, 8000, 2, 16*1024))

	// Undeclared parameters are unconstrained.
	require.NoError(t, pcm.HwParams(ioplug.AccessMmapInterleaved, ioplug.FormatS16LE, 16, 8000, 32, 16*1024))
}

func TestHwParamsRejectsPartialFrames(t *testing.T) {
	plugin := &scriptedPlugin{}
	pcm, err := ioplug.Create("test", ioplug.StreamPlayback, false, plugin)
	require.NoError(t, err)

	// Stereo S16 frames are 4 bytes; 4098 is not a multiple.
	err = pcm.HwParams(ioplug.AccessRWInterleaved, ioplug.FormatS16LE, 2, 44100, 2, 4098)
	assert.Equal(t, ioplug.StatusInvalid, ioplug.AsStatus(err))

	// An unknown sample format has no frame size at all.
	err = pcm.HwParams(ioplug.AccessRWInterleaved, ioplug.FormatUnknown, 2, 44100, 2, 4096)
	assert.Equal(t, ioplug.StatusInvalid, ioplug.AsStatus(err))
}

func TestHwParamsDerivesFrameGeometry(t *testing.T) {
	plugin := &scriptedPlugin{}
	pcm := newNegotiated(t, plugin)

	// 16 KiB of stereo S16 is 4096 frames split into 2 periods.
	assert.Equal(t, uint32(4096), pcm.BufferSize)
	assert.Equal(t, uint32(2048), pcm.PeriodSize)
	assert.Equal(t, 4, pcm.FrameBytes())
}

func TestDriverGatesOnNegotiationAndPrepare(t *testing.T) {
	plugin := &scriptedPlugin{}
	pcm, err := ioplug.Create("test", ioplug.StreamPlayback, false, plugin)
	require.NoError(t, err)

	// Before negotiation nothing runs.
	assert.Equal(t, ioplug.StatusBadFD, ioplug.AsStatus(pcm.Prepare()))

	require.NoError(t, pcm.HwParams(ioplug.AccessRWInterleaved, ioplug.FormatS16LE, 2, 44100, 2, 16*1024))

	// Negotiated but not prepared: only Prepare is allowed.
	assert.Equal(t, ioplug.StatusBadFD, ioplug.AsStatus(pcm.Start()))
	assert.Equal(t, ioplug.StatusBadFD, ioplug.AsStatus(pcm.Stop()))
	assert.Equal(t, ioplug.StatusBadFD, ioplug.AsStatus(pcm.Drain()))
	_, err = pcm.Pointer()
	assert.Equal(t, ioplug.StatusBadFD, ioplug.AsStatus(err))
	_, err = pcm.Writei(make([]byte, 64), 16)
	assert.Equal(t, ioplug.StatusBadFD, ioplug.AsStatus(err))

	require.NoError(t, pcm.Prepare())
	require.NoError(t, pcm.Start())
	require.NoError(t, pcm.Stop())
	assert.Equal(t, 1, plugin.prepares)
	assert.Equal(t, 1, plugin.starts)
	assert.Equal(t, 1, plugin.stops)
}

func TestPauseRoutesUnpauseToResume(t *testing.T) {
	plugin := &scriptedPlugin{}
	pcm := newNegotiated(t, plugin)
	require.NoError(t, pcm.Prepare())

	require.NoError(t, pcm.Pause(true))
	require.NoError(t, pcm.Pause(false))

	assert.Equal(t, []bool{true}, plugin.pauses)
	assert.Equal(t, 1, plugin.resumes)
}

func TestWriteiLoopsOverPartialAcceptance(t *testing.T) {
	plugin := &scriptedPlugin{acceptPerCall: 100}
	pcm := newNegotiated(t, plugin)
	require.NoError(t, pcm.Prepare())

	buf := make([]byte, 256*pcm.FrameBytes())
	n, err := pcm.Writei(buf, 256)
	require.NoError(t, err)
	assert.Equal(t, uint32(256), n)

	// The driver resumes each call where the previous one stopped.
	assert.Equal(t, []uint32{0, 100, 200}, plugin.offsets)
}

func TestWriteiWouldBlockSemantics(t *testing.T) {
	// Would-block with nothing accepted surfaces as the error.
	plugin := &scriptedPlugin{statuses: []ioplug.Status{ioplug.StatusAgain}}
	pcm := newNegotiated(t, plugin)
	require.NoError(t, pcm.Prepare())

	buf := make([]byte, 64*pcm.FrameBytes())
	_, err := pcm.Writei(buf, 64)
	assert.Equal(t, ioplug.StatusAgain, ioplug.AsStatus(err))

	// Would-block after partial progress reports the progress instead.
	plugin = &scriptedPlugin{acceptPerCall: 30, statuses: []ioplug.Status{ioplug.StatusOK, ioplug.StatusAgain}}
	pcm = newNegotiated(t, plugin)
	require.NoError(t, pcm.Prepare())

	n, err := pcm.Writei(buf, 64)
	require.NoError(t, err)
	assert.Equal(t, uint32(30), n)
}

func TestWriteiPropagatesFailures(t *testing.T) {
	plugin := &scriptedPlugin{statuses: []ioplug.Status{ioplug.StatusIO}}
	pcm := newNegotiated(t, plugin)
	require.NoError(t, pcm.Prepare())

	buf := make([]byte, 64*pcm.FrameBytes())
	_, err := pcm.Writei(buf, 64)
	assert.Equal(t, ioplug.StatusIO, ioplug.AsStatus(err))
}

func TestWriteiRejectsShortBuffers(t *testing.T) {
	plugin := &scriptedPlugin{}
	pcm := newNegotiated(t, plugin)
	require.NoError(t, pcm.Prepare())

	_, err := pcm.Writei(make([]byte, 63), 16)
	assert.Equal(t, ioplug.StatusInvalid, ioplug.AsStatus(err))
	assert.Empty(t, plugin.offsets, "short buffer must never reach the plugin")
}

func TestCloseIsIdempotentAndFinal(t *testing.T) {
	plugin := &scriptedPlugin{}
	pcm := newNegotiated(t, plugin)
	require.NoError(t, pcm.Prepare())

	require.NoError(t, pcm.Close())
	require.NoError(t, pcm.Close())
	assert.Equal(t, 1, plugin.closes)

	assert.Equal(t, ioplug.StatusBadFD, ioplug.AsStatus(pcm.Start()))
	err := pcm.HwParams(ioplug.AccessRWInterleaved, ioplug.FormatS16LE, 2, 44100, 2, 16*1024)
	assert.Equal(t, ioplug.StatusBadFD, ioplug.AsStatus(err))
}

func TestInterleavedAreasGeometry(t *testing.T) {
	buf := make([]byte, 64)
	areas := ioplug.InterleavedAreas(buf, ioplug.FormatS16LE, 2)

	require.Len(t, areas, 2)
	assert.Equal(t, uint(0), areas[0].First)
	assert.Equal(t, uint(16), areas[1].First)
	for _, area := range areas {
		assert.Equal(t, uint(32), area.Step)
		assert.Equal(t, &buf[0], &area.Addr[0])
	}
}

func TestStatusErrRoundTrip(t *testing.T) {
	assert.NoError(t, ioplug.StatusOK.Err())
	assert.Equal(t, ioplug.StatusOK, ioplug.AsStatus(nil))

	for _, st := range []ioplug.Status{
		ioplug.StatusFailure, ioplug.StatusIO, ioplug.StatusAgain,
		ioplug.StatusNoMem, ioplug.StatusInvalid, ioplug.StatusBadFD,
	} {
		assert.Equal(t, st, ioplug.AsStatus(st.Err()))
	}
}
