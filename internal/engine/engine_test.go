package engine

import (
	"log/slog"
	"testing"
	"time"

	"github.com/smallnest/ringbuffer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tphakala/pcmbridge/internal/errors"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// newRingStream builds a stream around the internal ring buffer with no
// device attached. Only device-free paths may run against it.
func newRingStream(capacityFrames, frameBytes int) *malgoStream {
	return &malgoStream{
		state:      StateOpen,
		stateCh:    make(chan struct{}),
		ring:       ringbuffer.New(capacityFrames * frameBytes),
		frameBytes: frameBytes,
		capacity:   capacityFrames,
		log:        slog.Default(),
	}
}

func TestWriteNonBlockingAcceptsWhatFits(t *testing.T) {
	s := newRingStream(8, 4)

	buf := make([]byte, 10*4)
	n, err := s.Write(buf, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 8, n, "only whole frames that fit are accepted")
	assert.Equal(t, int64(8), s.FramesWritten())

	// Buffer full: nothing more goes in.
	n, err = s.Write(buf, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, int64(8), s.FramesWritten())
}

func TestWriteZeroFramesIsNoOp(t *testing.T) {
	s := newRingStream(8, 4)
	n, err := s.Write(nil, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestWriteRejectsShortBuffer(t *testing.T) {
	s := newRingStream(8, 4)
	_, err := s.Write(make([]byte, 7), 2, 0)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestWriteOnClosedStream(t *testing.T) {
	s := newRingStream(8, 4)
	s.setState(StateClosed)

	_, err := s.Write(make([]byte, 4), 1, 0)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestWriteBlockingWaitsForSpace(t *testing.T) {
	s := newRingStream(4, 4)

	// A delivery thread drains four frames shortly after the write blocks.
	go func() {
		time.Sleep(5 * time.Millisecond)
		out := make([]byte, 4*4)
		s.onDeliverFrames(out, nil, 4)
	}()

	buf := make([]byte, 8*4)
	n, err := s.Write(buf, 8, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	assert.Equal(t, int64(8), s.FramesWritten())
}

func TestWriteBlockingGivesUpAtDeadline(t *testing.T) {
	s := newRingStream(4, 4)

	buf := make([]byte, 8*4)
	n, err := s.Write(buf, 8, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 4, n, "deadline must bound the blocking write")
}

func TestDeliverFramesZeroFillsUnderrun(t *testing.T) {
	s := newRingStream(8, 4)

	data := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	_, err := s.Write(data, 2, 0)
	require.NoError(t, err)

	out := make([]byte, 4*4)
	for i := range out {
		out[i] = 0xff
	}
	s.onDeliverFrames(out, nil, 4)

	assert.Equal(t, data, out[:8], "buffered frames are delivered first")
	for _, b := range out[8:] {
		assert.Zero(t, b, "underrun region must be silence, not stale bytes")
	}
	assert.Equal(t, int64(2), s.FramesRead(), "only real frames count as read")
}

func TestFlushDiscardsAndSettlesCounters(t *testing.T) {
	s := newRingStream(8, 4)
	_, err := s.Write(make([]byte, 6*4), 6, 0)
	require.NoError(t, err)
	s.setState(StatePaused)

	require.NoError(t, s.RequestFlush())

	assert.Equal(t, StateFlushed, s.State())
	assert.Equal(t, s.FramesWritten(), s.FramesRead(), "discarded frames count as consumed")
	assert.Equal(t, 0, s.ring.Length())
}

func TestFlushOnlyFromSettledStates(t *testing.T) {
	s := newRingStream(8, 4)
	s.setState(StateStarted)
	assert.ErrorIs(t, s.RequestFlush(), ErrInvalidState)

	s.setState(StateStopped)
	assert.NoError(t, s.RequestFlush())
}

func TestPauseOnlyFromRunningStream(t *testing.T) {
	s := newRingStream(8, 4)
	assert.ErrorIs(t, s.RequestPause(), ErrInvalidState)

	// Already pausing or paused is a silent no-op.
	s.setState(StatePaused)
	assert.NoError(t, s.RequestPause())
	s.setState(StatePausing)
	assert.NoError(t, s.RequestPause())
}

func TestRequestsOnClosedStream(t *testing.T) {
	s := newRingStream(8, 4)
	s.setState(StateClosed)

	assert.ErrorIs(t, s.RequestStart(), ErrClosed)
	assert.ErrorIs(t, s.RequestPause(), ErrClosed)
	assert.ErrorIs(t, s.RequestFlush(), ErrClosed)
	assert.ErrorIs(t, s.RequestStop(), ErrClosed)
}

func TestRequestsOnDisconnectedStream(t *testing.T) {
	s := newRingStream(8, 4)
	s.setState(StateDisconnected)

	assert.ErrorIs(t, s.RequestStart(), ErrDisconnected)
	assert.ErrorIs(t, s.RequestPause(), ErrDisconnected)
	assert.ErrorIs(t, s.RequestStop(), ErrDisconnected)
}

func TestWaitForStateChangeTimesOut(t *testing.T) {
	s := newRingStream(8, 4)

	st, err := s.WaitForStateChange(StateOpen, 10*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, StateOpen, st)
}

func TestWaitForStateChangeReturnsImmediatelyOnMismatch(t *testing.T) {
	s := newRingStream(8, 4)
	s.setState(StatePaused)

	st, err := s.WaitForStateChange(StateOpen, 0)
	require.NoError(t, err)
	assert.Equal(t, StatePaused, st)
}

func TestWaitForStateChangeObservesTransition(t *testing.T) {
	s := newRingStream(8, 4)

	go func() {
		time.Sleep(5 * time.Millisecond)
		s.setState(StateStarted)
	}()

	st, err := s.WaitForStateChange(StateOpen, time.Second)
	require.NoError(t, err)
	assert.Equal(t, StateStarted, st)
}

func TestDeviceStopMarksRunningStreamDisconnected(t *testing.T) {
	s := newRingStream(8, 4)
	s.setState(StateStarted)
	s.onDeviceStop()
	assert.Equal(t, StateDisconnected, s.State())

	// A deliberate stop already moved the state on; no disconnect then.
	s.setState(StateStopped)
	s.onDeviceStop()
	assert.Equal(t, StateStopped, s.State())
}

func TestBuilderRejectsBadConfiguration(t *testing.T) {
	base := Builder{
		Direction:            DirOutput,
		Format:               FormatI16,
		Channels:             2,
		SampleRate:           48000,
		BufferCapacityFrames: 4096,
	}

	b := base
	b.Direction = DirInput
	_, err := b.Open()
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

	b = base
	b.Format = FormatInvalid
	_, err = b.Open()
	assert.ErrorIs(t, err, ErrInvalidFormat)

	b = base
	b.Channels = 0
	_, err = b.Open()
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

	b = base
	b.BufferCapacityFrames = -1
	_, err = b.Open()
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestParseBackend(t *testing.T) {
	assert.Equal(t, BackendLegacy, ParseBackend("legacy"))
	assert.Equal(t, BackendLowLevel, ParseBackend("LowLevel"))
	assert.Equal(t, BackendAuto, ParseBackend("AUTO"))
	assert.Equal(t, BackendLegacy, ParseBackend(""))
	assert.Equal(t, BackendLegacy, ParseBackend("bogus"))
}

func TestFormatBytesPerSample(t *testing.T) {
	assert.Equal(t, 2, FormatI16.BytesPerSample())
	assert.Equal(t, 4, FormatFloat.BytesPerSample())
	assert.Equal(t, 3, FormatI24.BytesPerSample())
	assert.Equal(t, 4, FormatI32.BytesPerSample())
	assert.Equal(t, 0, FormatInvalid.BytesPerSample())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "Started", StateStarted.String())
	assert.Equal(t, "Unknown", State(99).String())
}
