// Package adapter implements the bridge between the host's synchronous
// PCM I/O-plugin callbacks and the native asynchronous stream engine.
//
// The adapter owns the engine stream handle behind a single lock: every
// callback acquires it, re-checks the handle and operates on the stream, so
// host callbacks are serialized even when invoked from different threads.
// The host's own guard is not trusted.
//
// Playback only; the capture direction is rejected at plugin creation.
package adapter

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/tphakala/pcmbridge/internal/conf"
	"github.com/tphakala/pcmbridge/internal/engine"
	"github.com/tphakala/pcmbridge/internal/ioplug"
	"github.com/tphakala/pcmbridge/internal/logging"
	"github.com/tphakala/pcmbridge/internal/observability/metrics"
)

// Adapter maps the host lifecycle callbacks onto the engine's asynchronous
// operations and emulates the fixed-size ring-buffer position the host
// expects progress against.
type Adapter struct {
	mu     sync.Mutex
	stream engine.Stream

	timing      conf.TimingSettings
	backend     engine.Backend
	deviceName  string
	debugChecks bool

	clock Clock
	open  func(*engine.Builder) (engine.Stream, error)

	metrics *metrics.BridgeMetrics
	log     *slog.Logger
}

// Option adjusts an Adapter at construction, mainly for tests.
type Option func(*Adapter)

// WithOpener replaces the engine stream opener.
func WithOpener(open func(*engine.Builder) (engine.Stream, error)) Option {
	return func(a *Adapter) { a.open = open }
}

// WithClock replaces the clock driving the polling loops.
func WithClock(clock Clock) Option {
	return func(a *Adapter) { a.clock = clock }
}

// New creates an adapter from the bridge settings. The engine stream is not
// opened until the host calls Prepare.
func New(settings *conf.Settings, bridgeMetrics *metrics.BridgeMetrics, opts ...Option) *Adapter {
	log := logging.ForService("adapter")
	if log == nil {
		log = slog.Default()
	}

	a := &Adapter{
		timing:      settings.Bridge.Timing,
		backend:     engine.ParseBackend(settings.Bridge.Backend),
		deviceName:  settings.Bridge.Device,
		debugChecks: settings.Bridge.DebugChecks || settings.Debug,
		clock:       systemClock{},
		open:        func(b *engine.Builder) (engine.Stream, error) { return b.Open() },
		metrics:     bridgeMetrics,
		log:         log.With("instance", uuid.New().String()),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Prepare opens the engine stream from the negotiated descriptor. It is
// idempotent: a second Prepare without an intervening Close succeeds
// without touching the existing handle.
func (a *Adapter) Prepare(io *ioplug.PCM) ioplug.Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.metrics.RecordLifecycleOp("prepare")

	if a.stream != nil {
		return ioplug.StatusOK
	}

	builder := &engine.Builder{
		Direction:                engine.DirOutput,
		Performance:              engine.PerformanceLowLatency,
		Sharing:                  engine.SharingShared,
		Format:                   mapFormat(io.Format),
		FormatConversionAllowed:  true,
		Channels:                 io.Channels,
		ChannelConversionAllowed: true,
		SampleRate:               io.Rate,
		ConversionQual:           engine.ConversionMedium,
		BufferCapacityFrames:     int(io.BufferSize),
		Backend:                  a.backend,
		DeviceName:               a.deviceName,
	}

	stream, err := a.open(builder)
	if err != nil {
		a.log.Error("failed to open stream", "error", err)
		a.metrics.RecordLifecycleError("prepare")
		return ioplug.StatusFailure
	}

	if stream.BufferCapacityInFrames() < int(io.BufferSize) {
		// The host cannot operate against a buffer smaller than the one it
		// negotiated; treat this as a fatal configuration mismatch.
		a.log.Error("buffer capacity smaller than requested",
			"got", stream.BufferCapacityInFrames(), "requested", io.BufferSize)
		_ = stream.Close()
		a.metrics.RecordLifecycleError("prepare")
		return ioplug.StatusIO
	}

	a.stream = stream
	return ioplug.StatusOK
}

// Start issues a non-blocking start request. A failure is reported but the
// handle stays intact for the host to retry or close.
func (a *Adapter) Start(io *ioplug.PCM) ioplug.Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.metrics.RecordLifecycleOp("start")

	if a.stream == nil {
		return ioplug.StatusBadFD
	}

	if err := a.stream.RequestStart(); err != nil {
		a.log.Error("failed to start stream", "error", err)
		a.metrics.RecordLifecycleError("start")
		return ioplug.StatusFailure
	}
	return ioplug.StatusOK
}

// Resume is the host's un-pause entry point and is aliased to Start: the
// engine silently no-ops a start request on a started stream.
func (a *Adapter) Resume(io *ioplug.PCM) ioplug.Status {
	return a.Start(io)
}

// Stop flushes the stream to silence. The engine does not honor flush
// requests while it is still transitioning to Paused, so Stop first blocks
// until Paused is observed and only then requests the flush.
func (a *Adapter) Stop(io *ioplug.PCM) ioplug.Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.metrics.RecordLifecycleOp("stop")

	if a.stream == nil {
		return ioplug.StatusBadFD
	}

	state := a.stream.State()
	if state == engine.StateStopped || state == engine.StateFlushed {
		return ioplug.StatusOK
	}

	if err := a.stream.RequestPause(); err != nil {
		a.log.Error("failed to pause stream", "error", err)
		a.metrics.RecordLifecycleError("stop")
		return ioplug.StatusFailure
	}

	state = a.stream.State()
	for state != engine.StatePaused {
		next, err := a.stream.WaitForStateChange(state, a.timing.SafetyCeiling)
		if err != nil {
			a.log.Error("failed to wait for pause", "error", err, "state", state.String())
			a.metrics.RecordLifecycleError("stop")
			return ioplug.StatusFailure
		}
		state = next
	}

	if err := a.stream.RequestFlush(); err != nil {
		a.log.Error("failed to flush stream", "error", err)
		a.metrics.RecordLifecycleError("stop")
		return ioplug.StatusFailure
	}

	state = a.stream.State()
	for state != engine.StateFlushed {
		next, err := a.stream.WaitForStateChange(state, a.timing.SafetyCeiling)
		if err != nil {
			a.log.Error("failed to wait for flush", "error", err, "state", state.String())
			a.metrics.RecordLifecycleError("stop")
			return ioplug.StatusFailure
		}
		state = next
	}

	return ioplug.StatusOK
}

// Drain blocks until every buffered sample has been consumed, then stops
// the stream. The engine's stop-implies-flushed guarantee is unreliable, so
// consumption is verified by polling the cumulative read counter against
// the write counter. If the engine reads nothing for the whole grace
// window it is assumed broken and the drain is abandoned instead of
// hanging forever.
func (a *Adapter) Drain(io *ioplug.PCM) ioplug.Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.metrics.RecordLifecycleOp("drain")

	if a.stream == nil {
		return ioplug.StatusBadFD
	}

	start := a.clock.Now()
	graceDeadline := start.Add(a.timing.DrainGrace)

	for {
		framesRead := a.stream.FramesRead()
		if framesRead < 0 {
			a.log.Error("failed to get frames read", "framesRead", framesRead)
			a.metrics.RecordLifecycleError("drain")
			return ioplug.StatusFailure
		}

		framesWritten := a.stream.FramesWritten()
		if framesWritten < 0 {
			a.log.Error("failed to get frames written", "framesWritten", framesWritten)
			a.metrics.RecordLifecycleError("drain")
			return ioplug.StatusFailure
		}

		if framesRead == framesWritten {
			break
		}

		a.clock.Sleep(a.timing.DrainPollInterval)

		if a.clock.Now().After(graceDeadline) && framesRead == 0 {
			// The engine refuses to read anything until an arbitrary
			// minimum fill is reached on some platforms. Give up rather
			// than wait forever.
			a.log.Warn("no frames read within grace window, abandoning drain",
				"framesWritten", framesWritten)
			a.metrics.RecordDrainAbandoned()
			break
		}
	}

	if err := a.stream.RequestStop(); err != nil {
		a.log.Error("failed to stop stream", "error", err)
		a.metrics.RecordLifecycleError("drain")
		return ioplug.StatusFailure
	}

	state := a.stream.State()
	for state != engine.StateStopped {
		next, err := a.stream.WaitForStateChange(state, a.timing.SafetyCeiling)
		if err != nil {
			a.log.Error("failed to wait for stop", "error", err, "state", state.String())
			a.metrics.RecordLifecycleError("drain")
			return ioplug.StatusFailure
		}
		state = next
	}

	a.metrics.RecordDrainDuration(a.clock.Now().Sub(start).Seconds())
	return ioplug.StatusOK
}

// Pause requests a pause without waiting for confirmation. Un-pausing is
// not handled here: the host routes it through Resume.
func (a *Adapter) Pause(io *ioplug.PCM, _ bool) ioplug.Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.metrics.RecordLifecycleOp("pause")

	if a.stream == nil {
		return ioplug.StatusBadFD
	}

	if err := a.stream.RequestPause(); err != nil {
		a.log.Error("failed to pause stream", "error", err)
		a.metrics.RecordLifecycleError("pause")
		return ioplug.StatusFailure
	}
	return ioplug.StatusOK
}

// Pointer reports the play position as an offset into the imaginary ring
// buffer. The engine manages the real device buffer internally, so the
// position is derived from the cumulative frames written. Xruns are not
// reported: the engine recovers from underruns on its own.
func (a *Adapter) Pointer(io *ioplug.PCM) (uint32, ioplug.Status) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stream == nil {
		return 0, ioplug.StatusBadFD
	}

	framesWritten := a.stream.FramesWritten()
	if framesWritten < 0 {
		a.log.Error("failed to get frames written", "framesWritten", framesWritten)
		return 0, ioplug.StatusFailure
	}

	return uint32(framesWritten % int64(io.BufferSize)), ioplug.StatusOK
}

// Transfer forwards interleaved frames to the engine's write path, starting
// the stream first if it is not running: the host does not call Start for
// every cycle.
func (a *Adapter) Transfer(io *ioplug.PCM, areas []ioplug.ChannelArea, offset, frames uint32) (uint32, ioplug.Status) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stream == nil {
		return 0, ioplug.StatusBadFD
	}
	if frames == 0 {
		return 0, ioplug.StatusOK
	}

	if a.debugChecks {
		if st := checkInterleaved(areas); st != ioplug.StatusOK {
			a.log.Error("attempt to transfer non-interleaved samples")
			a.metrics.RecordTransfer("bad-layout", 0)
			return 0, st
		}
	}

	if a.stream.State() != engine.StateStarted {
		if err := a.stream.RequestStart(); err != nil {
			a.log.Error("failed to start stream from transfer", "error", err)
			a.metrics.RecordTransfer("start-failed", 0)
			return 0, ioplug.StatusFailure
		}
	}

	first := areas[0]
	frameBytes := uint32(io.FrameBytes())
	startByte := offset * (uint32(first.Step) / 8)
	buf := first.Addr[startByte : startByte+frames*frameBytes]

	timeout := a.timing.SafetyCeiling
	if io.Nonblock {
		timeout = 0
	}

	n, err := a.stream.Write(buf, int(frames), timeout)
	switch {
	case err != nil:
		a.log.Error("failed to write samples to stream", "error", err)
		a.metrics.RecordTransfer("error", 0)
		return 0, ioplug.StatusFailure
	case n == 0 && io.Nonblock:
		// No room in the engine buffer; the host will try again.
		a.metrics.RecordWouldBlock()
		return 0, ioplug.StatusAgain
	case n == 0:
		a.log.Error("blocking write accepted no samples")
		a.metrics.RecordTransfer("stalled", 0)
		return 0, ioplug.StatusFailure
	}

	a.metrics.RecordTransfer("ok", n)
	return uint32(n), ioplug.StatusOK
}

// Close releases the engine handle. Safe to call repeatedly.
func (a *Adapter) Close(io *ioplug.PCM) ioplug.Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.metrics.RecordLifecycleOp("close")

	if a.stream != nil {
		if err := a.stream.Close(); err != nil {
			a.log.Error("failed to close stream", "error", err)
		}
		a.stream = nil
	}
	return ioplug.StatusOK
}

// checkInterleaved rejects any channel layout that is not a single
// interleaved buffer: every channel must share the first channel's backing
// array and stride, with its first sample inside the first frame.
func checkInterleaved(areas []ioplug.ChannelArea) ioplug.Status {
	if len(areas) == 0 {
		return ioplug.StatusFailure
	}
	first := areas[0]
	if len(first.Addr) == 0 {
		return ioplug.StatusFailure
	}
	for i := range areas {
		area := areas[i]
		if len(area.Addr) == 0 || &area.Addr[0] != &first.Addr[0] ||
			area.Step != first.Step || area.First >= first.Step {
			return ioplug.StatusFailure
		}
	}
	return ioplug.StatusOK
}

// mapFormat converts the negotiated PCM format to the engine format. Any
// format outside the declared set maps to FormatInvalid, failing the open.
func mapFormat(f ioplug.Format) engine.Format {
	switch f {
	case ioplug.FormatS16LE:
		return engine.FormatI16
	case ioplug.FormatFloatLE:
		return engine.FormatFloat
	case ioplug.FormatS243LE:
		return engine.FormatI24
	case ioplug.FormatS32LE:
		return engine.FormatI32
	default:
		return engine.FormatInvalid
	}
}

var _ ioplug.Callbacks = (*Adapter)(nil)
