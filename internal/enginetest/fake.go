// Package enginetest provides a deterministic fake engine stream for
// exercising the bridge's polling and timeout logic without real hardware
// or real timing.
package enginetest

import (
	"sync"
	"time"

	"github.com/tphakala/pcmbridge/internal/engine"
)

// FakeStream is a scripted engine.Stream. State transitions can be made
// asynchronous: a request then enters the transient state and each
// WaitForStateChange call steps the stream toward the settled state, like
// the real engine's wait-for-state-change behaves from the caller's side.
//
// FakeStream also instruments every public call to detect overlapping
// invocations: the adapter's lock must serialize all access to the stream.
type FakeStream struct {
	mu sync.Mutex

	state   engine.State
	pending []engine.State // stepped through by WaitForStateChange

	framesWritten int64
	framesRead    int64

	capacity int

	// AsyncTransitions makes pause/flush/stop requests settle only after
	// WaitForStateChange steps them.
	AsyncTransitions bool

	// AcceptPerWrite caps the frames accepted by a single Write call.
	// Zero means accept everything.
	AcceptPerWrite int

	// RefuseWrites makes Write accept zero frames, simulating a full
	// internal buffer.
	RefuseWrites bool

	// AutoRead makes FramesRead catch up to FramesWritten on every call,
	// simulating an engine that consumes instantly.
	AutoRead bool

	// ReadPerCall advances the read counter by that many frames on every
	// FramesRead call, simulating steady consumption during a drain poll.
	ReadPerCall int64

	// lastWrite keeps a copy of the bytes handed to the most recent Write.
	lastWrite []byte

	// Error injection per request.
	StartErr, PauseErr, FlushErr, StopErr, WriteErr, WaitErr error

	// NegativeCounters makes the frame counters report an engine fault.
	NegativeCounters bool

	calls    []string
	overlaps int
	inCall   int
	closed   bool
}

// NewFakeStream returns a fake stream in the Open state with the given
// buffer capacity in frames.
func NewFakeStream(capacityFrames int) *FakeStream {
	return &FakeStream{
		state:    engine.StateOpen,
		capacity: capacityFrames,
	}
}

// enter/leave bracket every public call for overlap accounting.
func (f *FakeStream) enter(op string) {
	f.mu.Lock()
	f.calls = append(f.calls, op)
	f.inCall++
	if f.inCall > 1 {
		f.overlaps++
	}
	f.mu.Unlock()
}

func (f *FakeStream) leave() {
	f.mu.Lock()
	f.inCall--
	f.mu.Unlock()
}

// Calls returns the recorded operation names in order.
func (f *FakeStream) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

// Overlaps reports how many calls observed another call in flight.
func (f *FakeStream) Overlaps() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.overlaps
}

// SetState forces the settled state.
func (f *FakeStream) SetState(st engine.State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = st
	f.pending = nil
}

// AdvanceReads moves the cumulative read counter forward by n frames,
// capped at the written counter.
func (f *FakeStream) AdvanceReads(n int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.framesRead += n
	if f.framesRead > f.framesWritten {
		f.framesRead = f.framesWritten
	}
}

// Closed reports whether Close has been called.
func (f *FakeStream) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// request transitions toward settled, either directly or via the pending
// queue when AsyncTransitions is set.
func (f *FakeStream) request(transient, settled engine.State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.AsyncTransitions {
		f.state = transient
		f.pending = append(f.pending, settled)
		return
	}
	f.state = settled
	f.pending = nil
}

func (f *FakeStream) RequestStart() error {
	f.enter("RequestStart")
	defer f.leave()
	if f.StartErr != nil {
		return f.StartErr
	}
	f.request(engine.StateStarting, engine.StateStarted)
	return nil
}

func (f *FakeStream) RequestPause() error {
	f.enter("RequestPause")
	defer f.leave()
	if f.PauseErr != nil {
		return f.PauseErr
	}
	f.request(engine.StatePausing, engine.StatePaused)
	return nil
}

func (f *FakeStream) RequestFlush() error {
	f.enter("RequestFlush")
	defer f.leave()
	if f.FlushErr != nil {
		return f.FlushErr
	}
	f.request(engine.StateFlushing, engine.StateFlushed)
	return nil
}

func (f *FakeStream) RequestStop() error {
	f.enter("RequestStop")
	defer f.leave()
	if f.StopErr != nil {
		return f.StopErr
	}
	f.request(engine.StateStopping, engine.StateStopped)
	return nil
}

func (f *FakeStream) Write(buf []byte, frames int, timeout time.Duration) (int, error) {
	f.enter("Write")
	defer f.leave()
	if f.WriteErr != nil {
		return 0, f.WriteErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.RefuseWrites {
		return 0, nil
	}
	accepted := frames
	if f.AcceptPerWrite > 0 && accepted > f.AcceptPerWrite {
		accepted = f.AcceptPerWrite
	}
	f.lastWrite = append(f.lastWrite[:0], buf...)
	f.framesWritten += int64(accepted)
	return accepted, nil
}

// LastWrite returns a copy of the buffer handed to the most recent Write.
func (f *FakeStream) LastWrite() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]byte, len(f.lastWrite))
	copy(out, f.lastWrite)
	return out
}

func (f *FakeStream) FramesWritten() int64 {
	f.enter("FramesWritten")
	defer f.leave()
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.NegativeCounters {
		return -1
	}
	return f.framesWritten
}

func (f *FakeStream) FramesRead() int64 {
	f.enter("FramesRead")
	defer f.leave()
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.NegativeCounters {
		return -1
	}
	if f.AutoRead {
		f.framesRead = f.framesWritten
	}
	if f.ReadPerCall > 0 && f.framesRead < f.framesWritten {
		f.framesRead += f.ReadPerCall
		if f.framesRead > f.framesWritten {
			f.framesRead = f.framesWritten
		}
	}
	return f.framesRead
}

func (f *FakeStream) State() engine.State {
	f.enter("State")
	defer f.leave()
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *FakeStream) WaitForStateChange(current engine.State, timeout time.Duration) (engine.State, error) {
	f.enter("WaitForStateChange")
	defer f.leave()
	if f.WaitErr != nil {
		return current, f.WaitErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != current {
		return f.state, nil
	}
	if len(f.pending) > 0 {
		f.state = f.pending[0]
		f.pending = f.pending[1:]
		return f.state, nil
	}
	// Nothing will ever change; behave like the safety ceiling elapsing.
	return current, engine.ErrTimeout
}

func (f *FakeStream) BufferCapacityInFrames() int {
	f.enter("BufferCapacityInFrames")
	defer f.leave()
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.capacity
}

func (f *FakeStream) Close() error {
	f.enter("Close")
	defer f.leave()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.state = engine.StateClosed
	return nil
}

var _ engine.Stream = (*FakeStream)(nil)
