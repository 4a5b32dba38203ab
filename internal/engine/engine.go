// Package engine models the native asynchronous audio-streaming engine the
// bridge plays through. The engine owns its internal ring buffer, a
// background delivery thread and a state machine with asynchronous
// transitions; callers drive it through non-blocking requests and observe
// completion via State and WaitForStateChange.
//
// The real implementation is backed by malgo (miniaudio). A deterministic
// fake for tests lives in internal/enginetest.
package engine

import (
	"strings"
	"time"

	"github.com/tphakala/pcmbridge/internal/errors"
)

// State is the engine stream state. Transitions are asynchronous: a request
// moves the stream into the corresponding transient state and the settled
// state is observed via WaitForStateChange.
type State int32

const (
	StateUninitialized State = iota
	StateOpen
	StateStarting
	StateStarted
	StatePausing
	StatePaused
	StateFlushing
	StateFlushed
	StateStopping
	StateStopped
	StateClosing
	StateClosed
	StateDisconnected
)

var stateNames = map[State]string{
	StateUninitialized: "Uninitialized",
	StateOpen:          "Open",
	StateStarting:      "Starting",
	StateStarted:       "Started",
	StatePausing:       "Pausing",
	StatePaused:        "Paused",
	StateFlushing:      "Flushing",
	StateFlushed:       "Flushed",
	StateStopping:      "Stopping",
	StateStopped:       "Stopped",
	StateClosing:       "Closing",
	StateClosed:        "Closed",
	StateDisconnected:  "Disconnected",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "Unknown"
}

// Format is the engine sample format.
type Format int

const (
	FormatInvalid Format = iota
	FormatI16            // 16-bit signed integer
	FormatFloat          // 32-bit float
	FormatI24            // 24-bit packed signed integer
	FormatI32            // 32-bit signed integer
)

// BytesPerSample returns the per-channel sample size of the format,
// or 0 for FormatInvalid.
func (f Format) BytesPerSample() int {
	switch f {
	case FormatI16:
		return 2
	case FormatFloat:
		return 4
	case FormatI24:
		return 3
	case FormatI32:
		return 4
	default:
		return 0
	}
}

func (f Format) String() string {
	switch f {
	case FormatI16:
		return "I16"
	case FormatFloat:
		return "Float"
	case FormatI24:
		return "I24"
	case FormatI32:
		return "I32"
	default:
		return "Invalid"
	}
}

// Direction of a stream.
type Direction int

const (
	DirOutput Direction = iota
	DirInput
)

// PerformanceMode hints the engine's internal scheduling.
type PerformanceMode int

const (
	PerformanceNone PerformanceMode = iota
	PerformanceLowLatency
	PerformancePowerSaving
)

// SharingMode selects exclusive or shared device access.
type SharingMode int

const (
	SharingShared SharingMode = iota
	SharingExclusive
)

// ConversionQuality selects the engine's sample rate conversion quality.
type ConversionQuality int

const (
	ConversionFastest ConversionQuality = iota
	ConversionLow
	ConversionMedium
	ConversionHigh
	ConversionBest
)

// Backend selects the native backend implementation. The legacy backend is
// the default: the low-level backend has observed stability defects on some
// devices.
type Backend int

const (
	BackendLegacy Backend = iota
	BackendLowLevel
	BackendAuto
)

// ParseBackend maps a configuration string to a Backend, defaulting to the
// legacy backend for unknown values.
func ParseBackend(name string) Backend {
	switch strings.ToLower(name) {
	case "lowlevel":
		return BackendLowLevel
	case "auto":
		return BackendAuto
	default:
		return BackendLegacy
	}
}

// Sentinel errors reported by engine implementations.
var (
	// ErrInvalidState is returned for a request that is not legal in the
	// stream's current state.
	ErrInvalidState = errors.NewStd("engine: invalid state for request")
	// ErrClosed is returned for any operation on a closed stream.
	ErrClosed = errors.NewStd("engine: stream is closed")
	// ErrInvalidFormat is returned when a stream is built with an
	// unrepresentable sample format.
	ErrInvalidFormat = errors.NewStd("engine: invalid sample format")
	// ErrTimeout is returned when a state-change wait exceeds its timeout.
	ErrTimeout = errors.NewStd("engine: timed out waiting for state change")
	// ErrDisconnected is returned when the underlying device went away.
	ErrDisconnected = errors.NewStd("engine: device disconnected")
)

// Stream is the engine's asynchronous stream handle.
//
// Request operations are non-blocking: they initiate a transition and
// return. Write blocks up to the given timeout, or not at all when the
// timeout is zero. FramesWritten and FramesRead are cumulative counters
// since open; a negative value signals an engine fault.
type Stream interface {
	RequestStart() error
	RequestPause() error
	RequestFlush() error
	RequestStop() error

	// Write pushes up to frames interleaved frames from buf into the
	// engine's internal buffer and returns the number of frames accepted.
	// A zero timeout makes the call non-blocking.
	Write(buf []byte, frames int, timeout time.Duration) (int, error)

	FramesWritten() int64
	FramesRead() int64

	State() State

	// WaitForStateChange blocks until the stream state differs from
	// current, or the timeout elapses. It returns the state observed.
	WaitForStateChange(current State, timeout time.Duration) (State, error)

	// BufferCapacityInFrames reports the actual capacity of the engine's
	// internal buffer, which may differ from the capacity requested at
	// build time.
	BufferCapacityInFrames() int

	Close() error
}
