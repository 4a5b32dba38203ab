// Package ioplug re-expresses the synchronous fixed-callback I/O-plugin
// contract of the PCM host layer. The host invokes a plugin's lifecycle
// callbacks according to its own application-facing state machine and
// expects errno-style integer statuses back; this package carries the
// callback interface, the hardware-parameter negotiation surface and a thin
// host-side driver used by the CLI and tests.
package ioplug

import (
	"errors"
	"fmt"
)

// Status is the host's integer status convention: zero for success,
// negative errno-style values for failures. No callback may fail any other
// way.
type Status int

const (
	StatusOK      Status = 0
	StatusFailure Status = -1  // generic native-engine failure
	StatusIO      Status = -5  // EIO: fatal configuration mismatch at open
	StatusAgain   Status = -11 // EAGAIN: non-blocking path with no space
	StatusNoMem   Status = -12 // ENOMEM: allocation failure at creation
	StatusInvalid Status = -22 // EINVAL: unsupported argument or direction
	StatusBadFD   Status = -77 // EBADFD: handle absent or not prepared
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusFailure:
		return "failure"
	case StatusIO:
		return "io-error"
	case StatusAgain:
		return "would-block"
	case StatusNoMem:
		return "out-of-memory"
	case StatusInvalid:
		return "invalid-argument"
	case StatusBadFD:
		return "bad-descriptor"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Err converts a non-OK status to an error, and StatusOK to nil.
func (s Status) Err() error {
	if s == StatusOK {
		return nil
	}
	return &StatusError{Status: s}
}

// StatusError wraps a Status as an error for the host-side driver surface.
type StatusError struct {
	Status Status
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("pcm plugin: %s", e.Status)
}

// AsStatus extracts the Status from an error chain produced by Status.Err,
// returning StatusFailure for foreign errors and StatusOK for nil.
func AsStatus(err error) Status {
	if err == nil {
		return StatusOK
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return StatusFailure
}
