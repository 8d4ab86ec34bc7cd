// Package kernel provides a user-mode stand-in for the handful of NT I/O
// manager primitives the driver core depends on: IRPs, MDLs, events, a
// remove-lock, and device objects. None of this runs in kernel mode; it
// exists so the rest of the tree can be expressed with the same shapes the
// original driver used, instead of being flattened into plain function calls.
package kernel

import "fmt"

// Status mirrors the small set of NTSTATUS-style outcomes the driver core
// can report. Pending is never a terminal status: every IRP accepted into a
// worker queue must eventually complete with some other value.
type Status int

const (
	StatusSuccess Status = iota
	StatusPending
	StatusInvalidDeviceState
	StatusInvalidParameter
	StatusBufferTooSmall
	StatusInsufficientResources
	StatusInvalidDeviceRequest
	StatusDriverInternalError
	StatusLowerDriverError
	StatusFileSystemError
	StatusNoSuchDevice
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusPending:
		return "PENDING"
	case StatusInvalidDeviceState:
		return "INVALID_DEVICE_STATE"
	case StatusInvalidParameter:
		return "INVALID_PARAMETER"
	case StatusBufferTooSmall:
		return "BUFFER_TOO_SMALL"
	case StatusInsufficientResources:
		return "INSUFFICIENT_RESOURCES"
	case StatusInvalidDeviceRequest:
		return "INVALID_DEVICE_REQUEST"
	case StatusDriverInternalError:
		return "DRIVER_INTERNAL_ERROR"
	case StatusLowerDriverError:
		return "LOWER_DRIVER_ERROR"
	case StatusFileSystemError:
		return "FILE_SYSTEM_ERROR"
	case StatusNoSuchDevice:
		return "NO_SUCH_DEVICE"
	default:
		return "UNKNOWN_STATUS"
	}
}

// Success reports whether s represents a completed, non-error status.
func (s Status) Success() bool {
	return s == StatusSuccess
}

// Error implements the error interface so a Status can be returned directly
// wherever Go code expects an error instead of a raw status code.
func (s Status) Error() string {
	return s.String()
}

// StatusError wraps a Status with additional context, the way the original
// driver's NTSTATUS-returning routines would log a message alongside the
// code before propagating it.
type StatusError struct {
	Status  Status
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return e.Status.String()
	}
	return fmt.Sprintf("%s: %s", e.Status, e.Message)
}

func (e *StatusError) Unwrap() error { return e.Status }

// WithMessage builds a StatusError carrying extra context for s.
func WithMessage(s Status, format string, args ...any) *StatusError {
	return &StatusError{Status: s, Message: fmt.Sprintf(format, args...)}
}
