package session

import (
	"errors"
	"fmt"
)

// Code classifies a session error per the three-way taxonomy: ARG for
// caller-supplied invalid input, BUG for an internal invariant breach, and
// ERR for an operational failure from the OS, a device, or a transform.
type Code int

const (
	// CodeARG marks caller-supplied invalid input: a nil argument, a
	// negative fd paired with an infinite timeout, a duplicate poll
	// object, a zero-channel device at start.
	CodeARG Code = iota
	// CodeBUG marks an internal invariant violation: a missing dev_open,
	// removal of a non-existent source. Logged loudly by the caller that
	// detects it; still returned, never aborts the process.
	CodeBUG
	// CodeERR marks an operational failure: a poll error other than
	// signal interruption, a USB subsystem failure, or a transform error.
	CodeERR
)

// String renders the code the way it appears in error messages and logs.
func (c Code) String() string {
	switch c {
	case CodeARG:
		return "ARG"
	case CodeBUG:
		return "BUG"
	case CodeERR:
		return "ERR"
	default:
		return "UNKNOWN"
	}
}

// Error is the concrete error type returned across the session API. It
// carries a Code for programmatic dispatch and an optional cause for
// [errors.Is] / [errors.As] chains.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("session: %s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("session: %s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for use with [errors.Is] and [errors.As].
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same Code, so callers
// can match on the taxonomy alone with
// errors.Is(err, &session.Error{Code: session.CodeARG}). A target that
// carries a message additionally requires message equality; this keeps
// the exported sentinels from cross-matching within a code class.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	if t.Code != e.Code {
		return false
	}
	return t.Message == "" || t.Message == e.Message
}

// NewError constructs an *Error with the given code, message, and optional
// cause (nil is fine).
func NewError(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Sentinel errors for the conditions callers most commonly dispatch on.
// Match them with errors.Is.
var (
	// ErrDuplicatePollObject is returned by the registry when add is
	// called with a poll_object already present.
	ErrDuplicatePollObject = &Error{Code: CodeARG, Message: "duplicate poll object"}
	// ErrSourceNotFound is returned by the registry when remove is called
	// with an unknown poll_object. Never fatal: identities may be reused.
	ErrSourceNotFound = &Error{Code: CodeBUG, Message: "source not found"}
	// ErrInfiniteTimerOnly is returned by add when a zero-fd source is
	// registered with an infinite timeout: it would never fire.
	ErrInfiniteTimerOnly = &Error{Code: CodeARG, Message: "timer-only source requires a finite timeout"}
	// ErrNoDevices is returned by Start when the session has no attached
	// devices.
	ErrNoDevices = &Error{Code: CodeARG, Message: "start requires at least one attached device"}
	// ErrMissingDriver classifies a device that lacks a driver where one
	// is needed. No function in this package returns it: a driverless
	// device is treated as virtual.
	ErrMissingDriver = &Error{Code: CodeBUG, Message: "device has no driver"}
	// ErrInvalidTrigger is returned by Start when trigger verification
	// fails: a stage with no matches, or a match missing a channel or
	// match type.
	ErrInvalidTrigger = &Error{Code: CodeERR, Message: "invalid trigger"}
	// ErrUnknownPacketTag is returned by the packet codec for a tag it
	// does not recognise.
	ErrUnknownPacketTag = &Error{Code: CodeARG, Message: "unknown packet tag"}
)

// wrapf builds a *Error of the given code with a formatted message and
// optional cause.
func wrapf(code Code, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}
