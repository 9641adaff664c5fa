// Package errors provides standardized domain errors with codes for atlas.
//
// Usage:
//
//	// In services - return typed errors
//	if correction == nil {
//	    return errors.NotFound("correction not found")
//	}
//
//	// In callers - check with errors.Is
//	if errors.Is(err, errors.ErrAborted) {
//	    // the reviewer cancelled; stop without flushing
//	}
package errors

import (
	"errors"
	"fmt"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
	New    = errors.New
)

// Code represents a machine-readable error code.
type Code string

// Error codes used throughout the application.
const (
	CodeNotFound   Code = "NOT_FOUND"
	CodeValidation Code = "VALIDATION"
	CodeConflict   Code = "CONFLICT"
	CodeAborted    Code = "ABORTED"
	CodeInvariant  Code = "INVARIANT"
	CodeInternal   Code = "INTERNAL"
)

// Error is a domain error with a code, message, and optional details.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error  // unexported, for wrapping
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target matches this error.
// Matches if target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// WithDetails returns a new error with additional details.
func (e *Error) WithDetails(details any) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		cause:   e.cause,
	}
}

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		cause:   err,
	}
}

// Sentinel errors for use with errors.Is().
var (
	ErrNotFound   = &Error{Code: CodeNotFound, Message: "not found"}
	ErrValidation = &Error{Code: CodeValidation, Message: "validation error"}
	ErrConflict   = &Error{Code: CodeConflict, Message: "conflict"}
	ErrAborted    = &Error{Code: CodeAborted, Message: "aborted by user"}
	ErrInvariant  = &Error{Code: CodeInvariant, Message: "invariant violation"}
	ErrInternal   = &Error{Code: CodeInternal, Message: "internal error"}
)

// Constructor functions for creating errors with custom messages.

// NotFound creates a not found error.
func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

// NotFoundf creates a not found error with formatted message.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Validation creates a validation error.
func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}

// Validationf creates a validation error with formatted message.
func Validationf(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// Conflict creates a conflict error.
func Conflict(msg string) *Error {
	return &Error{Code: CodeConflict, Message: msg}
}

// Aborted creates an aborted error, signalling a user-initiated cancellation.
func Aborted(msg string) *Error {
	return &Error{Code: CodeAborted, Message: msg}
}

// Abortedf creates an aborted error with formatted message.
func Abortedf(format string, args ...any) *Error {
	return &Error{Code: CodeAborted, Message: fmt.Sprintf(format, args...)}
}

// Invariant creates an invariant-violation error. These indicate programming
// errors and must never be silently swallowed.
func Invariant(msg string) *Error {
	return &Error{Code: CodeInvariant, Message: msg}
}

// Invariantf creates an invariant-violation error with formatted message.
func Invariantf(format string, args ...any) *Error {
	return &Error{Code: CodeInvariant, Message: fmt.Sprintf(format, args...)}
}

// Internal creates an internal error.
func Internal(msg string) *Error {
	return &Error{Code: CodeInternal, Message: msg}
}

// Internalf creates an internal error with formatted message.
func Internalf(format string, args ...any) *Error {
	return &Error{Code: CodeInternal, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an error with an internal error code and message.
func Wrap(err error, msg string) *Error {
	return &Error{Code: CodeInternal, Message: msg, cause: err}
}

// Wrapf wraps an error with an internal error code and formatted message.
func Wrapf(err error, format string, args ...any) *Error {
	return &Error{Code: CodeInternal, Message: fmt.Sprintf(format, args...), cause: err}
}
