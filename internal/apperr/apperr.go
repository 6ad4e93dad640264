// Package apperr defines the error taxonomy shared by the repositories,
// the server operations, and the HTTP surface. Every failure a caller can
// act on carries a stable code instead of relying on message text.
package apperr

import (
	"errors"
	"fmt"
)

// Code classifies an error for callers and for the wire.
type Code string

const (
	CodeValidation   Code = "VALIDATION_ERROR"
	CodeNotFound     Code = "NOT_FOUND"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeStorage      Code = "STORAGE_ERROR"
)

// Error is a coded error. The wrapped cause, if any, stays reachable
// through errors.Unwrap for logging.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// Validation reports bad input.
func Validation(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFound reports an id that does not exist or is not owned by the caller.
func NotFound(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Unauthorized reports a missing or invalid credential.
func Unauthorized(message string) *Error {
	return &Error{Code: CodeUnauthorized, Message: message}
}

// Storage wraps a persistence-layer failure.
func Storage(cause error, format string, args ...any) *Error {
	return &Error{Code: CodeStorage, Message: fmt.Sprintf(format, args...), cause: cause}
}

// CodeOf extracts the code from err, defaulting to CodeStorage for
// anything uncoded.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeStorage
}

// Is lets errors.Is match on code: apperr.Is(err, apperr.CodeNotFound).
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}
