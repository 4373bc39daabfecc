package device

import (
	"errors"
	"fmt"
)

// ErrorCode classifies device errors so callers can pick a retry policy.
type ErrorCode string

// ErrorCode constants for device errors.
const (
	CodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	CodeNotSupported    ErrorCode = "NOT_SUPPORTED"
	CodeIO              ErrorCode = "IO_ERROR"
	CodeOutOfMemory     ErrorCode = "OUT_OF_MEMORY"
)

// Sentinels for errors.Is. Any *Error with the same code matches.
var (
	ErrInvalidArgument = &Error{Code: CodeInvalidArgument, Message: "invalid argument"}
	ErrNotSupported    = &Error{Code: CodeNotSupported, Message: "operation not supported"}
	ErrIO              = &Error{Code: CodeIO, Message: "i/o error"}
	ErrOutOfMemory     = &Error{Code: CodeOutOfMemory, Message: "out of memory"}
)

// Error is returned by every device operation that fails.
type Error struct {
	Code    ErrorCode `json:"code"`
	Op      string    `json:"op,omitempty"`
	Message string    `json:"message"`
	Cause   error     `json:"cause,omitempty"`
}

func newError(code ErrorCode, op, message string) *Error {
	return &Error{Code: code, Op: op, Message: message}
}

func wrapError(code ErrorCode, op, message string, cause error) *Error {
	return &Error{Code: code, Op: op, Message: message, Cause: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a device error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// HasCode checks if the error matches a specific code.
func (e *Error) HasCode(code ErrorCode) bool {
	return e.Code == code
}

// CodeOf extracts the ErrorCode from err, or "" if err is not a device error.
func CodeOf(err error) ErrorCode {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}
