package domain

import (
	"errors"
	"fmt"
)

// Code classifies a failure so the transport layer can pick a status.
type Code int

const (
	// CodeInternal is an unexpected failure inside the service.
	CodeInternal Code = iota
	// CodeInvalidArgument is a client error (bad model, plot type or time range).
	CodeInvalidArgument
	// CodeNotFound means a requested resource does not exist.
	CodeNotFound
	// CodeUpstream is a data-source failure (store unreachable, variable missing).
	CodeUpstream
	// CodeNotSupported is returned for operations a model does not implement yet.
	CodeNotSupported
)

// String returns the code name.
func (c Code) String() string {
	switch c {
	case CodeInvalidArgument:
		return "invalid_argument"
	case CodeNotFound:
		return "not_found"
	case CodeUpstream:
		return "upstream"
	case CodeNotSupported:
		return "not_supported"
	default:
		return "internal"
	}
}

// Error is the coded error type shared by all layers.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target carries the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// NewError creates a coded error.
func NewError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError creates a coded error around cause.
func WrapError(code Code, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// CodeOf returns the code of the first coded error in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// Sentinels usable with errors.Is.
var (
	ErrInvalidArgument = &Error{Code: CodeInvalidArgument, Message: "invalid argument"}
	ErrNotFound        = &Error{Code: CodeNotFound, Message: "not found"}
	ErrUpstream        = &Error{Code: CodeUpstream, Message: "upstream data error"}
	ErrNotSupported    = &Error{Code: CodeNotSupported, Message: "not yet supported"}
)
