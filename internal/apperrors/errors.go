// Package apperrors provides coded errors shared by the gamification core.
package apperrors

import (
	"errors"
	"net/http"
)

// Code is a machine-readable error code.
type Code string

const (
	CodeUnknown                  Code = "UNKNOWN"
	CodeNotFound                 Code = "NOT_FOUND"
	CodeInsufficientBalance      Code = "INSUFFICIENT_BALANCE"
	CodeConflictAlreadyCompleted Code = "CONFLICT_ALREADY_COMPLETED"
	CodeChallengeFull            Code = "CHALLENGE_FULL"
	CodeConsistencyConflict      Code = "CONSISTENCY_CONFLICT"
	CodeValidation               Code = "VALIDATION"
)

// HTTPStatus maps a code to the status the HTTP layer answers with.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInsufficientBalance:
		return http.StatusPaymentRequired
	case CodeConflictAlreadyCompleted, CodeChallengeFull:
		return http.StatusConflict
	case CodeConsistencyConflict:
		return http.StatusServiceUnavailable
	case CodeValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Error is the domain error type with structured metadata.
type Error struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches a target with the same code. A target without a message
// (see Kind) matches every error of its code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if e.Code != t.Code {
		return false
	}
	return t.Message == "" || t.Message == e.Message
}

// New creates a simple domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithMetadata creates a domain error with metadata for the caller.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{Code: code, Message: message, Metadata: metadata}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Kind returns a matcher for errors.Is that accepts any error of code.
func Kind(code Code) error {
	return &Error{Code: code}
}

// Validation builds a VALIDATION error.
func Validation(message string) *Error {
	return New(CodeValidation, message)
}

// CodeOf returns the code of the first *Error in err's chain.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}
