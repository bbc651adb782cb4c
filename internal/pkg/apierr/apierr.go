// Package apierr defines the transport-agnostic error taxonomy shared by the
// admission path, the safety gate, and the HTTP handlers.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindInvalidParameter Kind = "invalid_parameter"
	KindSourceTooLarge   Kind = "source_too_large"
	KindSessionNotFound  Kind = "session_not_found"
	KindSessionClosed    Kind = "session_closed"
	KindLanguageNotFound Kind = "language_not_found"
	KindRateLimited      Kind = "rate_limited"
	KindExecutionNotFound Kind = "execution_not_found"
	KindInternal         Kind = "internal_error"
)

var httpStatus = map[Kind]int{
	KindInvalidParameter:  http.StatusBadRequest,
	KindSourceTooLarge:    http.StatusBadRequest,
	KindSessionNotFound:   http.StatusNotFound,
	KindSessionClosed:     http.StatusBadRequest,
	KindLanguageNotFound:  http.StatusNotFound,
	KindRateLimited:       http.StatusTooManyRequests,
	KindExecutionNotFound: http.StatusNotFound,
	KindInternal:          http.StatusInternalServerError,
}

// Error is the concrete error type carried across the admission/safety-gate/handler
// boundary. It wraps an underlying cause so %w unwrapping still works.
type Error struct {
	Kind       Kind
	Message    string
	RetryAfter int // seconds, only meaningful for KindRateLimited
	Cause      error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Cause }

func (e *Error) HTTPStatus() int {
	if s, ok := httpStatus[e.Kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func RateLimited(retryAfterSeconds int, format string, args ...interface{}) *Error {
	return &Error{Kind: KindRateLimited, Message: fmt.Sprintf(format, args...), RetryAfter: retryAfterSeconds}
}

// As extracts an *Error via errors.As, returning (nil, false) for anything else.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the Kind of err if it is (or wraps) an *Error, else KindInternal.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}
