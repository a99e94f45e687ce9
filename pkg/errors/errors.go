package errors

import (
	"context"
	"errors"
	"fmt"
)

// ErrorType represents different types of errors that can occur during a run
type ErrorType string

const (
	ErrorTypeLocationNotFound   ErrorType = "location_not_found"
	ErrorTypeGalleryUnavailable ErrorType = "gallery_unavailable"
	ErrorTypeTransientUI        ErrorType = "transient_ui"
	ErrorTypeTransport          ErrorType = "transport"
	ErrorTypeHTTPStatus         ErrorType = "http_status"
	ErrorTypeIO                 ErrorType = "io"
	ErrorTypeExhausted          ErrorType = "exhausted"
	ErrorTypeUnknown            ErrorType = "unknown"
)

// ErrExhausted signals that the gallery has no further items. It ends the
// harvesting loop and is never reported as a failure.
var ErrExhausted = &Error{Type: ErrorTypeExhausted, Message: "gallery exhausted"}

// Error represents a typed failure with an optional HTTP status code
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Code != 0 {
		msg = fmt.Sprintf("%s (code %d)", msg, e.Code)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s error: %s: %v", e.Type, msg, e.Err)
	}
	return fmt.Sprintf("%s error: %s", e.Type, msg)
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a typed error
func New(errorType ErrorType, message string) *Error {
	return &Error{Type: errorType, Message: message}
}

// Newf creates a typed error with a formatted message
func Newf(errorType ErrorType, format string, args ...interface{}) *Error {
	return &Error{Type: errorType, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a type and message to an underlying error
func Wrap(errorType ErrorType, err error, message string) *Error {
	return &Error{Type: errorType, Message: message, Err: err}
}

// HTTPStatus creates a terminal error for a non-success response
func HTTPStatus(code int, url string) *Error {
	return &Error{Type: ErrorTypeHTTPStatus, Message: "unexpected status for " + url, Code: code}
}

// TypeOf returns the type of the first typed error in the chain
func TypeOf(err error) ErrorType {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Type
	}
	return ErrorTypeUnknown
}

// Is reports whether any typed error in the chain has the given type
func Is(err error, errorType ErrorType) bool {
	for err != nil {
		var typed *Error
		if !errors.As(err, &typed) {
			return false
		}
		if typed.Type == errorType {
			return true
		}
		err = typed.Err
	}
	return false
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeTransientUI, ErrorTypeTransport:
		return true
	case ErrorTypeLocationNotFound, ErrorTypeGalleryUnavailable, ErrorTypeHTTPStatus, ErrorTypeIO, ErrorTypeExhausted:
		return false
	default:
		return false
	}
}

// IsCancellation reports whether err carries a context cancellation. An
// expired per-operation deadline such as a page load timeout is an ordinary
// failure, not a cancellation; callers that own a context should consult
// ctx.Err() rather than the error chain.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled)
}
