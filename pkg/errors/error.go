// Package errors provides the error taxonomy shared by errmonitor components.
package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// Code represents an error code for categorization
type Code string

// NotifyError represents a structured errmonitor error
type NotifyError struct {
	Code       Code      `json:"code"`
	Message    string    `json:"message"`
	Platform   string    `json:"platform,omitempty"`
	StatusCode int       `json:"status_code,omitempty"` // zero when no HTTP response was received
	Timestamp  time.Time `json:"timestamp"`
	Cause      error     `json:"-"`
}

// Error implements the error interface
func (e *NotifyError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Platform != "" {
		msg += fmt.Sprintf(" (platform: %s)", e.Platform)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause error
func (e *NotifyError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target error code
func (e *NotifyError) Is(target error) bool {
	if t, ok := target.(*NotifyError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithPlatform sets the platform that produced the error
func (e *NotifyError) WithPlatform(platform string) *NotifyError {
	e.Platform = platform
	return e
}

// WithStatusCode records the HTTP status returned by the remote side
func (e *NotifyError) WithStatusCode(code int) *NotifyError {
	e.StatusCode = code
	return e
}

// IsRetryable reports whether the error code is marked retryable
func (e *NotifyError) IsRetryable() bool {
	if e.StatusCode >= 500 {
		return true
	}
	if e.StatusCode > 0 {
		return e.StatusCode == 429
	}
	return IsRetryable(e.Code)
}

// New creates a new NotifyError
func New(code Code, message string) *NotifyError {
	return &NotifyError{
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Newf creates a new NotifyError with a formatted message
func Newf(code Code, format string, args ...any) *NotifyError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error with a NotifyError
func Wrap(cause error, code Code, message string) *NotifyError {
	e := New(code, message)
	e.Cause = cause
	return e
}

// Wrapf wraps an existing error with a formatted message
func Wrapf(cause error, code Code, format string, args ...any) *NotifyError {
	return Wrap(cause, code, fmt.Sprintf(format, args...))
}

// CodeOf returns the code of the first NotifyError in err's chain.
func CodeOf(err error) (Code, bool) {
	var ne *NotifyError
	if stderrors.As(err, &ne) {
		return ne.Code, true
	}
	return "", false
}

// StatusCodeOf returns the HTTP status carried by err, if any.
func StatusCodeOf(err error) (int, bool) {
	var ne *NotifyError
	if stderrors.As(err, &ne) && ne.StatusCode > 0 {
		return ne.StatusCode, true
	}
	return 0, false
}

// IsTransport reports whether err is a failure that never reached an HTTP response.
func IsTransport(err error) bool {
	if err == nil {
		return false
	}
	if _, ok := StatusCodeOf(err); ok {
		return false
	}
	code, ok := CodeOf(err)
	return !ok || Category(code) == NetworkCategory
}

// Is, As and Unwrap forward to the standard library so callers only need one import.
var (
	Is     = stderrors.Is
	As     = stderrors.As
	Unwrap = stderrors.Unwrap
	Join   = stderrors.Join
)
