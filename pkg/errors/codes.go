package errors

import "strings"

// Error Categories
const (
	ConfigurationCategory = "CON"
	PlatformCategory      = "PLT"
	MessageCategory       = "MSG"
	QueueCategory         = "QUE"
	NetworkCategory       = "NET"
	SystemCategory        = "SYS"
)

// Configuration Error Codes
const (
	ErrInvalidConfig    Code = "CON001" // Invalid configuration
	ErrMissingConfig    Code = "CON002" // Missing required configuration
	ErrConfigValidation Code = "CON003" // Configuration validation failed
	ErrConfigLoadFailed Code = "CON005" // Failed to load configuration
)

// Platform Error Codes
const (
	ErrPlatformNotFound    Code = "PLT001" // Gateway not found
	ErrPlatformUnavailable Code = "PLT002" // Remote answered 5xx
	ErrPlatformAuth        Code = "PLT003" // Remote answered 401/403
	ErrPlatformRateLimit   Code = "PLT004" // Remote answered 429
	ErrPlatformRejected    Code = "PLT008" // Remote answered another non-2xx
	ErrPlatformExists      Code = "PLT009" // Gateway name already registered
)

// Message Error Codes
const (
	ErrInvalidMessage    Code = "MSG001" // Invalid message format
	ErrMessageEncoding   Code = "MSG004" // Message encoding error
	ErrMessageSendFailed Code = "MSG005" // Failed to send message
)

// Queue Error Codes
const (
	ErrQueueFull        Code = "QUE001" // Queue is full
	ErrExecutorShutdown Code = "QUE007" // Executor no longer accepts tasks
	ErrTaskShed         Code = "QUE008" // Task evicted by load shedding
	ErrTaskCancelled    Code = "QUE009" // Queued task cancelled by immediate shutdown
	ErrTaskPanic        Code = "QUE010" // Task panicked
)

// Network Error Codes
const (
	ErrNetworkTimeout    Code = "NET001" // Network timeout
	ErrNetworkConnection Code = "NET002" // Network connection error
)

// System Error Codes
const (
	ErrInternalError Code = "SYS002" // Internal system error
	ErrSystemTimeout Code = "SYS005" // System operation timeout
)

var retryable = map[Code]bool{
	ErrPlatformUnavailable: true,
	ErrPlatformRateLimit:   true,
	ErrQueueFull:           true,
	ErrNetworkTimeout:      true,
	ErrNetworkConnection:   true,
	ErrSystemTimeout:       true,
}

// IsRetryable checks if an error code is retryable
func IsRetryable(code Code) bool {
	return retryable[code]
}

// Category returns the three-letter category prefix of code.
func Category(code Code) string {
	s := string(code)
	if len(s) < 3 {
		return ""
	}
	return strings.ToUpper(s[:3])
}

// HTTPStatusCode maps a non-2xx HTTP status to its platform error code.
func HTTPStatusCode(status int) Code {
	switch {
	case status == 401 || status == 403:
		return ErrPlatformAuth
	case status == 429:
		return ErrPlatformRateLimit
	case status >= 500:
		return ErrPlatformUnavailable
	default:
		return ErrPlatformRejected
	}
}
