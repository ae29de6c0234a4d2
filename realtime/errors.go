package realtime

import (
	"errors"
	"fmt"
)

// ErrorCode represents a categorized error type.
type ErrorCode int

const (
	ErrorUnknown ErrorCode = iota

	// Configuration preconditions
	ErrorMissingCredential
	ErrorInvalidConfig

	// Connection lifecycle
	ErrorAlreadyConnected
	ErrorNotConnected
	ErrorConnection
	ErrorDisconnected
	ErrorTimeout

	// Payloads
	ErrorSerialization
)

// String returns the string representation of an ErrorCode.
func (e ErrorCode) String() string {
	switch e {
	case ErrorUnknown:
		return "unknown"
	case ErrorMissingCredential:
		return "missing_credential"
	case ErrorInvalidConfig:
		return "invalid_config"
	case ErrorAlreadyConnected:
		return "already_connected"
	case ErrorNotConnected:
		return "not_connected"
	case ErrorConnection:
		return "connection_error"
	case ErrorDisconnected:
		return "disconnected"
	case ErrorTimeout:
		return "timeout"
	case ErrorSerialization:
		return "serialization_error"
	default:
		return fmt.Sprintf("unknown_code_%d", e)
	}
}

// RealtimeError is a structured error with code and context.
type RealtimeError struct {
	Code    ErrorCode
	Message string
	Wrapped error
}

// Error implements the error interface.
func (e *RealtimeError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %s (wrapped: %v)", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error for errors.Unwrap support.
func (e *RealtimeError) Unwrap() error {
	return e.Wrapped
}

// Is matches any *RealtimeError carrying the same code.
func (e *RealtimeError) Is(target error) bool {
	t, ok := target.(*RealtimeError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewError creates a new RealtimeError with the given code and message.
func NewError(code ErrorCode, message string) *RealtimeError {
	return &RealtimeError{
		Code:    code,
		Message: message,
	}
}

// WrapError wraps an existing error with a RealtimeError.
func WrapError(code ErrorCode, message string, err error) *RealtimeError {
	return &RealtimeError{
		Code:    code,
		Message: message,
		Wrapped: err,
	}
}

func codeOf(err error) (ErrorCode, bool) {
	if err == nil {
		return ErrorUnknown, false
	}
	var re *RealtimeError
	if !errors.As(err, &re) {
		return ErrorUnknown, false
	}
	return re.Code, true
}

// IsConnectionError checks if an error is a connection-related error.
func IsConnectionError(err error) bool {
	code, ok := codeOf(err)
	return ok && (code == ErrorConnection || code == ErrorDisconnected || code == ErrorTimeout)
}

// IsClosure reports whether a transport error means the connection is gone for
// good. Anything else is treated as a hiccup the transport may recover from.
func IsClosure(err error) bool {
	code, ok := codeOf(err)
	return ok && (code == ErrorConnection || code == ErrorDisconnected)
}

// IsMissingCredential reports whether a connect attempt was skipped because
// no admin key or access token was available.
func IsMissingCredential(err error) bool {
	code, ok := codeOf(err)
	return ok && code == ErrorMissingCredential
}
