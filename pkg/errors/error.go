// Package errors provides structured error handling with typed error codes.
//
// Error codes are organized into categories:
//   - General errors (1-99): Unknown and general errors
//   - Validation errors (100-199): Invalid robots, price bands, configuration
//   - Data/Resource errors (200-299): Robots, orders or operations not found, store failures
//   - Subscription errors (300-399): Instrument resolution and upstream stream failures
//   - Trading errors (500-599): Broker order placement, cancellation and listing failures
//   - Market data errors (700-799): Price and quantity parsing failures
//   - Callback errors (800-899): Notification and hook failures
//
// Usage:
//
//	// Create a new error
//	err := errors.New(errors.ErrCodeInvalidPriceBand, "buy price must be below sell price")
//
//	// Create a formatted error
//	err := errors.Newf(errors.ErrCodeRobotNotFound, "robot %s not found", id)
//
//	// Wrap an existing error
//	err := errors.Wrap(errors.ErrCodeOrderFailed, "failed to place limit order", brokerErr)
//
//	// Check error code
//	if errors.HasCode(err, errors.ErrCodeInstrumentNotFound) { ... }
package errors

import (
	"errors"
	"fmt"
)

// Error represents a structured error with an error code and message.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// New creates a new Error with the given code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   nil,
	}
}

// Newf creates a new Error with the given code and formatted message.
func Newf(code ErrorCode, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   nil,
	}
}

// Wrap wraps an existing error with a new Error containing the given code and message.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Wrapf wraps an existing error with a new Error containing the given code and formatted message.
func Wrapf(code ErrorCode, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Cause)
	}

	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error carrying the same code.
// It lets callers compare against code-only sentinels with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}

	return t.Code == e.Code && (t.Message == "" || t.Message == e.Message)
}

// Is reports whether any error in err's chain matches target.
// This is a convenience wrapper around the standard errors.Is function.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
// This is a convenience wrapper around the standard errors.As function.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// GetCode extracts the ErrorCode from an error if it's an *Error type.
// Returns ErrCodeUnknown if the error is not an *Error type.
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}

	return ErrCodeUnknown
}

// HasCode checks if an error has a specific ErrorCode.
func HasCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}

// HasCodeInChain reports whether any *Error in err's chain carries code.
// HasCode only looks at the outermost coded error.
func HasCodeInChain(err error, code ErrorCode) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}

		if e.Code == code {
			return true
		}

		err = e.Cause
	}

	return false
}

// IsTransient reports whether err is a broker or store failure that the next
// natural event (price tick, scheduled sweep) is expected to retry.
func IsTransient(err error) bool {
	switch GetCode(err) {
	case ErrCodeOrderFailed, ErrCodeCancelFailed, ErrCodeBrokerUnavailable,
		ErrCodeStreamOpenFailed, ErrCodeQueryFailed, ErrCodeStoreUnavailable:
		return true
	default:
		return false
	}
}
