// Package errors provides coded errors for the simulation engine.
//
// Codes are grouped by failure class:
//   - General errors (1-99)
//   - Configuration errors (100-199): bad strategy parameters, bad engine or cost configuration
//   - Data errors (200-299): unreadable sources, malformed events, failed queries
//   - Strategy errors (400-499): unknown strategies, strategy construction failures
//   - Backtest errors (600-699): runner and sweep failures, result persistence
//
// Numeric anomalies and invariant violations are not errors. The ledger and
// fill simulator count them in the run result instead.
//
// Usage:
//
//	err := errors.Newf(errors.ErrCodeMissingParameter, "missing parameter %q", key)
//	if errors.IsConfigurationError(err) { ... }
package errors

import (
	"errors"
	"fmt"
)

// Error is a failure with a stable code.
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

// Wrap attaches a code and message to an underlying cause.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(code ErrorCode, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Cause)
	}

	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is wraps the standard errors.Is so callers need a single import.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps the standard errors.As so callers need a single import.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// GetCode returns the code of the first *Error in the chain, or ErrCodeUnknown.
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

// IsConfigurationError reports whether err was caused by invalid strategy
// parameters or invalid engine configuration.
func IsConfigurationError(err error) bool {
	code := GetCode(err)

	return code.Class() == ClassConfiguration ||
		code == ErrCodeStrategyConfigError ||
		code == ErrCodeUnsupportedStrategy ||
		code == ErrCodeBacktestConfigError
}

// IsDataError reports whether err was caused by an unreadable source or a
// malformed event.
func IsDataError(err error) bool {
	return GetCode(err).Class() == ClassData
}
