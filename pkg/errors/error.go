// Package errors provides structured error handling with typed error codes.
//
// Error codes are organized into categories:
//   - General errors (1-99): Unknown and general errors
//   - Validation errors (100-199): Invalid parameters, configs and inputs
//   - Data errors (200-299): Price history loading and query failures
//   - Strategy errors (300-399): Signal generation and parameter errors
//   - Backtest errors (400-499): Simulation input contract violations
//   - Optimization errors (500-599): Search setup and evaluation errors
//
// Usage:
//
//	// Create a new error
//	err := errors.New(errors.ErrCodeInvalidParameter, "invalid parameter value")
//
//	// Create a formatted error
//	err := errors.Newf(errors.ErrCodeDataNotFound, "no price data for symbol %s", symbol)
//
//	// Wrap an existing error
//	err := errors.Wrap(errors.ErrCodeQueryFailed, "failed to execute query", originalErr)
//
//	// Check error code
//	if errors.HasCode(err, errors.ErrCodeDataNotFound) { ... }
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
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

// InputContractError represents a rejected simulation input: the caller
// supplied data that violates a precondition of the backtest engine, such as
// cash plan dates that are not trading days. It carries the offending dates
// so the caller can fix the input.
type InputContractError struct {
	Dates    []time.Time // Offending dates, if the violation is date-related
	Expected int         // Expected count, when the violation is a count mismatch
	Actual   int         // Actual count
	Message  string      // Human-readable message
}

// NewInputContractError creates a new InputContractError.
func NewInputContractError(dates []time.Time, message string) *InputContractError {
	return &InputContractError{
		Dates:    dates,
		Expected: 0,
		Actual:   0,
		Message:  message,
	}
}

// NewInputContractErrorf creates a new InputContractError with a formatted message.
func NewInputContractErrorf(dates []time.Time, format string, args ...any) *InputContractError {
	return &InputContractError{
		Dates:    dates,
		Expected: 0,
		Actual:   0,
		Message:  fmt.Sprintf(format, args...),
	}
}

// Error implements the error interface.
func (e *InputContractError) Error() string {
	if len(e.Dates) == 0 {
		return e.Message
	}

	dates := make([]string, len(e.Dates))
	for i, d := range e.Dates {
		dates[i] = d.Format("2006-01-02")
	}

	return fmt.Sprintf("%s: %s", e.Message, strings.Join(dates, ", "))
}

// IsInputContractError checks if an error is an InputContractError.
// It uses errors.As to check the error chain.
func IsInputContractError(err error) bool {
	var contractErr *InputContractError

	return errors.As(err, &contractErr)
}
