package errors

import (
	"context"
	"errors"
	"fmt"
)

// Generic error kinds shared across packages

var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates invalid input parameters
	ErrInvalidInput = errors.New("invalid input")

	// ErrInternal indicates an internal error
	ErrInternal = errors.New("internal error")

	// ErrTimeout indicates an operation timeout
	ErrTimeout = errors.New("operation timeout")

	// ErrUnavailable indicates a service is unavailable
	ErrUnavailable = errors.New("service unavailable")

	// ErrExternal indicates an upstream API returned an error
	ErrExternal = errors.New("external service error")

	// ErrRateLimitExceeded indicates API rate limit exceeded
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
)

// Pipeline errors

var (
	// ErrConfig indicates missing or malformed configuration
	ErrConfig = errors.New("invalid configuration")

	// ErrStageFailed indicates a pipeline stage raised and the run was aborted
	ErrStageFailed = errors.New("pipeline stage failed")

	// ErrMalformedOutput indicates a structured agent output could not be decoded
	ErrMalformedOutput = errors.New("malformed agent output")

	// ErrUnknownTool indicates the model requested a tool that is not bound to its role
	ErrUnknownTool = errors.New("unknown tool")
)

// ValidationError represents a validation error with field-specific details
type ValidationError struct {
	Field   string
	Message string
	Value   interface{}
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: field '%s': %s (value: %v)", e.Field, e.Message, e.Value)
}

// Unwrap lets callers match validation failures with ErrInvalidInput
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// MultiError wraps multiple errors
type MultiError struct {
	Errors []error
}

// Error implements the error interface
func (m *MultiError) Error() string {
	if len(m.Errors) == 0 {
		return "no errors"
	}
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}
	return fmt.Sprintf("multiple errors (%d): %v", len(m.Errors), m.Errors)
}

// Unwrap exposes the collected errors to errors.Is and errors.As
func (m *MultiError) Unwrap() []error {
	return m.Errors
}

// Add adds an error to the list
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// HasErrors returns true if there are any errors
func (m *MultiError) HasErrors() bool {
	return len(m.Errors) > 0
}

// ToError returns the MultiError as an error, or nil if no errors
func (m *MultiError) ToError() error {
	if !m.HasErrors() {
		return nil
	}
	return m
}

// Helper functions

// Is checks if err is or wraps target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target type
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap wraps an error with context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

func New(message string) error {
	return errors.New(message)
}

// Category names the failure class of err for tags, metrics and user-facing
// banners. Pipeline sentinels take precedence over transport ones.
func Category(err error) string {
	switch {
	case err == nil:
		return ""
	case Is(err, ErrConfig):
		return "config"
	case Is(err, ErrMalformedOutput):
		return "malformed_output"
	case Is(err, ErrUnknownTool):
		return "unknown_tool"
	case Is(err, ErrRateLimitExceeded):
		return "rate_limit"
	case Is(err, ErrTimeout), Is(err, context.DeadlineExceeded):
		return "timeout"
	case Is(err, context.Canceled):
		return "canceled"
	case Is(err, ErrUnavailable):
		return "unavailable"
	case Is(err, ErrInvalidInput):
		return "invalid_input"
	case Is(err, ErrInternal):
		return "internal"
	default:
		return "external"
	}
}
