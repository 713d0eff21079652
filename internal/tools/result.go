package tools

import (
	"context"
	"fmt"

	"advisor/pkg/errors"
)

// ErrorMarker prefixes failed tool output when it is rendered for the model.
const ErrorMarker = "ERROR:"

// ErrorKind classifies a failed tool call.
type ErrorKind string

const (
	KindNone         ErrorKind = ""
	KindConfig       ErrorKind = "config"        // missing credential or setting
	KindInvalidInput ErrorKind = "invalid_input" // bad arguments from the model
	KindNotFound     ErrorKind = "not_found"     // unknown ticker, no filings
	KindTransient    ErrorKind = "transient"     // network, timeout, rate limit
	KindExternal     ErrorKind = "external"      // upstream returned an error
)

// Result is the tagged outcome of a tool call: a success payload, or an
// error kind with a message. Errors are data for the model, not faults.
type Result struct {
	Payload string
	Kind    ErrorKind
	Message string
}

// OK wraps a successful payload.
func OK(payload string) Result {
	return Result{Payload: payload}
}

// Fail builds an error result.
func Fail(kind ErrorKind, format string, args ...interface{}) Result {
	if kind == KindNone {
		kind = KindExternal
	}
	return Result{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// FromError classifies err into an error result.
func FromError(err error, format string, args ...interface{}) Result {
	msg := fmt.Sprintf(format, args...)
	if msg != "" {
		msg += ". Reason: "
	}
	return Result{Kind: KindOf(err), Message: msg + err.Error()}
}

// KindOf maps an error chain onto an ErrorKind.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, errors.ErrConfig):
		return KindConfig
	case errors.Is(err, errors.ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, errors.ErrNotFound):
		return KindNotFound
	case errors.Is(err, errors.ErrTimeout),
		errors.Is(err, errors.ErrUnavailable),
		errors.Is(err, errors.ErrRateLimitExceeded),
		errors.Is(err, context.DeadlineExceeded):
		return KindTransient
	default:
		return KindExternal
	}
}

// IsError reports whether the call failed.
func (r Result) IsError() bool {
	return r.Kind != KindNone
}

// Err returns the failure as an error, or nil on success.
func (r Result) Err() error {
	if !r.IsError() {
		return nil
	}
	return &Error{Kind: r.Kind, Message: r.Message}
}

// Text renders the result for the model. Failures carry the ERROR: marker.
func (r Result) Text() string {
	if r.IsError() {
		return ErrorMarker + " " + r.Message
	}
	return r.Payload
}

// Status is the metric label for the result.
func (r Result) Status() string {
	if r.IsError() {
		return string(r.Kind)
	}
	return "ok"
}

// Error is the error form of a failed Result.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("tool error (%s): %s", e.Kind, e.Message)
}
