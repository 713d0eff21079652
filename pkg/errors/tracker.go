package errors

import (
	"context"
)

// Tracker defines the interface for error tracking services (Sentry, etc.)
type Tracker interface {
	// CaptureError sends an error to the tracking service
	CaptureError(ctx context.Context, err error, tags map[string]string) error

	// CaptureMessage sends a message to the tracking service
	CaptureMessage(ctx context.Context, message string, level Level, tags map[string]string) error

	// AddBreadcrumb records a step leading up to a later error
	AddBreadcrumb(ctx context.Context, message string, category string, level Level, data map[string]interface{})

	// Flush waits for all pending events to be sent
	Flush(ctx context.Context) error
}

// Level represents the severity level of an error or message
type Level string

const (
	LevelDebug   Level = "debug"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
	LevelFatal   Level = "fatal"
)

// String returns the string representation of the level
func (l Level) String() string {
	return string(l)
}

type (
	runIDKey struct{}
	stageKey struct{}
)

// WithRunID tags ctx with the pipeline run identifier for error reports
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunIDFromContext returns the run identifier set by WithRunID
func RunIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(runIDKey{}).(string)
	return id, ok && id != ""
}

// WithStage tags ctx with the stage currently executing
func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, stageKey{}, stage)
}

// StageFromContext returns the stage set by WithStage
func StageFromContext(ctx context.Context) (string, bool) {
	stage, ok := ctx.Value(stageKey{}).(string)
	return stage, ok && stage != ""
}

// ReportTags merges the run and stage carried by ctx and the category of err
// into tags. Explicit tags win over values taken from ctx.
func ReportTags(ctx context.Context, err error, tags map[string]string) map[string]string {
	out := make(map[string]string, len(tags)+3)
	if runID, ok := RunIDFromContext(ctx); ok {
		out["run_id"] = runID
	}
	if stage, ok := StageFromContext(ctx); ok {
		out["stage"] = stage
	}
	if err != nil {
		out["cause"] = Category(err)
	}
	for k, v := range tags {
		out[k] = v
	}
	return out
}
