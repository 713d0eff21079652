package sentry

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"

	"advisor/pkg/errors"
)

const defaultFlushTimeout = 2 * time.Second

// Tracker reports pipeline failures to Sentry. Events are grouped by
// stage and failure category so one flaky backend shows up as one issue.
type Tracker struct {
	hub *sentry.Hub
}

var _ errors.Tracker = (*Tracker)(nil)

// New initializes the Sentry SDK and returns a tracker bound to its hub.
func New(dsn string, environment string) (*Tracker, error) {
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		AttachStacktrace: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "init sentry")
	}
	return &Tracker{hub: sentry.CurrentHub()}, nil
}

func (t *Tracker) CaptureError(ctx context.Context, err error, tags map[string]string) error {
	if err == nil {
		return nil
	}
	tags = errors.ReportTags(ctx, err, tags)

	hub := t.hub.Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		scope.SetFingerprint(fingerprint(tags))
	})
	hub.CaptureException(err)
	return nil
}

func (t *Tracker) CaptureMessage(ctx context.Context, message string, level errors.Level, tags map[string]string) error {
	tags = errors.ReportTags(ctx, nil, tags)

	hub := t.hub.Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		scope.SetLevel(convertLevel(level))
	})
	hub.CaptureMessage(message)
	return nil
}

// AddBreadcrumb records a pipeline step so a later failure shows what ran before it.
func (t *Tracker) AddBreadcrumb(ctx context.Context, message string, category string, level errors.Level, data map[string]interface{}) {
	if runID, ok := errors.RunIDFromContext(ctx); ok {
		merged := make(map[string]interface{}, len(data)+1)
		for k, v := range data {
			merged[k] = v
		}
		merged["run_id"] = runID
		data = merged
	}
	t.hub.AddBreadcrumb(&sentry.Breadcrumb{
		Message:   message,
		Category:  category,
		Level:     convertLevel(level),
		Data:      data,
		Timestamp: time.Now(),
	}, &sentry.BreadcrumbHint{})
}

// Flush waits for pending events, bounded by the context deadline.
func (t *Tracker) Flush(ctx context.Context) error {
	timeout := defaultFlushTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if !sentry.Flush(timeout) {
		return errors.Wrap(errors.ErrTimeout, "sentry flush")
	}
	return nil
}

// fingerprint groups events per stage and cause. Reports outside a stage
// fall back to Sentry's default grouping.
func fingerprint(tags map[string]string) []string {
	stage, cause := tags["stage"], tags["cause"]
	if stage == "" {
		return []string{"{{ default }}"}
	}
	return []string{"pipeline", stage, cause}
}

func convertLevel(level errors.Level) sentry.Level {
	switch level {
	case errors.LevelDebug:
		return sentry.LevelDebug
	case errors.LevelWarning:
		return sentry.LevelWarning
	case errors.LevelError:
		return sentry.LevelError
	case errors.LevelFatal:
		return sentry.LevelFatal
	default:
		return sentry.LevelInfo
	}
}
