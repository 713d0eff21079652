package middleware

import (
	"context"
	"encoding/json"
	"time"

	"advisor/internal/metrics"
	"advisor/internal/tools"
	"advisor/pkg/logger"
)

const maxBackoff = 30 * time.Second

// RetryMiddleware repeats a tool call while it fails with KindTransient.
// The wait doubles after every attempt, starting at Backoff.
type RetryMiddleware struct {
	Attempts int
	Backoff  time.Duration
	Log      *logger.Logger
}

func (m RetryMiddleware) Wrap(t tools.Tool) tools.Tool {
	if m.Attempts <= 1 {
		return t
	}
	log := m.Log
	if log == nil {
		log = logger.Get()
	}

	return tools.New(t.Name(), t.Description(), t.Parameters(), func(ctx context.Context, args json.RawMessage) tools.Result {
		res := t.Execute(ctx, args)
		for attempt := 2; attempt <= m.Attempts && res.Kind == tools.KindTransient; attempt++ {
			wait := backoff(m.Backoff, attempt-1)
			meta, _ := tools.CallMetaFromContext(ctx)
			log.Debugw("Retrying tool call",
				"tool", t.Name(),
				"run_id", meta.RunID,
				"stage", meta.Stage,
				"attempt", attempt,
				"wait", wait,
				"reason", res.Message,
			)
			if !sleep(ctx, wait) {
				break
			}
			metrics.ToolRetries.WithLabelValues(t.Name()).Inc()
			res = t.Execute(ctx, args)
		}
		return res
	})
}

// backoff returns base doubled for every retry already made, capped at maxBackoff.
func backoff(base time.Duration, retries int) time.Duration {
	if base <= 0 {
		return 0
	}
	d := base
	for i := 1; i < retries && d < maxBackoff; i++ {
		d *= 2
	}
	return min(d, maxBackoff)
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// TimeoutMiddleware bounds every tool attempt. An attempt that outlives its
// deadline is reported to the model as a transient failure, which lets an
// outer RetryMiddleware try again.
type TimeoutMiddleware struct {
	Timeout time.Duration
}

func (m TimeoutMiddleware) Wrap(t tools.Tool) tools.Tool {
	if m.Timeout <= 0 {
		return t
	}

	return tools.New(t.Name(), t.Description(), t.Parameters(), func(ctx context.Context, args json.RawMessage) tools.Result {
		callCtx, cancel := context.WithTimeout(ctx, m.Timeout)
		defer cancel()

		done := make(chan tools.Result, 1)
		go func() {
			defer func() {
				if p := recover(); p != nil {
					done <- tools.Fail(tools.KindExternal, "tool %s failed unexpectedly: %v", t.Name(), p)
				}
			}()
			done <- t.Execute(callCtx, args)
		}()

		select {
		case res := <-done:
			return res
		case <-callCtx.Done():
			if ctx.Err() != nil {
				return tools.Fail(tools.KindTransient, "%s interrupted: stage deadline reached", t.Name())
			}
			return tools.Fail(tools.KindTransient, "%s timed out after %s", t.Name(), m.Timeout)
		}
	})
}
