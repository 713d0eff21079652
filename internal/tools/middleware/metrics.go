package middleware

import (
	"context"
	"encoding/json"
	"time"

	"advisor/internal/metrics"
	"advisor/internal/tools"
	"advisor/pkg/logger"
)

// MetricsMiddleware records tool latency and outcome and logs failures.
type MetricsMiddleware struct {
	log *logger.Logger
}

// NewMetricsMiddleware constructs the middleware. A nil logger uses the global one.
func NewMetricsMiddleware(log *logger.Logger) *MetricsMiddleware {
	if log == nil {
		log = logger.Get()
	}
	return &MetricsMiddleware{log: log.With("component", "tools")}
}

// Wrap adds metrics and logging around a tool.
func (m *MetricsMiddleware) Wrap(t tools.Tool) tools.Tool {
	return tools.New(t.Name(), t.Description(), t.Parameters(), func(ctx context.Context, args json.RawMessage) tools.Result {
		start := time.Now()
		res := t.Execute(ctx, args)
		duration := time.Since(start)

		metrics.RecordTool(t.Name(), res.Status(), duration)

		fields := []interface{}{"tool", t.Name(), "duration_ms", duration.Milliseconds()}
		if meta, ok := tools.CallMetaFromContext(ctx); ok {
			fields = append(fields, "run_id", meta.RunID, "stage", meta.Stage)
		}

		if res.IsError() {
			fields = append(fields, "kind", res.Kind, "message", res.Message)
			m.log.Warnw("Tool call failed", fields...)
		} else {
			m.log.Debugw("Tool call completed", append(fields, "bytes", len(res.Payload))...)
		}

		return res
	})
}
