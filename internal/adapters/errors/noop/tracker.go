package noop

import (
	"context"
	"sync/atomic"

	"advisor/pkg/errors"
)

// Tracker discards reports when error tracking is disabled. It keeps a count
// of dropped errors so shutdown can say how many never left the process.
type Tracker struct {
	dropped atomic.Int64
}

var _ errors.Tracker = (*Tracker)(nil)

func New() *Tracker {
	return &Tracker{}
}

func (t *Tracker) CaptureError(_ context.Context, err error, _ map[string]string) error {
	if err != nil {
		t.dropped.Add(1)
	}
	return nil
}

func (t *Tracker) CaptureMessage(context.Context, string, errors.Level, map[string]string) error {
	return nil
}

func (t *Tracker) AddBreadcrumb(context.Context, string, string, errors.Level, map[string]interface{}) {
}

func (t *Tracker) Flush(context.Context) error {
	return nil
}

// Dropped is the number of errors captured since New.
func (t *Tracker) Dropped() int64 {
	return t.dropped.Load()
}
