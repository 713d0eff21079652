package noop

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"advisor/pkg/errors"
)

func TestTrackerCountsDroppedErrors(t *testing.T) {
	tracker := New()
	ctx := context.Background()

	assert.NoError(t, tracker.CaptureError(ctx, errors.ErrTimeout, nil))
	assert.NoError(t, tracker.CaptureError(ctx, errors.ErrInternal, map[string]string{"stage": "profile"}))
	assert.NoError(t, tracker.CaptureError(ctx, nil, nil))
	assert.NoError(t, tracker.CaptureMessage(ctx, "ignored", errors.LevelInfo, nil))
	assert.NoError(t, tracker.Flush(ctx))

	assert.Equal(t, int64(2), tracker.Dropped())
}
