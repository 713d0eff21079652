package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"advisor/pkg/errors"
)

func TestNewPerMinute_Burst(t *testing.T) {
	l := NewPerMinute("test", 60)
	assert.Equal(t, 60, l.PerMinute())

	// burst of 6 tokens available immediately
	for i := 0; i < 6; i++ {
		assert.True(t, l.Allow(), "token %d", i)
	}
	assert.False(t, l.Allow())
}

func TestNewPerMinute_Unlimited(t *testing.T) {
	l := NewPerMinute("free", 0)
	for i := 0; i < 100; i++ {
		require.True(t, l.Allow())
	}
	assert.Equal(t, 0, l.PerMinute())
}

func TestWait_ContextCancelled(t *testing.T) {
	l := NewPerSecond("slow", 1, 1)
	require.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := l.Wait(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrRateLimitExceeded))
	assert.Contains(t, err.Error(), "slow")
}

func TestNilLimiter(t *testing.T) {
	var l *Limiter
	assert.NoError(t, l.Wait(context.Background()))
	assert.True(t, l.Allow())
	assert.Equal(t, "", l.Name())
}
