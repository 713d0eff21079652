package ratelimit

import (
	"context"

	"golang.org/x/time/rate"

	"advisor/pkg/errors"
)

// Limiter throttles calls to one upstream API
type Limiter struct {
	limiter *rate.Limiter
	name    string
	perMin  int
}

// NewPerMinute creates a limiter allowing requestsPerMinute calls.
// A non-positive value disables limiting.
func NewPerMinute(name string, requestsPerMinute int) *Limiter {
	if requestsPerMinute <= 0 {
		return &Limiter{limiter: rate.NewLimiter(rate.Inf, 1), name: name}
	}

	rps := float64(requestsPerMinute) / 60.0

	// Allow burst of 10% of per-minute limit
	burst := requestsPerMinute / 10
	if burst < 1 {
		burst = 1
	}

	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		name:    name,
		perMin:  requestsPerMinute,
	}
}

// NewPerSecond creates a limiter allowing requestsPerSecond calls with the given burst.
func NewPerSecond(name string, requestsPerSecond, burst int) *Limiter {
	if requestsPerSecond <= 0 {
		return NewPerMinute(name, 0)
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
		name:    name,
		perMin:  requestsPerSecond * 60,
	}
}

// Wait blocks until the rate limiter allows the request.
// A nil limiter never blocks.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	if err := l.limiter.Wait(ctx); err != nil {
		return errors.Wrapf(errors.ErrRateLimitExceeded, "rate limiter %s: %v", l.name, err)
	}
	return nil
}

// Allow checks if a request is allowed without blocking
func (l *Limiter) Allow() bool {
	if l == nil {
		return true
	}
	return l.limiter.Allow()
}

// PerMinute returns the configured requests per minute, 0 when unlimited.
func (l *Limiter) PerMinute() int {
	if l == nil {
		return 0
	}
	return l.perMin
}

// Name returns the limiter label used in errors and logs
func (l *Limiter) Name() string {
	if l == nil {
		return ""
	}
	return l.name
}
