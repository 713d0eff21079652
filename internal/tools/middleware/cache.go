package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"advisor/internal/metrics"
	"advisor/internal/tools"
	"advisor/pkg/errors"
	"advisor/pkg/logger"
)

// Cache is the key-value store used to memoize tool results.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// CacheMiddleware memoizes successful results of cacheable tools.
// Failures are never cached so transient errors can be retried by the model.
type CacheMiddleware struct {
	cache Cache
	ttl   time.Duration
	log   *logger.Logger
}

// NewCacheMiddleware constructs the middleware. A nil cache disables it.
func NewCacheMiddleware(cache Cache, ttl time.Duration) *CacheMiddleware {
	return &CacheMiddleware{
		cache: cache,
		ttl:   ttl,
		log:   logger.Get().With("component", "tool_cache"),
	}
}

type cachedResult struct {
	Payload string `json:"payload"`
}

// Wrap adds caching to tools marked cacheable in the catalog.
func (m *CacheMiddleware) Wrap(t tools.Tool) tools.Tool {
	if m == nil || m.cache == nil {
		return t
	}
	def, ok := tools.Lookup(t.Name())
	if !ok || !def.Cacheable {
		return t
	}

	return tools.New(t.Name(), t.Description(), t.Parameters(), func(ctx context.Context, args json.RawMessage) tools.Result {
		key := CacheKey(t.Name(), args)

		var hit cachedResult
		err := m.cache.Get(ctx, key, &hit)
		switch {
		case err == nil:
			metrics.ToolCacheHits.WithLabelValues(t.Name(), "hit").Inc()
			return tools.OK(hit.Payload)
		case !errors.Is(err, errors.ErrNotFound):
			m.log.Warnw("Tool cache read failed", "tool", t.Name(), "error", err)
		}
		metrics.ToolCacheHits.WithLabelValues(t.Name(), "miss").Inc()

		res := t.Execute(ctx, args)
		if res.IsError() {
			return res
		}

		if err := m.cache.Set(ctx, key, cachedResult{Payload: res.Payload}, m.ttl); err != nil {
			m.log.Warnw("Tool cache write failed", "tool", t.Name(), "error", err)
		}
		return res
	})
}

// CacheKey derives a stable key from the tool name and its compacted arguments.
func CacheKey(name string, args json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, args); err != nil {
		buf.Reset()
		buf.Write(args)
	}
	sum := sha256.Sum256(buf.Bytes())
	return "tool:" + name + ":" + hex.EncodeToString(sum[:])
}
