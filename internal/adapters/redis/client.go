package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"advisor/internal/adapters/config"
	"advisor/pkg/errors"
)

const defaultPrefix = "advisor:"

// Client stores JSON encoded tool results under a namespaced key.
type Client struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewClient connects to Redis and pings it once. An unreachable server is
// reported as ErrUnavailable so the caller can run without a cache.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrapf(errors.ErrUnavailable, "redis ping %s: %v", cfg.Addr(), err)
	}

	c := Wrap(rdb)
	if cfg.KeyPrefix != "" {
		c.prefix = cfg.KeyPrefix
	}
	c.ttl = cfg.CacheTTL
	return c, nil
}

// Wrap adopts an existing go-redis client with the default key prefix.
func Wrap(rdb *redis.Client) *Client {
	return &Client{rdb: rdb, prefix: defaultPrefix}
}

// Client returns the underlying go-redis client for pool statistics.
func (c *Client) Client() *redis.Client {
	return c.rdb
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// Set stores value under key. A zero ttl falls back to the configured TTL.
func (c *Client) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "marshal cache value")
	}
	if ttl <= 0 {
		ttl = c.ttl
	}
	return c.rdb.Set(ctx, c.key(key), data, ttl).Err()
}

// Get decodes a stored value into dest. Missing keys return ErrNotFound.
func (c *Client) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := c.rdb.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return errors.Wrapf(errors.ErrNotFound, "cache key %s", key)
	}
	if err != nil {
		return errors.Wrapf(errors.ErrUnavailable, "redis get: %v", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return errors.Wrapf(errors.ErrNotFound, "cache key %s holds undecodable value", key)
	}
	return nil
}

func (c *Client) key(k string) string {
	return c.prefix + k
}
