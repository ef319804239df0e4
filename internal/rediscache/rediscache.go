// Package rediscache adapts github.com/redis/go-redis/v9 to flagkit's
// ExternalCache contract, for hosts that want the fetched config entry
// shared across process instances via a Redis deployment they already run.
package rediscache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a flagkit.ExternalCache backed by a Redis client. Values are
// stored as opaque byte blobs (the serialized ConfigEntry JSON flagkit
// hands it); Cache does not interpret them.
type Cache struct {
	client *redis.Client
	ttl    int // seconds; 0 means no expiration
}

// Option configures a Cache at construction time.
type Option func(*Cache)

// WithTTLSeconds sets an expiration on every Set call. The default, 0,
// never expires - flagkit's own fetch/poll discipline is what keeps the
// entry fresh, not the cache's TTL.
func WithTTLSeconds(seconds int) Option {
	return func(c *Cache) { c.ttl = seconds }
}

// New wraps an existing *redis.Client. The caller owns the client's
// lifecycle (including Close).
func New(client *redis.Client, opts ...Option) *Cache {
	c := &Cache{client: client}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromURL builds a Cache from a redis:// connection string, the way a
// host would point this adapter at a managed Redis instance without
// constructing *redis.Options by hand.
func NewFromURL(url string, opts ...Option) (*Cache, error) {
	parsed, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("rediscache: parse redis url: %w", err)
	}
	return New(redis.NewClient(parsed), opts...), nil
}

// Get implements flagkit.ExternalCache. A missing key is reported as a
// nil, nil result, matching the contract that a cache miss is not an
// error condition.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("rediscache: get %q: %w", key, err)
	}
	return val, nil
}

// Set implements flagkit.ExternalCache.
func (c *Cache) Set(ctx context.Context, key string, value []byte) error {
	ttl := time.Duration(c.ttl) * time.Second
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("rediscache: set %q: %w", key, err)
	}
	return nil
}

// Close closes the underlying *redis.Client, whether it was built by
// NewFromURL or passed to New.
func (c *Cache) Close() error {
	return c.client.Close()
}
