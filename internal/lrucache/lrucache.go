// Package lrucache is a bounded, in-process flagkit.ExternalCache backed
// by github.com/hashicorp/golang-lru/v2. It's useful as a last-resort
// cache when no durable, cross-process store is configured: it still
// lets fetchIfOlder's "reread the cache before deciding to fetch" path
// skip a redundant reparse of an unchanged blob, but carries no data
// across process restarts.
package lrucache

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache is a flagkit.ExternalCache backed by a bounded in-memory LRU.
type Cache struct {
	entries *lru.Cache[string, []byte]
}

// New builds a Cache holding at most size distinct keys. A client only
// ever writes a single key (its own cache key), so size need not exceed
// the number of distinct SDK keys a process evaluates flags for.
func New(size int) (*Cache, error) {
	entries, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("lrucache: %w", err)
	}
	return &Cache{entries: entries}, nil
}

// Get implements flagkit.ExternalCache. A miss returns (nil, nil).
func (c *Cache) Get(_ context.Context, key string) ([]byte, error) {
	val, ok := c.entries.Get(key)
	if !ok {
		return nil, nil
	}
	return val, nil
}

// Set implements flagkit.ExternalCache.
func (c *Cache) Set(_ context.Context, key string, value []byte) error {
	c.entries.Add(key, value)
	return nil
}

// Len reports the number of distinct keys currently cached.
func (c *Cache) Len() int { return c.entries.Len() }

// Purge clears every cached entry.
func (c *Cache) Purge() { c.entries.Purge() }
