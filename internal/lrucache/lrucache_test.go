package lrucache_test

import (
	"context"
	"testing"

	"github.com/frankban/quicktest"

	"github.com/flagkit/flagkit/internal/lrucache"
)

func TestGetMiss(t *testing.T) {
	c := quicktest.New(t)
	cache, err := lrucache.New(4)
	c.Assert(err, quicktest.IsNil)

	val, err := cache.Get(context.Background(), "nope")
	c.Assert(err, quicktest.IsNil)
	c.Assert(val, quicktest.IsNil)
}

func TestSetThenGetRoundTrips(t *testing.T) {
	c := quicktest.New(t)
	cache, err := lrucache.New(4)
	c.Assert(err, quicktest.IsNil)
	ctx := context.Background()

	c.Assert(cache.Set(ctx, "k", []byte("v1")), quicktest.IsNil)
	val, err := cache.Get(ctx, "k")
	c.Assert(err, quicktest.IsNil)
	c.Assert(string(val), quicktest.Equals, "v1")
}

func TestEvictsLeastRecentlyUsedPastCapacity(t *testing.T) {
	c := quicktest.New(t)
	cache, err := lrucache.New(2)
	c.Assert(err, quicktest.IsNil)
	ctx := context.Background()

	c.Assert(cache.Set(ctx, "a", []byte("1")), quicktest.IsNil)
	c.Assert(cache.Set(ctx, "b", []byte("2")), quicktest.IsNil)
	// touch "a" so "b" becomes the least recently used entry
	_, _ = cache.Get(ctx, "a")
	c.Assert(cache.Set(ctx, "c", []byte("3")), quicktest.IsNil)

	val, err := cache.Get(ctx, "b")
	c.Assert(err, quicktest.IsNil)
	c.Assert(val, quicktest.IsNil)

	val, err = cache.Get(ctx, "a")
	c.Assert(err, quicktest.IsNil)
	c.Assert(string(val), quicktest.Equals, "1")
}

func TestPurgeClearsAllEntries(t *testing.T) {
	c := quicktest.New(t)
	cache, err := lrucache.New(4)
	c.Assert(err, quicktest.IsNil)
	ctx := context.Background()

	c.Assert(cache.Set(ctx, "k", []byte("v")), quicktest.IsNil)
	c.Assert(cache.Len(), quicktest.Equals, 1)

	cache.Purge()
	c.Assert(cache.Len(), quicktest.Equals, 0)
}
