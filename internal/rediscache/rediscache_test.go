package rediscache_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/frankban/quicktest"
	"github.com/redis/go-redis/v9"

	"github.com/flagkit/flagkit/internal/rediscache"
)

func newTestCache(t *testing.T) *rediscache.Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return rediscache.New(client)
}

func TestGetMiss(t *testing.T) {
	c := quicktest.New(t)
	cache := newTestCache(t)

	val, err := cache.Get(context.Background(), "missing-key")
	c.Assert(err, quicktest.IsNil)
	c.Assert(val, quicktest.IsNil)
}

func TestSetThenGetRoundTrips(t *testing.T) {
	c := quicktest.New(t)
	cache := newTestCache(t)
	ctx := context.Background()

	c.Assert(cache.Set(ctx, "flagkit-key", []byte(`{"etag":"v1"}`)), quicktest.IsNil)

	val, err := cache.Get(ctx, "flagkit-key")
	c.Assert(err, quicktest.IsNil)
	c.Assert(string(val), quicktest.Equals, `{"etag":"v1"}`)
}

func TestSetOverwritesPreviousValue(t *testing.T) {
	c := quicktest.New(t)
	cache := newTestCache(t)
	ctx := context.Background()

	c.Assert(cache.Set(ctx, "k", []byte("first")), quicktest.IsNil)
	c.Assert(cache.Set(ctx, "k", []byte("second")), quicktest.IsNil)

	val, err := cache.Get(ctx, "k")
	c.Assert(err, quicktest.IsNil)
	c.Assert(string(val), quicktest.Equals, "second")
}

func TestNewFromURLRejectsBadURL(t *testing.T) {
	c := quicktest.New(t)
	_, err := rediscache.NewFromURL("not-a-url://\x00")
	c.Assert(err, quicktest.IsNotNil)
}
