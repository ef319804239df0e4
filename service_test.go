package flagkit

import (
	"context"
	"sync"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

func newTestEntry(body string, etag string) ConfigEntry {
	doc, err := ParseDocument([]byte(body))
	if err != nil {
		panic(err)
	}
	return ConfigEntry{Config: doc, ETag: etag, FetchTime: time.Now().UTC(), ConfigJSON: []byte(body)}
}

func TestLazyLoadCacheHitWithinTTL(t *testing.T) {
	c := qt.New(t)
	fetcher := newFakeFetcher()
	fetcher.setResponse(FetchedResponse(newTestEntry(`{"f":{"k":{"t":1,"v":{"s":"v1"}}}}`, "e1")))

	svc := newConfigService("sdk-key", nil, fetcher, NewHooks(), testLogger(), LazyLoad,
		pollingOptions{cacheRefreshInterval: 60 * time.Second}, false)

	flags, _ := svc.GetSettings(context.Background())
	c.Assert(flags, qt.IsNotNil)
	c.Assert(fetcher.callCount(), qt.Equals, 1)

	flags, _ = svc.GetSettings(context.Background())
	c.Assert(flags, qt.IsNotNil)
	c.Assert(fetcher.callCount(), qt.Equals, 1)
}

func TestAutoPollMaxInitWaitTimesOutAndLatchesReadiness(t *testing.T) {
	c := qt.New(t)
	fetcher := newFakeFetcher()
	fetcher.setResponseWithDelay(FetchedResponse(newTestEntry(`{"f":{}}`, "e1")), 500*time.Millisecond)

	svc := newConfigService("sdk-key", nil, fetcher, NewHooks(), testLogger(), AutoPoll,
		pollingOptions{pollInterval: time.Second, maxInitWait: 50 * time.Millisecond}, false)
	defer svc.Close(context.Background())

	start := time.Now()
	flags, fetchTime := svc.GetSettings(context.Background())
	elapsed := time.Since(start)

	c.Assert(flags, qt.IsNil)
	c.Assert(fetchTime.Equal(distantPast), qt.IsTrue)
	c.Assert(elapsed < 400*time.Millisecond, qt.IsTrue)

	select {
	case <-svc.Ready():
	default:
		t.Fatal("expected readiness to be latched after max-init-wait timeout")
	}
}

func TestOfflineRefreshNeverContactsFetcher(t *testing.T) {
	c := qt.New(t)
	fetcher := newFakeFetcher()
	fetcher.setResponse(FetchedResponse(newTestEntry(`{"f":{}}`, "e1")))

	svc := newConfigService("sdk-key", nil, fetcher, NewHooks(), testLogger(), Manual, pollingOptions{}, true)

	err := svc.Refresh(context.Background())
	c.Assert(err, qt.Equals, ErrOffline)
	c.Assert(fetcher.callCount(), qt.Equals, 0)
}

func TestSingleFlightDeduplicatesConcurrentFetches(t *testing.T) {
	c := qt.New(t)
	fetcher := newFakeFetcher()
	fetcher.setResponseWithDelay(FetchedResponse(newTestEntry(`{"f":{}}`, "e1")), 100*time.Millisecond)

	var configChangedCount int
	var mu sync.Mutex
	hooks := NewHooks()
	hooks.OnConfigChanged(func(map[string]interface{}) {
		mu.Lock()
		configChangedCount++
		mu.Unlock()
	})

	svc := newConfigService("sdk-key", nil, fetcher, hooks, testLogger(), LazyLoad,
		pollingOptions{cacheRefreshInterval: 60 * time.Second}, false)

	var wg sync.WaitGroup
	results := make([]map[string]*Setting, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			flags, _ := svc.GetSettings(context.Background())
			results[i] = flags
		}(i)
	}
	wg.Wait()

	for i := range results {
		c.Assert(results[i], qt.IsNotNil)
	}
	c.Assert(fetcher.callCount(), qt.Equals, 1)
	mu.Lock()
	c.Assert(configChangedCount, qt.Equals, 1)
	mu.Unlock()
}

func TestSetOfflineThenOnlineTogglesPoller(t *testing.T) {
	c := qt.New(t)
	fetcher := newFakeFetcher()
	fetcher.setResponse(FetchedResponse(newTestEntry(`{"f":{}}`, "e1")))

	svc := newConfigService("sdk-key", nil, fetcher, NewHooks(), testLogger(), AutoPoll,
		pollingOptions{pollInterval: 20 * time.Millisecond, maxInitWait: time.Second}, false)
	defer svc.Close(context.Background())

	time.Sleep(50 * time.Millisecond)
	c.Assert(svc.IsOffline(), qt.IsFalse)

	svc.SetOffline()
	c.Assert(svc.IsOffline(), qt.IsTrue)
	callsAtOffline := fetcher.callCount()
	time.Sleep(80 * time.Millisecond)
	c.Assert(fetcher.callCount(), qt.Equals, callsAtOffline)

	svc.SetOnline()
	c.Assert(svc.IsOffline(), qt.IsFalse)
	time.Sleep(80 * time.Millisecond)
	c.Assert(fetcher.callCount() > callsAtOffline, qt.IsTrue)
}

func TestNotModifiedAdvancesFetchTimeWithoutChangingConfig(t *testing.T) {
	c := qt.New(t)
	fetcher := newFakeFetcher()
	fetcher.setResponse(FetchedResponse(newTestEntry(`{"f":{"k":{"t":1,"v":{"s":"v1"}}}}`, "e1")))

	svc := newConfigService("sdk-key", nil, fetcher, NewHooks(), testLogger(), Manual, pollingOptions{}, false)
	c.Assert(svc.Refresh(context.Background()), qt.IsNil)
	first, firstTime := svc.GetSettings(context.Background())
	c.Assert(first, qt.IsNotNil)

	fetcher.setResponse(NotModifiedResponse())
	time.Sleep(5 * time.Millisecond)
	c.Assert(svc.Refresh(context.Background()), qt.IsNil)
	second, secondTime := svc.GetSettings(context.Background())

	c.Assert(second["k"].Value.Get(StringSetting), qt.Equals, first["k"].Value.Get(StringSetting))
	c.Assert(secondTime.After(firstTime), qt.IsTrue)
}

func TestCacheRoundTripThroughExternalCache(t *testing.T) {
	c := qt.New(t)
	cache := newMemCache()
	fetcher := newFakeFetcher()
	fetcher.setResponse(FetchedResponse(newTestEntry(`{"f":{"k":{"t":0,"v":{"b":true}}}}`, "e1")))

	svc := newConfigService("sdk-key", cache, fetcher, NewHooks(), testLogger(), Manual, pollingOptions{}, false)
	c.Assert(svc.Refresh(context.Background()), qt.IsNil)

	raw, err := cache.Get(context.Background(), cacheKey("sdk-key"))
	c.Assert(err, qt.IsNil)
	c.Assert(raw, qt.IsNotNil)

	entry, err := unmarshalEntry(raw)
	c.Assert(err, qt.IsNil)
	c.Assert(entry.ETag, qt.Equals, "e1")
	c.Assert(entry.Config.Flags["k"].Value.Get(BoolSetting), qt.Equals, true)
}
