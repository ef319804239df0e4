package flagkit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// PollingMode selects the Configuration Service's fetch discipline.
type PollingMode int

// Supported polling disciplines.
const (
	// AutoPoll refreshes the cached entry on a fixed interval in the
	// background and blocks readiness up to MaxInitWait.
	AutoPoll PollingMode = iota
	// LazyLoad refreshes lazily: every read checks staleness against
	// CacheRefreshInterval and fetches synchronously if expired.
	LazyLoad
	// Manual never fetches on read; only an explicit Refresh call
	// triggers a network request.
	Manual
)

func (m PollingMode) identifier() string {
	switch m {
	case AutoPoll:
		return "a"
	case LazyLoad:
		return "l"
	default:
		return "m"
	}
}

// pollingOptions carries the interval/timing knobs relevant to whichever
// PollingMode is active; irrelevant fields are simply unused.
type pollingOptions struct {
	pollInterval         time.Duration
	maxInitWait          time.Duration
	cacheRefreshInterval time.Duration
}

const defaultPollInterval = 60 * time.Second
const defaultMaxInitWait = 5 * time.Second

// configService owns the cached ConfigEntry, coordinates single-flight
// fetches against the Fetcher, reads and writes the ExternalCache, and
// latches readiness exactly once. Its mutex is never held across
// network I/O.
type configService struct {
	mu          sync.Mutex
	cachedEntry ConfigEntry
	cachedRaw   []byte // last raw cache bytes read, to skip redundant parses

	sdkKey   string
	cacheKey string
	cache    ExternalCache
	fetcher  Fetcher
	hooks    *Hooks
	logger   *leveledLogger
	mode     PollingMode
	opts     pollingOptions

	offline atomic.Bool

	readyOnce sync.Once
	readyCh   chan struct{}

	ongoingFetch  bool
	fetchFinished chan struct{}

	startTime time.Time

	pollerMu   sync.Mutex
	pollerStop chan struct{}
	pollerWG   sync.WaitGroup
}

func newConfigService(sdkKey string, cache ExternalCache, fetcher Fetcher, hooks *Hooks, logger *leveledLogger, mode PollingMode, opts pollingOptions, offline bool) *configService {
	if cache == nil {
		cache = noopCache{}
	}
	s := &configService{
		cachedEntry:   emptyEntry,
		sdkKey:        sdkKey,
		cacheKey:      cacheKey(sdkKey),
		cache:         cache,
		fetcher:       fetcher,
		hooks:         hooks,
		logger:        logger,
		mode:          mode,
		opts:          opts,
		readyCh:       make(chan struct{}),
		fetchFinished: make(chan struct{}),
		startTime:     time.Now(),
	}
	s.offline.Store(offline)

	if mode == AutoPoll && !offline {
		s.startPoll()
	} else {
		s.setInitialized()
	}
	return s
}

// GetSettings returns the current flag map and its FetchTime, applying
// the polling discipline's read-time behavior: LazyLoad fetches
// synchronously if stale; AutoPoll waits (bounded by MaxInitWait) for
// the first background fetch; Manual and already-initialized AutoPoll
// reads return the cache as-is without fetching.
func (s *configService) GetSettings(ctx context.Context) (map[string]*Setting, time.Time) {
	switch s.mode {
	case LazyLoad:
		entry, _ := s.fetchIfOlder(ctx, time.Now().Add(-s.opts.cacheRefreshInterval), false)
		if entry.IsEmpty() {
			return nil, distantPast
		}
		return entry.Config.Flags, entry.FetchTime

	case AutoPoll:
		select {
		case <-s.readyCh:
		default:
			if wait := s.opts.maxInitWait - time.Since(s.startTime); wait > 0 {
				timer := time.NewTimer(wait)
				select {
				case <-s.readyCh:
				case <-timer.C:
				case <-ctx.Done():
				}
				timer.Stop()
			}
			select {
			case <-s.readyCh:
			default:
				// The init-wait window expired (or the caller gave up)
				// without a first fetch completing: latch readiness and
				// serve whatever is cached.
				s.setInitialized()
				s.mu.Lock()
				cached := s.cachedEntry
				s.mu.Unlock()
				if cached.IsEmpty() {
					return nil, distantPast
				}
				return cached.Config.Flags, cached.FetchTime
			}
		}
	}

	entry, _ := s.fetchIfOlder(ctx, distantPast, true)
	if entry.IsEmpty() {
		return nil, distantPast
	}
	return entry.Config.Flags, entry.FetchTime
}

// Document returns the currently cached parsed document, or nil if
// nothing has ever been fetched or read from cache.
func (s *configService) Document(ctx context.Context) *Document {
	flags, _ := s.GetSettings(ctx)
	if flags == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cachedEntry.Config
}

// Refresh performs an unconditional synchronous fetch.
func (s *configService) Refresh(ctx context.Context) error {
	_, err := s.fetchIfOlder(ctx, distantFuture, false)
	return err
}

// RefreshIfOlder triggers a synchronous fetch only if the cached entry
// is older than age.
func (s *configService) RefreshIfOlder(ctx context.Context, age time.Duration) error {
	_, err := s.fetchIfOlder(ctx, time.Now().Add(-age), false)
	return err
}

// fetchIfOlder is the single core algorithm every read/refresh path
// above funnels through: sync with the cache, decide whether the
// cached entry is fresh enough, and otherwise perform (or wait for) a
// single-flight network fetch.
func (s *configService) fetchIfOlder(ctx context.Context, threshold time.Time, preferCache bool) (ConfigEntry, error) {
	s.mu.Lock()
	if s.cachedEntry.IsEmpty() || s.cachedEntry.FetchTime.After(threshold) {
		entry, ok := s.readCache(ctx)
		if ok && entry.ETag != s.cachedEntry.ETag {
			s.cachedEntry = entry
			flags := entry.Config.SimplifiedFlags()
			s.mu.Unlock()
			s.hooks.fireConfigChanged(flags)
			s.mu.Lock()
		}
		if s.cachedEntry.FetchTime.After(threshold) {
			s.setInitializedLocked()
			defer s.mu.Unlock()
			return s.cachedEntry, nil
		}
	}

	if preferCache {
		select {
		case <-s.readyCh:
			defer s.mu.Unlock()
			return s.cachedEntry, nil
		default:
		}
	}

	if s.offline.Load() {
		s.logger.Warn(3200, "client is in offline mode, it cannot initiate HTTP calls")
		entry := s.cachedEntry
		s.mu.Unlock()
		return entry, ErrOffline
	}

	if s.ongoingFetch {
		fetchFinished := s.fetchFinished
		s.mu.Unlock()
		select {
		case <-fetchFinished:
		case <-ctx.Done():
		}
		s.mu.Lock()
		entry := s.cachedEntry
		s.mu.Unlock()
		return entry, nil
	}

	s.ongoingFetch = true
	s.fetchFinished = make(chan struct{})
	etag := s.cachedEntry.ETag
	s.mu.Unlock()

	resp := s.fetcher.Fetch(ctx, etag)

	s.mu.Lock()
	if resp.IsFetched() {
		s.cachedEntry = resp.Entry
		flags := resp.Entry.Config.SimplifiedFlags()
		s.writeCache(ctx, resp.Entry)
		s.mu.Unlock()
		s.hooks.fireConfigChanged(flags)
		s.mu.Lock()
	} else if (resp.IsNotModified() || !resp.IsTransient) && !s.cachedEntry.IsEmpty() {
		s.cachedEntry = s.cachedEntry.WithFetchTime(time.Now().UTC())
		s.writeCache(ctx, s.cachedEntry)
	}
	s.setInitializedLocked()
	entry := s.cachedEntry
	finished := s.fetchFinished
	s.ongoingFetch = false
	s.mu.Unlock()
	close(finished)

	if resp.IsFailure() {
		return entry, resp.Err
	}
	return entry, nil
}

// readCache must be called with s.mu held; it releases nothing itself.
func (s *configService) readCache(ctx context.Context) (ConfigEntry, bool) {
	raw, err := s.cache.Get(ctx, s.cacheKey)
	if err != nil {
		s.logger.Error(2200, "error occurred while reading the cache: %v", newCacheError("read", err))
		return ConfigEntry{}, false
	}
	if len(raw) == 0 || string(raw) == string(s.cachedRaw) {
		return ConfigEntry{}, false
	}
	entry, err := unmarshalEntry(raw)
	if err != nil {
		s.logger.Error(2200, "error occurred while parsing the cached entry: %v", newCacheError("parse", err))
		return ConfigEntry{}, false
	}
	s.cachedRaw = raw
	return entry, true
}

func (s *configService) writeCache(ctx context.Context, entry ConfigEntry) {
	data, err := marshalEntry(entry)
	if err != nil {
		s.logger.Error(2201, "error occurred while serializing the cache entry: %v", newCacheError("serialize", err))
		return
	}
	if err := s.cache.Set(ctx, s.cacheKey, data); err != nil {
		s.logger.Error(2201, "error occurred while writing the cache: %v", newCacheError("write", err))
	}
}

func (s *configService) setInitialized() {
	s.mu.Lock()
	s.setInitializedLocked()
	s.mu.Unlock()
}

// setInitializedLocked must be called with s.mu held.
func (s *configService) setInitializedLocked() {
	s.readyOnce.Do(func() {
		close(s.readyCh)
		go s.hooks.fireReady()
	})
}

// Ready returns a channel that's closed once the client becomes ready.
func (s *configService) Ready() <-chan struct{} { return s.readyCh }

// IsOffline reports the current offline/online mode without blocking on
// the service mutex.
func (s *configService) IsOffline() bool { return s.offline.Load() }

// SetOnline switches the service to online mode, restarting the
// background poller for AutoPoll if it isn't already running.
func (s *configService) SetOnline() {
	if !s.offline.CompareAndSwap(true, false) {
		return
	}
	if s.mode == AutoPoll {
		s.startPoll()
	}
	s.logger.Info(5200, "switched to ONLINE mode")
}

// SetOffline switches the service to offline mode, stopping the
// background poller for AutoPoll if one is running.
func (s *configService) SetOffline() {
	if !s.offline.CompareAndSwap(false, true) {
		return
	}
	if s.mode == AutoPoll {
		s.stopPoll()
	}
	s.logger.Info(5200, "switched to OFFLINE mode")
}

func (s *configService) startPoll() {
	s.pollerMu.Lock()
	defer s.pollerMu.Unlock()
	if s.pollerStop != nil {
		return
	}
	s.pollerStop = make(chan struct{})
	s.pollerWG.Add(1)
	go s.pollLoop(s.pollerStop)
}

func (s *configService) stopPoll() {
	s.pollerMu.Lock()
	stop := s.pollerStop
	s.pollerStop = nil
	s.pollerMu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	s.pollerWG.Wait()
}

func (s *configService) pollLoop(stop chan struct{}) {
	defer s.pollerWG.Done()
	ticker := time.NewTicker(s.opts.pollInterval)
	defer ticker.Stop()
	for {
		ctx, cancel := context.WithTimeout(context.Background(), s.opts.pollInterval)
		s.fetchIfOlder(ctx, time.Now().Add(-s.opts.pollInterval), false)
		cancel()

		select {
		case <-stop:
			return
		case <-ticker.C:
		}
	}
}

// Close stops the background poller, if any, waiting up to ctx's
// deadline for it to exit.
func (s *configService) Close(ctx context.Context) error {
	if s.mode != AutoPoll {
		return nil
	}
	done := make(chan struct{})
	go func() {
		s.stopPoll()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
