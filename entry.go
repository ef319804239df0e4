package flagkit

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"time"
)

// configFileName is the logical name of the config document this SDK
// fetches, baked into the cache key the same way every flagkit-class
// SDK key derives its cache entry.
const configFileName = "config_v6.json"

// distantPast is a sentinel FetchTime far enough in the past that any
// real threshold comparison against it always treats the entry as
// infinitely stale.
var distantPast = time.Unix(0, 0).UTC()

// distantFuture is used as the threshold for an unconditional refresh:
// nothing is ever "older" than it, so fetchIfOlder always triggers a
// real fetch attempt. It stays within the millisecond range the cache
// envelope stores, so an entry carrying it round-trips unchanged.
var distantFuture = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)

// ConfigEntry is the immutable, cacheable unit the Configuration
// Service tracks: a parsed Document plus the wire metadata needed to
// decide freshness and perform conditional fetches.
type ConfigEntry struct {
	Config     *Document
	ETag       string
	FetchTime  time.Time
	ConfigJSON []byte
}

// emptyEntry is the distinguished zero value of ConfigEntry: no config,
// no etag, FetchTime pinned to distantPast so every freshness check
// treats it as maximally stale.
var emptyEntry = ConfigEntry{FetchTime: distantPast}

// IsEmpty reports whether e is the distinguished empty sentinel.
func (e ConfigEntry) IsEmpty() bool {
	return e.Config == nil
}

// WithFetchTime returns a copy of e with FetchTime replaced, used when a
// 304 Not Modified response (or a non-transient failure) confirms the
// cached entry is still current without actually changing its content.
func (e ConfigEntry) WithFetchTime(t time.Time) ConfigEntry {
	e.FetchTime = t
	return e
}

// cacheEntryWire is the JSON shape an entry takes when written to the
// external cache: the raw config JSON, the ETag, and the fetch time in
// Unix milliseconds. The parsed Document is not stored; a cache read
// parses it again from ConfigJSON.
type cacheEntryWire struct {
	ConfigJSON string `json:"config_json"`
	ETag       string `json:"etag"`
	FetchTime  int64  `json:"fetch_time_ms"`
}

// marshalEntry serializes e for storage in the external cache.
func marshalEntry(e ConfigEntry) ([]byte, error) {
	return json.Marshal(cacheEntryWire{
		ConfigJSON: string(e.ConfigJSON),
		ETag:       e.ETag,
		FetchTime:  e.FetchTime.UnixMilli(),
	})
}

// unmarshalEntry deserializes bytes previously produced by marshalEntry.
func unmarshalEntry(data []byte) (ConfigEntry, error) {
	var wire cacheEntryWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return ConfigEntry{}, err
	}
	doc, err := ParseDocument([]byte(wire.ConfigJSON))
	if err != nil {
		return ConfigEntry{}, err
	}
	return ConfigEntry{
		Config:     doc,
		ETag:       wire.ETag,
		FetchTime:  time.UnixMilli(wire.FetchTime).UTC(),
		ConfigJSON: []byte(wire.ConfigJSON),
	}, nil
}

// cacheKey derives the external cache key for an SDK key. The "python_"
// prefix is deliberate: it reproduces, bit for bit, the key the system
// this library's cache layout was inherited from derives for the same
// SDK key. Only the key is shared: the stored value is this package's
// own cacheEntryWire envelope, and unmarshalEntry does not parse values
// in any other layout.
func cacheKey(sdkKey string) string {
	sum := sha1.Sum([]byte("python_" + configFileName + "_" + sdkKey))
	return hex.EncodeToString(sum[:])
}
