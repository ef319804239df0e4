package flagkit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// fetchStatus discriminates the three shapes a FetchResponse can take.
type fetchStatus int

const (
	statusFetched fetchStatus = iota
	statusNotModified
	statusFailure
)

// FetchResponse is the discriminated union a Fetcher returns: exactly
// one of Fetched, NotModified, or Failure describes what happened.
type FetchResponse struct {
	status      fetchStatus
	Entry       ConfigEntry
	Err         error
	IsTransient bool
}

// FetchedResponse builds a FetchResponse reporting a newly retrieved entry.
func FetchedResponse(entry ConfigEntry) FetchResponse {
	return FetchResponse{status: statusFetched, Entry: entry}
}

// NotModifiedResponse builds a FetchResponse reporting a 304-equivalent result.
func NotModifiedResponse() FetchResponse {
	return FetchResponse{status: statusNotModified}
}

// FailureResponse builds a FetchResponse reporting a failed attempt. A
// transient failure (timeout, network error) leaves the cached entry
// and its FetchTime untouched, so the next poll retries promptly; a
// non-transient failure (404, unexpected status, malformed body) is
// treated the same way by fetchIfOlder as NotModified, advancing the
// cached entry's FetchTime.
func FailureResponse(err error, transient bool) FetchResponse {
	return FetchResponse{status: statusFailure, Err: err, IsTransient: transient}
}

// IsFetched reports whether r carries a newly retrieved entry.
func (r FetchResponse) IsFetched() bool { return r.status == statusFetched }

// IsNotModified reports whether the server confirmed the caller's ETag
// is still current.
func (r FetchResponse) IsNotModified() bool { return r.status == statusNotModified }

// IsFailure reports whether the fetch attempt failed outright.
func (r FetchResponse) IsFailure() bool { return r.status == statusFailure }

// Fetcher retrieves the config document from wherever it's actually
// served. Fetch must be safe to call from the Configuration Service's
// single-flight goroutine only - it is never called concurrently with
// itself by flagkit.
type Fetcher interface {
	Fetch(ctx context.Context, etag string) FetchResponse
}

const (
	globalBaseURL = "https://cdn-global.example-flagkit.net"
	euOnlyBaseURL = "https://cdn-eu.example-flagkit.net"
	maxRedirects  = 3
)

// DataGovernance selects which default CDN region a client talks to
// when no explicit BaseURL is configured.
type DataGovernance int

// Supported data governance regions.
const (
	Global DataGovernance = iota
	EUOnly
)

// httpFetcher is the default Fetcher implementation, talking to the
// flag backend over HTTP(S) with conditional GETs and bounded redirect
// following, the same shape the Configuration Service's polling loop
// expects from any Fetcher.
type httpFetcher struct {
	sdkKey      string
	client      *http.Client
	userAgent   string
	urlIsCustom bool
	baseURL     string
	logger      *leveledLogger
}

func newHTTPFetcher(sdkKey string, cfg Config, logger *leveledLogger) *httpFetcher {
	f := &httpFetcher{
		sdkKey:    sdkKey,
		client:    &http.Client{Timeout: cfg.HTTPTimeout, Transport: cfg.Transport},
		userAgent: "Flagkit-Go/" + cfg.PollingMode.identifier() + "-" + sdkVersion,
		logger:    logger,
	}
	if cfg.BaseURL != "" {
		f.urlIsCustom = true
		f.baseURL = cfg.BaseURL
	} else if cfg.DataGovernance == EUOnly {
		f.baseURL = euOnlyBaseURL
	} else {
		f.baseURL = globalBaseURL
	}
	return f
}

// Fetch implements Fetcher.
func (f *httpFetcher) Fetch(ctx context.Context, etag string) FetchResponse {
	attempts := maxRedirects
	for {
		resp := f.fetchOnce(ctx, etag)
		if !resp.IsFetched() {
			return resp
		}
		prefs := resp.Entry.Config.Preferences
		if prefs == nil || prefs.URL == "" || prefs.URL == f.baseURL {
			return resp
		}
		redirect := prefs.Redirect
		if f.urlIsCustom && redirect != RedirectForce {
			return resp
		}
		f.baseURL = prefs.URL
		if redirect == RedirectNone {
			return resp
		}
		if redirect == RedirectShould {
			f.logger.Warn(3002, "data governance mismatch: the configured region doesn't match the server preference")
		}
		if attempts <= 0 {
			f.logger.Error(1104, "redirect loop while fetching config.json")
			return resp
		}
		attempts--
	}
}

func (f *httpFetcher) fetchOnce(ctx context.Context, etag string) FetchResponse {
	reqURL := fmt.Sprintf("%s/configuration-files/%s/%s.json", f.baseURL, url.PathEscape(f.sdkKey), configFileName)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return FailureResponse(newFetchError(1105, err), false)
	}
	req.Header.Set("X-Flagkit-UserAgent", f.userAgent)
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) && netErr.Timeout() {
			f.logger.Error(1102, "config fetch timed out: %v", err)
			return FailureResponse(newFetchError(1102, err), true)
		}
		f.logger.Error(1103, "config fetch failed: %v", err)
		return FailureResponse(newFetchError(1103, err), true)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		f.logger.Debug(0, "config fetch succeeded: not modified")
		return NotModifiedResponse()
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return FailureResponse(newFetchError(1105, err), true)
		}
		doc, err := ParseDocument(body)
		if err != nil {
			f.logger.Error(1105, "config fetch returned an invalid body: %v", err)
			return FailureResponse(newFetchError(1105, err), false)
		}
		entry := ConfigEntry{
			Config:     doc,
			ETag:       resp.Header.Get("ETag"),
			FetchTime:  time.Now().UTC(),
			ConfigJSON: body,
		}
		f.logger.Debug(0, "config fetch succeeded: new config fetched")
		return FetchedResponse(entry)
	case resp.StatusCode == http.StatusNotFound:
		f.logger.Error(1100, "your SDK key looks incorrect, the server rejected it with 404")
		return FailureResponse(newFetchError(1100, errors.New("sdk key rejected")), false)
	default:
		f.logger.Error(1101, "unexpected response status: %d", resp.StatusCode)
		return FailureResponse(newFetchError(1101, fmt.Errorf("unexpected status %d", resp.StatusCode)), false)
	}
}

// sdkVersion is the user-agent version token this module reports.
const sdkVersion = "1.0.0"
