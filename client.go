package flagkit

import (
	"context"
	"net/http"
	"regexp"
	"time"
)

// Config collects every option a Client can be constructed with.
type Config struct {
	SDKKey string

	Logger   Logger
	LogLevel LogLevel

	Cache ExternalCache

	BaseURL        string
	DataGovernance DataGovernance
	Transport      http.RoundTripper
	HTTPTimeout    time.Duration

	PollingMode          PollingMode
	PollInterval         time.Duration
	MaxInitWait          time.Duration
	CacheRefreshInterval time.Duration

	DefaultUser User
	Hooks       *Hooks
	Offline     bool

	// fetcher overrides the default HTTP fetcher; used by tests.
	fetcher Fetcher
}

func (c Config) withDefaults() Config {
	if c.HTTPTimeout == 0 {
		c.HTTPTimeout = 10 * time.Second
	}
	if c.PollInterval == 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.MaxInitWait == 0 {
		c.MaxInitWait = defaultMaxInitWait
	}
	if c.CacheRefreshInterval == 0 {
		c.CacheRefreshInterval = defaultPollInterval
	}
	if c.Hooks == nil {
		c.Hooks = NewHooks()
	}
	return c
}

var sdkKeyPattern = regexp.MustCompile(`^[\w-]{22}/[\w-]{22}$`)

func isValidSDKKey(key string) bool {
	return sdkKeyPattern.MatchString(key)
}

// Client is the public SDK facade: it wires a Fetcher, an ExternalCache,
// a Logger, and Hooks into a single Configuration Service, and exposes
// typed flag-evaluation methods on top of the Rollout Evaluator.
type Client struct {
	cfg     Config
	logger  *leveledLogger
	service *configService
	hooks   *Hooks
}

// NewClient constructs a Client from cfg. It never blocks on network
// I/O: use Ready() to observe when the first fetch (or cache read) has
// completed.
func NewClient(cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()

	if !isValidSDKKey(cfg.SDKKey) {
		return nil, ErrInvalidSDKKey
	}

	logger := newLeveledLogger(cfg.Logger, cfg.LogLevel, cfg.Hooks)

	fetcher := cfg.fetcher
	if fetcher == nil {
		fetcher = newHTTPFetcher(cfg.SDKKey, cfg, logger)
	}

	opts := pollingOptions{
		pollInterval:         cfg.PollInterval,
		maxInitWait:          cfg.MaxInitWait,
		cacheRefreshInterval: cfg.CacheRefreshInterval,
	}

	service := newConfigService(cfg.SDKKey, cfg.Cache, fetcher, cfg.Hooks, logger, cfg.PollingMode, opts, cfg.Offline)

	return &Client{cfg: cfg, logger: logger, service: service, hooks: cfg.Hooks}, nil
}

// Ready returns a channel that's closed once the client has completed
// its first readiness-triggering event.
func (c *Client) Ready() <-chan struct{} { return c.service.Ready() }

// Refresh performs an unconditional synchronous config fetch.
func (c *Client) Refresh(ctx context.Context) error {
	return c.service.Refresh(ctx)
}

// RefreshIfOlder performs a synchronous fetch only if the cached config
// is older than age. Returns ErrOffline if the client is offline.
func (c *Client) RefreshIfOlder(ctx context.Context, age time.Duration) error {
	return c.service.RefreshIfOlder(ctx, age)
}

// SetOffline switches the client to offline mode.
func (c *Client) SetOffline() { c.service.SetOffline() }

// SetOnline switches the client back to online mode.
func (c *Client) SetOnline() { c.service.SetOnline() }

// IsOffline reports whether the client is currently offline.
func (c *Client) IsOffline() bool { return c.service.IsOffline() }

// Close releases the client's background resources (the AutoPoll
// poller goroutine, if any).
func (c *Client) Close(ctx context.Context) error {
	return c.service.Close(ctx)
}

func (c *Client) resolveUser(user User) User {
	if user != nil {
		return user
	}
	return c.cfg.DefaultUser
}

// GetAllFlags returns a flat snapshot of every flag's root value,
// ignoring targeting rules - a quick overview, not a substitute for the
// typed evaluation methods below.
func (c *Client) GetAllFlags(ctx context.Context) map[string]interface{} {
	doc := c.service.Document(ctx)
	if doc == nil {
		return map[string]interface{}{}
	}
	return doc.SimplifiedFlags()
}

// GetBoolValueDetails evaluates a boolean flag with full diagnostics.
func (c *Client) GetBoolValueDetails(ctx context.Context, key string, user User, defaultValue bool) EvaluationDetails {
	return c.evaluate(ctx, key, user, defaultValue)
}

// GetBoolValue evaluates a boolean flag.
func (c *Client) GetBoolValue(ctx context.Context, key string, user User, defaultValue bool) bool {
	details := c.GetBoolValueDetails(ctx, key, user, defaultValue)
	v, ok := details.Value.(bool)
	if !ok {
		return defaultValue
	}
	return v
}

// GetStringValueDetails evaluates a string flag with full diagnostics.
func (c *Client) GetStringValueDetails(ctx context.Context, key string, user User, defaultValue string) EvaluationDetails {
	return c.evaluate(ctx, key, user, defaultValue)
}

// GetStringValue evaluates a string flag.
func (c *Client) GetStringValue(ctx context.Context, key string, user User, defaultValue string) string {
	details := c.GetStringValueDetails(ctx, key, user, defaultValue)
	v, ok := details.Value.(string)
	if !ok {
		return defaultValue
	}
	return v
}

// GetIntValueDetails evaluates an integer flag with full diagnostics.
func (c *Client) GetIntValueDetails(ctx context.Context, key string, user User, defaultValue int) EvaluationDetails {
	return c.evaluate(ctx, key, user, defaultValue)
}

// GetIntValue evaluates an integer flag.
func (c *Client) GetIntValue(ctx context.Context, key string, user User, defaultValue int) int {
	details := c.GetIntValueDetails(ctx, key, user, defaultValue)
	v, ok := details.Value.(int)
	if !ok {
		return defaultValue
	}
	return v
}

// GetFloatValueDetails evaluates a float flag with full diagnostics.
func (c *Client) GetFloatValueDetails(ctx context.Context, key string, user User, defaultValue float64) EvaluationDetails {
	return c.evaluate(ctx, key, user, defaultValue)
}

// GetFloatValue evaluates a float flag.
func (c *Client) GetFloatValue(ctx context.Context, key string, user User, defaultValue float64) float64 {
	details := c.GetFloatValueDetails(ctx, key, user, defaultValue)
	v, ok := details.Value.(float64)
	if !ok {
		return defaultValue
	}
	return v
}

func (c *Client) evaluate(ctx context.Context, key string, user User, defaultValue interface{}) EvaluationDetails {
	doc := c.service.Document(ctx)
	u := c.resolveUser(user)
	if doc == nil {
		return EvaluationDetails{Key: key, Value: defaultValue, IsDefault: true}
	}
	details := evalFlag(key, u, defaultValue, doc, c.logger)
	c.hooks.fireFlagEvaluated(details)
	return details
}
