package upstream

import (
	"errors"
	"fmt"
	"time"
)

// Variant selects the Client implementation.
type Variant string

// Supported upstream variants.
const (
	// VariantHostes talks to the hostes JSON API (default).
	VariantHostes Variant = "hostes"
	// VariantClientomerAPI talks to the clientomer cabinet JSON endpoints.
	VariantClientomerAPI Variant = "clientomer_api"
	// VariantClientomerCabinet scrapes the clientomer cabinet HTML page.
	VariantClientomerCabinet Variant = "clientomer_cabinet"
)

// Render selects how the cabinet variant loads the dashboard.
type Render string

// Supported renderers.
const (
	// RenderBrowser loads the page in headless Chromium (default).
	RenderBrowser Render = "browser"
	// RenderHTTP loads the page with plain requests and sees only
	// server-rendered markup.
	RenderHTTP Render = "http"
)

// Defaults.
const (
	DefaultHostesBaseURL     = "https://wrf.hostes.me"
	DefaultClientomerBaseURL = "https://cabinet.clientomer.ru"
	DefaultTenant            = "resto-wrf"
	DefaultLocale            = "ru_RU"
	DefaultRestaurantID      = 3
	DefaultPointID           = "125021"
	DefaultAttemptTimeoutMS  = 30000
	DefaultSessionTTLMS      = 10 * 60 * 1000
	DefaultRateLimit         = 2.0
	DefaultReadyTimeoutMS    = 60000
	DefaultReadyPollMS       = 2000
	DefaultUserAgent         = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

var (
	defaultPlaces           = []int{7, 133, 348, 349}
	defaultHostesStatuses   = []string{"WAIT_LIST", "NEW", "CONFIRMED"}
	defaultClientomerStatus = []string{"new", "waiting", "confirmed"}
	defaultCounterSelectors = []string{".guest-today__item-block"}
	defaultTotalSelectors   = []string{"span.d-block"}
)

// SelectorConfig lists CSS selectors tried in order by the cabinet scraper.
type SelectorConfig struct {
	Counters []string `yaml:"counters" toml:"counters"`
	Total    []string `yaml:"total" toml:"total"`
}

// Config describes how to reach and authenticate against the dashboard.
//
//nolint:govet // grouped by concern
type Config struct {
	Kind     Variant `yaml:"kind" toml:"kind"`
	BaseURL  string  `yaml:"base_url" toml:"base_url"`
	Login    string  `yaml:"login" toml:"login"`
	Password string  `yaml:"password" toml:"password"`

	// hostes
	Tenant       string `yaml:"tenant" toml:"tenant"`
	Locale       string `yaml:"locale" toml:"locale"`
	RestaurantID int    `yaml:"restaurant_id" toml:"restaurant_id"`
	Places       []int  `yaml:"places" toml:"places"`

	// clientomer
	PointID   string         `yaml:"point_id" toml:"point_id"`
	Selectors SelectorConfig `yaml:"selectors" toml:"selectors"`

	// clientomer_cabinet
	Render         Render `yaml:"render" toml:"render"`
	BrowserPath    string `yaml:"browser_path" toml:"browser_path"`
	ReadyTimeoutMS int    `yaml:"ready_timeout_ms" toml:"ready_timeout_ms"`
	ReadyPollMS    int    `yaml:"ready_poll_ms" toml:"ready_poll_ms"`

	Statuses []string `yaml:"statuses" toml:"statuses"`

	AttemptTimeoutMS int     `yaml:"attempt_timeout_ms" toml:"attempt_timeout_ms"`
	SessionTTLMS     int     `yaml:"session_ttl_ms" toml:"session_ttl_ms"`
	UserAgent        string  `yaml:"user_agent" toml:"user_agent"`
	RateLimit        float64 `yaml:"rate_limit" toml:"rate_limit"`
	CloudflareBypass bool    `yaml:"cloudflare_bypass" toml:"cloudflare_bypass"`
}

// GetKind returns the configured variant, hostes when unset.
func (c *Config) GetKind() Variant {
	if c.Kind == "" {
		return VariantHostes
	}
	return c.Kind
}

// GetBaseURL returns the base URL with a per-variant default.
func (c *Config) GetBaseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	if c.GetKind() == VariantHostes {
		return DefaultHostesBaseURL
	}
	return DefaultClientomerBaseURL
}

// GetTenant returns the hostes tenant.
func (c *Config) GetTenant() string {
	if c.Tenant == "" {
		return DefaultTenant
	}
	return c.Tenant
}

// GetLocale returns the hostes login locale.
func (c *Config) GetLocale() string {
	if c.Locale == "" {
		return DefaultLocale
	}
	return c.Locale
}

// GetRestaurantID returns the hostes restaurant id.
func (c *Config) GetRestaurantID() int {
	if c.RestaurantID <= 0 {
		return DefaultRestaurantID
	}
	return c.RestaurantID
}

// GetPlaces returns the hostes place filter.
func (c *Config) GetPlaces() []int {
	if len(c.Places) == 0 {
		return defaultPlaces
	}
	return c.Places
}

// GetPointID returns the clientomer point identifier.
func (c *Config) GetPointID() string {
	if c.PointID == "" {
		return DefaultPointID
	}
	return c.PointID
}

// GetStatuses returns the booking statuses counted for the active variant.
func (c *Config) GetStatuses() []string {
	if len(c.Statuses) > 0 {
		return c.Statuses
	}
	if c.GetKind() == VariantHostes {
		return defaultHostesStatuses
	}
	return defaultClientomerStatus
}

// GetCounterSelectors returns the inside/waiting selectors for the scraper.
func (c *Config) GetCounterSelectors() []string {
	if len(c.Selectors.Counters) == 0 {
		return defaultCounterSelectors
	}
	return c.Selectors.Counters
}

// GetTotalSelectors returns the total selectors for the scraper.
func (c *Config) GetTotalSelectors() []string {
	if len(c.Selectors.Total) == 0 {
		return defaultTotalSelectors
	}
	return c.Selectors.Total
}

// GetRender returns the cabinet renderer, browser when unset.
func (c *Config) GetRender() Render {
	if c.Render == "" {
		return RenderBrowser
	}
	return c.Render
}

// GetReadyTimeout bounds how long the cabinet scraper waits for the counters
// to appear. The attempt timeout still applies.
func (c *Config) GetReadyTimeout() time.Duration {
	if c.ReadyTimeoutMS <= 0 {
		return DefaultReadyTimeoutMS * time.Millisecond
	}
	return time.Duration(c.ReadyTimeoutMS) * time.Millisecond
}

// GetReadyPoll returns the pause between cabinet page reads.
func (c *Config) GetReadyPoll() time.Duration {
	if c.ReadyPollMS <= 0 {
		return DefaultReadyPollMS * time.Millisecond
	}
	return time.Duration(c.ReadyPollMS) * time.Millisecond
}

// GetAttemptTimeout bounds a single fetch attempt.
func (c *Config) GetAttemptTimeout() time.Duration {
	if c.AttemptTimeoutMS <= 0 {
		return DefaultAttemptTimeoutMS * time.Millisecond
	}
	return time.Duration(c.AttemptTimeoutMS) * time.Millisecond
}

// GetSessionTTL bounds how long a login token or cookie is reused.
func (c *Config) GetSessionTTL() time.Duration {
	if c.SessionTTLMS <= 0 {
		return DefaultSessionTTLMS * time.Millisecond
	}
	return time.Duration(c.SessionTTLMS) * time.Millisecond
}

// GetUserAgent returns the User-Agent sent upstream.
func (c *Config) GetUserAgent() string {
	if c.UserAgent == "" {
		return DefaultUserAgent
	}
	return c.UserAgent
}

// GetRateLimit returns outbound requests per second.
func (c *Config) GetRateLimit() float64 {
	if c.RateLimit <= 0 {
		return DefaultRateLimit
	}
	return c.RateLimit
}

// HasCredentials reports whether both login and password are set.
func (c *Config) HasCredentials() bool {
	return c.Login != "" && c.Password != ""
}

// Validate checks settings that do not depend on credentials.
// Missing credentials are reported per fetch as KindConfigMissing instead.
func (c *Config) Validate() error {
	switch c.GetKind() {
	case VariantHostes, VariantClientomerAPI, VariantClientomerCabinet:
	default:
		return fmt.Errorf("upstream: unknown kind %q", c.Kind)
	}
	switch c.GetRender() {
	case RenderBrowser, RenderHTTP:
	default:
		return fmt.Errorf("upstream: unknown render %q", c.Render)
	}
	if c.AttemptTimeoutMS < 0 || c.ReadyTimeoutMS < 0 || c.ReadyPollMS < 0 {
		return errors.New("upstream: attempt_timeout_ms, ready_timeout_ms and ready_poll_ms must be >= 0")
	}
	if c.RateLimit < 0 {
		return errors.New("upstream: rate_limit must be >= 0")
	}
	return nil
}
