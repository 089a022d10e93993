package stats

import (
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/R0zhkov/wrf/internal/retry"
)

// ColdWait decides what callers do when a key has no value yet and a fetch
// is already running.
type ColdWait string

// Cold wait behaviours.
const (
	// ColdWaitBlock makes callers wait for the running fetch (default).
	ColdWaitBlock ColdWait = "wait"
	// ColdWaitReject fails callers immediately with upstream.ErrBusy.
	ColdWaitReject ColdWait = "reject"
)

// RefreshMode decides whether the caller that triggers a refresh of an
// expired entry waits for it.
type RefreshMode string

// Refresh modes.
const (
	// RefreshBlocking makes the triggering caller wait for the new value (default).
	RefreshBlocking RefreshMode = "blocking"
	// RefreshBackground returns the expired value and refreshes in the background.
	RefreshBackground RefreshMode = "background"
)

// Defaults.
const (
	DefaultTTLMS        = 60_000
	DefaultMaxAttempts  = 3
	DefaultRetryDelayMS = 2_000
	DefaultSWRMS        = 30_000
	DefaultTimezone     = "Europe/Moscow"
	DefaultPastDays     = 7
	DefaultFutureDays   = 60
)

// Config holds the cache and retry settings.
// Durations are in milliseconds, like the rest of the configuration.
type Config struct {
	ColdWait       ColdWait    `yaml:"cold_wait" toml:"cold_wait"`
	RefreshMode    RefreshMode `yaml:"refresh_mode" toml:"refresh_mode"`
	Timezone       string      `yaml:"timezone" toml:"timezone"`
	WarmDates      []string    `yaml:"warm_dates" toml:"warm_dates"`
	TTLMS          int         `yaml:"ttl_ms" toml:"ttl_ms"`
	MaxAttempts    int         `yaml:"max_attempts" toml:"max_attempts"`
	RetryDelayMS   int         `yaml:"retry_delay_ms" toml:"retry_delay_ms"`
	SWRMS          int         `yaml:"swr_ms" toml:"swr_ms"`
	WarmIntervalMS int         `yaml:"warm_interval_ms" toml:"warm_interval_ms"`
	PastDays       int         `yaml:"past_days" toml:"past_days"`
	FutureDays     int         `yaml:"future_days" toml:"future_days"`
}

// GetTTL returns how long a fetched value counts as fresh.
func (c *Config) GetTTL() time.Duration {
	if c.TTLMS <= 0 {
		return DefaultTTLMS * time.Millisecond
	}
	return time.Duration(c.TTLMS) * time.Millisecond
}

// GetMaxAttempts returns the retry budget per fetch.
func (c *Config) GetMaxAttempts() int {
	if c.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return c.MaxAttempts
}

// GetRetryDelay returns the pause between attempts.
func (c *Config) GetRetryDelay() time.Duration {
	if c.RetryDelayMS <= 0 {
		return DefaultRetryDelayMS * time.Millisecond
	}
	return time.Duration(c.RetryDelayMS) * time.Millisecond
}

// RetryOptions turns the retry settings into policy options.
func (c *Config) RetryOptions(attemptTimeout time.Duration) []retry.Option {
	return []retry.Option{
		retry.WithMaxAttempts(c.GetMaxAttempts()),
		retry.WithDelay(c.GetRetryDelay()),
		retry.WithAttemptTimeout(attemptTimeout),
	}
}

// GetSWR returns the stale-while-revalidate window advertised to CDNs.
func (c *Config) GetSWR() time.Duration {
	if c.SWRMS <= 0 {
		return DefaultSWRMS * time.Millisecond
	}
	return time.Duration(c.SWRMS) * time.Millisecond
}

// GetColdWait returns the cold wait behaviour, ColdWaitBlock when unset.
func (c *Config) GetColdWait() ColdWait {
	if c.ColdWait == "" {
		return ColdWaitBlock
	}
	return c.ColdWait
}

// GetRefreshMode returns the refresh mode, RefreshBlocking when unset.
func (c *Config) GetRefreshMode() RefreshMode {
	if c.RefreshMode == "" {
		return RefreshBlocking
	}
	return c.RefreshMode
}

// GetTimezone returns the zone used to resolve "today" and "tomorrow".
func (c *Config) GetTimezone() string {
	if c.Timezone == "" {
		return DefaultTimezone
	}
	return c.Timezone
}

// Location loads the configured time zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.GetTimezone())
	if err != nil {
		return nil, fmt.Errorf("stats: invalid timezone %q: %w", c.GetTimezone(), err)
	}
	return loc, nil
}

// GetWarmDates returns the dates the warmer keeps fresh.
func (c *Config) GetWarmDates() []string {
	if len(c.WarmDates) == 0 {
		return []string{DateToday}
	}
	return c.WarmDates
}

// GetWarmInterval returns the warmer period. Zero disables the warmer.
func (c *Config) GetWarmInterval() time.Duration {
	if c.WarmIntervalMS <= 0 {
		return 0
	}
	return time.Duration(c.WarmIntervalMS) * time.Millisecond
}

// Window returns the range of days around today that lookups may name.
// Zero or negative settings use the defaults.
func (c *Config) Window() Window {
	w := Window{Past: c.PastDays, Future: c.FutureDays}
	if w.Past <= 0 {
		w.Past = DefaultPastDays
	}
	if w.Future <= 0 {
		w.Future = DefaultFutureDays
	}
	return w
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if !lo.Contains([]ColdWait{ColdWaitBlock, ColdWaitReject}, c.GetColdWait()) {
		return fmt.Errorf("stats: cold_wait must be %q or %q, got %q", ColdWaitBlock, ColdWaitReject, c.ColdWait)
	}
	if !lo.Contains([]RefreshMode{RefreshBlocking, RefreshBackground}, c.GetRefreshMode()) {
		return fmt.Errorf("stats: refresh_mode must be %q or %q, got %q",
			RefreshBlocking, RefreshBackground, c.RefreshMode)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	for _, d := range c.WarmDates {
		if !ValidDateParam(d) {
			return fmt.Errorf("stats: invalid warm date %q", d)
		}
	}
	if c.PastDays < 0 || c.FutureDays < 0 {
		return fmt.Errorf("stats: past_days and future_days must be >= 0")
	}
	return nil
}
