// Package health guards upstream attempts with a circuit breaker and probes
// the upstream while the circuit is open.
//
// A run of consecutive failed attempts opens the circuit, and fetches then
// fail fast as unreachable instead of hammering a dashboard that is down.
// After the open duration a few probe attempts are let through (half-open);
// if they succeed the circuit closes again.
package health

import "time"

// Default configuration values.
const (
	DefaultFailureThreshold = 5     // consecutive failed attempts that open the circuit
	DefaultOpenDurationMS   = 30000 // time before half-open
	DefaultHalfOpenProbes   = 1     // attempts allowed while half-open
	DefaultProbeIntervalMS  = 15000
	DefaultProbeTimeoutMS   = 5000
	DefaultProbeEnabled     = true
)

// CircuitBreakerConfig defines circuit breaker behavior.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failed attempts before the
	// circuit opens. Default: 5
	FailureThreshold int `yaml:"failure_threshold" toml:"failure_threshold"`

	// OpenDurationMS is how long the circuit stays open. Default: 30000
	OpenDurationMS int `yaml:"open_duration_ms" toml:"open_duration_ms"`

	// HalfOpenProbes is the number of attempts let through while half-open.
	// Default: 1
	HalfOpenProbes int `yaml:"half_open_probes" toml:"half_open_probes"`

	// Disabled turns the breaker off entirely.
	Disabled bool `yaml:"disabled" toml:"disabled"`
}

// GetFailureThreshold returns the configured failure threshold or the default.
func (c *CircuitBreakerConfig) GetFailureThreshold() int {
	if c.FailureThreshold <= 0 {
		return DefaultFailureThreshold
	}
	return c.FailureThreshold
}

// GetOpenDuration returns the open duration.
func (c *CircuitBreakerConfig) GetOpenDuration() time.Duration {
	if c.OpenDurationMS <= 0 {
		return time.Duration(DefaultOpenDurationMS) * time.Millisecond
	}
	return time.Duration(c.OpenDurationMS) * time.Millisecond
}

// GetHalfOpenProbes returns the configured half-open probes or the default.
func (c *CircuitBreakerConfig) GetHalfOpenProbes() int {
	if c.HalfOpenProbes <= 0 {
		return DefaultHalfOpenProbes
	}
	return c.HalfOpenProbes
}

// ProbeConfig defines the recovery probe.
type ProbeConfig struct {
	Enabled    *bool `yaml:"enabled" toml:"enabled"`
	IntervalMS int   `yaml:"interval_ms" toml:"interval_ms"`
	TimeoutMS  int   `yaml:"timeout_ms" toml:"timeout_ms"`
}

// GetInterval returns the probe interval.
func (c *ProbeConfig) GetInterval() time.Duration {
	if c.IntervalMS <= 0 {
		return time.Duration(DefaultProbeIntervalMS) * time.Millisecond
	}
	return time.Duration(c.IntervalMS) * time.Millisecond
}

// GetTimeout returns the timeout of a single probe.
func (c *ProbeConfig) GetTimeout() time.Duration {
	if c.TimeoutMS <= 0 {
		return time.Duration(DefaultProbeTimeoutMS) * time.Millisecond
	}
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// IsEnabled returns whether probing is enabled. True when unset.
func (c *ProbeConfig) IsEnabled() bool {
	if c.Enabled == nil {
		return DefaultProbeEnabled
	}
	return *c.Enabled
}

// Config combines circuit breaker and probe configuration.
type Config struct {
	Probe          ProbeConfig          `yaml:"probe" toml:"probe"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker" toml:"circuit_breaker"`
}
