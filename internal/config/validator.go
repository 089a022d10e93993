package config

import (
	"net"
	"strings"

	"github.com/samber/lo"
)

var validLogLevels = []string{"", LevelDebug, LevelInfo, LevelWarn, LevelError}

var validLogFormats = []string{"", "json", "console", "text", "pretty"}

// Validate checks the configuration for errors.
// Returns a ValidationError containing all errors found, or nil if valid.
func (c *Config) Validate() error {
	errs := &ValidationError{}

	validateServer(c, errs)
	validateLogging(c, errs)

	errs.AddErr(c.Upstream.Validate())
	errs.AddErr(c.Stats.Validate())
	errs.AddErr(c.Cache.Validate())
	errs.AddErr(c.Metrics.Validate())
	errs.AddErr(c.Telemetry.Validate())

	if c.Health.CircuitBreaker.FailureThreshold < 0 {
		errs.Add("health.circuit_breaker.failure_threshold must be >= 0")
	}
	if c.Health.Probe.IntervalMS < 0 || c.Health.Probe.TimeoutMS < 0 {
		errs.Add("health.probe intervals must be >= 0")
	}

	return errs.ToError()
}

func validateServer(c *Config, errs *ValidationError) {
	validateListenAddress(c.Server.GetListen(), errs)

	if c.Server.TimeoutMS < 0 {
		errs.Add("server.timeout_ms must be >= 0")
	}
	if c.Server.MaxConcurrent < 0 {
		errs.Add("server.max_concurrent must be >= 0")
	}
}

// validateListenAddress validates a listen address in host:port format.
func validateListenAddress(addr string, errs *ValidationError) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		errs.Addf("server.listen must be in host:port format (got %q)", addr)
		return
	}
	if host != "" && net.ParseIP(host) == nil && strings.ContainsAny(host, " \t\n") {
		errs.Add("server.listen host contains invalid characters")
	}
	if port == "" {
		errs.Add("server.listen port is required")
	}
}

func validateLogging(c *Config, errs *ValidationError) {
	if !lo.Contains(validLogLevels, strings.ToLower(c.Logging.Level)) {
		errs.Addf("logging.level must be one of debug, info, warn, error (got %q)", c.Logging.Level)
	}
	if !lo.Contains(validLogFormats, strings.ToLower(c.Logging.Format)) {
		errs.Addf("logging.format must be json or console (got %q)", c.Logging.Format)
	}
}
