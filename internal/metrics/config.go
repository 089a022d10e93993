// Package metrics exposes Prometheus metrics for the stats cache, upstream
// fetches and the HTTP surface.
package metrics

import (
	"errors"
	"regexp"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "wrf"

var namespacePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the /metrics endpoint.
type Config struct {
	Enabled   *bool  `yaml:"enabled" toml:"enabled"`
	Namespace string `yaml:"namespace" toml:"namespace"`
}

// IsEnabled returns whether metrics are collected and served. Default true.
func (c *Config) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// GetNamespace returns the metric namespace.
func (c *Config) GetNamespace() string {
	if c.Namespace == "" {
		return DefaultNamespace
	}
	return c.Namespace
}

// Validate checks the namespace is a legal metric name prefix.
func (c *Config) Validate() error {
	if !namespacePattern.MatchString(c.GetNamespace()) {
		return errors.New("metrics: namespace must match [a-zA-Z_][a-zA-Z0-9_]*")
	}
	return nil
}
