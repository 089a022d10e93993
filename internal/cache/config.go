package cache

import (
	"errors"
	"fmt"
)

// Mode selects the session store backend.
type Mode string

const (
	// ModeMemory keeps sessions in a local Ristretto cache (default).
	ModeMemory Mode = "memory"

	// ModeDisabled keeps nothing; every fetch logs in again.
	ModeDisabled Mode = "disabled"
)

// Config defines the session store.
type Config struct {
	Mode      Mode            `yaml:"mode" toml:"mode"`
	Ristretto RistrettoConfig `yaml:"ristretto" toml:"ristretto"`
}

// RistrettoConfig sizes the Ristretto cache.
type RistrettoConfig struct {
	// NumCounters should be about ten times the expected number of keys.
	NumCounters int64 `yaml:"num_counters" toml:"num_counters"`

	// MaxCost is the byte budget for cached values.
	MaxCost int64 `yaml:"max_cost" toml:"max_cost"`

	BufferItems int64 `yaml:"buffer_items" toml:"buffer_items"`
}

// GetMode returns the configured mode, ModeMemory when unset.
func (c *Config) GetMode() Mode {
	if c.Mode == "" {
		return ModeMemory
	}
	return c.Mode
}

// GetRistretto returns the Ristretto settings with defaults filled in.
func (c *Config) GetRistretto() RistrettoConfig {
	r := c.Ristretto
	def := DefaultRistrettoConfig()
	if r.NumCounters == 0 {
		r.NumCounters = def.NumCounters
	}
	if r.MaxCost == 0 {
		r.MaxCost = def.MaxCost
	}
	if r.BufferItems <= 0 {
		r.BufferItems = def.BufferItems
	}
	return r
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.GetMode() {
	case ModeMemory:
		r := c.GetRistretto()
		if r.MaxCost < 0 {
			return errors.New("cache: ristretto.max_cost must be positive")
		}
		if r.NumCounters < 0 {
			return errors.New("cache: ristretto.num_counters must be positive")
		}
	case ModeDisabled:
	default:
		return fmt.Errorf("cache: unknown mode %q", c.Mode)
	}
	return nil
}

// DefaultRistrettoConfig sizes the cache for a few hundred sessions.
func DefaultRistrettoConfig() RistrettoConfig {
	return RistrettoConfig{
		NumCounters: 10_000,
		MaxCost:     1 << 20, // 1 MB.
		BufferItems: 64,
	}
}
