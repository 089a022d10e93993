// Package config provides configuration loading, validation, and hot-reload for wrf.
package config

import (
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/mo"

	"github.com/R0zhkov/wrf/internal/cache"
	"github.com/R0zhkov/wrf/internal/health"
	"github.com/R0zhkov/wrf/internal/metrics"
	"github.com/R0zhkov/wrf/internal/stats"
	"github.com/R0zhkov/wrf/internal/telemetry"
	"github.com/R0zhkov/wrf/internal/upstream"
)

// RuntimeConfig gives access to the configuration currently in effect.
// Components that must follow hot-reload hold this instead of a *Config.
type RuntimeConfig interface {
	Get() *Config
}

// Log level constants.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// DefaultListen matches the port the dashboard has always been served on.
const DefaultListen = "0.0.0.0:3000"

// Config represents the complete wrf configuration.
type Config struct {
	Upstream  upstream.Config  `yaml:"upstream" toml:"upstream"`
	Stats     stats.Config     `yaml:"stats" toml:"stats"`
	Health    health.Config    `yaml:"health" toml:"health"`
	Cache     cache.Config     `yaml:"cache" toml:"cache"`
	Metrics   metrics.Config   `yaml:"metrics" toml:"metrics"`
	Telemetry telemetry.Config `yaml:"telemetry" toml:"telemetry"`
	Logging   LoggingConfig    `yaml:"logging" toml:"logging"`
	Server    ServerConfig     `yaml:"server" toml:"server"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Listen: DefaultListen},
		Logging: LoggingConfig{
			Level:  LevelInfo,
			Format: "console",
			Output: "stdout",
		},
	}
}

// ServerConfig defines server-level settings.
type ServerConfig struct {
	Listen        string   `yaml:"listen" toml:"listen"`
	CORSOrigins   []string `yaml:"cors_origins" toml:"cors_origins"`
	TimeoutMS     int      `yaml:"timeout_ms" toml:"timeout_ms"`
	MaxConcurrent int      `yaml:"max_concurrent" toml:"max_concurrent"`
	EnableHTTP2   bool     `yaml:"enable_http2" toml:"enable_http2"` // h2c
}

// GetListen returns the listen address, DefaultListen when unset.
func (s *ServerConfig) GetListen() string {
	if s.Listen == "" {
		return DefaultListen
	}
	return s.Listen
}

// GetTimeoutOption returns the server write timeout.
// Returns None if TimeoutMS is zero (use default).
func (s *ServerConfig) GetTimeoutOption() mo.Option[time.Duration] {
	if s.TimeoutMS <= 0 {
		return mo.None[time.Duration]()
	}
	return mo.Some(time.Duration(s.TimeoutMS) * time.Millisecond)
}

// GetMaxConcurrentOption returns the in-flight request cap.
// Returns None if MaxConcurrent is zero (unlimited).
func (s *ServerConfig) GetMaxConcurrentOption() mo.Option[int] {
	if s.MaxConcurrent <= 0 {
		return mo.None[int]()
	}
	return mo.Some(s.MaxConcurrent)
}

// GetCORSOrigins returns the allowed origins for /api/, "*" when unset.
func (s *ServerConfig) GetCORSOrigins() []string {
	if len(s.CORSOrigins) == 0 {
		return []string{"*"}
	}
	return s.CORSOrigins
}

// LoggingConfig defines logging behavior.
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`   // debug, info, warn, error
	Format string `yaml:"format" toml:"format"` // json, console
	Output string `yaml:"output" toml:"output"` // stdout, stderr, or file path
	Pretty bool   `yaml:"pretty" toml:"pretty"` // colored console output
}

// ParseLevel converts the configured level to zerolog.Level.
// Returns zerolog.InfoLevel if the level string is invalid.
func (l *LoggingConfig) ParseLevel() zerolog.Level {
	switch strings.ToLower(l.Level) {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
