package di

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/samber/do/v2"

	"github.com/R0zhkov/wrf/internal/config"
)

// ConfigService holds the configuration in effect and the file watcher that
// replaces it. Reads go through the atomic Runtime, so a request in flight
// keeps the configuration it started with.
type ConfigService struct {
	runtime *config.Runtime
	watcher *config.Watcher
	path    string
}

// Get returns the current configuration.
func (c *ConfigService) Get() *config.Config {
	return c.runtime.Get()
}

// Path returns the config file in use, "" when running on defaults.
func (c *ConfigService) Path() string {
	return c.path
}

// OnReload registers cb for every accepted reload. It is a no-op when no
// file is being watched.
func (c *ConfigService) OnReload(cb config.ReloadCallback) {
	if c.watcher != nil {
		c.watcher.OnReload(cb)
	}
}

// StartWatching watches the config file until ctx ends. Call it after the
// container is fully built so every service has registered its callback.
func (c *ConfigService) StartWatching(ctx context.Context) {
	if c.watcher == nil {
		return
	}

	go func() {
		if err := c.watcher.Watch(ctx); err != nil {
			log.Error().Err(err).Msg("config watcher error")
		}
	}()

	log.Info().Str("path", c.path).Msg("config file watcher started")
}

// Shutdown implements do.Shutdowner.
func (c *ConfigService) Shutdown() error {
	if c.watcher != nil {
		return c.watcher.Close()
	}
	return nil
}

// NewConfig resolves, validates, and starts tracking the configuration.
func NewConfig(i do.Injector) (*ConfigService, error) {
	path := do.MustInvokeNamed[string](i, ConfigPathKey)

	cfg, resolved, err := config.Resolve(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	svc := &ConfigService{runtime: config.NewRuntime(cfg), path: resolved}
	if resolved == "" {
		return svc, nil
	}

	// Hot-reload is optional; a watcher failure only disables it.
	watcher, err := config.NewWatcher(resolved)
	if err != nil {
		log.Warn().Err(err).Str("path", resolved).Msg("config watcher creation failed, hot-reload disabled")
		return svc, nil
	}
	svc.watcher = watcher
	watcher.OnReload(func(next *config.Config) error {
		svc.runtime.Store(next)
		return nil
	})
	return svc, nil
}
