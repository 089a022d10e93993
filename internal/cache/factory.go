package cache

import (
	"fmt"

	"github.com/rs/zerolog"
)

// New creates the Store selected by cfg.Mode.
func New(cfg *Config, logger *zerolog.Logger) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := zerolog.Nop()
	if logger != nil {
		log = logger.With().Str("component", "session_cache").Logger()
	}

	switch cfg.GetMode() {
	case ModeMemory:
		store, err := newRistrettoStore(cfg.GetRistretto(), log)
		if err != nil {
			return nil, fmt.Errorf("cache: create ristretto store: %w", err)
		}
		return store, nil
	case ModeDisabled:
		log.Info().Msg("session cache disabled, every fetch logs in")
		return &noopStore{}, nil
	default:
		return nil, fmt.Errorf("cache: unknown mode %q", cfg.Mode)
	}
}
