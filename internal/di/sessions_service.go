package di

import (
	"fmt"

	"github.com/samber/do/v2"

	"github.com/R0zhkov/wrf/internal/cache"
)

// SessionsService holds the store that keeps upstream login sessions.
type SessionsService struct {
	Store cache.Store
}

// NewSessions creates the session store from configuration.
func NewSessions(i do.Injector) (*SessionsService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)
	loggerSvc := do.MustInvoke[*LoggerService](i)

	cfg := cfgSvc.Get().Cache
	store, err := cache.New(&cfg, loggerSvc.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create session cache: %w", err)
	}
	return &SessionsService{Store: store}, nil
}

// Shutdown implements do.Shutdowner.
func (s *SessionsService) Shutdown() error {
	return s.Store.Close()
}
