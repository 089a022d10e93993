package di

import (
	"github.com/rs/zerolog/log"
	"github.com/samber/do/v2"

	"github.com/R0zhkov/wrf/internal/config"
	"github.com/R0zhkov/wrf/internal/server"
)

// ConcurrencyService wraps the in-flight request limiter for DI.
type ConcurrencyService struct {
	Limiter *server.ConcurrencyLimiter
}

// NewConcurrencyService creates the limiter and keeps its limit in step
// with reloads.
func NewConcurrencyService(i do.Injector) (*ConcurrencyService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)

	limit := int64(cfgSvc.Get().Server.GetMaxConcurrentOption().OrElse(0))
	svc := &ConcurrencyService{Limiter: server.NewConcurrencyLimiter(limit)}

	cfgSvc.OnReload(func(next *config.Config) error {
		newLimit := int64(next.Server.GetMaxConcurrentOption().OrElse(0))
		oldLimit := svc.Limiter.GetLimit()
		if newLimit != oldLimit {
			svc.Limiter.SetLimit(newLimit)
			log.Info().
				Int64("old_limit", oldLimit).
				Int64("new_limit", newLimit).
				Msg("concurrency limit updated via hot-reload")
		}
		return nil
	})
	return svc, nil
}
