package di

import (
	"github.com/samber/do/v2"

	"github.com/R0zhkov/wrf/internal/retry"
	"github.com/R0zhkov/wrf/internal/stats"
)

// StatsService holds the counters cache, the lookup service in front of it,
// and the warmer that keeps configured dates fresh.
type StatsService struct {
	Cache   *stats.Cache
	Service *stats.Service
	Warmer  *stats.Warmer
}

// NewStats wires the loader, cache, and service. TTL, SWR and retry settings
// follow reloads; cold-wait, refresh mode and timezone need a restart.
func NewStats(i do.Injector) (*StatsService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)
	upstreamSvc := do.MustInvoke[*UpstreamService](i)
	metricsSvc := do.MustInvoke[*MetricsService](i)
	loggerSvc := do.MustInvoke[*LoggerService](i)

	cfg := cfgSvc.Get()
	loc, err := cfg.Stats.Location()
	if err != nil {
		return nil, err
	}
	observer := metricsSvc.Observer()

	loader := stats.NewLoader(stats.LoaderConfig{
		Client:   upstreamSvc,
		Observer: observer,
		Logger:   loggerSvc.Logger,
		Location: loc,
		RetryOptions: func() []retry.Option {
			current := cfgSvc.Get()
			return current.Stats.RetryOptions(current.Upstream.GetAttemptTimeout())
		},
	})

	cache := stats.New(loader,
		stats.WithObserver(observer),
		stats.WithLogger(loggerSvc.Logger),
		stats.WithColdWait(cfg.Stats.GetColdWait()),
		stats.WithRefreshMode(cfg.Stats.GetRefreshMode()),
	)
	service := stats.NewService(cache, func() *stats.Config { return &cfgSvc.Get().Stats }, loc, nil)
	warmer := stats.NewWarmer(service, cfg.Stats.GetWarmDates(), cfg.Stats.GetWarmInterval(), nil, loggerSvc.Logger)

	return &StatsService{Cache: cache, Service: service, Warmer: warmer}, nil
}

// Shutdown cancels running fetches.
func (s *StatsService) Shutdown() error {
	return s.Cache.Close()
}
