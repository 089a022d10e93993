package di

import (
	"context"
	"reflect"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/samber/do/v2"

	"github.com/R0zhkov/wrf/internal/config"
	"github.com/R0zhkov/wrf/internal/health"
	"github.com/R0zhkov/wrf/internal/upstream"
)

// liveClient is one built client together with the settings it came from.
type liveClient struct {
	client upstream.Client
	cfg    upstream.Config
}

// UpstreamService is the upstream.Client the stats loader fetches through.
// It delegates to a client built from the current configuration and swaps
// it when a reload changes the upstream section, so new credentials apply
// to the next fetch while a running fetch finishes on the old client.
type UpstreamService struct {
	current  atomic.Pointer[liveClient]
	sessions upstream.SessionCache
	tracker  *health.Tracker
	logger   *zerolog.Logger
}

// NewUpstream builds the client for the configured variant.
func NewUpstream(i do.Injector) (*UpstreamService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)
	sessionsSvc := do.MustInvoke[*SessionsService](i)
	trackerSvc := do.MustInvoke[*HealthTrackerService](i)
	loggerSvc := do.MustInvoke[*LoggerService](i)

	svc := &UpstreamService{
		sessions: sessionsSvc.Store,
		tracker:  trackerSvc.Tracker,
		logger:   loggerSvc.Logger,
	}
	if err := svc.rebuild(cfgSvc.Get()); err != nil {
		return nil, err
	}

	cfgSvc.OnReload(func(next *config.Config) error {
		prev := svc.current.Load()
		if prev != nil && reflect.DeepEqual(prev.cfg, next.Upstream) {
			return nil
		}
		if err := svc.rebuild(next); err != nil {
			return err
		}
		svc.logger.Info().Str("upstream", svc.Name()).Msg("upstream client rebuilt after reload")
		return nil
	})
	return svc, nil
}

func (s *UpstreamService) rebuild(cfg *config.Config) error {
	client, err := upstream.New(cfg.Upstream, s.sessions, s.logger)
	if err != nil {
		return err
	}
	if !cfg.Health.CircuitBreaker.Disabled {
		client = upstream.WithBreaker(client, s.tracker.Circuit(client.Name()))
	}
	s.current.Store(&liveClient{client: client, cfg: cfg.Upstream})
	return nil
}

// Name implements upstream.Client.
func (s *UpstreamService) Name() string {
	return s.current.Load().client.Name()
}

// Fetch implements upstream.Client.
func (s *UpstreamService) Fetch(ctx context.Context, q upstream.Query) (upstream.Counters, error) {
	return s.current.Load().client.Fetch(ctx, q)
}

var _ upstream.Client = (*UpstreamService)(nil)
