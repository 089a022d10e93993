package di

import (
	"net/http"

	"github.com/go-resty/resty/v2"
	"github.com/samber/do/v2"

	"github.com/R0zhkov/wrf/internal/config"
	"github.com/R0zhkov/wrf/internal/health"
	"github.com/R0zhkov/wrf/internal/version"
)

// HealthTrackerService wraps the circuit breaker tracker for DI.
type HealthTrackerService struct {
	Tracker *health.Tracker
}

// NewHealthTracker creates the tracker. Breaker settings are read once.
func NewHealthTracker(i do.Injector) (*HealthTrackerService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)
	loggerSvc := do.MustInvoke[*LoggerService](i)

	tracker := health.NewTracker(cfgSvc.Get().Health.CircuitBreaker, loggerSvc.Logger)
	return &HealthTrackerService{Tracker: tracker}, nil
}

// CheckerService wraps the recovery prober for DI.
type CheckerService struct {
	Checker *health.Checker
}

// NewChecker creates the prober and registers the configured upstream.
// A reload that moves the upstream re-registers its probe.
func NewChecker(i do.Injector) (*CheckerService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)
	trackerSvc := do.MustInvoke[*HealthTrackerService](i)
	loggerSvc := do.MustInvoke[*LoggerService](i)

	cfg := cfgSvc.Get()
	checker := health.NewChecker(trackerSvc.Tracker, cfg.Health.Probe, nil, loggerSvc.Logger)
	checker.Register(upstreamProbe(cfg))

	cfgSvc.OnReload(func(next *config.Config) error {
		checker.Register(upstreamProbe(next))
		return nil
	})
	return &CheckerService{Checker: checker}, nil
}

// Start launches the probe loop.
func (c *CheckerService) Start() {
	c.Checker.Start()
}

// Shutdown implements do.Shutdowner.
func (c *CheckerService) Shutdown() {
	c.Checker.Stop()
}

func upstreamProbe(cfg *config.Config) *health.HTTPProbe {
	client := resty.New().
		SetTimeout(cfg.Health.Probe.GetTimeout()).
		SetHeader("User-Agent", version.UserAgent()).
		SetRedirectPolicy(resty.RedirectPolicyFunc(func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}))
	return health.NewHTTPProbe(string(cfg.Upstream.GetKind()), cfg.Upstream.GetBaseURL(), client)
}
