package di

import (
	"net/http"

	"github.com/samber/do/v2"

	"github.com/R0zhkov/wrf/internal/metrics"
	"github.com/R0zhkov/wrf/internal/server"
	"github.com/R0zhkov/wrf/internal/stats"
)

// MetricsService holds the Prometheus collector. Collector is nil when
// metrics are disabled.
type MetricsService struct {
	Collector *metrics.Collector
}

// NewMetrics creates the collector unless metrics are disabled.
func NewMetrics(i do.Injector) (*MetricsService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)

	cfg := cfgSvc.Get().Metrics
	if !cfg.IsEnabled() {
		return &MetricsService{}, nil
	}
	return &MetricsService{Collector: metrics.NewCollector(cfg)}, nil
}

// Observer returns the cache observer, a no-op when disabled.
func (m *MetricsService) Observer() stats.Observer {
	if m.Collector == nil {
		return stats.NopObserver{}
	}
	return m.Collector
}

// HTTPObserver returns the request observer, nil when disabled.
// A nil *Collector must not leak into the interface.
func (m *MetricsService) HTTPObserver() server.HTTPObserver {
	if m.Collector == nil {
		return nil
	}
	return m.Collector
}

// Handler returns the /metrics handler, nil when disabled.
func (m *MetricsService) Handler() http.Handler {
	if m.Collector == nil {
		return nil
	}
	return m.Collector.Handler()
}
