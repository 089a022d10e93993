package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/R0zhkov/wrf/internal/stats"
	"github.com/R0zhkov/wrf/internal/upstream"
)

// Cache event label values.
const (
	EventHit   = "hit"
	EventStale = "stale"
	EventMiss  = "miss"
	EventBusy  = "busy"
)

// Collector records metrics on its own registry. It implements
// stats.Observer so the cache reports into it directly.
type Collector struct {
	registry *prometheus.Registry

	cacheEvents   *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	fetchErrors   *prometheus.CounterVec
	retries       *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
}

var _ stats.Observer = (*Collector)(nil)

// NewCollector creates a Collector with the Go and process collectors
// registered alongside the service metrics.
func NewCollector(cfg Config) *Collector {
	ns := cfg.GetNamespace()
	c := &Collector{
		registry: prometheus.NewRegistry(),
		cacheEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "stats_cache",
			Name:      "events_total",
			Help:      "Stats cache lookups by outcome.",
		}, []string{"event"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: "upstream",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of upstream fetches including retries.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 90},
		}, []string{"outcome"}),
		fetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "upstream",
			Name:      "fetch_errors_total",
			Help:      "Upstream fetches that failed after all attempts, by kind.",
		}, []string{"kind"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "upstream",
			Name:      "retries_total",
			Help:      "Failed attempts followed by a retry, by kind.",
		}, []string{"kind"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests served, by route and status code.",
		}, []string{"route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.cacheEvents,
		c.fetchDuration,
		c.fetchErrors,
		c.retries,
		c.httpRequests,
		c.httpDuration,
	)
	return c
}

// Registry returns the registry the collector writes to.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Hit implements stats.Observer.
func (c *Collector) Hit(string) { c.cacheEvents.WithLabelValues(EventHit).Inc() }

// Stale implements stats.Observer.
func (c *Collector) Stale(string) { c.cacheEvents.WithLabelValues(EventStale).Inc() }

// Miss implements stats.Observer.
func (c *Collector) Miss(string) { c.cacheEvents.WithLabelValues(EventMiss).Inc() }

// Busy implements stats.Observer.
func (c *Collector) Busy(string) { c.cacheEvents.WithLabelValues(EventBusy).Inc() }

// Fetched implements stats.Observer.
func (c *Collector) Fetched(_ string, elapsed time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
		c.fetchErrors.WithLabelValues(kindLabel(err)).Inc()
	}
	c.fetchDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// Retried implements stats.Observer.
func (c *Collector) Retried(_ string, _ int, err error) {
	c.retries.WithLabelValues(kindLabel(err)).Inc()
}

// ObserveHTTP records one served request.
func (c *Collector) ObserveHTTP(route string, status int, elapsed time.Duration) {
	c.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

func kindLabel(err error) string {
	if kind, ok := upstream.KindOf(err); ok {
		return string(kind)
	}
	return "internal"
}
