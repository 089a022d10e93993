package metrics_test

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R0zhkov/wrf/internal/metrics"
	"github.com/R0zhkov/wrf/internal/upstream"
)

func TestCollectorCountsCacheEvents(t *testing.T) {
	t.Parallel()

	c := metrics.NewCollector(metrics.Config{})
	c.Hit("2025-03-08")
	c.Hit("2025-03-08")
	c.Stale("2025-03-08")
	c.Miss("2025-03-09")
	c.Busy("2025-03-09")

	count, err := testutil.GatherAndCount(c.Registry(), "wrf_stats_cache_events_total")
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	body := scrape(t, c)
	assert.Contains(t, body, `wrf_stats_cache_events_total{event="hit"} 2`)
	assert.Contains(t, body, `wrf_stats_cache_events_total{event="busy"} 1`)
}

func TestCollectorLabelsFetchErrorsByKind(t *testing.T) {
	t.Parallel()

	c := metrics.NewCollector(metrics.Config{Namespace: "test"})
	c.Fetched("k", time.Second, nil)
	c.Fetched("k", 2*time.Second, upstream.NewError(upstream.KindAuthFailed, "login", nil))
	c.Fetched("k", time.Second, errors.New("plain"))
	c.Retried("k", 1, upstream.NewError(upstream.KindUnreachable, "dial", nil))

	body := scrape(t, c)
	assert.Contains(t, body, `test_upstream_fetch_errors_total{kind="auth_failed"} 1`)
	assert.Contains(t, body, `test_upstream_fetch_errors_total{kind="internal"} 1`)
	assert.Contains(t, body, `test_upstream_retries_total{kind="unreachable"} 1`)
	assert.Contains(t, body, `test_upstream_fetch_duration_seconds_count{outcome="error"} 2`)
}

func TestCollectorObservesHTTP(t *testing.T) {
	t.Parallel()

	c := metrics.NewCollector(metrics.Config{})
	c.ObserveHTTP("/api/stats", http.StatusOK, 10*time.Millisecond)
	c.ObserveHTTP("/api/stats", http.StatusServiceUnavailable, time.Millisecond)

	body := scrape(t, c)
	assert.Contains(t, body, `wrf_http_requests_total{code="200",route="/api/stats"} 1`)
	assert.Contains(t, body, `wrf_http_requests_total{code="503",route="/api/stats"} 1`)
}

func TestConfig(t *testing.T) {
	t.Parallel()

	var cfg metrics.Config
	assert.True(t, cfg.IsEnabled())
	assert.Equal(t, "wrf", cfg.GetNamespace())
	require.NoError(t, cfg.Validate())

	off := false
	cfg.Enabled = &off
	cfg.Namespace = "bad-name"
	assert.False(t, cfg.IsEnabled())
	require.Error(t, cfg.Validate())
}

func scrape(t *testing.T, c *metrics.Collector) string {
	t.Helper()
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}
