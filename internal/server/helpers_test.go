package server_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/R0zhkov/wrf/internal/server"
	"github.com/R0zhkov/wrf/internal/stats"
	"github.com/R0zhkov/wrf/internal/upstream"
)

var testNow = time.Date(2025, 3, 8, 10, 0, 0, 0, time.UTC)

// loaderFunc adapts a function of the date key to stats.Loader.
type loaderFunc func(ctx context.Context, key string) (upstream.Counters, error)

type fixture struct {
	clock   clockwork.FakeClock
	cache   *stats.Cache
	service *stats.Service
	handler http.Handler
}

func newFixture(t *testing.T, load loaderFunc, configure func(*server.Routes), opts ...stats.Option) *fixture {
	t.Helper()
	clock := clockwork.NewFakeClockAt(testNow)
	cache := stats.New(stats.Loader(load), append([]stats.Option{stats.WithClock(clock)}, opts...)...)
	t.Cleanup(func() { _ = cache.Close() })

	settings := &stats.Config{}
	service := stats.NewService(cache, func() *stats.Config { return settings }, time.UTC, clock)

	routes := server.Routes{Service: service}
	if configure != nil {
		configure(&routes)
	}
	return &fixture{clock: clock, cache: cache, service: service, handler: routes.Handler()}
}

func (f *fixture) do(t *testing.T, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func constant(c upstream.Counters) loaderFunc {
	return func(context.Context, string) (upstream.Counters, error) { return c, nil }
}

// gate blocks loads until released.
type gate struct {
	started chan string
	release chan struct{}
	once    sync.Once
}

func newGate() *gate {
	return &gate{started: make(chan string, 16), release: make(chan struct{})}
}

func (g *gate) open() { g.once.Do(func() { close(g.release) }) }

func (g *gate) load(value upstream.Counters) loaderFunc {
	return func(ctx context.Context, key string) (upstream.Counters, error) {
		g.started <- key
		select {
		case <-g.release:
			return value, nil
		case <-ctx.Done():
			return upstream.Counters{}, ctx.Err()
		}
	}
}

func requireJSONError(t *testing.T, rec *httptest.ResponseRecorder, status int) string {
	t.Helper()
	require.Equal(t, status, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	return rec.Body.String()
}
