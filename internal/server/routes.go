package server

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/R0zhkov/wrf/internal/stats"
)

// Routes holds what the HTTP surface needs.
type Routes struct {
	Service *stats.Service
	States  StateSource
	Logger  *zerolog.Logger

	// Metrics serves /metrics when non-nil.
	Metrics http.Handler
	// Observer receives per-request metrics when non-nil.
	Observer HTTPObserver
	// Limiter caps in-flight requests when non-nil.
	Limiter *ConcurrencyLimiter
	// CORSOrigins is read per request; nil allows any origin.
	CORSOrigins func() []string
}

// Handler builds the handler with all routes and middleware:
//
//	GET /                 dashboard page
//	GET /api/stats        counters for ?date=
//	OPTIONS /api/stats    CORS preflight
//	GET /health           liveness and circuit states
//	GET /metrics          Prometheus exposition
//
// Middleware order: request id, then logging, then the concurrency limit.
func (rt Routes) Handler() http.Handler {
	mux := http.NewServeMux()

	origins := rt.CORSOrigins
	if origins == nil {
		origins = func() []string { return []string{"*"} }
	}
	cors := CORSMiddleware(origins)

	statsHandler := cors(NewStatsHandler(rt.Service))
	mux.Handle("GET /api/stats", statsHandler)
	mux.Handle("OPTIONS /api/stats", statsHandler)

	mux.Handle("GET /{$}", PageHandler())
	mux.Handle("GET /health", HealthHandler(rt.States))
	if rt.Metrics != nil {
		mux.Handle("GET /metrics", rt.Metrics)
	}

	var handler http.Handler = mux
	if rt.Limiter != nil {
		handler = ConcurrencyMiddleware(rt.Limiter)(handler)
	}
	handler = LoggingMiddleware(rt.Observer)(handler)
	handler = RequestIDMiddleware()(handler)

	if rt.Logger != nil {
		base := rt.Logger
		next := handler
		handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(base.WithContext(r.Context())))
		})
	}
	return handler
}
