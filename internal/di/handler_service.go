package di

import (
	"context"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/R0zhkov/wrf/internal/server"
)

// HandlerService wraps the HTTP handler.
type HandlerService struct {
	Handler http.Handler
}

// NewHandler builds the routes with all middleware.
func NewHandler(i do.Injector) (*HandlerService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)
	statsSvc := do.MustInvoke[*StatsService](i)
	trackerSvc := do.MustInvoke[*HealthTrackerService](i)
	metricsSvc := do.MustInvoke[*MetricsService](i)
	concurrencySvc := do.MustInvoke[*ConcurrencyService](i)
	loggerSvc := do.MustInvoke[*LoggerService](i)

	routes := server.Routes{
		Service:  statsSvc.Service,
		States:   trackerSvc.Tracker,
		Logger:   loggerSvc.Logger,
		Metrics:  metricsSvc.Handler(),
		Observer: metricsSvc.HTTPObserver(),
		Limiter:  concurrencySvc.Limiter,
		CORSOrigins: func() []string {
			return cfgSvc.Get().Server.GetCORSOrigins()
		},
	}
	return &HandlerService{Handler: routes.Handler()}, nil
}

// ServerService wraps the HTTP server.
type ServerService struct {
	Server *server.Server
}

// NewHTTPServer creates the server. Listen address, write timeout and h2c
// are read once.
func NewHTTPServer(i do.Injector) (*ServerService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)
	handlerSvc := do.MustInvoke[*HandlerService](i)

	cfg := cfgSvc.Get().Server
	srv := server.NewServer(
		cfg.GetListen(),
		handlerSvc.Handler,
		cfg.GetTimeoutOption().OrElse(server.DefaultWriteTimeout),
		cfg.EnableHTTP2,
	)
	return &ServerService{Server: srv}, nil
}

// Shutdown implements do.ShutdownerWithContextAndError.
func (s *ServerService) Shutdown(ctx context.Context) error {
	return s.Server.Shutdown(ctx)
}
