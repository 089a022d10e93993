package di

import (
	"context"
	"time"

	"github.com/samber/do/v2"

	"github.com/R0zhkov/wrf/internal/telemetry"
)

const telemetryFlushTimeout = 5 * time.Second

// TelemetryService owns the tracer provider installed by telemetry.Setup.
type TelemetryService struct {
	shutdown telemetry.ShutdownFunc
}

// NewTelemetry installs the OTLP tracer provider when telemetry is enabled.
func NewTelemetry(i do.Injector) (*TelemetryService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)
	loggerSvc := do.MustInvoke[*LoggerService](i)

	shutdown, err := telemetry.Setup(context.Background(), cfgSvc.Get().Telemetry, loggerSvc.Logger)
	if err != nil {
		return nil, err
	}
	return &TelemetryService{shutdown: shutdown}, nil
}

// Shutdown flushes pending spans.
func (t *TelemetryService) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), telemetryFlushTimeout)
	defer cancel()
	return t.shutdown(ctx)
}
