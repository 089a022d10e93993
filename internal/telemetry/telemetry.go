// Package telemetry installs the OpenTelemetry tracer provider. Upstream
// fetches open spans on the global provider; when tracing is disabled the
// default no-op provider stays in place.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// DefaultServiceName is reported as service.name.
const DefaultServiceName = "wrf"

// Config selects the OTLP/HTTP trace exporter.
type Config struct {
	Headers     map[string]string `yaml:"headers" toml:"headers"`
	Endpoint    string            `yaml:"endpoint" toml:"endpoint"`
	ServiceName string            `yaml:"service_name" toml:"service_name"`
	Enabled     bool              `yaml:"enabled" toml:"enabled"`
}

// GetServiceName returns the service name with default fallback.
func (c *Config) GetServiceName() string {
	if c.ServiceName == "" {
		return DefaultServiceName
	}
	return c.ServiceName
}

// Validate requires an absolute endpoint URL when tracing is enabled.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Endpoint == "" {
		return errors.New("telemetry: endpoint is required when enabled")
	}
	u, err := url.Parse(c.Endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("telemetry: endpoint must be an absolute URL (got %q)", c.Endpoint)
	}
	return nil
}

// ShutdownFunc flushes and stops the provider.
type ShutdownFunc func(ctx context.Context) error

// Setup installs a batching OTLP/HTTP tracer provider as the global one.
// With tracing disabled it changes nothing and returns a no-op shutdown.
func Setup(ctx context.Context, cfg Config, logger *zerolog.Logger) (ShutdownFunc, error) {
	noop := func(context.Context) error { return nil }
	if !cfg.Enabled {
		return noop, nil
	}
	if err := cfg.Validate(); err != nil {
		return noop, err
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.GetServiceName()),
		),
	)
	if err != nil {
		return noop, fmt.Errorf("telemetry: resource: %w", err)
	}

	exportCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	exporter, err := otlptracehttp.New(
		exportCtx,
		otlptracehttp.WithEndpointURL(cfg.Endpoint),
		otlptracehttp.WithHeaders(cfg.Headers),
	)
	if err != nil {
		return noop, fmt.Errorf("telemetry: exporter: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if logger != nil {
		logger.Info().
			Str("endpoint", cfg.Endpoint).
			Str("service", cfg.GetServiceName()).
			Bool("headers", len(cfg.Headers) > 0).
			Msg("trace exporter initialized")
	}

	return provider.Shutdown, nil
}
