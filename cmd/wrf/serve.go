package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/samber/ro"
	"github.com/spf13/cobra"

	"github.com/R0zhkov/wrf/internal/di"
	"github.com/R0zhkov/wrf/internal/lifecycle"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the wrf HTTP server",
	Long: `Start the server that answers /api/stats from the per-date cache,
serves the dashboard page, and exposes /health and /metrics.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	return serve(cmd.Context(), cfgFile, lifecycle.Signals(lifecycle.ShutdownSignals...), nil)
}

// serve runs the server until stop emits, ctx ends, or the listener fails.
// ready, when set, is called with the bound address once requests are
// accepted.
func serve(ctx context.Context, configPath string, stop ro.Observable[os.Signal], ready func(addr string)) error {
	container, err := di.NewContainer(configPath)
	if err != nil {
		log.Error().Err(err).Str("path", configPath).Msg("failed to load config")
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := container.ShutdownWithContext(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown error")
		}
	}()

	logger := di.MustInvoke[*di.LoggerService](container).Logger
	log.Logger = *logger
	zerolog.DefaultContextLogger = logger

	if _, err := di.Invoke[*di.TelemetryService](container); err != nil {
		return fmt.Errorf("failed to set up telemetry: %w", err)
	}
	if err := container.HealthCheck(); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfgSvc := di.MustInvoke[*di.ConfigService](container)
	cfgSvc.StartWatching(runCtx)
	di.MustInvoke[*di.CheckerService](container).Start()
	go di.MustInvoke[*di.StatsService](container).Warmer.Run(runCtx)

	srv := di.MustInvoke[*di.ServerService](container).Server
	listener, err := net.Listen("tcp", srv.Addr())
	if err != nil {
		return fmt.Errorf("listen %s: %w", srv.Addr(), err)
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(listener) }()

	addr := listener.Addr().String()
	log.Info().Str("listen", addr).Str("config", cfgSvc.Path()).Msg("starting wrf")
	if ready != nil {
		ready(addr)
	}

	stopped := make(chan os.Signal, 1)
	go func() {
		sig, _ := lifecycle.Wait(runCtx, stop)
		stopped <- sig
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			log.Error().Err(err).Msg("server error")
			return err
		}
		return errors.New("server stopped unexpectedly")
	case sig := <-stopped:
		if sig != nil {
			log.Info().Str("signal", sig.String()).Msg("shutting down...")
		} else {
			log.Info().Msg("shutting down...")
		}
	}

	cancel()
	log.Info().Msg("server stopped")
	return nil
}
