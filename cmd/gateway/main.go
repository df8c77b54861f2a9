// Package main runs the gateway tier: the public HTTP surface that forwards
// photo operations to the backend, propagating the trace context and
// absorbing backend faults.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"

	"github.com/mearth/photosync/internal/config"
	"github.com/mearth/photosync/internal/gateway"
	"github.com/mearth/photosync/internal/router"
	"github.com/mearth/photosync/internal/telemetry"
	"github.com/mearth/photosync/internal/tracectx"
)

const initializationTimeout = 5 * time.Second

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		cancel() // Cancel root context when os.Exit() is called.
		log.Fatal().Err(err).Msg("failed to run service")
	}
}

func run(ctx context.Context) error {
	var shutdownSignalDeadline time.Time

	initCtx, initCancel := context.WithTimeout(ctx, initializationTimeout)
	defer initCancel()

	// Configuration
	cfg, err := config.LoadGateway(initCtx)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Logging
	zerolog.SetGlobalLevel(cfg.LogLevel)
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if cfg.Environment == "local" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	log.Logger = log.With().Str("service", cfg.ServiceName).Logger()

	// Telemetry
	telemetryManager := telemetry.NewManager(initCtx, telemetry.Options{
		ServiceName:      cfg.ServiceName,
		Environment:      cfg.Environment,
		TracingEnabled:   cfg.TracingEnabled,
		MetricsEnabled:   cfg.MetricsEnabled,
		TraceSampleRatio: cfg.TraceSampleRatio,
		OTLPEndpoint:     cfg.OTLPEndpoint,
	})
	otel.SetTextMapPropagator(tracectx.Propagator{})
	otel.SetTracerProvider(telemetryManager.TracerProvider())
	otel.SetMeterProvider(telemetryManager.MeterProvider())
	defer func() {
		ctx, cancel := context.WithDeadline(ctx, shutdownSignalDeadline)
		defer cancel()
		if err := telemetryManager.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("failed to shutdown telemetry manager")
		}
	}()

	fwd := gateway.New(cfg.BackendURL, telemetryManager.TracerProvider())

	r := router.Gateway(router.Config{
		ServiceName:    cfg.ServiceName,
		RequestTimeout: cfg.RequestTimeout,
		TracingEnabled: cfg.TracingEnabled,
		MetricsEnabled: cfg.MetricsEnabled,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}, fwd)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	errCh := make(chan error)
	go func() {
		defer close(errCh)
		log.Debug().Msg("starting service")
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sig, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil {
			return err // Server failed to start
		}
	case <-sig.Done(): // Graceful shutdown signal received
		shutdownSignalDeadline = time.Now().Add(cfg.GracefulShutdownTimeout)
	}

	log.Debug().
		Dur("timeout", cfg.GracefulShutdownTimeout).
		Msg("initiating graceful shutdown")

	// Remove the signal handler immediately to ensure following signals
	// forcefully terminate the application.
	stop()

	shutdownCtx, cancel := context.WithDeadline(ctx, shutdownSignalDeadline)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to gracefully shutdown server: %w", err)
	}

	return nil
}
