// Package main runs the backend tier: it validates, analyzes, stores and
// indexes uploaded photos.
//
// Its sole purpose is to manage the lifecycle of the service, including
// starting and stopping the service, and handling the graceful shutdown of
// the application.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"

	"github.com/mearth/photosync/internal/blob"
	"github.com/mearth/photosync/internal/config"
	"github.com/mearth/photosync/internal/index"
	"github.com/mearth/photosync/internal/inference"
	"github.com/mearth/photosync/internal/pipeline"
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
	cfg, err := config.LoadBackend(initCtx)
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

	// Photo index
	var photos index.Index
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to create database pool: %w", err)
		}
		defer pool.Close()

		pg := index.NewPostgres(pool)
		if err := pg.EnsureSchema(initCtx); err != nil {
			return err
		}
		photos = pg
	} else {
		log.Warn().Msg("no database configured, using the in-memory photo index")
		photos = index.NewMemory()
	}

	// Blob store
	blobs, err := blob.NewDiskStore(cfg.BlobDir)
	if err != nil {
		return err
	}

	// Inference client
	describer, err := inference.NewClient(cfg.InferenceURL, telemetryManager.MeterProvider())
	if err != nil {
		return fmt.Errorf("failed to create inference client: %w", err)
	}

	rec := tracectx.NewRecorder(telemetryManager.TracerProvider(), "github.com/mearth/photosync/internal/pipeline")
	svc := pipeline.New(describer, blobs, photos, rec)

	r := router.Backend(router.Config{
		ServiceName:    cfg.ServiceName,
		RequestTimeout: cfg.RequestTimeout,
		TracingEnabled: cfg.TracingEnabled,
		MetricsEnabled: cfg.MetricsEnabled,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}, svc)

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
