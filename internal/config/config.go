// Package config loads the per-service configuration from the environment,
// with per-environment default overlays.
package config

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-envconfig"
)

// Common holds the settings shared by both tiers.
type Common struct {
	// The port the HTTP server listens on.
	Port uint16 `env:"PORT, default=8080"`

	// ServiceName identifies the tier in logs, traces and metrics.
	ServiceName string `env:"SERVICE_NAME, required"`

	// Environment of the service (local, development, production).
	Environment string `env:"ENVIRONMENT, default=production"`

	// GracefulShutdownTimeout is how long the service has to terminate
	// after receiving SIGTERM or SIGINT.
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_TIMEOUT, default=8s"`

	// RequestTimeout bounds the handling of a single request.
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT, default=30s"`

	// LogLevel controls the verbosity of the logs.
	LogLevel zerolog.Level `env:"LOG_LEVEL, default=info"`

	// TracingEnabled enables span export.
	TracingEnabled bool `env:"ENABLE_TRACING, default=true"`

	// MetricsEnabled enables the /metrics endpoint.
	MetricsEnabled bool `env:"ENABLE_METRICS, default=true"`

	// TraceSampleRatio is the ratio of traces to sample.
	TraceSampleRatio float64 `env:"OTEL_TRACES_SAMPLER_ARG, default=1.0"`

	// OTLPEndpoint is the collector endpoint for non-local environments.
	OTLPEndpoint string `env:"OTLP_ENDPOINT, default=localhost:4317"`

	// MaxUploadBytes bounds the accepted multipart body size.
	MaxUploadBytes int64 `env:"MAX_UPLOAD_BYTES, default=33554432"`
}

// Backend is the backend tier configuration.
type Backend struct {
	Common

	// DatabaseURL is the Postgres connection string for the photo index.
	// When empty the backend falls back to the in-memory index, which is
	// only suitable for local runs.
	DatabaseURL string `env:"DATABASE_URL"`

	// BlobDir is the data directory of the disk blob store.
	BlobDir string `env:"BLOB_DIR, default=/var/lib/photosync/blobs"`

	// InferenceURL is the base URL of the caption service.
	InferenceURL string `env:"INFERENCE_URL, required"`
}

// Gateway is the gateway tier configuration.
type Gateway struct {
	Common

	// BackendURL is the base URL of the backend tier.
	BackendURL string `env:"BACKEND_URL, required"`
}

func environmentDefaults(env, service string) envconfig.Lookuper {
	switch env {
	case "local":
		return envconfig.MapLookuper(map[string]string{
			"SERVICE_NAME":   service,
			"LOG_LEVEL":      "debug",
			"ENABLE_TRACING": "false",
			"ENABLE_METRICS": "false",
			"INFERENCE_URL":  "http://localhost:9090",
			"BACKEND_URL":    "http://localhost:8000",
			"BLOB_DIR":       "./data/blobs",
		})
	case "development":
		return envconfig.MapLookuper(map[string]string{
			"SERVICE_NAME":            service,
			"LOG_LEVEL":               "debug",
			"OTEL_TRACES_SAMPLER_ARG": "1.0",
		})
	default:
		// production defaults are set in the struct tags
		return envconfig.MapLookuper(map[string]string{
			"SERVICE_NAME": service,
		})
	}
}

func load(ctx context.Context, target any, defaultService string) error {
	opts := &envconfig.Config{
		Target: target,
		Lookuper: envconfig.MultiLookuper(
			envconfig.OsLookuper(),
			environmentDefaults(os.Getenv("ENVIRONMENT"), defaultService),
		),
	}
	return envconfig.ProcessWith(ctx, opts)
}

func LoadBackend(ctx context.Context) (*Backend, error) {
	cfg := &Backend{}
	if err := load(ctx, cfg, "photosync-backend"); err != nil {
		return nil, err
	}
	return cfg, nil
}

func LoadGateway(ctx context.Context) (*Gateway, error) {
	cfg := &Gateway{}
	if err := load(ctx, cfg, "photosync-gateway"); err != nil {
		return nil, err
	}
	return cfg, nil
}
