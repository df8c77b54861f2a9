// Package router builds the chi routers for both tiers. Middleware order
// matters: tracing first (starts the server span from the propagated remote
// parent), then RequestID (response header + wire-level trace context), then
// the context logger, then metrics.
package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/riandyrn/otelchi"
	"github.com/rs/zerolog/log"

	"github.com/mearth/photosync/internal/handler"
	"github.com/mearth/photosync/internal/middleware"
)

type Config struct {
	ServiceName    string
	RequestTimeout time.Duration
	TracingEnabled bool
	MetricsEnabled bool
	MaxUploadBytes int64
}

// Backend mounts the Photos resource and the liveness endpoint.
func Backend(cfg Config, svc handler.PhotoService) http.Handler {
	r := base(cfg)

	r.Method(http.MethodGet, "/ping", handler.Ping())

	r.Route("/Photos", func(r chi.Router) {
		r.Method(http.MethodGet, "/", handler.ListPhotos(svc))
		r.Method(http.MethodPost, "/", handler.UploadPhoto(svc, cfg.MaxUploadBytes))
		r.Method(http.MethodGet, "/{id}", handler.GetPhoto(svc))
		r.Method(http.MethodDelete, "/{id}", handler.DeletePhoto(svc))
	})

	return r
}

// Gateway mirrors the four photo operations plus the diagnostic endpoint
// that echoes the backend's liveness body.
func Gateway(cfg Config, fwd handler.PhotoForwarder) http.Handler {
	r := base(cfg)

	r.Route("/ping", func(r chi.Router) {
		r.Method(http.MethodGet, "/", handler.Ping())
		r.Method(http.MethodGet, "/backend", handler.ForwardPing(fwd))
	})

	r.Route("/Photos", func(r chi.Router) {
		r.Method(http.MethodGet, "/", handler.ForwardListPhotos(fwd))
		r.Method(http.MethodPost, "/", handler.ForwardUploadPhoto(fwd, cfg.MaxUploadBytes))
		r.Method(http.MethodGet, "/{id}", handler.ForwardGetPhoto(fwd))
		r.Method(http.MethodDelete, "/{id}", handler.ForwardDeletePhoto(fwd))
	})

	return r
}

func base(cfg Config) chi.Router {
	r := chi.NewRouter()

	r.Use(
		chimiddleware.Recoverer,
		chimiddleware.Timeout(cfg.RequestTimeout),
	)

	if cfg.TracingEnabled {
		r.Use(otelchi.Middleware(cfg.ServiceName, otelchi.WithChiRoutes(r)))
	}

	r.Use(
		middleware.RequestID,
		middleware.Logger(log.Logger),
	)

	if cfg.MetricsEnabled {
		r.Use(middleware.Metrics(cfg.ServiceName))
		r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	}

	return r
}
