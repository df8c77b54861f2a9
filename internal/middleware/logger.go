package middleware

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/mearth/photosync/internal/tracectx"
)

// Logger returns a middleware that adds the zerolog logger to the request
// context, enriched with the correlation ids of the active trace context.
// Ensure that this middleware runs after the tracing and RequestID
// middlewares, so the ids are already resolved when the logger is built.
func Logger(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			tc := tracectx.FromContext(ctx)
			logger := logger.With().
				Ctx(ctx).
				Str("trace_id", tc.TraceID).
				Str("span_id", tc.SpanID).
				Str("parent_span_id", tc.ParentSpanID).
				Str("request_id", tc.RequestID).
				Logger()
			r = r.WithContext(logger.WithContext(ctx))
			next.ServeHTTP(w, r)
		})
	}
}
