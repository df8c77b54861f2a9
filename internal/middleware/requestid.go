package middleware

import (
	"net/http"

	"go.opentelemetry.io/otel/trace"

	"github.com/mearth/photosync/internal/tracectx"
)

// RequestID resolves the wire-level trace context for the request and writes
// the Request-Id response header from the active trace id. When the tracing
// middleware already started a server span, its ids are authoritative;
// otherwise a fresh root context is minted so responses stay correlatable
// even with tracing disabled.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var tc tracectx.Context
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			tc = tracectx.Context{
				TraceID:      sc.TraceID().String(),
				SpanID:       sc.SpanID().String(),
				ParentSpanID: r.Header.Get(tracectx.HeaderParentSpanID),
				RequestID:    sc.TraceID().String(),
			}
		} else {
			tc = tracectx.NewRoot(r.Header.Get(tracectx.HeaderRequestID))
			tc.ParentSpanID = r.Header.Get(tracectx.HeaderParentSpanID)
		}

		w.Header().Set(tracectx.HeaderRequestID, tc.RequestID)
		next.ServeHTTP(w, r.WithContext(tracectx.WithContext(ctx, tc)))
	})
}
