// Package tracectx implements the trace-context model shared by the gateway
// and the backend: the wire-level identity of one external request, the
// header propagation scheme that carries it across the gateway-to-backend
// hop, and the span recorder wrapping traced units of work.
package tracectx

import (
	"context"
	"crypto/rand"

	"go.opentelemetry.io/otel/trace"
)

// Context is the wire-level trace identity of one external request. It is
// constructed once per inbound HTTP request and never mutated after the
// response headers are written.
type Context struct {
	// TraceID is stable for the lifetime of one external request: 32 hex
	// digits, random at the origin or propagated from the caller.
	TraceID string

	// SpanID is regenerated at every hop boundary: 16 hex digits.
	SpanID string

	// ParentSpanID is copied from the incoming request's propagation
	// header. Empty at the origin.
	ParentSpanID string

	// RequestID mirrors TraceID and is exposed to clients for correlation.
	RequestID string
}

// NewRoot returns a fresh root context. If requestID is a valid 32-hex trace
// id it becomes the trace id; otherwise a random one is generated. The parent
// span id of a root context is always empty.
func NewRoot(requestID string) Context {
	traceID := requestID
	if _, err := trace.TraceIDFromHex(traceID); err != nil {
		traceID = newTraceID()
	}
	return Context{
		TraceID:   traceID,
		SpanID:    newSpanID(),
		RequestID: traceID,
	}
}

// Child derives the context for a child unit of work: same trace id, fresh
// span id, parent span id set to this context's span id. The same rule covers
// in-process child operations and the network hop, where the parent's span id
// crosses the wire as a header value.
func (c Context) Child() Context {
	return Context{
		TraceID:      c.TraceID,
		SpanID:       newSpanID(),
		ParentSpanID: c.SpanID,
		RequestID:    c.RequestID,
	}
}

func newTraceID() string {
	var id trace.TraceID
	for !id.IsValid() {
		_, _ = rand.Read(id[:])
	}
	return id.String()
}

func newSpanID() string {
	var id trace.SpanID
	for !id.IsValid() {
		_, _ = rand.Read(id[:])
	}
	return id.String()
}

type ctxKey struct{}

// WithContext stores the trace context in ctx for downstream log enrichment.
func WithContext(ctx context.Context, tc Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, tc)
}

// FromContext returns the trace context stored in ctx, or a zero Context.
func FromContext(ctx context.Context) Context {
	tc, _ := ctx.Value(ctxKey{}).(Context)
	return tc
}
