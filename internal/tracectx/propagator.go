package tracectx

import (
	"context"

	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Propagation headers. Every outbound gateway-to-backend call carries the
// current span id as ParentSpanId; every response from either tier carries
// Request-Id set to the active trace id.
const (
	HeaderParentSpanID = "ParentSpanId"
	HeaderRequestID    = "Request-Id"
)

// Propagator carries the trace context across the single network hop between
// the gateway and the backend. Inject writes the active span id and trace id
// into the outbound headers; Extract rebuilds a remote parent span context
// from them, so the receiving tier's root span links to the caller's span.
type Propagator struct{}

var _ propagation.TextMapPropagator = Propagator{}

func (Propagator) Inject(ctx context.Context, carrier propagation.TextMapCarrier) {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return
	}
	carrier.Set(HeaderParentSpanID, sc.SpanID().String())
	carrier.Set(HeaderRequestID, sc.TraceID().String())
}

func (Propagator) Extract(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	traceID, err := trace.TraceIDFromHex(carrier.Get(HeaderRequestID))
	if err != nil {
		return ctx
	}
	spanID, err := trace.SpanIDFromHex(carrier.Get(HeaderParentSpanID))
	if err != nil {
		return ctx
	}

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})
	return trace.ContextWithRemoteSpanContext(ctx, sc)
}

func (Propagator) Fields() []string {
	return []string{HeaderParentSpanID, HeaderRequestID}
}
