package tracectx

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Recorder starts spans for traced units of work. Components receive a
// Recorder by reference; there is no ambient global lookup.
type Recorder struct {
	tracer trace.Tracer
}

// NewRecorder returns a recorder producing spans under the given
// instrumentation scope name.
func NewRecorder(tp trace.TracerProvider, scope string) *Recorder {
	return &Recorder{tracer: tp.Tracer(scope)}
}

// Start opens a span as a child of the span active in ctx and returns the
// derived context plus a handle. The caller must guarantee Close on every
// exit path, normally with a defer immediately after Start.
func (r *Recorder) Start(ctx context.Context, name string, kind trace.SpanKind) (context.Context, *Span) {
	ctx, span := r.tracer.Start(ctx, name, trace.WithSpanKind(kind))
	return ctx, &Span{span: span}
}

// Span is a handle over one traced unit of work. Close is idempotent; if no
// explicit status was recorded before Close, the status defaults to ok.
type Span struct {
	span   trace.Span
	mu     sync.Mutex
	failed bool
	closed bool
}

// Tag records a single key/value attribute on the span.
func (s *Span) Tag(key string, value any) {
	s.span.SetAttributes(toAttribute(key, value))
}

// Event records a point-in-time event with optional tags.
func (s *Span) Event(name string, tags map[string]any) {
	attrs := make([]attribute.KeyValue, 0, len(tags))
	for k, v := range tags {
		attrs = append(attrs, toAttribute(k, v))
	}
	s.span.AddEvent(name, trace.WithAttributes(attrs...))
}

// Fail records err and finalizes the span status as error. The error class
// and message are stored as tags.
func (s *Span) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.failed = true
	s.span.RecordError(err)
	s.span.SetAttributes(
		attribute.String("error.type", fmt.Sprintf("%T", err)),
		attribute.String("error.message", err.Error()),
	)
	s.span.SetStatus(codes.Error, err.Error())
}

// Close ends the span. Safe to call more than once; only the first call takes
// effect. A span closed without a prior Fail ends with status ok.
func (s *Span) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if !s.failed {
		s.span.SetStatus(codes.Ok, "")
	}
	s.span.End()
}

func toAttribute(key string, value any) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case bool:
		return attribute.Bool(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	default:
		return attribute.String(key, fmt.Sprint(v))
	}
}
