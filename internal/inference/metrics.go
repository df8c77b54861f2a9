package inference

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics instruments the caption service calls: payload volume, request
// count and the confidence distribution of returned captions.
type Metrics struct {
	payloadBytes metric.Int64Counter
	requests     metric.Int64Counter
	confidence   metric.Float64Histogram
}

func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter("github.com/mearth/photosync/internal/inference")

	payloadBytes, err := meter.Int64Counter("inference.payload.bytes",
		metric.WithUnit("By"),
		metric.WithDescription("Total bytes submitted to the caption service."))
	if err != nil {
		return nil, err
	}

	requests, err := meter.Int64Counter("inference.requests",
		metric.WithDescription("Total caption service requests."))
	if err != nil {
		return nil, err
	}

	confidence, err := meter.Float64Histogram("inference.caption.confidence",
		metric.WithDescription("Confidence of captions returned by the service."))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		payloadBytes: payloadBytes,
		requests:     requests,
		confidence:   confidence,
	}, nil
}

func (m *Metrics) RecordRequest(ctx context.Context, payloadSize int64) {
	m.payloadBytes.Add(ctx, payloadSize)
	m.requests.Add(ctx, 1)
}

func (m *Metrics) RecordConfidence(ctx context.Context, caption string, confidence float64) {
	m.confidence.Record(ctx, confidence,
		metric.WithAttributes(attribute.String("caption", caption)))
}
