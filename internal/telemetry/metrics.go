package telemetry

import (
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
)

// NewPrometheusMetricReader returns a metric reader that bridges the otel
// meter into the process-wide Prometheus registry, so otel instruments show
// up on the /metrics endpoint next to the HTTP middleware metrics.
func NewPrometheusMetricReader() (metric.Reader, error) {
	return otelprom.New()
}
