// Package inference calls the external image-description service.
package inference

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"

	"github.com/mearth/photosync/internal/apierr"
)

// Description is the result of analyzing one image. Caption is nil when the
// service returned no caption, which is not a failure.
type Description struct {
	Caption    *string
	Confidence float64
}

// Describer analyzes an image payload and returns a caption plus confidence.
type Describer interface {
	Describe(ctx context.Context, payload []byte) (Description, error)
}

// Client is the HTTP Describer. Timeouts and transport behavior belong to the
// underlying HTTP client; the pipeline imposes none of its own.
type Client struct {
	http    *resty.Client
	metrics *Metrics
}

var _ Describer = (*Client)(nil)

// NewClient returns a client for the caption service at baseURL. The
// transport is otel-instrumented so the outbound call shows up as a child
// span of the pipeline step.
func NewClient(baseURL string, mp metric.MeterProvider) (*Client, error) {
	metrics, err := NewMetrics(mp)
	if err != nil {
		return nil, err
	}

	rc := resty.New().
		SetBaseURL(baseURL).
		SetTransport(otelhttp.NewTransport(http.DefaultTransport))

	return &Client{http: rc, metrics: metrics}, nil
}

type describeResponse struct {
	Caption    string  `json:"caption"`
	Confidence float64 `json:"confidence"`
}

// Describe posts the image bytes to the caption service. A 2xx response with
// an empty caption yields a nil caption; transport failures and non-2xx
// responses fail with ErrInferenceUnavailable.
func (c *Client) Describe(ctx context.Context, payload []byte) (Description, error) {
	c.metrics.RecordRequest(ctx, int64(len(payload)))

	var out describeResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/octet-stream").
		SetBody(payload).
		SetResult(&out).
		Post("/describe")
	if err != nil {
		return Description{}, fmt.Errorf("%w: %v", apierr.ErrInferenceUnavailable, err)
	}
	if resp.IsError() {
		return Description{}, fmt.Errorf("%w: status %d", apierr.ErrInferenceUnavailable, resp.StatusCode())
	}

	if out.Caption == "" {
		return Description{}, nil
	}

	c.metrics.RecordConfidence(ctx, out.Caption, out.Confidence)
	return Description{Caption: &out.Caption, Confidence: out.Confidence}, nil
}
