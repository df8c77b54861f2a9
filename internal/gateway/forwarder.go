// Package gateway forwards client photo requests to the backend over HTTP,
// propagating the trace context across the hop and degrading gracefully on
// failure: every operation returns a well-formed result and status, never a
// propagated fault.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/mearth/photosync/internal/apierr"
	"github.com/mearth/photosync/internal/model"
	"github.com/mearth/photosync/internal/tracectx"
)

// defaultDocumentType is the fixed ingestion format forwarded to the backend
// multipart body. The client-supplied documentType header is recorded on the
// span but does not alter the forwarded value.
const defaultDocumentType = "image/jpeg"

// Forwarder issues the backend calls. The transport is otel-instrumented and
// injects the ParentSpanId and Request-Id headers via the custom propagator,
// so the backend's root span links to the gateway's active span.
type Forwarder struct {
	base   string
	client *http.Client
	rec    *tracectx.Recorder
}

func New(backendURL string, tp trace.TracerProvider) *Forwarder {
	return &Forwarder{
		base: backendURL,
		client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithPropagators(tracectx.Propagator{})),
		},
		rec: tracectx.NewRecorder(tp, "github.com/mearth/photosync/internal/gateway"),
	}
}

// ListPhotos forwards the list call. On any failure it returns an empty list
// and a 500-equivalent status with the span marked error; callers must
// inspect the status, a non-nil slice does not imply success.
func (f *Forwarder) ListPhotos(ctx context.Context) ([]model.Photo, int) {
	ctx, span := f.rec.Start(ctx, "forward.photos.list", trace.SpanKindInternal)
	defer span.Close()

	photos := make([]model.Photo, 0)
	status := http.StatusInternalServerError

	resp, err := f.do(ctx, http.MethodGet, f.base+"/Photos", "", nil)
	if err != nil {
		f.degrade(ctx, span, "list photos", err)
		return photos, status
	}
	defer resp.Body.Close()

	status = resp.StatusCode
	if !is2xx(status) {
		f.degrade(ctx, span, "list photos", fmt.Errorf("%w: status %d", apierr.ErrDownstreamUnavailable, status))
		span.Tag("http.status_code", status)
		return photos, status
	}

	if err := json.NewDecoder(resp.Body).Decode(&photos); err != nil {
		f.degrade(ctx, span, "list photos", fmt.Errorf("%w: decode: %v", apierr.ErrDownstreamUnavailable, err))
		return make([]model.Photo, 0), http.StatusInternalServerError
	}

	span.Event("photos loaded", map[string]any{"count": len(photos)})
	span.Tag("photo.count", len(photos))
	span.Tag("http.status_code", status)
	return photos, status
}

// GetPhoto forwards the get-by-id call and passes the body and content type
// through unchanged. A 404 from the backend or an absent body yields a
// not-found status and no stream.
func (f *Forwarder) GetPhoto(ctx context.Context, id string) (io.ReadCloser, string, int) {
	ctx, span := f.rec.Start(ctx, "forward.photos.get", trace.SpanKindInternal)
	defer span.Close()
	span.Tag("photo.id", id)

	resp, err := f.do(ctx, http.MethodGet, f.base+"/Photos/"+id, "", nil)
	if err != nil {
		f.degrade(ctx, span, "get photo", err)
		return nil, "", http.StatusInternalServerError
	}

	span.Tag("http.status_code", resp.StatusCode)
	if !is2xx(resp.StatusCode) {
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			f.degrade(ctx, span, "get photo", fmt.Errorf("%w: status %d", apierr.ErrDownstreamUnavailable, resp.StatusCode))
		}
		return nil, "", resp.StatusCode
	}

	return resp.Body, resp.Header.Get("Content-Type"), resp.StatusCode
}

// UploadPhoto re-encapsulates the uploaded bytes as a fresh multipart body
// before forwarding; the inbound multipart envelope is never reused. Field
// names are fixed: file and type.
func (f *Forwarder) UploadPhoto(ctx context.Context, documentType, fileName string, file []byte) (*model.Photo, int) {
	ctx, span := f.rec.Start(ctx, "forward.photos.upload", trace.SpanKindInternal)
	defer span.Close()
	span.Tag("file.name", fileName)
	span.Tag("document.type", documentType)

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)

	part, err := mw.CreateFormFile("file", fileName)
	if err == nil {
		_, err = part.Write(file)
	}
	if err == nil {
		err = mw.WriteField("type", defaultDocumentType)
	}
	if err == nil {
		err = mw.Close()
	}
	if err != nil {
		f.degrade(ctx, span, "upload photo", fmt.Errorf("%w: multipart encode: %v", apierr.ErrDownstreamUnavailable, err))
		return nil, http.StatusInternalServerError
	}

	resp, err := f.do(ctx, http.MethodPost, f.base+"/Photos", mw.FormDataContentType(), body)
	if err != nil {
		f.degrade(ctx, span, "upload photo", err)
		return nil, http.StatusInternalServerError
	}
	defer resp.Body.Close()

	span.Tag("http.status_code", resp.StatusCode)
	if !is2xx(resp.StatusCode) {
		f.degrade(ctx, span, "upload photo", fmt.Errorf("%w: status %d", apierr.ErrDownstreamUnavailable, resp.StatusCode))
		return nil, resp.StatusCode
	}

	photo := &model.Photo{}
	if err := json.NewDecoder(resp.Body).Decode(photo); err != nil {
		f.degrade(ctx, span, "upload photo", fmt.Errorf("%w: decode: %v", apierr.ErrDownstreamUnavailable, err))
		return nil, http.StatusInternalServerError
	}

	return photo, resp.StatusCode
}

// DeletePhoto forwards the delete call. Any 2xx is success; everything else
// marks the span as error.
func (f *Forwarder) DeletePhoto(ctx context.Context, id string) int {
	ctx, span := f.rec.Start(ctx, "forward.photos.delete", trace.SpanKindInternal)
	defer span.Close()
	span.Tag("photo.id", id)

	resp, err := f.do(ctx, http.MethodDelete, f.base+"/Photos/"+id, "", nil)
	if err != nil {
		f.degrade(ctx, span, "delete photo", err)
		return http.StatusInternalServerError
	}
	resp.Body.Close()

	span.Tag("http.status_code", resp.StatusCode)
	if !is2xx(resp.StatusCode) {
		f.degrade(ctx, span, "delete photo", fmt.Errorf("%w: status %d", apierr.ErrDownstreamUnavailable, resp.StatusCode))
	}
	return resp.StatusCode
}

// PingBackend calls the backend liveness endpoint and returns its body, for
// the gateway's diagnostic endpoint.
func (f *Forwarder) PingBackend(ctx context.Context) (string, int) {
	ctx, span := f.rec.Start(ctx, "forward.ping", trace.SpanKindInternal)
	defer span.Close()

	resp, err := f.do(ctx, http.MethodGet, f.base+"/ping", "", nil)
	if err != nil {
		f.degrade(ctx, span, "ping backend", err)
		return "", http.StatusInternalServerError
	}
	defer resp.Body.Close()

	span.Tag("http.status_code", resp.StatusCode)
	if !is2xx(resp.StatusCode) {
		f.degrade(ctx, span, "ping backend", fmt.Errorf("%w: status %d", apierr.ErrDownstreamUnavailable, resp.StatusCode))
		return "", resp.StatusCode
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		f.degrade(ctx, span, "ping backend", fmt.Errorf("%w: read: %v", apierr.ErrDownstreamUnavailable, err))
		return "", http.StatusInternalServerError
	}
	return string(body), resp.StatusCode
}

func (f *Forwarder) do(ctx context.Context, method, url, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apierr.ErrDownstreamUnavailable, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apierr.ErrDownstreamUnavailable, err)
	}
	return resp, nil
}

// degrade records a forwarding failure on the span and logs it with the
// caller-visible trace id. The operation still returns a degraded value.
func (f *Forwarder) degrade(ctx context.Context, span *tracectx.Span, op string, err error) {
	span.Fail(err)
	zerolog.Ctx(ctx).Error().
		Err(err).
		Str("operation", op).
		Str("request_id", tracectx.FromContext(ctx).RequestID).
		Msg("backend call failed")
}

func is2xx(status int) bool {
	return status >= 200 && status < 300
}
