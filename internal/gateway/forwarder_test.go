package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/mearth/photosync/internal/model"
	"github.com/mearth/photosync/internal/tracectx"
)

func newTestForwarder(t *testing.T, handler http.Handler) (*Forwarder, *tracetest.SpanRecorder) {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	return New(ts.URL, tp), recorder
}

func deadForwarder(t *testing.T) *Forwarder {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Close() // port is now dead
	return New(ts.URL, noop.NewTracerProvider())
}

func TestListPhotos(t *testing.T) {
	desc := "a cat"
	backendPhotos := []model.Photo{
		{ID: "1", OriginalFileName: "apple.png", StorageKey: "1.png", Description: &desc, UploadedAt: time.Now().UTC()},
		{ID: "2", OriginalFileName: "zebra.png", StorageKey: "2.png", UploadedAt: time.Now().UTC()},
	}

	fwd, _ := newTestForwarder(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/Photos" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(backendPhotos)
	}))

	photos, status := fwd.ListPhotos(context.Background())
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if len(photos) != 2 || photos[0].ID != "1" || photos[1].ID != "2" {
		t.Fatalf("photos = %+v", photos)
	}
	if photos[0].Description == nil || *photos[0].Description != "a cat" {
		t.Fatalf("description = %v", photos[0].Description)
	}
}

func TestListPhotosBackendDown(t *testing.T) {
	fwd := deadForwarder(t)

	photos, status := fwd.ListPhotos(context.Background())
	if photos == nil || len(photos) != 0 {
		t.Fatalf("photos = %v, want empty non-nil slice", photos)
	}
	if status != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", status)
	}
}

func TestListPhotosBackendErrorMarksSpan(t *testing.T) {
	fwd, recorder := newTestForwarder(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	photos, status := fwd.ListPhotos(context.Background())
	if len(photos) != 0 || status != http.StatusInternalServerError {
		t.Fatalf("photos = %v status = %d", photos, status)
	}

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("ended spans = %d, want 1", len(spans))
	}
	if spans[0].Status().Code != codes.Error {
		t.Fatalf("span status = %v, want error", spans[0].Status().Code)
	}
}

func TestGetPhoto(t *testing.T) {
	fwd, _ := newTestForwarder(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/Photos/abc" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("image-bytes"))
	}))

	rc, contentType, status := fwd.GetPhoto(context.Background(), "abc")
	if rc == nil || status != http.StatusOK {
		t.Fatalf("rc = %v status = %d", rc, status)
	}
	defer rc.Close()

	if contentType != "image/png" {
		t.Errorf("content type = %q", contentType)
	}
	data, _ := io.ReadAll(rc)
	if string(data) != "image-bytes" {
		t.Errorf("body = %q", data)
	}
}

func TestGetPhotoNotFound(t *testing.T) {
	fwd, recorder := newTestForwarder(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	rc, _, status := fwd.GetPhoto(context.Background(), "abc")
	if rc != nil || status != http.StatusNotFound {
		t.Fatalf("rc = %v status = %d", rc, status)
	}

	// A backend 404 is an expected outcome, not a forwarding failure.
	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("ended spans = %d, want 1", len(spans))
	}
	if spans[0].Status().Code == codes.Error {
		t.Fatal("span marked error for a 404")
	}
}

func TestUploadPhoto(t *testing.T) {
	var gotFile []byte
	var gotType, gotFileName string

	fwd, _ := newTestForwarder(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		gotFile, _ = io.ReadAll(file)
		gotFileName = header.Filename
		gotType = r.FormValue("type")

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(model.Photo{ID: "new-id", OriginalFileName: header.Filename})
	}))

	photo, status := fwd.UploadPhoto(context.Background(), "application/pdf", "cat.png", []byte("image-bytes"))
	if photo == nil || status != http.StatusOK {
		t.Fatalf("photo = %v status = %d", photo, status)
	}
	if photo.ID != "new-id" {
		t.Errorf("id = %q", photo.ID)
	}
	if string(gotFile) != "image-bytes" || gotFileName != "cat.png" {
		t.Errorf("forwarded file = %q name = %q", gotFile, gotFileName)
	}

	// The forwarded type field is fixed regardless of the client header.
	if gotType != "image/jpeg" {
		t.Errorf("type field = %q, want image/jpeg", gotType)
	}
}

func TestUploadPhotoBackendRejects(t *testing.T) {
	fwd, _ := newTestForwarder(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))

	photo, status := fwd.UploadPhoto(context.Background(), "", "doc.pdf", []byte("x"))
	if photo != nil || status != http.StatusBadRequest {
		t.Fatalf("photo = %v status = %d", photo, status)
	}
}

func TestDeletePhoto(t *testing.T) {
	fwd, _ := newTestForwarder(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/Photos/abc" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	if status := fwd.DeletePhoto(context.Background(), "abc"); status != http.StatusNoContent {
		t.Fatalf("status = %d", status)
	}
}

func TestDeletePhotoBackendDown(t *testing.T) {
	fwd := deadForwarder(t)
	if status := fwd.DeletePhoto(context.Background(), "abc"); status != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", status)
	}
}

func TestPingBackend(t *testing.T) {
	fwd, _ := newTestForwarder(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ping" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_, _ = w.Write([]byte("OK"))
	}))

	body, status := fwd.PingBackend(context.Background())
	if status != http.StatusOK || body != "OK" {
		t.Fatalf("body = %q status = %d", body, status)
	}
}

func TestTraceHeadersPropagated(t *testing.T) {
	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})

	var gotRequestID, gotParentSpanID string
	fwd, _ := newTestForwarder(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRequestID = r.Header.Get(tracectx.HeaderRequestID)
		gotParentSpanID = r.Header.Get(tracectx.HeaderParentSpanID)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("[]"))
	}))

	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	fwd.ListPhotos(ctx)

	if gotRequestID != traceID.String() {
		t.Errorf("%s = %q, want %q", tracectx.HeaderRequestID, gotRequestID, traceID.String())
	}
	if gotParentSpanID == "" {
		t.Errorf("%s header missing", tracectx.HeaderParentSpanID)
	}
	if _, err := trace.SpanIDFromHex(gotParentSpanID); err != nil {
		t.Errorf("%s = %q is not a valid span id", tracectx.HeaderParentSpanID, gotParentSpanID)
	}
}

func TestUploadPhotoMultipartWellFormed(t *testing.T) {
	fwd, _ := newTestForwarder(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mr, err := r.MultipartReader()
		if err != nil {
			t.Errorf("MultipartReader: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var parts []string
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				t.Errorf("NextPart: %v", err)
				break
			}
			parts = append(parts, part.FormName())
			_, _ = io.Copy(io.Discard, part)
		}
		if len(parts) != 2 || parts[0] != "file" || parts[1] != "type" {
			t.Errorf("parts = %v, want [file type]", parts)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(model.Photo{ID: "new-id"})
	}))

	if photo, status := fwd.UploadPhoto(context.Background(), "", "cat.png", []byte("x")); photo == nil || status != http.StatusOK {
		t.Fatalf("photo = %v status = %d", photo, status)
	}
}

// Guards against reusing the inbound multipart envelope verbatim.
func TestUploadPhotoDoesNotForwardRawBody(t *testing.T) {
	raw := &bytes.Buffer{}
	mw := multipart.NewWriter(raw)
	part, _ := mw.CreateFormFile("file", "cat.png")
	_, _ = part.Write([]byte("image-bytes"))
	_ = mw.Close()

	var gotContentType string
	fwd, _ := newTestForwarder(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(model.Photo{ID: "new-id"})
	}))

	fwd.UploadPhoto(context.Background(), "", "cat.png", []byte("image-bytes"))

	if gotContentType == mw.FormDataContentType() {
		t.Error("forwarded body reused the inbound multipart boundary")
	}
}
