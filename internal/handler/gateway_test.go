package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/mearth/photosync/internal/apierr"
	"github.com/mearth/photosync/internal/model"
)

type mockForwarder struct {
	list   func(context.Context) ([]model.Photo, int)
	get    func(context.Context, string) (io.ReadCloser, string, int)
	upload func(context.Context, string, string, []byte) (*model.Photo, int)
	delete func(context.Context, string) int
	ping   func(context.Context) (string, int)
}

func (m *mockForwarder) ListPhotos(ctx context.Context) ([]model.Photo, int) {
	return m.list(ctx)
}

func (m *mockForwarder) GetPhoto(ctx context.Context, id string) (io.ReadCloser, string, int) {
	return m.get(ctx, id)
}

func (m *mockForwarder) UploadPhoto(ctx context.Context, documentType, fileName string, file []byte) (*model.Photo, int) {
	return m.upload(ctx, documentType, fileName, file)
}

func (m *mockForwarder) DeletePhoto(ctx context.Context, id string) int {
	return m.delete(ctx, id)
}

func (m *mockForwarder) PingBackend(ctx context.Context) (string, int) {
	return m.ping(ctx)
}

func gatewayRouter(fwd PhotoForwarder) chi.Router {
	r := chi.NewRouter()
	r.Method(http.MethodGet, "/ping/backend", ForwardPing(fwd))
	r.Method(http.MethodGet, "/Photos", ForwardListPhotos(fwd))
	r.Method(http.MethodPost, "/Photos", ForwardUploadPhoto(fwd, 1<<20))
	r.Method(http.MethodGet, "/Photos/{id}", ForwardGetPhoto(fwd))
	r.Method(http.MethodDelete, "/Photos/{id}", ForwardDeletePhoto(fwd))
	return r
}

func TestForwardListPhotosDegradesToEmpty(t *testing.T) {
	fwd := &mockForwarder{
		list: func(context.Context) ([]model.Photo, int) {
			return make([]model.Photo, 0), http.StatusInternalServerError
		},
	}

	rec := httptest.NewRecorder()
	gatewayRouter(fwd).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/Photos", nil))

	// The gateway list never fails outward.
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Fatalf("body = %q, want []", body)
	}
}

func TestForwardGetPhoto(t *testing.T) {
	fwd := &mockForwarder{
		get: func(ctx context.Context, id string) (io.ReadCloser, string, int) {
			return io.NopCloser(strings.NewReader("image-bytes")), "image/png", http.StatusOK
		},
	}

	rec := httptest.NewRecorder()
	gatewayRouter(fwd).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/Photos/abc", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type = %q", ct)
	}
	if rec.Body.String() != "image-bytes" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestForwardGetPhotoStatuses(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		wantStatus int
		wantCode   string
	}{
		{name: "backend 404 passes through", status: http.StatusNotFound, wantStatus: http.StatusNotFound, wantCode: apierr.CodeNotFound},
		{name: "backend failure masked as downstream", status: http.StatusInternalServerError, wantStatus: http.StatusInternalServerError, wantCode: apierr.CodeDownstreamUnavailable},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			fwd := &mockForwarder{
				get: func(ctx context.Context, id string) (io.ReadCloser, string, int) {
					return nil, "", test.status
				},
			}

			rec := httptest.NewRecorder()
			gatewayRouter(fwd).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/Photos/abc", nil))

			if rec.Code != test.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, test.wantStatus)
			}
			if code := decodeErrorCode(t, rec.Body); code != test.wantCode {
				t.Errorf("code = %q, want %q", code, test.wantCode)
			}
		})
	}
}

func TestForwardUploadPhoto(t *testing.T) {
	var gotType, gotName string
	var gotFile []byte
	fwd := &mockForwarder{
		upload: func(ctx context.Context, documentType, fileName string, file []byte) (*model.Photo, int) {
			gotType, gotName, gotFile = documentType, fileName, file
			return &model.Photo{ID: "new-id", OriginalFileName: fileName}, http.StatusOK
		},
	}

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, _ := mw.CreateFormFile("file", "cat.png")
	_, _ = part.Write([]byte("image-bytes"))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/Photos", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("documentType", "application/pdf")

	rec := httptest.NewRecorder()
	gatewayRouter(fwd).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if gotType != "application/pdf" || gotName != "cat.png" || string(gotFile) != "image-bytes" {
		t.Errorf("forwarded type=%q name=%q file=%q", gotType, gotName, gotFile)
	}

	var photo model.Photo
	if err := json.NewDecoder(rec.Body).Decode(&photo); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if photo.ID != "new-id" {
		t.Errorf("id = %q", photo.ID)
	}
}

func TestForwardUploadPhotoMissingFile(t *testing.T) {
	fwd := &mockForwarder{
		upload: func(ctx context.Context, documentType, fileName string, file []byte) (*model.Photo, int) {
			t.Fatal("upload should not be called")
			return nil, 0
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/Photos", strings.NewReader("not multipart"))
	rec := httptest.NewRecorder()
	gatewayRouter(fwd).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestForwardUploadPhotoBackendStatuses(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		wantStatus int
	}{
		{name: "backend 400 stays 400", status: http.StatusBadRequest, wantStatus: http.StatusBadRequest},
		{name: "backend failure masked", status: http.StatusBadGateway, wantStatus: http.StatusInternalServerError},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			fwd := &mockForwarder{
				upload: func(ctx context.Context, documentType, fileName string, file []byte) (*model.Photo, int) {
					return nil, test.status
				},
			}

			body := &bytes.Buffer{}
			mw := multipart.NewWriter(body)
			part, _ := mw.CreateFormFile("file", "cat.png")
			_, _ = part.Write([]byte("x"))
			_ = mw.Close()

			req := httptest.NewRequest(http.MethodPost, "/Photos", body)
			req.Header.Set("Content-Type", mw.FormDataContentType())

			rec := httptest.NewRecorder()
			gatewayRouter(fwd).ServeHTTP(rec, req)

			if rec.Code != test.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, test.wantStatus)
			}
		})
	}
}

func TestForwardDeletePhoto(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		wantStatus int
	}{
		{name: "success", status: http.StatusNoContent, wantStatus: http.StatusNoContent},
		{name: "any 2xx is success", status: http.StatusOK, wantStatus: http.StatusNoContent},
		{name: "not found", status: http.StatusNotFound, wantStatus: http.StatusNotFound},
		{name: "backend failure", status: http.StatusInternalServerError, wantStatus: http.StatusInternalServerError},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			fwd := &mockForwarder{
				delete: func(ctx context.Context, id string) int { return test.status },
			}

			rec := httptest.NewRecorder()
			gatewayRouter(fwd).ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/Photos/abc", nil))

			if rec.Code != test.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, test.wantStatus)
			}
		})
	}
}

func TestForwardPing(t *testing.T) {
	fwd := &mockForwarder{
		ping: func(context.Context) (string, int) { return "OK", http.StatusOK },
	}

	rec := httptest.NewRecorder()
	gatewayRouter(fwd).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping/backend", nil))

	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Fatalf("status = %d body = %q", rec.Code, rec.Body.String())
	}
}

func TestForwardPingBackendDown(t *testing.T) {
	fwd := &mockForwarder{
		ping: func(context.Context) (string, int) { return "", http.StatusInternalServerError },
	}

	rec := httptest.NewRecorder()
	gatewayRouter(fwd).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping/backend", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if code := decodeErrorCode(t, rec.Body); code != apierr.CodeDownstreamUnavailable {
		t.Errorf("code = %q", code)
	}
}
