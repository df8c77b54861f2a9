package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/mearth/photosync/internal/apierr"
	"github.com/mearth/photosync/internal/model"
)

// PhotoForwarder is the gateway forwarding surface consumed by the handlers.
// Operations return degraded values plus an HTTP-equivalent status instead of
// raising; the handlers map the status to the gateway's own response.
type PhotoForwarder interface {
	ListPhotos(ctx context.Context) ([]model.Photo, int)
	GetPhoto(ctx context.Context, id string) (io.ReadCloser, string, int)
	UploadPhoto(ctx context.Context, documentType, fileName string, file []byte) (*model.Photo, int)
	DeletePhoto(ctx context.Context, id string) int
	PingBackend(ctx context.Context) (string, int)
}

// ForwardListPhotos always answers 200 with a JSON array; a backend failure
// yields an empty array rather than an error response.
func ForwardListPhotos(fwd PhotoForwarder) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		photos, _ := fwd.ListPhotos(r.Context())
		writeJSON(w, http.StatusOK, photos)
	})
}

// ForwardGetPhoto streams the backend body and content type through.
func ForwardGetPhoto(fwd PhotoForwarder) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id := chi.URLParam(r, "id")

		rc, contentType, status := fwd.GetPhoto(ctx, id)
		if rc == nil {
			if status == http.StatusNotFound {
				apierr.Write(w, fmt.Errorf("%w: %s", apierr.ErrNotFound, id))
				return
			}
			apierr.Write(w, apierr.ErrDownstreamUnavailable)
			return
		}
		defer rc.Close()

		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusOK)
		if _, err := io.Copy(w, rc); err != nil {
			zerolog.Ctx(ctx).Err(err).Str("photo_id", id).Msg("photo stream interrupted")
		}
	})
}

// ForwardUploadPhoto re-reads the inbound upload and hands its bytes to the
// forwarder, which builds a fresh multipart body. The documentType header is
// accepted for compatibility; the forwarded ingestion format is fixed.
func ForwardUploadPhoto(fwd PhotoForwarder, maxBytes int64) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		documentType := r.Header.Get("documentType")

		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		file, header, err := r.FormFile("file")
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("upload rejected: no file")
			apierr.Write(w, fmt.Errorf("%w: missing multipart field %q", apierr.ErrInvalidInput, "file"))
			return
		}
		defer file.Close()

		payload, err := io.ReadAll(file)
		if err != nil {
			apierr.Write(w, fmt.Errorf("%w: unreadable upload: %v", apierr.ErrInvalidInput, err))
			return
		}

		photo, status := fwd.UploadPhoto(ctx, documentType, header.Filename, payload)
		if photo == nil {
			switch status {
			case http.StatusBadRequest:
				apierr.Write(w, apierr.ErrInvalidInput)
			default:
				apierr.Write(w, apierr.ErrDownstreamUnavailable)
			}
			return
		}

		writeJSON(w, http.StatusOK, photo)
	})
}

// ForwardDeletePhoto maps the backend status onto the gateway response.
func ForwardDeletePhoto(fwd PhotoForwarder) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		status := fwd.DeletePhoto(r.Context(), id)
		switch {
		case status >= 200 && status < 300:
			w.WriteHeader(http.StatusNoContent)
		case status == http.StatusNotFound:
			apierr.Write(w, fmt.Errorf("%w: %s", apierr.ErrNotFound, id))
		default:
			apierr.Write(w, apierr.ErrDownstreamUnavailable)
		}
	})
}

// ForwardPing is the gateway diagnostic endpoint: it calls the backend's
// liveness endpoint and echoes its body.
func ForwardPing(fwd PhotoForwarder) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, status := fwd.PingBackend(r.Context())
		if status < 200 || status >= 300 {
			apierr.Write(w, apierr.ErrDownstreamUnavailable)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body))
	})
}
