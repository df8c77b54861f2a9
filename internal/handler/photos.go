// Package handler contains the HTTP handlers of both tiers. Handlers depend
// on small interfaces so tests can stub the pipeline and the forwarder.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/mearth/photosync/internal/apierr"
	"github.com/mearth/photosync/internal/model"
)

// PhotoService is the backend pipeline surface consumed by the handlers.
type PhotoService interface {
	List(ctx context.Context) ([]model.Photo, error)
	Get(ctx context.Context, id string) (io.ReadCloser, string, error)
	Upload(ctx context.Context, fileName string, file io.Reader) (*model.Photo, error)
	Delete(ctx context.Context, id string) error
}

// ListPhotos returns the index contents ordered by original file name.
func ListPhotos(svc PhotoService) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		photos, err := svc.List(ctx)
		if err != nil {
			zerolog.Ctx(ctx).Err(err).Msg("list photos failed")
			apierr.Write(w, err)
			return
		}

		writeJSON(w, http.StatusOK, photos)
	})
}

// GetPhoto streams the photo blob with the content type inferred from its
// original file name.
func GetPhoto(svc PhotoService) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id := chi.URLParam(r, "id")

		rc, contentType, err := svc.Get(ctx, id)
		if err != nil {
			zerolog.Ctx(ctx).Err(err).Str("photo_id", id).Msg("get photo failed")
			apierr.Write(w, err)
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

// UploadPhoto accepts a multipart upload under the fixed field name "file"
// and runs the write pipeline.
func UploadPhoto(svc PhotoService, maxBytes int64) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		file, header, err := r.FormFile("file")
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("upload rejected: no file")
			apierr.Write(w, fmt.Errorf("%w: missing multipart field %q", apierr.ErrInvalidInput, "file"))
			return
		}
		defer file.Close()

		photo, err := svc.Upload(ctx, header.Filename, file)
		if err != nil {
			zerolog.Ctx(ctx).Err(err).Msg("upload failed")
			apierr.Write(w, err)
			return
		}

		writeJSON(w, http.StatusOK, photo)
	})
}

// DeletePhoto removes the blob and the index record.
func DeletePhoto(svc PhotoService) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id := chi.URLParam(r, "id")

		if err := svc.Delete(ctx, id); err != nil {
			zerolog.Ctx(ctx).Err(err).Str("photo_id", id).Msg("delete photo failed")
			apierr.Write(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
