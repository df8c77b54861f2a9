// Package pipeline orchestrates the backend photo operations: the ordered
// upload sequence (inference, blob write, index write) and the read and
// delete paths, each step wrapped in its own span so partial failure is
// visible in telemetry.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/mearth/photosync/internal/apierr"
	"github.com/mearth/photosync/internal/blob"
	"github.com/mearth/photosync/internal/index"
	"github.com/mearth/photosync/internal/inference"
	"github.com/mearth/photosync/internal/model"
	"github.com/mearth/photosync/internal/tracectx"
)

// Pipeline runs the photo operations against the three backing collaborators.
// All dependencies are injected; there is no ambient state.
type Pipeline struct {
	describer inference.Describer
	blobs     blob.Store
	photos    index.Index
	rec       *tracectx.Recorder
}

func New(describer inference.Describer, blobs blob.Store, photos index.Index, rec *tracectx.Recorder) *Pipeline {
	return &Pipeline{
		describer: describer,
		blobs:     blobs,
		photos:    photos,
		rec:       rec,
	}
}

// Upload runs the strictly sequential write pipeline: validate, describe,
// store, index. A failure at any step stops the sequence; side effects of
// earlier steps are not rolled back, so an index failure after the blob write
// leaves an orphaned blob. That inconsistency is accepted and visible in the
// step spans rather than masked.
func (p *Pipeline) Upload(ctx context.Context, fileName string, file io.Reader) (photo *model.Photo, err error) {
	ctx, span := p.rec.Start(ctx, "photos.upload", trace.SpanKindInternal)
	defer func() {
		if err != nil {
			span.Fail(err)
		}
		span.Close()
	}()

	logger := zerolog.Ctx(ctx)
	logger.Info().Msg("posting new photo")

	payload, err := p.readUpload(ctx, fileName, file)
	if err != nil {
		return nil, err
	}

	desc, err := p.describe(ctx, payload)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	key := model.StorageKey(id, fileName)

	if err := p.store(ctx, key, payload); err != nil {
		return nil, err
	}

	photo = &model.Photo{
		ID:               id,
		OriginalFileName: fileName,
		StorageKey:       key,
		Description:      desc.Caption,
		UploadedAt:       time.Now().UTC(),
	}

	if err := p.indexCreate(ctx, photo); err != nil {
		return nil, err
	}

	logger.Info().Str("photo_id", id).Str("storage_key", key).Msg("photo stored")
	return photo, nil
}

// readUpload validates the upload and buffers its bytes once, so inference
// and the blob write consume identical content.
func (p *Pipeline) readUpload(ctx context.Context, fileName string, file io.Reader) (payload []byte, err error) {
	_, span := p.rec.Start(ctx, "photos.upload.read", trace.SpanKindConsumer)
	defer func() {
		if err != nil {
			span.Fail(err)
		}
		span.Close()
	}()

	if fileName == "" || file == nil {
		return nil, fmt.Errorf("%w: no file supplied", apierr.ErrInvalidInput)
	}
	if !model.IsImage(fileName) {
		return nil, fmt.Errorf("%w: unsupported file extension in %q", apierr.ErrInvalidInput, fileName)
	}

	payload, err = io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("%w: unreadable upload: %v", apierr.ErrInvalidInput, err)
	}

	span.Tag("file.name", fileName)
	span.Tag("file.size", int64(len(payload)))
	span.Tag("file.detected_type", mimetype.Detect(payload).String())
	return payload, nil
}

func (p *Pipeline) describe(ctx context.Context, payload []byte) (desc inference.Description, err error) {
	ctx, span := p.rec.Start(ctx, "photos.upload.describe", trace.SpanKindConsumer)
	defer func() {
		if err != nil {
			span.Fail(err)
		}
		span.Close()
	}()

	desc, err = p.describer.Describe(ctx, payload)
	if err != nil {
		return inference.Description{}, err
	}

	if desc.Caption == nil {
		zerolog.Ctx(ctx).Warn().Msg("no description returned by inference")
		span.Event("no caption", nil)
		return desc, nil
	}

	span.Tag("caption", *desc.Caption)
	span.Tag("confidence", desc.Confidence)
	return desc, nil
}

func (p *Pipeline) store(ctx context.Context, key string, payload []byte) (err error) {
	ctx, span := p.rec.Start(ctx, "photos.upload.store", trace.SpanKindConsumer)
	defer func() {
		if err != nil {
			span.Fail(err)
		}
		span.Close()
	}()

	span.Tag("storage.key", key)
	return p.blobs.Save(ctx, key, bytes.NewReader(payload))
}

func (p *Pipeline) indexCreate(ctx context.Context, photo *model.Photo) (err error) {
	ctx, span := p.rec.Start(ctx, "photos.upload.index", trace.SpanKindConsumer)
	defer func() {
		if err != nil {
			span.Fail(err)
		}
		span.Close()
	}()

	span.Tag("photo.id", photo.ID)
	return p.photos.Create(ctx, photo)
}

// Get looks the photo up in the index and opens its blob. The two steps have
// separate spans so telemetry distinguishes a missing row from a missing
// object.
func (p *Pipeline) Get(ctx context.Context, id string) (rc io.ReadCloser, contentType string, err error) {
	ctx, span := p.rec.Start(ctx, "photos.get", trace.SpanKindInternal)
	defer func() {
		if err != nil {
			span.Fail(err)
		}
		span.Close()
	}()

	logger := zerolog.Ctx(ctx)
	logger.Info().Str("photo_id", id).Msg("getting photo")

	photo, err := p.lookup(ctx, id)
	if err != nil {
		logger.Warn().Str("photo_id", id).Msg("no photo found in index")
		return nil, "", err
	}

	rc, err = p.open(ctx, photo.StorageKey)
	if err != nil {
		logger.Warn().Str("photo_id", id).Str("storage_key", photo.StorageKey).Msg("no object found for photo")
		return nil, "", err
	}

	return rc, model.ContentTypeByName(photo.OriginalFileName), nil
}

// List returns all photos ordered by original file name.
func (p *Pipeline) List(ctx context.Context) (photos []model.Photo, err error) {
	ctx, span := p.rec.Start(ctx, "photos.list", trace.SpanKindInternal)
	defer func() {
		if err != nil {
			span.Fail(err)
		}
		span.Close()
	}()

	zerolog.Ctx(ctx).Info().Msg("listing photos")

	photos, err = p.photos.List(ctx)
	if err != nil {
		return nil, err
	}

	span.Event("photos loaded", map[string]any{"count": len(photos)})
	span.Tag("photo.count", len(photos))
	return photos, nil
}

// Delete removes the blob first and the index row last: the row is the
// authority for the blob key, so a failure after the blob delete leaves a
// discoverable record rather than an orphaned blob with no pointer.
func (p *Pipeline) Delete(ctx context.Context, id string) (err error) {
	ctx, span := p.rec.Start(ctx, "photos.delete", trace.SpanKindInternal)
	span.Tag("photo.id", id)
	defer func() {
		if err != nil {
			span.Fail(err)
		}
		span.Close()
	}()

	logger := zerolog.Ctx(ctx)
	logger.Info().Str("photo_id", id).Msg("deleting photo")

	photo, err := p.lookup(ctx, id)
	if err != nil {
		logger.Warn().Str("photo_id", id).Msg("no photo found in index")
		return err
	}

	if err := p.deleteBlob(ctx, photo.StorageKey); err != nil {
		return err
	}

	return p.indexDelete(ctx, id)
}

func (p *Pipeline) lookup(ctx context.Context, id string) (photo *model.Photo, err error) {
	ctx, span := p.rec.Start(ctx, "photos.index.lookup", trace.SpanKindConsumer)
	defer func() {
		if err != nil {
			span.Fail(err)
		}
		span.Close()
	}()

	photo, err = p.photos.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	span.Tag("mimetype", model.ContentTypeByName(photo.OriginalFileName))
	return photo, nil
}

func (p *Pipeline) open(ctx context.Context, key string) (rc io.ReadCloser, err error) {
	ctx, span := p.rec.Start(ctx, "photos.blob.open", trace.SpanKindConsumer)
	defer func() {
		if err != nil {
			span.Fail(err)
		}
		span.Close()
	}()

	span.Tag("storage.key", key)
	return p.blobs.Open(ctx, key)
}

func (p *Pipeline) deleteBlob(ctx context.Context, key string) (err error) {
	ctx, span := p.rec.Start(ctx, "photos.blob.delete", trace.SpanKindConsumer)
	defer func() {
		if err != nil {
			span.Fail(err)
		}
		span.Close()
	}()

	span.Tag("storage.key", key)
	return p.blobs.Delete(ctx, key)
}

func (p *Pipeline) indexDelete(ctx context.Context, id string) (err error) {
	ctx, span := p.rec.Start(ctx, "photos.index.delete", trace.SpanKindConsumer)
	defer func() {
		if err != nil {
			span.Fail(err)
		}
		span.Close()
	}()

	span.Tag("photo.id", id)
	return p.photos.Delete(ctx, id)
}
