// Package index implements the relational record store for photos.
package index

import (
	"context"

	"github.com/mearth/photosync/internal/model"
)

// Index is the photo record store. Get and Delete return ErrNotFound for an
// absent id; List is ordered by original file name ascending.
type Index interface {
	Create(ctx context.Context, photo *model.Photo) error
	Get(ctx context.Context, id string) (*model.Photo, error)
	List(ctx context.Context) ([]model.Photo, error)
	Delete(ctx context.Context, id string) error
}
