package index

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/mearth/photosync/internal/apierr"
	"github.com/mearth/photosync/internal/model"
)

// Memory is an in-process Index for local runs without a database and for
// tests. Not durable.
type Memory struct {
	mu     sync.RWMutex
	photos map[string]model.Photo
}

var _ Index = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{photos: make(map[string]model.Photo)}
}

func (m *Memory) Create(ctx context.Context, photo *model.Photo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.photos[photo.ID]; ok {
		return fmt.Errorf("%w: %s", apierr.ErrDuplicateObject, photo.ID)
	}
	m.photos[photo.ID] = *photo
	return nil
}

func (m *Memory) Get(ctx context.Context, id string) (*model.Photo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	photo, ok := m.photos[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apierr.ErrNotFound, id)
	}
	return &photo, nil
}

func (m *Memory) List(ctx context.Context) ([]model.Photo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	photos := make([]model.Photo, 0, len(m.photos))
	for _, photo := range m.photos {
		photos = append(photos, photo)
	}
	slices.SortFunc(photos, func(a, b model.Photo) int {
		return strings.Compare(a.OriginalFileName, b.OriginalFileName)
	})
	return photos, nil
}

func (m *Memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.photos[id]; !ok {
		return fmt.Errorf("%w: %s", apierr.ErrNotFound, id)
	}
	delete(m.photos, id)
	return nil
}
