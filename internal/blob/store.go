// Package blob implements the content store addressed by string key that
// holds the photo binaries.
package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mearth/photosync/internal/apierr"
)

// Store is a content store addressed by string key. Save never overwrites an
// existing object; Delete of an absent key is not an error.
type Store interface {
	Save(ctx context.Context, key string, r io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// DiskStore keeps objects as flat files under a single data directory.
type DiskStore struct {
	dataDir string
}

var _ Store = (*DiskStore)(nil)

// NewDiskStore creates the data directory if it does not exist.
func NewDiskStore(dataDir string) (*DiskStore, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", dataDir, err)
	}
	return &DiskStore{dataDir: dataDir}, nil
}

// Save writes the object under key. Writes go to a temp file first and are
// fsynced before an atomic rename, so readers never observe partial objects.
// An existing object under the same key fails with ErrDuplicateObject.
func (s *DiskStore) Save(ctx context.Context, key string, r io.Reader) error {
	fullPath, err := s.path(key)
	if err != nil {
		return err
	}

	if _, err := os.Stat(fullPath); err == nil {
		return fmt.Errorf("%w: %s", apierr.ErrDuplicateObject, key)
	}

	tmpPath := fullPath + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o640)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write object %s: %w", key, err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to fsync object %s: %w", key, err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close object %s: %w", key, err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename object %s: %w", key, err)
	}

	return nil
}

// Open returns a reader over the object. The caller must close it.
func (s *DiskStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	fullPath, err := s.path(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", apierr.ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to open object %s: %w", key, err)
	}
	return f, nil
}

// Delete removes the object. Deleting an absent key returns nil.
func (s *DiskStore) Delete(ctx context.Context, key string) error {
	fullPath, err := s.path(key)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}

// path validates the key and resolves it under the data directory. Keys are
// flat names; anything resembling a path is rejected.
func (s *DiskStore) path(key string) (string, error) {
	if key == "" || filepath.Base(key) != key {
		return "", fmt.Errorf("%w: invalid object key %q", apierr.ErrInvalidInput, key)
	}
	return filepath.Join(s.dataDir, key), nil
}
