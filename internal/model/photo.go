package model

import (
	"mime"
	"path/filepath"
	"strings"
	"time"
)

// Photo is the index record for one stored image. The record and its blob are
// created together on upload and are read-only afterwards, except for
// deletion, which removes both.
type Photo struct {
	// ID is generated server-side and is never client-supplied.
	ID string `json:"id"`

	// OriginalFileName is the client-supplied name, used only for
	// content-type inference and display.
	OriginalFileName string `json:"originalFileName"`

	// StorageKey is the blob key, derived from ID and the lower-cased
	// extension of the original file name.
	StorageKey string `json:"storageKey"`

	// Description is the inference caption. Nil when inference yielded
	// nothing.
	Description *string `json:"description"`

	UploadedAt time.Time `json:"uploadedAt"`
}

// allowedExtensions is the set of image extensions accepted for upload.
var allowedExtensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".gif":  {},
	".bmp":  {},
	".webp": {},
}

// IsImage reports whether the file name carries an allowed image extension.
func IsImage(fileName string) bool {
	ext := strings.ToLower(filepath.Ext(fileName))
	_, ok := allowedExtensions[ext]
	return ok
}

// StorageKey derives the blob key for a photo: the id followed by the
// lower-cased extension of the original file name.
func StorageKey(id, fileName string) string {
	return id + strings.ToLower(filepath.Ext(fileName))
}

// ContentTypeByName infers the content type from the file name extension.
// Falls back to application/octet-stream for unknown extensions.
func ContentTypeByName(fileName string) string {
	ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(fileName)))
	if ct == "" {
		return "application/octet-stream"
	}
	return ct
}
