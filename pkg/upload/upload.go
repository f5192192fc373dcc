package upload

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
)

// ErrInvalidName is returned when a filename reduces to nothing usable.
var ErrInvalidName = errors.New("upload: invalid file name")

// ErrTooLarge is returned when a part exceeds the store's size limit.
var ErrTooLarge = errors.New("upload: file too large")

// Store is the interface for upload storage backends.
type Store interface {
	// Save stores exactly size bytes read from r under the given filename
	// and returns the location of the stored file.
	Save(ctx context.Context, filename string, size int64, r io.Reader) (location string, err error)

	// Remove deletes a previously stored file.
	Remove(ctx context.Context, location string) error
}

// CleanName reduces a client supplied filename to a safe base name.
func CleanName(filename string) (string, error) {
	name := strings.ReplaceAll(filename, "\\", "/")
	name = filepath.Base(filepath.FromSlash(name))
	if name == "." || name == ".." || name == string(filepath.Separator) || name == "" {
		return "", ErrInvalidName
	}
	if strings.IndexByte(name, 0) != -1 {
		return "", ErrInvalidName
	}
	return name, nil
}
