package upload

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"
)

// DiskStore stores uploads on the local filesystem.
type DiskStore struct {
	dir     string
	maxSize int64
}

// NewDiskStore creates a new DiskStore.
//
// Parameters:
//   - dir: Directory to store files (created if missing)
//   - maxSize: Maximum file size in bytes (0 = no limit)
func NewDiskStore(dir string, maxSize int64) (*DiskStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, err
	}
	return &DiskStore{dir: abs, maxSize: maxSize}, nil
}

// TempStore returns a DiskStore writing into the OS temporary directory.
func TempStore() *DiskStore {
	dir, err := filepath.Abs(os.TempDir())
	if err != nil {
		dir = os.TempDir()
	}
	return &DiskStore{dir: dir}
}

// Dir returns the directory files are written to.
func (s *DiskStore) Dir() string {
	return s.dir
}

// Save writes the file into the store directory, named after filename, and
// returns its absolute path. An existing file with the same name is replaced.
func (s *DiskStore) Save(ctx context.Context, filename string, size int64, r io.Reader) (string, error) {
	if s.maxSize > 0 && size > s.maxSize {
		return "", ErrTooLarge
	}
	name, err := CleanName(filename)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}

	if _, err := io.CopyN(f, r, size); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

// Remove deletes a file previously returned by Save.
func (s *DiskStore) Remove(_ context.Context, location string) error {
	if filepath.Dir(location) != s.dir {
		return os.ErrNotExist
	}
	return os.Remove(location)
}

// Cleanup removes regular files in the store directory older than maxAge.
// Call this periodically when the directory is dedicated to uploads.
func (s *DiskStore) Cleanup(maxAge time.Duration) error {
	cutoff := time.Now().Add(-maxAge)

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			os.Remove(filepath.Join(s.dir, entry.Name()))
		}
	}
	return nil
}
