package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// PublicPrefix is the URL path prefix under which stored images are served.
const PublicPrefix = "/uploads"

// ImageStore persists uploaded image blobs and hands back public paths.
type ImageStore interface {
	Store(src io.Reader, originalName string) (string, error)
	Remove(publicPath string) error
}

// DiskImageStore writes images into a single flat directory. Names are
// random UUIDs, so concurrent writers never collide and nothing is ever
// overwritten.
type DiskImageStore struct {
	dir string
}

// NewDiskImageStore creates a store rooted at dir. The directory itself is
// created lazily on first write.
func NewDiskImageStore(dir string) *DiskImageStore {
	return &DiskImageStore{dir: dir}
}

// Store writes the blob under a generated unique name, keeping the extension
// of the original file name, and returns the public path to serve it from.
func (s *DiskImageStore) Store(src io.Reader, originalName string) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}

	name := uuid.New().String() + filepath.Ext(originalName)
	dst, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return "", fmt.Errorf("failed to create image file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(dst.Name())
		return "", fmt.Errorf("failed to write image file: %w", err)
	}
	return PublicPrefix + "/" + name, nil
}

// Remove deletes the file behind a public path previously returned by Store.
// A missing file is not an error; the record reference is what matters.
func (s *DiskImageStore) Remove(publicPath string) error {
	name := strings.TrimPrefix(publicPath, PublicPrefix+"/")
	// Reject anything that escapes the upload directory.
	if name == "" || name != filepath.Base(name) {
		return fmt.Errorf("invalid image path %q", publicPath)
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove image file: %w", err)
	}
	return nil
}
