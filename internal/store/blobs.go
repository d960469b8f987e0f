package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// BlobStore keeps media files on disk under random names.
type BlobStore struct {
	dir string
}

func NewBlobStore(dir string) (*BlobStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating blob dir: %w", err)
	}
	return &BlobStore{dir: dir}, nil
}

// Put writes data and returns the name to read it back with.
func (b *BlobStore) Put(data []byte, ext string) (string, error) {
	name := uuid.New().String()
	if ext = strings.TrimPrefix(ext, "."); ext != "" {
		name += "." + ext
	}
	tmp, err := os.CreateTemp(b.dir, ".upload-*")
	if err != nil {
		return "", err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Rename(tmp.Name(), filepath.Join(b.dir, name)); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return name, nil
}

func (b *BlobStore) Get(name string) ([]byte, error) {
	path, err := b.path(name)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// Delete removes a blob. Missing blobs are not an error.
func (b *BlobStore) Delete(name string) error {
	if name == "" {
		return nil
	}
	path, err := b.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (b *BlobStore) path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("invalid blob name %q", name)
	}
	return filepath.Join(b.dir, name), nil
}
