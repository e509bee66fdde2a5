package storage

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

// FileStore keeps artifacts as files in a local models directory.
type FileStore struct {
	basePath string
	mu       sync.RWMutex
}

// NewFileStore creates the directory if needed.
func NewFileStore(basePath string) (*FileStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create models directory")
	}
	return &FileStore{basePath: basePath}, nil
}

// URI returns the artifact's file path.
func (fs *FileStore) URI(name string) string {
	return filepath.Join(fs.basePath, name+Extension)
}

// Put writes data to a temporary file and renames it over the artifact.
func (fs *FileStore) Put(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateName(name); err != nil {
		return err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	tmp, err := os.CreateTemp(fs.basePath, name+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "failed to create temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "failed to write %s", name)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "failed to write %s", name)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return errors.Wrapf(err, "failed to write %s", name)
	}
	return errors.Wrapf(os.Rename(tmp.Name(), fs.URI(name)), "failed to write %s", name)
}

// Get reads the artifact. A missing file is ErrArtifactNotFound.
func (fs *FileStore) Get(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateName(name); err != nil {
		return nil, err
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()

	data, err := os.ReadFile(fs.URI(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrapf(ErrArtifactNotFound, "%s in %s", name, fs.basePath)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", name)
	}
	return data, nil
}

// Exists reports whether name has been saved.
func (fs *FileStore) Exists(ctx context.Context, name string) (bool, error) {
	if err := validateName(name); err != nil {
		return false, err
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()

	_, err := os.Stat(fs.URI(name))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "failed to stat %s", name)
	}
	return true, nil
}
