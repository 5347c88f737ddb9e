package file

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/hirosato/petsgram/domain"
	"github.com/vincent-petithory/dataurl"
)

// LocalRepository keeps images as plain files under a directory.
type LocalRepository struct {
	dir string
}

func NewLocalRepository(dir string) (*LocalRepository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &LocalRepository{dir: dir}, nil
}

func (impl *LocalRepository) path(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if key == "" || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid image key %q", key)
	}
	return filepath.Join(impl.dir, filepath.FromSlash(clean)), nil
}

func (impl *LocalRepository) Add(ctx context.Context, key string, dataURL string) error {
	decoded, err := dataurl.DecodeString(dataURL)
	if err != nil {
		return err
	}
	filename, err := impl.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return err
	}
	return os.WriteFile(filename, decoded.Data, 0o644)
}

func (impl *LocalRepository) Get(ctx context.Context, key string) (string, error) {
	filename, err := impl.path(key)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(filename)
	if errors.Is(err, os.ErrNotExist) {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return dataurl.New(data, http.DetectContentType(data)).String(), nil
}

// Remove ignores missing files.
func (impl *LocalRepository) Remove(ctx context.Context, key string) {
	filename, err := impl.path(key)
	if err != nil {
		return
	}
	if err := os.Remove(filename); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("file: remove %s: %v", filename, err)
	}
}

var _ domain.ImageRepository = (*LocalRepository)(nil)
