package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"media-pipeline/internal/domain"
	"media-pipeline/internal/domain/ports/adapter"
)

var _ adapter.AssetStore = (*LocalStore)(nil)

// LocalStore writes objects under a root directory. URLs are file paths.
type LocalStore struct {
	root string
}

func NewLocalStore(root string) (*LocalStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create asset dir: %w", err)
	}
	return &LocalStore{root: abs}, nil
}

func (s *LocalStore) Root() string { return s.root }

func (s *LocalStore) Put(ctx context.Context, key string, r io.Reader, _ int64, _ string) (adapter.StoredObject, error) {
	path, err := s.resolve(key)
	if err != nil {
		return adapter.StoredObject{}, err
	}
	if err := ctx.Err(); err != nil {
		return adapter.StoredObject{}, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return adapter.StoredObject{}, err
	}

	// write to a temp file first so readers never see a partial asset
	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return adapter.StoredObject{}, err
	}
	n, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return adapter.StoredObject{}, fmt.Errorf("write %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return adapter.StoredObject{}, err
	}
	return adapter.StoredObject{Key: key, Path: path, URL: "file://" + path, Size: n}, nil
}

func (s *LocalStore) URL(_ context.Context, key string) (string, error) {
	path, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", domain.ErrNotFound
		}
		return "", err
	}
	return "file://" + path, nil
}

// resolve keeps keys inside root.
func (s *LocalStore) resolve(key string) (string, error) {
	clean := filepath.Clean("/" + strings.TrimSpace(key))
	if clean == "/" {
		return "", fmt.Errorf("empty key: %w", domain.ErrInvalidArgument)
	}
	return filepath.Join(s.root, clean), nil
}
