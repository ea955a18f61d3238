package assets

import (
	"context"
	"os"
	"path/filepath"
	"strings"
)

// BlobStore persists uploaded asset bytes and knows the public URL each key
// is served from.
type BlobStore interface {
	Save(ctx context.Context, key string, content []byte, contentType string) error
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// LocalStore keeps assets on the local filesystem. The HTTP layer serves
// BaseDir under BaseURL.
type LocalStore struct {
	BaseDir string
	BaseURL string
}

func NewLocalStore(baseDir, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, err
	}
	return &LocalStore{BaseDir: baseDir, BaseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

func (s *LocalStore) path(key string) string {
	return filepath.Join(s.BaseDir, filepath.FromSlash(key))
}

func (s *LocalStore) Save(_ context.Context, key string, content []byte, _ string) error {
	p := s.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	return os.WriteFile(p, content, 0o644)
}

func (s *LocalStore) Delete(_ context.Context, key string) error {
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *LocalStore) URL(key string) string {
	return s.BaseURL + "/" + key
}
