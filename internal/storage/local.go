package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorage writes objects under a directory, for development.
type LocalStorage struct {
	root      string
	publicURL string
}

func NewLocalStorage(root, publicURL string) (*LocalStorage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	if publicURL == "" {
		publicURL = "/uploads"
	}
	return &LocalStorage{root: root, publicURL: strings.TrimRight(publicURL, "/")}, nil
}

func (l *LocalStorage) Root() string { return l.root }

func (l *LocalStorage) URL(key string) string {
	return l.publicURL + "/" + key
}

func (l *LocalStorage) path(key string) (string, error) {
	p := filepath.Join(l.root, filepath.FromSlash(key))
	rel, err := filepath.Rel(l.root, p)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return p, nil
}

func (l *LocalStorage) put(_ context.Context, key string, f File) error {
	p, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	dst, err := os.Create(p)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, f.Reader); err != nil {
		dst.Close()
		_ = os.Remove(p)
		return err
	}
	return dst.Close()
}

func (l *LocalStorage) Upload(ctx context.Context, folder string, files []File) ([]Object, error) {
	return uploadAll(ctx, l, folder, files, l.put)
}

func (l *LocalStorage) Delete(_ context.Context, keys []string) error {
	var errs []error
	for _, key := range keys {
		p, err := l.path(key)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
