// Package storage keeps uploaded identity proofs and payment receipts.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// File is one upload. Reader is consumed exactly once.
type File struct {
	Name        string
	ContentType string
	Reader      io.Reader
}

type Object struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

type Storage interface {
	// Upload stores every file under folder. If any upload fails, the files
	// already stored by this call are deleted and the error is returned.
	Upload(ctx context.Context, folder string, files []File) ([]Object, error)
	// Delete removes keys; missing keys are not an error.
	Delete(ctx context.Context, keys []string) error
	URL(key string) string
}

const (
	FolderDocuments = "documents"
	FolderPayments  = "payments"
)

var allowedExt = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".pdf": true, ".webp": true,
}

var ErrUnsupportedFile = errors.New("unsupported file type")

func objectKey(folder, name string, now time.Time) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if !allowedExt[ext] {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFile, name)
	}
	return path.Join(folder, now.Format("2006/01"), uuid.NewString()+ext), nil
}

type putFunc func(ctx context.Context, key string, f File) error

// uploadAll puts files one by one and rolls back on the first failure.
func uploadAll(ctx context.Context, s Storage, folder string, files []File, put putFunc) ([]Object, error) {
	out := make([]Object, 0, len(files))
	rollback := func() {
		if len(out) == 0 {
			return
		}
		keys := make([]string, 0, len(out))
		for _, o := range out {
			keys = append(keys, o.Key)
		}
		_ = s.Delete(context.WithoutCancel(ctx), keys)
	}

	now := time.Now()
	for _, f := range files {
		key, err := objectKey(folder, f.Name, now)
		if err != nil {
			rollback()
			return nil, err
		}
		if err := put(ctx, key, f); err != nil {
			rollback()
			return nil, fmt.Errorf("upload %s: %w", f.Name, err)
		}
		out = append(out, Object{Key: key, URL: s.URL(key)})
	}
	return out, nil
}
