package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
)

// GCSStorage stores objects in a Google Cloud Storage bucket. Credentials
// come from the environment (GOOGLE_APPLICATION_CREDENTIALS or metadata).
type GCSStorage struct {
	client    *storage.Client
	bucket    string
	publicURL string
}

func NewGCSStorage(ctx context.Context, bucket, publicURL string) (*GCSStorage, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs client: %w", err)
	}
	if publicURL == "" {
		publicURL = "https://storage.googleapis.com/" + bucket
	}
	return &GCSStorage{client: client, bucket: bucket, publicURL: publicURL}, nil
}

func (g *GCSStorage) URL(key string) string {
	return g.publicURL + "/" + key
}

func (g *GCSStorage) put(ctx context.Context, key string, f File) error {
	w := g.client.Bucket(g.bucket).Object(key).NewWriter(ctx)
	w.ContentType = f.ContentType
	if _, err := io.Copy(w, f.Reader); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func (g *GCSStorage) Upload(ctx context.Context, folder string, files []File) ([]Object, error) {
	return uploadAll(ctx, g, folder, files, g.put)
}

func (g *GCSStorage) Delete(ctx context.Context, keys []string) error {
	var errs []error
	for _, key := range keys {
		err := g.client.Bucket(g.bucket).Object(key).Delete(ctx)
		if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
			errs = append(errs, fmt.Errorf("delete %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

func (g *GCSStorage) Close() error {
	return g.client.Close()
}
