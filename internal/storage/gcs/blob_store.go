// Package gcs stores uploaded media in a Google Cloud Storage bucket.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
)

// ErrInvalidPath is returned for object names that are empty, absolute or contain dot segments.
var ErrInvalidPath = errors.New("gcs: invalid object path")

// Config names the bucket and the headers applied to every upload.
type Config struct {
	Bucket string
	// CacheControl is applied to uploaded objects when set.
	CacheControl string
	// Metadata is attached to every uploaded object.
	Metadata map[string]string
}

// BlobStore writes media objects to one bucket.
type BlobStore struct {
	client *storage.Client
	cfg    Config
}

// New creates a GCS-backed blob store.
func New(client *storage.Client, cfg Config) (*BlobStore, error) {
	if client == nil {
		return nil, errors.New("gcs: storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("gcs: bucket name is required")
	}
	return &BlobStore{client: client, cfg: cfg}, nil
}

// PutObject uploads r as a single request and returns gs://<bucket>/<path>.
func (s *BlobStore) PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error) {
	if err := checkPath(path); err != nil {
		return "", err
	}
	w := s.client.Bucket(s.cfg.Bucket).Object(path).NewWriter(ctx)
	// Images are small; one request avoids a resumable upload session.
	w.ChunkSize = 0
	w.ContentType = contentType
	w.CacheControl = s.cfg.CacheControl
	if len(s.cfg.Metadata) > 0 {
		w.Metadata = s.cfg.Metadata
	}
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("upload %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize %s: %w", path, err)
	}
	return "gs://" + s.cfg.Bucket + "/" + path, nil
}

// DeleteObject removes an object. A missing object is not an error.
func (s *BlobStore) DeleteObject(ctx context.Context, path string) error {
	if err := checkPath(path); err != nil {
		return err
	}
	err := s.client.Bucket(s.cfg.Bucket).Object(path).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

func checkPath(path string) error {
	if strings.TrimSpace(path) == "" || strings.HasPrefix(path, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	for _, seg := range strings.Split(path, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	return nil
}
