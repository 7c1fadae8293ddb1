// Package storage defines the blob store abstraction used for uploaded media.
// Implementations live in the memory, local and gcs subpackages.
package storage

import (
	"context"
	"io"
	"net/url"
	"path/filepath"
	"strings"
)

// BlobStore persists opaque objects and returns a backend-specific URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
	DeleteObject(ctx context.Context, path string) error
}

// URLMapper translates stored object URIs into browser-facing URLs and back.
type URLMapper struct {
	// Base is the public prefix objects are served under, e.g. "/media" or a CDN origin.
	Base string
	// LocalRoot is the base directory of the local blob store, used to relativise file:// URIs.
	LocalRoot string
}

// PublicURL maps a memory://, file:// or gs:// URI to the URL a browser should load.
// Unknown schemes are returned unchanged.
func (m URLMapper) PublicURL(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return uri
	}
	var objectPath string
	switch u.Scheme {
	case "memory":
		objectPath = strings.TrimPrefix(u.Host+u.Path, "/")
	case "file":
		root, absErr := filepath.Abs(m.LocalRoot)
		if absErr != nil || u.Host != "" {
			return uri
		}
		rel, relErr := filepath.Rel(root, filepath.FromSlash(u.Path))
		if relErr != nil || strings.HasPrefix(rel, "..") {
			return uri
		}
		objectPath = filepath.ToSlash(rel)
	case "gs":
		objectPath = strings.TrimPrefix(u.Path, "/")
		if m.Base == "" {
			return "https://storage.googleapis.com/" + u.Host + "/" + objectPath
		}
	default:
		return uri
	}
	return strings.TrimSuffix(m.Base, "/") + "/" + objectPath
}

// ObjectPath reverses PublicURL for URLs under Base. ok is false for foreign URLs.
func (m URLMapper) ObjectPath(publicURL string) (string, bool) {
	prefix := strings.TrimSuffix(m.Base, "/") + "/"
	if m.Base == "" || !strings.HasPrefix(publicURL, prefix) {
		return "", false
	}
	p := strings.TrimPrefix(publicURL, prefix)
	if p == "" || strings.Contains(p, "..") {
		return "", false
	}
	return p, true
}
