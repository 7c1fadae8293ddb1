package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/flightdeck/internal/site"
)

// DefaultMaxImageBytes is the upload limit when none is configured.
const DefaultMaxImageBytes = 10 << 20

var (
	// ErrUnsupportedImage is returned for uploads that are not images.
	ErrUnsupportedImage = errors.New("catalog: only image uploads are accepted")
	// ErrImageTooLarge is returned when an upload exceeds the configured limit.
	ErrImageTooLarge = errors.New("catalog: image is too large")
	// ErrImageNotFound is returned when removing a URL the aircraft does not list.
	ErrImageNotFound = errors.New("catalog: image not found on aircraft")
	// ErrNoBlobStore is returned when image operations are attempted without object storage.
	ErrNoBlobStore = errors.New("catalog: object storage is not configured")
)

var extByType = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/avif": ".avif",
}

// AddAircraftImage stores an uploaded image under aircraft/<id>/<sha256>.<ext> and appends
// its public URL to the aircraft. Uploading the same bytes twice keeps a single entry.
func (s *Service) AddAircraftImage(ctx context.Context, id, filename, contentType string, r io.Reader) (site.Aircraft, error) {
	if s.blobs == nil || s.hasher == nil {
		return site.Aircraft{}, ErrNoBlobStore
	}
	a, err := s.aircraft.Get(ctx, id)
	if err != nil {
		return site.Aircraft{}, err
	}

	data, err := io.ReadAll(io.LimitReader(r, s.maxImageBytes+1))
	if err != nil {
		return site.Aircraft{}, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.maxImageBytes {
		return site.Aircraft{}, ErrImageTooLarge
	}
	mediaType := imageMediaType(contentType, data)
	if mediaType == "" {
		return site.Aircraft{}, ErrUnsupportedImage
	}

	digest, err := s.hasher.Hash(data)
	if err != nil {
		return site.Aircraft{}, fmt.Errorf("hash upload: %w", err)
	}
	objectPath := fmt.Sprintf("aircraft/%s/%s%s", a.ID, digest, imageExt(filename, mediaType))
	uri, err := s.blobs.PutObject(ctx, objectPath, mediaType, bytes.NewReader(data))
	if err != nil {
		return site.Aircraft{}, fmt.Errorf("store image: %w", err)
	}
	publicURL := s.urls.PublicURL(uri)
	for _, existing := range a.ImageURLs {
		if existing == publicURL {
			return a, nil
		}
	}
	a.ImageURLs = append(a.ImageURLs, publicURL)
	a.UpdatedAt = s.clock.Now().UTC()
	if err := s.aircraft.Put(ctx, a.ID, a); err != nil {
		return site.Aircraft{}, err
	}
	s.logger.Info("aircraft image added",
		zap.String("id", a.ID),
		zap.String("object", objectPath),
		zap.Int("bytes", len(data)),
	)
	return a, nil
}

// RemoveAircraftImage drops url from the aircraft and deletes the stored object when it is ours.
func (s *Service) RemoveAircraftImage(ctx context.Context, id, url string) (site.Aircraft, error) {
	a, err := s.aircraft.Get(ctx, id)
	if err != nil {
		return site.Aircraft{}, err
	}
	kept := make([]string, 0, len(a.ImageURLs))
	found := false
	for _, u := range a.ImageURLs {
		if u == url {
			found = true
			continue
		}
		kept = append(kept, u)
	}
	if !found {
		return site.Aircraft{}, ErrImageNotFound
	}
	a.ImageURLs = kept
	a.UpdatedAt = s.clock.Now().UTC()
	if err := s.aircraft.Put(ctx, a.ID, a); err != nil {
		return site.Aircraft{}, err
	}
	s.deleteBlob(ctx, url)
	return a, nil
}

func (s *Service) deleteBlob(ctx context.Context, publicURL string) {
	if s.blobs == nil {
		return
	}
	objectPath, ok := s.urls.ObjectPath(publicURL)
	if !ok {
		return
	}
	if err := s.blobs.DeleteObject(ctx, objectPath); err != nil {
		s.logger.Warn("delete image object failed", zap.String("object", objectPath), zap.Error(err))
	}
}

// svgType is refused even though it is an image/* type.
const svgType = "image/svg+xml"

// unsniffable lists image types http.DetectContentType may not recognise. A declared
// type from this set is accepted when the bytes sniff as generic binary.
var unsniffable = map[string]bool{
	"image/avif": true,
	"image/heic": true,
	"image/heif": true,
}

// imageMediaType returns the image media type of an upload, or "" when it is not an accepted image.
// The bytes decide: a declared image type must agree with what the content sniffs as.
func imageMediaType(declared string, data []byte) string {
	var declaredType string
	if declared != "" {
		mt, _, err := mime.ParseMediaType(declared)
		if err != nil {
			return ""
		}
		switch {
		case mt == svgType:
			return ""
		case strings.HasPrefix(mt, "image/"):
			declaredType = mt
		case mt != "application/octet-stream":
			return ""
		}
	}
	sniffed, _, err := mime.ParseMediaType(http.DetectContentType(data))
	if err != nil {
		return ""
	}
	if strings.HasPrefix(sniffed, "image/") && sniffed != svgType {
		return sniffed
	}
	if sniffed == "application/octet-stream" && unsniffable[declaredType] {
		return declaredType
	}
	return ""
}

func imageExt(filename, mediaType string) string {
	if ext, ok := extByType[mediaType]; ok {
		return ext
	}
	if ext := strings.ToLower(filepath.Ext(filename)); ext != "" && len(ext) <= 6 {
		return ext
	}
	if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}
