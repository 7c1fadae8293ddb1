package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	gcs "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/flightdeck/internal/analytics"
	"github.com/JakeFAU/flightdeck/internal/config"
	"github.com/JakeFAU/flightdeck/internal/docstore"
	"github.com/JakeFAU/flightdeck/internal/storage"
	gcsstore "github.com/JakeFAU/flightdeck/internal/storage/gcs"
	"github.com/JakeFAU/flightdeck/internal/storage/local"
	"github.com/JakeFAU/flightdeck/internal/storage/memory"
	"github.com/JakeFAU/flightdeck/internal/storage/postgres"
)

// Stores holds the persistence backends selected by configuration.
type Stores struct {
	Docs      docstore.Backend
	PageViews analytics.PageViewStore
	Blobs     storage.BlobStore
	URLs      storage.URLMapper
	// Media serves uploaded objects under the public prefix. It is nil when objects
	// are served directly by the storage provider.
	Media http.Handler

	closers []func()
}

// OpenStores connects the document, pageview and blob backends and runs schema migrations.
func OpenStores(ctx context.Context, cfg config.Config, logger *zap.Logger) (_ *Stores, err error) {
	s := &Stores{}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	switch cfg.Storage.DocumentBackend {
	case "postgres":
		pool, err := postgres.NewPool(ctx, postgres.PoolConfig{
			DSN:             cfg.DB.DSN,
			MaxConns:        cfg.DB.MaxConns,
			MinConns:        cfg.DB.MinConns,
			MaxConnLifetime: cfg.DB.MaxConnLifetime,
		})
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, pool.Close)
		docs, err := postgres.NewDocumentStore(pool, cfg.DB.TablePrefix)
		if err != nil {
			return nil, err
		}
		if err := docs.Migrate(ctx); err != nil {
			return nil, err
		}
		views, err := postgres.NewPageViewStore(pool, cfg.DB.TablePrefix)
		if err != nil {
			return nil, err
		}
		if err := views.Migrate(ctx); err != nil {
			return nil, err
		}
		s.Docs, s.PageViews = docs, views
		logger.Info("using postgres document store", zap.String("table_prefix", cfg.DB.TablePrefix))
	case "memory":
		s.Docs = docstore.NewMemoryBackend()
		s.PageViews = memory.NewPageViewStore()
		logger.Info("using in-memory document store; data is lost on restart")
	default:
		return nil, fmt.Errorf("unknown document backend %q", cfg.Storage.DocumentBackend)
	}

	base := cfg.Storage.PublicBaseURL
	switch cfg.Storage.BlobBackend {
	case "gcs":
		client, err := gcs.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create gcs client: %w", err)
		}
		s.closers = append(s.closers, func() { _ = client.Close() })
		blobs, err := gcsstore.New(client, gcsstore.Config{
			Bucket:       cfg.Storage.Bucket,
			CacheControl: cfg.Storage.CacheControl,
			Metadata:     map[string]string{"source": "flightdeck"},
		})
		if err != nil {
			return nil, err
		}
		if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
			base = "https://storage.googleapis.com/" + cfg.Storage.Bucket
		}
		s.Blobs = blobs
		s.URLs = storage.URLMapper{Base: base}
		logger.Info("using gcs blob store", zap.String("bucket", cfg.Storage.Bucket))
	case "local":
		blobs, err := local.New(local.Config{BaseDir: cfg.Storage.LocalDir})
		if err != nil {
			return nil, err
		}
		s.Blobs = blobs
		s.URLs = storage.URLMapper{Base: base, LocalRoot: blobs.BaseDir()}
		s.Media = blobs.Handler()
		logger.Info("using local blob store", zap.String("dir", blobs.BaseDir()))
	case "memory":
		blobs := memory.NewBlobStore()
		s.Blobs = blobs
		s.URLs = storage.URLMapper{Base: base}
		s.Media = blobs.Handler()
	default:
		return nil, fmt.Errorf("unknown blob backend %q", cfg.Storage.BlobBackend)
	}
	return s, nil
}

// Close releases backend connections in reverse order of creation.
func (s *Stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}
