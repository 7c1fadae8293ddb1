package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/flightdeck/internal/docstore"
)

// DocumentStore implements docstore.Backend on a JSONB documents table and a counters table.
type DocumentStore struct {
	pool      Pool
	documents string
	counters  string
	now       func() time.Time
}

// NewDocumentStore wraps an open pool. prefix is prepended to the table names.
func NewDocumentStore(pool Pool, prefix string) (*DocumentStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	documents, err := tableName(prefix, "documents")
	if err != nil {
		return nil, err
	}
	counters, err := tableName(prefix, "counters")
	if err != nil {
		return nil, err
	}
	return &DocumentStore{
		pool:      pool,
		documents: documents,
		counters:  counters,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// Migrate creates the documents and counters tables when missing.
func (s *DocumentStore) Migrate(ctx context.Context) error {
	statements := []string{
		fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	collection TEXT NOT NULL,
	id TEXT NOT NULL,
	body JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (collection, id)
)`, s.documents),
		fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	name TEXT PRIMARY KEY,
	value BIGINT NOT NULL DEFAULT 0
)`, s.counters),
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate documents: %w", err)
		}
	}
	return nil
}

// Get loads a single document.
func (s *DocumentStore) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	query := fmt.Sprintf(`SELECT body, created_at, updated_at FROM %s WHERE collection = $1 AND id = $2`, s.documents)
	doc := docstore.Document{ID: id}
	err := s.pool.QueryRow(ctx, query, collection, id).Scan(&doc.Body, &doc.CreatedAt, &doc.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return docstore.Document{}, docstore.ErrNotFound
	}
	if err != nil {
		return docstore.Document{}, fmt.Errorf("select document: %w", err)
	}
	return doc, nil
}

// Put upserts a document body.
func (s *DocumentStore) Put(ctx context.Context, collection, id string, body []byte) error {
	query := fmt.Sprintf(`
INSERT INTO %s (collection, id, body, created_at, updated_at)
VALUES ($1, $2, $3, $4, $4)
ON CONFLICT (collection, id) DO UPDATE SET body = EXCLUDED.body, updated_at = EXCLUDED.updated_at`, s.documents)
	if _, err := s.pool.Exec(ctx, query, collection, id, body, s.now()); err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return nil
}

// Delete removes a document, returning docstore.ErrNotFound when nothing matched.
func (s *DocumentStore) Delete(ctx context.Context, collection, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE collection = $1 AND id = $2`, s.documents)
	tag, err := s.pool.Exec(ctx, query, collection, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

// List returns every document in a collection ordered by id.
func (s *DocumentStore) List(ctx context.Context, collection string) ([]docstore.Document, error) {
	query := fmt.Sprintf(`SELECT id, body, created_at, updated_at FROM %s WHERE collection = $1 ORDER BY id`, s.documents)
	rows, err := s.pool.Query(ctx, query, collection)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []docstore.Document
	for rows.Next() {
		var doc docstore.Document
		if err := rows.Scan(&doc.ID, &doc.Body, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

// Increment atomically adds delta to a counter and returns the new value.
func (s *DocumentStore) Increment(ctx context.Context, counter string, delta int64) (int64, error) {
	query := fmt.Sprintf(`
INSERT INTO %[1]s (name, value) VALUES ($1, $2)
ON CONFLICT (name) DO UPDATE SET value = %[1]s.value + EXCLUDED.value
RETURNING value`, s.counters)
	var value int64
	if err := s.pool.QueryRow(ctx, query, counter, delta).Scan(&value); err != nil {
		return 0, fmt.Errorf("increment counter: %w", err)
	}
	return value, nil
}

// Counter reads a counter; a missing counter reads as zero.
func (s *DocumentStore) Counter(ctx context.Context, counter string) (int64, error) {
	query := fmt.Sprintf(`SELECT value FROM %s WHERE name = $1`, s.counters)
	var value int64
	err := s.pool.QueryRow(ctx, query, counter).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("select counter: %w", err)
	}
	return value, nil
}

// Ping checks database connectivity.
func (s *DocumentStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *DocumentStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}
