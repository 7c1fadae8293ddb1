// Package docstore is the document database abstraction behind every site record.
//
// A Backend stores opaque JSON bodies keyed by collection and ID plus a set of named counters.
// Collection layers typed encode/decode on top so services work with site types directly.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a document or counter does not exist.
var ErrNotFound = errors.New("document not found")

// Document is a raw stored record.
type Document struct {
	ID        string
	Body      []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Backend persists raw documents and counters.
type Backend interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	Put(ctx context.Context, collection, id string, body []byte) error
	Delete(ctx context.Context, collection, id string) error
	List(ctx context.Context, collection string) ([]Document, error)
	Increment(ctx context.Context, counter string, delta int64) (int64, error)
	Counter(ctx context.Context, counter string) (int64, error)
	Ping(ctx context.Context) error
	Close()
}

// Collection is a typed view over one backend collection.
type Collection[T any] struct {
	backend Backend
	name    string
}

// NewCollection binds a typed collection to a backend.
func NewCollection[T any](backend Backend, name string) *Collection[T] {
	return &Collection[T]{backend: backend, name: name}
}

// Name returns the collection name.
func (c *Collection[T]) Name() string {
	return c.name
}

// Get loads and decodes a single document.
func (c *Collection[T]) Get(ctx context.Context, id string) (T, error) {
	var out T
	doc, err := c.backend.Get(ctx, c.name, id)
	if err != nil {
		return out, fmt.Errorf("get %s/%s: %w", c.name, id, err)
	}
	if err := json.Unmarshal(doc.Body, &out); err != nil {
		return out, fmt.Errorf("decode %s/%s: %w", c.name, id, err)
	}
	return out, nil
}

// Put encodes and stores value under id, replacing any existing document.
func (c *Collection[T]) Put(ctx context.Context, id string, value T) error {
	if id == "" {
		return fmt.Errorf("put %s: id is required", c.name)
	}
	body, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", c.name, id, err)
	}
	if err := c.backend.Put(ctx, c.name, id, body); err != nil {
		return fmt.Errorf("put %s/%s: %w", c.name, id, err)
	}
	return nil
}

// Delete removes a document.
func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	if err := c.backend.Delete(ctx, c.name, id); err != nil {
		return fmt.Errorf("delete %s/%s: %w", c.name, id, err)
	}
	return nil
}

// List decodes every document in the collection. Order is unspecified.
func (c *Collection[T]) List(ctx context.Context) ([]T, error) {
	docs, err := c.backend.List(ctx, c.name)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", c.name, err)
	}
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		var v T
		if err := json.Unmarshal(doc.Body, &v); err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", c.name, doc.ID, err)
		}
		out = append(out, v)
	}
	return out, nil
}
