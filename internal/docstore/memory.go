package docstore

import (
	"context"
	"sync"
	"time"
)

// MemoryBackend keeps documents in process memory for development and tests.
type MemoryBackend struct {
	mu       sync.RWMutex
	docs     map[string]map[string]Document
	counters map[string]int64
	now      func() time.Time
}

// NewMemoryBackend constructs an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		docs:     make(map[string]map[string]Document),
		counters: make(map[string]int64),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Get returns a copy of the stored document.
func (m *MemoryBackend) Get(_ context.Context, collection, id string) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[collection][id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return cloneDocument(doc), nil
}

// Put stores a copy of body, preserving CreatedAt on overwrite.
func (m *MemoryBackend) Put(_ context.Context, collection, id string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	coll, ok := m.docs[collection]
	if !ok {
		coll = make(map[string]Document)
		m.docs[collection] = coll
	}
	now := m.now()
	created := now
	if existing, ok := coll[id]; ok {
		created = existing.CreatedAt
	}
	coll[id] = Document{
		ID:        id,
		Body:      append([]byte(nil), body...),
		CreatedAt: created,
		UpdatedAt: now,
	}
	return nil
}

// Delete removes a document, returning ErrNotFound when absent.
func (m *MemoryBackend) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[collection][id]; !ok {
		return ErrNotFound
	}
	delete(m.docs[collection], id)
	return nil
}

// List returns copies of every document in a collection.
func (m *MemoryBackend) List(_ context.Context, collection string) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Document, 0, len(m.docs[collection]))
	for _, doc := range m.docs[collection] {
		out = append(out, cloneDocument(doc))
	}
	return out, nil
}

// Increment adds delta to a counter and returns the new value.
func (m *MemoryBackend) Increment(_ context.Context, counter string, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[counter] += delta
	return m.counters[counter], nil
}

// Counter reads a counter; missing counters read as zero.
func (m *MemoryBackend) Counter(_ context.Context, counter string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counters[counter], nil
}

// Ping always succeeds.
func (m *MemoryBackend) Ping(context.Context) error { return nil }

// Close is a no-op.
func (m *MemoryBackend) Close() {}

func cloneDocument(doc Document) Document {
	doc.Body = append([]byte(nil), doc.Body...)
	return doc
}
