// Package memory keeps published lead events in process. It stands in for
// Pub/Sub in development and tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// DefaultRetention is the number of messages kept when no limit is given.
const DefaultRetention = 1000

// Message is one recorded publish.
type Message struct {
	ID          string
	Topic       string
	Payload     any
	Data        []byte
	PublishedAt time.Time
}

// Publisher records the most recent messages, oldest dropped first.
type Publisher struct {
	mu        sync.RWMutex
	retention int
	seq       int
	messages  []Message
	failures  []error
}

// Option customises a Publisher.
type Option func(*Publisher)

// WithRetention caps the number of retained messages. n <= 0 keeps the default.
func WithRetention(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.retention = n
		}
	}
}

// New returns a memory Publisher.
func New(opts ...Option) *Publisher {
	p := &Publisher{retention: DefaultRetention}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// FailNext makes the next len(errs) Publish calls return the given errors in order.
func (p *Publisher) FailNext(errs ...error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures = append(p.failures, errs...)
}

// Publish encodes payload as JSON, the same body Pub/Sub would carry, and records it.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode %s payload: %w", topic, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.failures) > 0 {
		err := p.failures[0]
		p.failures = p.failures[1:]
		return "", fmt.Errorf("publish to %s: %w", topic, err)
	}
	p.seq++
	msg := Message{
		ID:          fmt.Sprintf("memory-%d", p.seq),
		Topic:       topic,
		Payload:     payload,
		Data:        data,
		PublishedAt: time.Now().UTC(),
	}
	p.messages = append(p.messages, msg)
	if over := len(p.messages) - p.retention; over > 0 {
		p.messages = append(p.messages[:0:0], p.messages[over:]...)
	}
	return msg.ID, nil
}

// Messages returns the retained messages, oldest first.
func (p *Publisher) Messages() []Message {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Message, len(p.messages))
	copy(out, p.messages)
	return out
}
