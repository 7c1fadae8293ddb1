// Package notify defines the lead notification job and the ports the
// notification workers deliver through.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/JakeFAU/flightdeck/internal/site"
)

// ErrQueueClosed is returned by a Queue after shutdown.
var ErrQueueClosed = errors.New("queue closed")

// Job is a queued notification for one stored lead.
type Job struct {
	RequestID string
	Request   site.Request
	Attempt   int
}

// Queue is a bounded FIFO of notification jobs.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Dequeue(ctx context.Context) (Job, error)
}

// Publisher pushes an event payload to a topic and returns the broker message ID.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// LeadEvent is the compact JSON message published for every new lead.
type LeadEvent struct {
	Type         string    `json:"type"`
	RequestID    string    `json:"request_id"`
	Kind         string    `json:"kind"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	ProgramSlug  string    `json:"program_slug,omitempty"`
	AircraftSlug string    `json:"aircraft_slug,omitempty"`
	SourcePath   string    `json:"source_path,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// LeadCreated is the LeadEvent type for newly stored requests.
const LeadCreated = "lead.created"

// NewLeadEvent builds the event published for a stored request.
func NewLeadEvent(r site.Request) LeadEvent {
	return LeadEvent{
		Type:         LeadCreated,
		RequestID:    r.ID,
		Kind:         string(r.Kind),
		Name:         r.Name,
		Email:        r.Email,
		ProgramSlug:  r.ProgramSlug,
		AircraftSlug: r.AircraftSlug,
		SourcePath:   r.SourcePath,
		CreatedAt:    r.CreatedAt,
	}
}
