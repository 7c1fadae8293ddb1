// Package site defines the documents served by the marketing site and managed from the admin dashboard.
package site

import "time"

// Aircraft categories shown on the fleet pages.
const (
	CategorySingleEngine = "single-engine"
	CategoryMultiEngine  = "multi-engine"
	CategorySimulator    = "simulator"
)

// RequestKind identifies which lead form produced a Request.
type RequestKind string

// Supported lead kinds.
const (
	KindDiscoveryFlight RequestKind = "discovery-flight"
	KindProgramInfo     RequestKind = "program-info"
	KindAircraftRental  RequestKind = "aircraft-rental"
	KindContact         RequestKind = "contact"
)

// RequestKinds lists every lead kind in display order.
var RequestKinds = []RequestKind{KindDiscoveryFlight, KindProgramInfo, KindAircraftRental, KindContact}

// RequestStatus tracks how far the office has followed up on a lead.
type RequestStatus string

// Request status values.
const (
	StatusNew       RequestStatus = "new"
	StatusContacted RequestStatus = "contacted"
	StatusClosed    RequestStatus = "closed"
)

// RequestStatuses lists every status in follow-up order.
var RequestStatuses = []RequestStatus{StatusNew, StatusContacted, StatusClosed}

// Aircraft is a rentable or training aircraft in the fleet.
type Aircraft struct {
	ID          string    `json:"id" yaml:"id"`
	Slug        string    `json:"slug" yaml:"slug"`
	Name        string    `json:"name" yaml:"name"`
	Make        string    `json:"make" yaml:"make"`
	Model       string    `json:"model" yaml:"model"`
	Year        int       `json:"year" yaml:"year"`
	TailNumber  string    `json:"tail_number" yaml:"tail_number"`
	Category    string    `json:"category" yaml:"category"`
	HourlyRate  int64     `json:"hourly_rate_cents" yaml:"hourly_rate_cents"`
	Description string    `json:"description" yaml:"description"`
	Features    []string  `json:"features,omitempty" yaml:"features"`
	ImageURLs   []string  `json:"image_urls,omitempty" yaml:"image_urls"`
	Available   bool      `json:"available" yaml:"available"`
	SortOrder   int       `json:"sort_order" yaml:"sort_order"`
	CreatedAt   time.Time `json:"created_at" yaml:"-"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"-"`
}

// Package is a priced bundle of flight hours offered inside a Program.
type Package struct {
	Name       string   `json:"name" yaml:"name"`
	Hours      float64  `json:"hours" yaml:"hours"`
	PriceCents int64    `json:"price_cents" yaml:"price_cents"`
	Includes   []string `json:"includes,omitempty" yaml:"includes"`
}

// Program is a training track such as Private Pilot or Instrument Rating.
type Program struct {
	ID        string    `json:"id" yaml:"id"`
	Slug      string    `json:"slug" yaml:"slug"`
	Title     string    `json:"title" yaml:"title"`
	Summary   string    `json:"summary" yaml:"summary"`
	Body      string    `json:"body" yaml:"body"`
	Packages  []Package `json:"packages,omitempty" yaml:"packages"`
	Aircraft  []string  `json:"aircraft,omitempty" yaml:"aircraft"`
	SortOrder int       `json:"sort_order" yaml:"sort_order"`
	Featured  bool      `json:"featured" yaml:"featured"`
}

// Request is a lead captured by one of the public forms.
type Request struct {
	ID           string        `json:"id"`
	Kind         RequestKind   `json:"kind"`
	Name         string        `json:"name"`
	Email        string        `json:"email"`
	Phone        string        `json:"phone,omitempty"`
	Message      string        `json:"message,omitempty"`
	ProgramSlug  string        `json:"program_slug,omitempty"`
	AircraftSlug string        `json:"aircraft_slug,omitempty"`
	SourcePath   string        `json:"source_path,omitempty"`
	Status       RequestStatus `json:"status"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// Testimonial is a student quote shown on the home page.
type Testimonial struct {
	ID       string `json:"id" yaml:"id"`
	Author   string `json:"author" yaml:"author"`
	Role     string `json:"role,omitempty" yaml:"role"`
	Quote    string `json:"quote" yaml:"quote"`
	Rating   int    `json:"rating" yaml:"rating"`
	Featured bool   `json:"featured" yaml:"featured"`
}

// PageView is a single analytics hit sent by the page beacon.
type PageView struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	Referrer  string    `json:"referrer,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	ViewedAt  time.Time `json:"viewed_at"`
}

// Collection names used in the document store.
const (
	CollectionAircraft     = "aircraft"
	CollectionPrograms     = "programs"
	CollectionRequests     = "requests"
	CollectionTestimonials = "testimonials"
)

// Counter names incremented on lead submission.
const CounterRequestsTotal = "requests.total"

// RequestKindCounter names the per-kind lead counter.
func RequestKindCounter(kind RequestKind) string {
	return "requests." + string(kind)
}
