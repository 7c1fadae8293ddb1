package site

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"
)

// Domain errors.
var (
	ErrEmptyName        = errors.New("name cannot be empty")
	ErrEmptyTitle       = errors.New("title cannot be empty")
	ErrInvalidYear      = errors.New("year is out of range")
	ErrNegativeRate     = errors.New("hourly rate must be >= 0")
	ErrInvalidCategory  = errors.New("unknown aircraft category")
	ErrInvalidEmail     = errors.New("email address is invalid")
	ErrInvalidKind      = errors.New("unknown request kind")
	ErrInvalidStatus    = errors.New("unknown request status")
	ErrMessageTooLong   = errors.New("message is too long")
	ErrInvalidRating    = errors.New("rating must be between 1 and 5")
	ErrInvalidPackage   = errors.New("package is invalid")
	ErrInvalidPagePath  = errors.New("page path must start with / and be clean UTF-8")
	ErrMissingTimestamp = errors.New("timestamp is required")
)

// MaxMessageLength bounds free-text lead messages.
const MaxMessageLength = 5000

// first powered flight; nothing older belongs in a fleet listing.
const minAircraftYear = 1903

var validCategories = []string{CategorySingleEngine, CategoryMultiEngine, CategorySimulator}

// Validate checks an Aircraft against the listing rules. now bounds the model year.
func (a Aircraft) Validate(now time.Time) error {
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyName
	}
	if a.Year != 0 && (a.Year < minAircraftYear || a.Year > now.Year()+1) {
		return ErrInvalidYear
	}
	if a.HourlyRate < 0 {
		return ErrNegativeRate
	}
	if a.Category != "" && !contains(validCategories, a.Category) {
		return ErrInvalidCategory
	}
	return nil
}

// Validate checks a Program and its packages.
func (p Program) Validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return ErrEmptyTitle
	}
	for i, pkg := range p.Packages {
		if err := pkg.Validate(); err != nil {
			return fmt.Errorf("package %d: %w", i, err)
		}
	}
	return nil
}

// Validate checks a Package.
func (p Package) Validate() error {
	if strings.TrimSpace(p.Name) == "" || p.PriceCents < 0 || p.Hours < 0 {
		return ErrInvalidPackage
	}
	return nil
}

// Validate checks a lead before it is stored.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ErrEmptyName
	}
	if !ValidEmail(r.Email) {
		return ErrInvalidEmail
	}
	if !r.Kind.Valid() {
		return ErrInvalidKind
	}
	if r.Status != "" && !r.Status.Valid() {
		return ErrInvalidStatus
	}
	if utf8.RuneCountInString(r.Message) > MaxMessageLength {
		return ErrMessageTooLong
	}
	return nil
}

// Validate checks a Testimonial.
func (t Testimonial) Validate() error {
	if strings.TrimSpace(t.Author) == "" {
		return ErrEmptyName
	}
	if t.Rating < 1 || t.Rating > 5 {
		return ErrInvalidRating
	}
	return nil
}

// Validate checks a PageView before it is recorded.
func (v PageView) Validate() error {
	if !strings.HasPrefix(v.Path, "/") || v.Path != CleanText(v.Path, MaxPagePathBytes) {
		return ErrInvalidPagePath
	}
	if v.ViewedAt.IsZero() {
		return ErrMissingTimestamp
	}
	return nil
}

// Valid reports whether k is a known request kind.
func (k RequestKind) Valid() bool {
	switch k {
	case KindDiscoveryFlight, KindProgramInfo, KindAircraftRental, KindContact:
		return true
	}
	return false
}

// Valid reports whether s is a known request status.
func (s RequestStatus) Valid() bool {
	switch s {
	case StatusNew, StatusContacted, StatusClosed:
		return true
	}
	return false
}

// ValidEmail reports whether addr is a bare, well formed address.
func ValidEmail(addr string) bool {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return false
	}
	parsed, err := mail.ParseAddress(addr)
	if err != nil {
		return false
	}
	// reject "Name <a@b>" forms; the form field is the address only
	return parsed.Address == addr && strings.Contains(addr[strings.LastIndex(addr, "@"):], ".")
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
