package leads

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/JakeFAU/flightdeck/internal/site"
)

// ErrInvalidForm is matched by every ValidationError.
var ErrInvalidForm = errors.New("leads: invalid form")

// Form is the payload accepted from the public lead forms, form-encoded or JSON.
type Form struct {
	Kind         string `json:"kind" validate:"required,oneof=discovery-flight program-info aircraft-rental contact"`
	Name         string `json:"name" validate:"required,max=200"`
	Email        string `json:"email" validate:"required,email,max=254"`
	Phone        string `json:"phone" validate:"omitempty,max=40"`
	Message      string `json:"message" validate:"max=5000"`
	ProgramSlug  string `json:"program_slug" validate:"omitempty,max=120"`
	AircraftSlug string `json:"aircraft_slug" validate:"omitempty,max=120"`
	SourcePath   string `json:"source_path" validate:"omitempty,startswith=/,max=500"`
	// Website is a hidden field people never see; anything in it marks a bot.
	Website string `json:"website,omitempty"`
}

// ValidationError lists the offending fields of a rejected form.
type ValidationError struct {
	Fields map[string]string
	Err    error
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 && e.Err != nil {
		return "invalid form: " + e.Err.Error()
	}
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, e.Fields[name]))
	}
	return "invalid form: " + strings.Join(parts, ", ")
}

// Is reports ErrInvalidForm as a match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidForm
}

// Unwrap exposes the underlying domain error, if any.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (f Form) normalised() Form {
	f.Kind = strings.TrimSpace(f.Kind)
	f.Name = strings.Join(strings.Fields(f.Name), " ")
	f.Email = strings.ToLower(strings.TrimSpace(f.Email))
	f.Phone = strings.TrimSpace(f.Phone)
	f.Message = strings.TrimSpace(f.Message)
	f.ProgramSlug = strings.TrimSpace(f.ProgramSlug)
	f.AircraftSlug = strings.TrimSpace(f.AircraftSlug)
	f.SourcePath = strings.TrimSpace(f.SourcePath)
	f.Website = strings.TrimSpace(f.Website)
	return f
}

// Validate checks the struct tags and then the domain rules of the resulting Request.
func (f Form) Validate() error {
	if err := validate.Struct(f); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			fields := make(map[string]string, len(validationErrors))
			for _, fieldErr := range validationErrors {
				fields[jsonName(fieldErr.Field())] = fieldErr.Tag()
			}
			return &ValidationError{Fields: fields}
		}
		return fmt.Errorf("validation error: %w", err)
	}
	if err := f.request().Validate(); err != nil {
		return &ValidationError{Err: err}
	}
	return nil
}

func (f Form) request() site.Request {
	return site.Request{
		Kind:         site.RequestKind(f.Kind),
		Name:         f.Name,
		Email:        f.Email,
		Phone:        f.Phone,
		Message:      f.Message,
		ProgramSlug:  f.ProgramSlug,
		AircraftSlug: f.AircraftSlug,
		SourcePath:   f.SourcePath,
		Status:       site.StatusNew,
	}
}

var fieldNames = map[string]string{
	"Kind":         "kind",
	"Name":         "name",
	"Email":        "email",
	"Phone":        "phone",
	"Message":      "message",
	"ProgramSlug":  "program_slug",
	"AircraftSlug": "aircraft_slug",
	"SourcePath":   "source_path",
	"Website":      "website",
}

func jsonName(field string) string {
	if n, ok := fieldNames[field]; ok {
		return n
	}
	return strings.ToLower(field)
}
