package site

import (
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func TestAircraftValidate(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	testCases := []struct {
		name string
		in   Aircraft
		want error
	}{
		{"valid", Aircraft{Name: "Skyhawk", Year: 2019, Category: CategorySingleEngine, HourlyRate: 18500}, nil},
		{"year unset", Aircraft{Name: "Skyhawk"}, nil},
		{"next model year", Aircraft{Name: "Skyhawk", Year: 2027}, nil},
		{"empty name", Aircraft{Name: "  "}, ErrEmptyName},
		{"too old", Aircraft{Name: "Flyer", Year: 1900}, ErrInvalidYear},
		{"future", Aircraft{Name: "Skyhawk", Year: 2030}, ErrInvalidYear},
		{"negative rate", Aircraft{Name: "Skyhawk", HourlyRate: -1}, ErrNegativeRate},
		{"bad category", Aircraft{Name: "Skyhawk", Category: "balloon"}, ErrInvalidCategory},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.in.Validate(now); !errors.Is(got, tc.want) {
				t.Fatalf("Validate() = %v; want %v", got, tc.want)
			}
		})
	}
}

func TestRequestValidate(t *testing.T) {
	t.Parallel()

	base := Request{Kind: KindDiscoveryFlight, Name: "Amelia", Email: "amelia@example.com"}
	if err := base.Validate(); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}

	noName := base
	noName.Name = ""
	if err := noName.Validate(); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}

	badKind := base
	badKind.Kind = "charter"
	if err := badKind.Validate(); !errors.Is(err, ErrInvalidKind) {
		t.Fatalf("expected ErrInvalidKind, got %v", err)
	}

	long := base
	long.Message = strings.Repeat("a", MaxMessageLength+1)
	if err := long.Validate(); !errors.Is(err, ErrMessageTooLong) {
		t.Fatalf("expected ErrMessageTooLong, got %v", err)
	}

	badStatus := base
	badStatus.Status = "lost"
	if err := badStatus.Validate(); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestValidEmail(t *testing.T) {
	t.Parallel()

	valid := []string{"pilot@example.com", "a.b+c@flight.school.org"}
	invalid := []string{"", "pilot", "pilot@localhost", "Pilot <pilot@example.com>", "pilot@@example.com"}
	for _, v := range valid {
		if !ValidEmail(v) {
			t.Errorf("ValidEmail(%q) = false; want true", v)
		}
	}
	for _, v := range invalid {
		if ValidEmail(v) {
			t.Errorf("ValidEmail(%q) = true; want false", v)
		}
	}
}

func TestProgramValidateChecksPackages(t *testing.T) {
	t.Parallel()

	p := Program{Title: "Private Pilot", Packages: []Package{{Name: "Block 10", Hours: 10, PriceCents: 190000}}}
	if err := p.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	p.Packages = append(p.Packages, Package{Name: "", PriceCents: 1})
	if err := p.Validate(); !errors.Is(err, ErrInvalidPackage) {
		t.Fatalf("expected ErrInvalidPackage, got %v", err)
	}
	if err := (Program{}).Validate(); !errors.Is(err, ErrEmptyTitle) {
		t.Fatalf("expected ErrEmptyTitle, got %v", err)
	}
}

func TestPageViewValidate(t *testing.T) {
	t.Parallel()

	if err := (PageView{Path: "about", ViewedAt: time.Now()}).Validate(); !errors.Is(err, ErrInvalidPagePath) {
		t.Fatalf("expected ErrInvalidPagePath, got %v", err)
	}
	if err := (PageView{Path: "/"}).Validate(); !errors.Is(err, ErrMissingTimestamp) {
		t.Fatalf("expected ErrMissingTimestamp, got %v", err)
	}
	for _, path := range []string{"/\x00", "/bad\xff", "/" + strings.Repeat("a", MaxPagePathBytes)} {
		if err := (PageView{Path: path, ViewedAt: time.Now()}).Validate(); !errors.Is(err, ErrInvalidPagePath) {
			t.Fatalf("expected ErrInvalidPagePath for %q, got %v", path, err)
		}
	}
}

func TestCleanText(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"plain", "/programs/private-pilot", 0, "/programs/private-pilot"},
		{"nul bytes", "/\x00about\x00", 0, "/about"},
		{"invalid utf8", "bot\xff/1.0", 0, "bot/1.0"},
		{"cut on rune boundary", "caf\u00e9", 4, "caf"},
		{"cut fits", "caf\u00e9", 5, "caf\u00e9"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := CleanText(tc.in, tc.max)
			if got != tc.want {
				t.Fatalf("CleanText(%q, %d) = %q, want %q", tc.in, tc.max, got, tc.want)
			}
			if !utf8.ValidString(got) {
				t.Fatalf("CleanText(%q) produced invalid UTF-8", tc.in)
			}
		})
	}
}

func TestPageViewSanitized(t *testing.T) {
	t.Parallel()

	ref := "https://ref.example/" + strings.Repeat("a", MaxReferrerBytes-21) + "\u00e9"
	v := PageView{Path: "/\x00", Referrer: ref, UserAgent: "bot\xff", SessionID: "s1"}.Sanitized()
	if v.Path != "/" || v.UserAgent != "bot" || v.SessionID != "s1" {
		t.Fatalf("unexpected sanitized view %+v", v)
	}
	if len(v.Referrer) > MaxReferrerBytes || !utf8.ValidString(v.Referrer) {
		t.Fatalf("referrer not cut on a rune boundary: %d bytes", len(v.Referrer))
	}
}

func TestSlugify(t *testing.T) {
	t.Parallel()

	testCases := map[string]string{
		"Cessna 172 Skyhawk":       "cessna-172-skyhawk",
		"  Piper PA-28 Archer III ": "piper-pa-28-archer-iii",
		"Redbird FMX (Sim)":        "redbird-fmx-sim",
		"Ünïcode Plane":            "n-code-plane",
		"":                         "",
	}
	for in, want := range testCases {
		if got := Slugify(in); got != want {
			t.Errorf("Slugify(%q) = %q; want %q", in, got, want)
		}
	}
}
