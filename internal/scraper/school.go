package scraper

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

// Columns is the CSV header shared by the crawl, the website pass and clean.
var Columns = []string{"page", "name", "address", "city", "state", "phone", "detail_url", "website", "website_checked"}

// Values stored in School.WebsiteChecked.
const (
	WebsiteFound    = "found"
	WebsiteNone     = "none"
	WebsiteFailed   = "failed"
	websiteUnmarked = ""
)

// ErrBadCSV is returned when a checkpoint file does not carry the expected columns.
var ErrBadCSV = errors.New("scraper: unexpected csv layout")

// School is one directory row.
type School struct {
	Page           int
	Name           string
	Address        string
	City           string
	State          string
	Phone          string
	DetailURL      string
	Website        string
	WebsiteChecked string
}

// Browser renders a URL and returns its HTML.
type Browser interface {
	Render(ctx context.Context, url string) (string, error)
}

// StatusError reports an HTTP error status for a rendered or fetched document.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: http status %d", e.URL, e.Code)
}

// Temporary reports whether the status is worth retrying.
func (e *StatusError) Temporary() bool {
	return e.Code == 408 || e.Code == 429 || e.Code >= 500
}

func (s School) record() []string {
	page := ""
	if s.Page > 0 {
		page = strconv.Itoa(s.Page)
	}
	return []string{page, s.Name, s.Address, s.City, s.State, s.Phone, s.DetailURL, s.Website, s.WebsiteChecked}
}

func parseRecord(rec []string) (School, error) {
	if len(rec) != len(Columns) {
		return School{}, fmt.Errorf("%w: %d fields, want %d", ErrBadCSV, len(rec), len(Columns))
	}
	var page int
	if rec[0] != "" {
		n, err := strconv.Atoi(rec[0])
		if err != nil || n < 0 {
			return School{}, fmt.Errorf("%w: page %q", ErrBadCSV, rec[0])
		}
		page = n
	}
	return School{
		Page:           page,
		Name:           rec[1],
		Address:        rec[2],
		City:           rec[3],
		State:          rec[4],
		Phone:          rec[5],
		DetailURL:      rec[6],
		Website:        rec[7],
		WebsiteChecked: rec[8],
	}, nil
}
