package scraper

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatPhone(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"512.555.0100":      "(512) 555-0100",
		"+1 (512) 555-0100": "(512) 555-0100",
		"15125550100":       "(512) 555-0100",
		"(512) 555-0100":    "(512) 555-0100",
		"  +44 20 7946 0958 ": "+44 20 7946 0958",
		"":                  "",
		"ext  12":           "ext 12",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatPhone(in), "input %q", in)
	}
}

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"WWW.Example.COM/Path":          "https://www.example.com/Path",
		"http://Flight.Example.com":     "http://flight.example.com",
		"HTTPS://example.com:8443/a?b=c": "https://example.com:8443/a?b=c",
		"//cdn.example.com/x":           "https://cdn.example.com/x",
		"mailto:ops@example.com":        "",
		"not a url":                     "",
		"localhost":                     "",
		"ftp://files.example.com":       "",
		"":                              "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeURL(in), "input %q", in)
	}
}

func TestCleanMergesSortsAndDrops(t *testing.T) {
	t.Parallel()

	in := []School{
		{Page: 2, Name: "  Zulu   Aviation ", City: "Austin", State: "tx", Phone: "512 555 0199"},
		{Page: 1, Name: "", City: "Nowhere", State: "KS"},
		{Page: 1, Name: "Alpha Flight", City: "Denver", State: "CO", Website: "alphaflight.example.com"},
		{Page: 3, Name: "zulu aviation", City: "austin", State: "TX", Address: "1 Airport Blvd", Website: "zulu.example.com"},
		{Page: 1, Name: "Bravo Air", City: "Austin", State: "TX", WebsiteChecked: WebsiteNone},
	}
	got := Clean(in)
	require.Len(t, got, 3)

	assert.Equal(t, "Alpha Flight", got[0].Name)
	assert.Equal(t, "https://alphaflight.example.com", got[0].Website)
	assert.Equal(t, WebsiteFound, got[0].WebsiteChecked)

	assert.Equal(t, "Bravo Air", got[1].Name)
	assert.Equal(t, WebsiteNone, got[1].WebsiteChecked)

	assert.Equal(t, School{
		Page:           2,
		Name:           "Zulu Aviation",
		Address:        "1 Airport Blvd",
		City:           "Austin",
		State:          "TX",
		Phone:          "(512) 555-0199",
		Website:        "https://zulu.example.com",
		WebsiteChecked: WebsiteFound,
	}, got[2])
}

func TestCleanIsIdempotent(t *testing.T) {
	t.Parallel()

	in := []School{
		{Name: "Cirrus  Club", City: "Reno", State: "nv", Phone: "775-555-0142", Website: "Cirrus.Example.com/"},
		{Name: "cirrus club", City: "RENO", State: "NV", DetailURL: "https://dir.example.com/s/9"},
		{Name: "Apex Aero", City: "Boise", State: "ID", Phone: "unlisted"},
		{Name: "Apex Aero", City: "Nampa", State: "ID"},
	}
	once := Clean(in)
	assert.Equal(t, once, Clean(once))
	assert.Len(t, once, 3)
}

func TestWriteCSVRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "out.csv")
	rows := Clean([]School{{Page: 4, Name: "Comma, Inc. Aviation", City: "Tulsa", State: "OK"}})
	require.NoError(t, WriteCSV(path, rows))
	got, err := ReadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, rows, got)
}
