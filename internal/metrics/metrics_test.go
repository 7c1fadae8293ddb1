package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"directory listing", "https://www.Flightschools.example/listings?page=2", "www.flightschools.example"},
		{"bare host", "skyacademy.com", "skyacademy.com"},
		{"host with port", "localhost:8080", "localhost"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, SanitizeSite(tc.input))
		})
	}
}

func TestInitIsIdempotent(t *testing.T) {
	Init()
	Init()

	require.NotNil(t, httpRequestsTotal)
	require.NotNil(t, leadsSubmittedTotal)
	require.NotNil(t, notifyQueueDepth)
	require.NotNil(t, scraperRobotsFallbackTotal)
}

func TestLeadCounters(t *testing.T) {
	Init()
	accepted := testutil.ToFloat64(leadsSubmittedTotal.WithLabelValues("discovery-flight"))
	rejected := testutil.ToFloat64(leadsRejectedTotal.WithLabelValues("honeypot"))

	ObserveLead("discovery-flight")
	ObserveLeadRejected("honeypot")
	ObserveLeadRejected("honeypot")

	assert.Equal(t, accepted+1, testutil.ToFloat64(leadsSubmittedTotal.WithLabelValues("discovery-flight")))
	assert.Equal(t, rejected+2, testutil.ToFloat64(leadsRejectedTotal.WithLabelValues("honeypot")))
}

func TestNotificationGauges(t *testing.T) {
	Init()
	SetQueueDepth(7)
	assert.Equal(t, 7.0, testutil.ToFloat64(notifyQueueDepth))
	SetQueueDepth(0)

	before := testutil.ToFloat64(notifyActiveWorkers)
	IncActiveWorkers()
	assert.Equal(t, before+1, testutil.ToFloat64(notifyActiveWorkers))
	DecActiveWorkers()
	assert.Equal(t, before, testutil.ToFloat64(notifyActiveWorkers))
}

func TestScraperCounters(t *testing.T) {
	Init()
	schools := testutil.ToFloat64(scraperSchoolsTotal)
	found := testutil.ToFloat64(scraperWebsitesTotal.WithLabelValues("found"))
	fallbacks := testutil.ToFloat64(scraperRobotsFallbackTotal)

	ObserveSchools(3)
	ObserveScrapePage("scraped")
	ObserveWebsiteLookup("found")
	ObserveRobotsFallback()
	ObserveRateLimitDelay("https://www.flightschools.example/listings", 250*time.Millisecond)

	assert.Equal(t, schools+3, testutil.ToFloat64(scraperSchoolsTotal))
	assert.Equal(t, found+1, testutil.ToFloat64(scraperWebsitesTotal.WithLabelValues("found")))
	assert.Equal(t, fallbacks+1, testutil.ToFloat64(scraperRobotsFallbackTotal))
	assert.Positive(t, testutil.CollectAndCount(scraperRateLimitDelays))
}

func FuzzSanitizeSite(f *testing.F) {
	for _, seed := range []string{"https://skyacademy.com", "flightschools.example/listings", "::"} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, raw string) {
		if SanitizeSite(raw) == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", raw)
		}
	})
}
