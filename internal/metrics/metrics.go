// Package metrics exposes Prometheus collectors for the flightdeck server and scrapers.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	pageviewsRecordedTotal     prometheus.Counter
	pageviewsDroppedTotal      prometheus.Counter
	leadsSubmittedTotal        *prometheus.CounterVec
	leadsRejectedTotal         *prometheus.CounterVec
	notificationsTotal         *prometheus.CounterVec
	notifyActiveWorkers        prometheus.Gauge
	notifyQueueDepth           prometheus.Gauge
	scraperPagesTotal          *prometheus.CounterVec
	scraperSchoolsTotal        prometheus.Counter
	scraperWebsitesTotal       *prometheus.CounterVec
	scraperRateLimitDelays     *prometheus.HistogramVec
	scraperRobotsFallbackTotal prometheus.Counter

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flightdeck_http_requests_total",
				Help: "HTTP requests, labeled by method, route pattern and status code.",
			},
			[]string{"method", "route", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "flightdeck_http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		pageviewsRecordedTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "flightdeck_pageviews_recorded_total",
			Help: "Pageviews persisted to the analytics store.",
		})

		pageviewsDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "flightdeck_pageviews_dropped_total",
			Help: "Pageviews dropped because the recorder buffer was full or the store failed.",
		})

		leadsSubmittedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flightdeck_leads_submitted_total",
				Help: "Accepted lead submissions, labeled by request kind.",
			},
			[]string{"kind"},
		)

		leadsRejectedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flightdeck_leads_rejected_total",
				Help: "Rejected lead submissions, labeled by reason.",
			},
			[]string{"reason"},
		)

		notificationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flightdeck_notifications_total",
				Help: "Lead notification deliveries, labeled by channel and outcome.",
			},
			[]string{"channel", "outcome"},
		)

		notifyActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
			Name: "flightdeck_notify_active_workers",
			Help: "Number of notification workers currently processing a job.",
		})

		notifyQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
			Name: "flightdeck_notify_queue_depth",
			Help: "Notification jobs waiting in the in-memory queue.",
		})

		scraperPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_pages_total",
				Help: "Directory listing pages processed, labeled by status.",
			},
			[]string{"status"},
		)

		scraperSchoolsTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "scraper_schools_extracted_total",
			Help: "School rows extracted from listing pages.",
		})

		scraperWebsitesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_websites_total",
				Help: "Website lookups, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		scraperRateLimitDelays = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scraper_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)

		scraperRobotsFallbackTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "scraper_robots_fallback_total",
			Help: "robots.txt fetches that timed out or hit a server error and fell back to allow-all.",
		})
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObservePageviewsRecorded adds n persisted pageviews.
func ObservePageviewsRecorded(n int) {
	Init()
	pageviewsRecordedTotal.Add(float64(n))
}

// ObservePageviewsDropped adds n dropped pageviews.
func ObservePageviewsDropped(n int) {
	Init()
	pageviewsDroppedTotal.Add(float64(n))
}

// ObserveLead increments the accepted lead counter for kind.
func ObserveLead(kind string) {
	Init()
	leadsSubmittedTotal.WithLabelValues(kind).Inc()
}

// ObserveLeadRejected increments the rejected lead counter for reason.
func ObserveLeadRejected(reason string) {
	Init()
	leadsRejectedTotal.WithLabelValues(reason).Inc()
}

// ObserveNotification records a delivery attempt outcome for a channel ("email", "pubsub").
func ObserveNotification(channel, outcome string) {
	Init()
	notificationsTotal.WithLabelValues(channel, outcome).Inc()
}

// IncActiveWorkers increments the active notification workers gauge.
func IncActiveWorkers() {
	Init()
	notifyActiveWorkers.Inc()
}

// DecActiveWorkers decrements the active notification workers gauge.
func DecActiveWorkers() {
	Init()
	notifyActiveWorkers.Dec()
}

// SetQueueDepth records the number of buffered notification jobs.
func SetQueueDepth(n int) {
	Init()
	notifyQueueDepth.Set(float64(n))
}

// ObserveScrapePage increments the listing page counter for status.
func ObserveScrapePage(status string) {
	Init()
	scraperPagesTotal.WithLabelValues(status).Inc()
}

// ObserveSchools adds n extracted school rows.
func ObserveSchools(n int) {
	Init()
	scraperSchoolsTotal.Add(float64(n))
}

// ObserveWebsiteLookup increments the website lookup counter for outcome.
func ObserveWebsiteLookup(outcome string) {
	Init()
	scraperWebsitesTotal.WithLabelValues(outcome).Inc()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	scraperRateLimitDelays.WithLabelValues(SanitizeSite(domain)).Observe(duration.Seconds())
}

// ObserveRobotsFallback records a robots.txt check that fell back to allow-all.
func ObserveRobotsFallback() {
	Init()
	scraperRobotsFallbackTotal.Inc()
}
