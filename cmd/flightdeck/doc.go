// Package main hosts the flightdeck entrypoint.
//
// Architecture overview:
//   - HTTP: internal/api.Server (chi) serves the marketing pages, the lead forms, the page view beacon and the
//     session-protected admin dashboard. Health (/healthz, /readyz) and Prometheus (/metrics) endpoints stay cheap.
//   - Catalog & leads: internal/catalog owns aircraft, programs and testimonials on top of the generic document
//     store (memory or Postgres). internal/leads validates submissions, applies a per-client token bucket and
//     enqueues a notification job.
//   - Notifications: jobs flow through a bounded in-memory queue to a fixed worker pool. Each job sends the
//     Resend email and, when a project is configured, publishes a compact Pub/Sub event. Failed sends retry with
//     jittered exponential backoff.
//   - Analytics: the page view recorder buffers views and flushes them in batches. Dashboards bucket views by
//     hour, day, week or month in the configured timezone.
//   - Media: aircraft images go to the configured BlobStore (memory, local disk or GCS) under content-addressed
//     names. Local and memory objects are served under the public prefix by the same server.
//   - Directory tooling: `scrape schools` renders the listing with chromedp (or colly when headless is off),
//     checkpoints each page to CSV and resumes after interruption. `scrape websites` enriches rows from detail
//     pages in batches, and `clean` normalizes, merges and sorts the result.
//
// Operational notes:
//   - Configuration: Viper reads an optional file (--config) and FLIGHTDECK_* environment overrides, e.g.
//     FLIGHTDECK_SERVER_PORT, FLIGHTDECK_STORAGE_DOCUMENT_BACKEND=postgres, FLIGHTDECK_DB_DSN.
//   - Shutdown: SIGINT/SIGTERM stop the listener, let queued notifications drain within server.shutdown_timeout
//     and flush buffered page views.
//   - Admin: generate the password hash with `flightdeck hash-password` and set auth.admin_email and
//     auth.admin_password_hash. Without both the dashboard answers 503.
package main
