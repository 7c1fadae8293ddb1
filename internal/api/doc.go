// Package api hosts the HTTP server, middleware and handlers for the public
// site and the admin dashboard. Notable routes:
//   - GET /healthz, /readyz for health checks and GET /metrics for Prometheus.
//   - GET /, /programs/{slug}, /aircraft/{slug} for the marketing pages.
//   - POST /requests for lead forms and POST /api/pageviews for the beacon.
//   - /admin/... for the session-protected dashboard, including the
//     JSON analytics feed at /admin/api/analytics.
package api
