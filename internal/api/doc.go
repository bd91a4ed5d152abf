// Package api hosts the HTTP server, middleware, and REST handlers for the
// notice service. Notable routes:
//   - GET /api/notices lists stored notices with page, category, department
//     and search filters.
//   - POST /api/notices/refresh runs a sync and returns the new notices.
//   - GET /healthz and /readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
package api
