// Package api hosts the optional status server. Routes:
//   - GET /healthz and /readyz for liveness and readiness probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/status for the scheduler state and the last finished cycle.
package api
