// Package api implements the HTTP REST API and WebSocket live feed for
// Hydroponics Core.
//
// This package provides:
//   - REST endpoints for hydroponic systems and their measurements
//   - JWT token issue and refresh endpoints
//   - The caller's own audit trail
//   - WebSocket hub broadcasting new measurements to their owner only
//   - Middleware stack (request ID, logging, recovery, CORS, metrics, auth)
//   - Prometheus metrics
//
// # Architecture
//
// Handlers are thin: they decode the request, resolve the principal from the
// request context and call hydro.Service. Ownership scoping, validation and
// pagination all live in the hydro package, so the same rules apply to
// measurements ingested over MQTT.
//
// # Security
//
// Every resource route requires a bearer access token. WebSocket connections
// use single-use tickets bound to the principal that requested them, so the
// access token never appears in a URL.
//
// Resources outside the caller's visible set are reported as 404, never 403,
// so the existence of another tenant's data is not disclosed. 403 is only
// returned when the caller names a system they do not own as the target of a
// measurement write.
package api
