// Package api implements the HTTP REST API for rulboard-server.
//
// New(store, alerts, opts) returns a Handler that serves:
//
//	GET /api/v1/health                    fleet totals, priority counts, overall split
//	GET /api/v1/sources                   all live sources ([]SourceResponse)
//	GET /api/v1/sources/{id}/summary      health, risk-range, split and priority buckets
//	GET /api/v1/sources/{id}/table        sorted, paginated rows (?sort=&dir=&page=&size=)
//	GET /api/v1/sources/{id}/chart        device/RUL/date tuples
//	GET /api/v1/sources/{id}/insights     human-readable hints, critical first
//	GET /api/v1/alerts                    firing and recently resolved alerts
//	GET /api/v1/snapshot                  fleet health plus all live sources
//
// POST /api/v1/sources/{id}/predictions is forwarded to Options.Ingest.
//
// All endpoints:
//   - Respond with Content-Type: application/json
//   - Return 405 for unsupported methods
//   - Read live entries from the store (stale entries are reported as 404)
//
// Sorted table views are cached per source and batch version, so paging
// re-slices a cached ordering and a new batch never serves an old one.
package api
