// Package shipper delivers prediction batches to rulboard-server over HTTP
// (POST /api/v1/sources/{id}/predictions).
//
// Shipper.Ship() is non-blocking: batches are placed in an in-memory channel
// (default capacity 100). When the buffer is full the oldest entry is evicted
// so the latest predictions are always preserved.
//
// Shipper.Run() flushes the buffer every ship_interval. A failed send is held
// and retried first on the next flush, with truncated exponential backoff
// (1s→60s, ±25% jitter) between attempts, so batches for a source never
// arrive out of order. 4xx responses are permanent: the batch is logged and
// discarded. 5xx responses and network errors are retried.
//
// Auth: the API key from server_auth is sent in the configured header
// (x-api-key by default) when server_auth.mode is "apikey".
package shipper
