// Package types defines shared Go types used by both the agent and server.
// These are the canonical in-memory representations of prediction batches,
// matching the JSON shape produced by the prediction service.
package types
