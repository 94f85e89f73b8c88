// Package store manages the in-memory prediction batches, one live batch per
// source. It provides a thread-safe store with TTL eviction and a monotonic
// version per write so derived views can be cached and invalidated safely.
package store
