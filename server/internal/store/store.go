package store

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/rulboard/rulboard/pkg/types"
	"github.com/rulboard/rulboard/server/internal/compute"
)

// Entry is a batch together with its derived summary and bookkeeping.
// Entries are never mutated after Put; a new batch produces a new Entry.
type Entry struct {
	Batch     *types.Batch
	Summary   compute.Summary
	UpdatedAt time.Time

	// Version increases on every Put across the whole store. Anything derived
	// from an Entry should be keyed by SourceID and Version.
	Version uint64
}

// Store is a thread-safe in-memory batch store, keyed by source ID.
// A background goroutine (Run) periodically evicts entries that have not
// been updated within the configured TTL.
type Store struct {
	mu      sync.RWMutex
	data    map[string]*Entry
	ttl     time.Duration
	version uint64
	now     func() time.Time // injectable for deterministic tests
}

// New creates a Store with the given TTL.
func New(ttl time.Duration) *Store {
	return &Store{
		data: make(map[string]*Entry),
		ttl:  ttl,
		now:  time.Now,
	}
}

// TTL returns the retention period for entries.
func (s *Store) TTL() time.Duration { return s.ttl }

// Put stores or replaces the batch for b.SourceID together with its summary
// and returns the new entry. Callers must not modify b after calling Put.
func (s *Store) Put(b *types.Batch, sum compute.Summary) *Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.version++
	e := &Entry{
		Batch:     b,
		Summary:   sum,
		UpdatedAt: s.now(),
		Version:   s.version,
	}
	s.data[b.SourceID] = e
	return e
}

// Get returns the Entry for the given source ID and a boolean indicating
// whether a live entry was found. Stale entries awaiting eviction are
// reported as missing.
func (s *Store) Get(sourceID string) (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[sourceID]
	if !ok || !e.UpdatedAt.After(s.now().Add(-s.ttl)) {
		return nil, false
	}
	return e, true
}

// List returns all entries whose UpdatedAt is within the TTL, ordered by
// source ID. Stale entries that have not yet been evicted are excluded.
func (s *Store) List() []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cutoff := s.now().Add(-s.ttl)
	out := make([]*Entry, 0, len(s.data))
	for _, e := range s.data {
		if e.UpdatedAt.After(cutoff) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Batch.SourceID < out[j].Batch.SourceID })
	return out
}

// Count returns the total number of entries currently held, including stale ones.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Version returns the version of the most recent Put, or 0 if none.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Evict removes entries whose UpdatedAt is older than now minus TTL.
// It returns the number of entries removed.
func (s *Store) Evict(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := now.Add(-s.ttl)
	removed := 0
	for id, e := range s.data {
		if !e.UpdatedAt.After(cutoff) {
			delete(s.data, id)
			removed++
		}
	}
	return removed
}

// Run starts the background TTL eviction loop. It ticks at half the TTL interval
// (minimum 1 second) so entries are evicted promptly. Run blocks until ctx is
// cancelled.
func (s *Store) Run(ctx context.Context) {
	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := s.Evict(now); n > 0 {
				slog.Debug("store: evicted stale batches", "count", n)
			}
		}
	}
}
