package source

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rulboard/rulboard/agent/internal/config"
	"github.com/rulboard/rulboard/pkg/types"
)

// maxConcurrentFetches bounds how many sources are polled at once.
const maxConcurrentFetches = 4

// Shipper accepts fetched batches for delivery to the server.
type Shipper interface {
	Ship(b *types.Batch)
}

// Set holds the live source clients and polls them on demand.
// Reload may be called concurrently with Poll.
type Set struct {
	mu      sync.RWMutex
	clients []*Client
	sink    Shipper
}

// NewSet returns an empty Set that hands batches to sink.
func NewSet(sink Shipper) *Set {
	return &Set{sink: sink}
}

// Reload replaces the source list. Sources whose client cannot be built
// (a missing mTLS key, an unreadable CA file) are logged and skipped so that
// one bad entry does not stop the others. It returns the number of sources
// now active.
func (s *Set) Reload(srcs []config.Source) int {
	clients := make([]*Client, 0, len(srcs))
	for _, src := range srcs {
		c, err := New(src)
		if err != nil {
			slog.Error("source: skipping source", "id", src.ID, "err", err)
			continue
		}
		clients = append(clients, c)
	}

	s.mu.Lock()
	s.clients = clients
	s.mu.Unlock()

	slog.Info("source: sources loaded", "count", len(clients))
	return len(clients)
}

// Len reports the number of active sources.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Poll fetches every source once and ships each successful batch. A failing
// source is logged and does not affect the others. It returns the number of
// batches shipped.
func (s *Set) Poll(ctx context.Context) int {
	s.mu.RLock()
	clients := make([]*Client, len(s.clients))
	copy(clients, s.clients)
	s.mu.RUnlock()

	var (
		mu      sync.Mutex
		shipped int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)
	for _, c := range clients {
		c := c
		g.Go(func() error {
			batch, err := c.Fetch(gctx)
			if err != nil {
				slog.Warn("source: fetch failed", "id", c.ID(), "err", err)
				return nil
			}
			slog.Debug("source: fetched",
				"id", c.ID(),
				"accepted", len(batch.Records),
				"rejected", batch.Rejected,
			)
			s.sink.Ship(batch)
			mu.Lock()
			shipped++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return shipped
}

// Run polls immediately and then every interval until ctx is cancelled.
func (s *Set) Run(ctx context.Context, interval time.Duration) {
	s.Poll(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Poll(ctx)
		}
	}
}

// CheckCerts logs the certificate state of every https source.
func (s *Set) CheckCerts(ctx context.Context) {
	s.mu.RLock()
	clients := make([]*Client, len(s.clients))
	copy(clients, s.clients)
	s.mu.RUnlock()

	for _, c := range clients {
		cs := CheckCert(ctx, c.Config())
		if cs == nil {
			continue
		}
		attrs := []any{"id", c.ID(), "status", cs.Status, "days_left", cs.DaysLeft, "issuer", cs.Issuer}
		switch cs.Status {
		case "valid":
			slog.Debug("source: certificate ok", attrs...)
		default:
			slog.Warn("source: certificate problem", attrs...)
		}
	}
}
