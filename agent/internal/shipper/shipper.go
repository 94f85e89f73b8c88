package shipper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rulboard/rulboard/agent/internal/config"
	"github.com/rulboard/rulboard/pkg/types"
)

const (
	backoffInitial    = 1 * time.Second
	backoffMax        = 60 * time.Second
	backoffMultiplier = 2.0
	sendTimeout       = 10 * time.Second
)

// Shipper buffers batches and ships them to rulboard-server over HTTP.
// Ship() is non-blocking; when the buffer is full the oldest batch is evicted.
// Run() must be called in a goroutine to drain the buffer.
type Shipper struct {
	cfg    config.AgentConfig
	buf    chan *types.Batch
	client *http.Client

	// pending is a batch whose last send failed transiently. It is only
	// touched by the Run goroutine.
	pending *types.Batch

	// retryBase is the first backoff step; tests shorten it.
	retryBase time.Duration
}

// New creates a Shipper using the given agent config.
func New(cfg config.AgentConfig) *Shipper {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = config.DefaultBufferSize
	}
	if cfg.ShipInterval <= 0 {
		cfg.ShipInterval = config.DefaultShipInterval
	}
	return &Shipper{
		cfg:       cfg,
		buf:       make(chan *types.Batch, cfg.BufferSize),
		client:    &http.Client{Timeout: sendTimeout},
		retryBase: backoffInitial,
	}
}

// Ship enqueues a batch. If the buffer is full the oldest entry is evicted
// to make room.
func (s *Shipper) Ship(b *types.Batch) {
	select {
	case s.buf <- b:
	default:
		// Buffer full, drop the oldest batch and keep the newest.
		select {
		case old := <-s.buf:
			slog.Warn("shipper: buffer full, evicted oldest batch",
				"source", old.SourceID, "batch_id", old.BatchID, "buffer_cap", cap(s.buf))
		default:
		}
		select {
		case s.buf <- b:
		default:
			slog.Warn("shipper: buffer full, dropped batch", "source", b.SourceID)
		}
	}
}

// Run flushes the buffer every ShipInterval until ctx is cancelled. After a
// transient failure it waits out the backoff before the next attempt.
func (s *Shipper) Run(ctx context.Context) {
	bo := newBackoff(s.retryBase)
	ticker := time.NewTicker(s.cfg.ShipInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		err := s.flush(ctx)
		if err == nil {
			bo.reset()
			continue
		}
		if ctx.Err() != nil {
			return
		}

		wait := bo.next()
		slog.Warn("shipper: send failed, will retry",
			"endpoint", s.cfg.ServerEndpoint,
			"err", err,
			"retry_in", wait)
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// flush sends the pending batch and then everything buffered. It stops at
// the first transient error, keeping that batch as pending.
func (s *Shipper) flush(ctx context.Context) error {
	for {
		b := s.pending
		if b == nil {
			select {
			case b = <-s.buf:
			default:
				return nil
			}
		}

		err := s.send(ctx, b)
		switch {
		case err == nil:
			s.pending = nil
			slog.Debug("shipper: batch delivered",
				"source", b.SourceID, "batch_id", b.BatchID, "records", len(b.Records))
		case isPermanentError(err):
			s.pending = nil
			slog.Error("shipper: permanent send error, discarding batch",
				"source", b.SourceID, "batch_id", b.BatchID, "err", err)
		default:
			s.pending = b
			return err
		}
	}
}

// send posts one batch to the server's ingest endpoint.
func (s *Shipper) send(ctx context.Context, b *types.Batch) error {
	body, err := json.Marshal(b)
	if err != nil {
		return &permanentError{err: fmt.Errorf("encode batch: %w", err)}
	}

	endpoint := strings.TrimRight(s.cfg.ServerEndpoint, "/") +
		"/api/v1/sources/" + url.PathEscape(b.SourceID) + "/predictions"

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(sendCtx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return &permanentError{err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.ServerAuth.Mode == "apikey" {
		header := s.cfg.ServerAuth.Header
		if header == "" {
			header = config.DefaultServerHeader
		}
		req.Header.Set(header, s.cfg.ServerAuth.Key())
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return &permanentError{err: fmt.Errorf("server returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))}
	default:
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
}

// permanentError marks a send failure that retrying cannot fix.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// isPermanentError returns true for errors that indicate the batch itself
// (or the agent's credentials) was refused and should not be retried.
func isPermanentError(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// backoff implements truncated exponential backoff with jitter.
type backoff struct {
	initial time.Duration
	current time.Duration
}

func newBackoff(initial time.Duration) *backoff {
	return &backoff{initial: initial, current: initial}
}

// next returns the current backoff duration and advances the internal state.
func (b *backoff) next() time.Duration {
	d := b.current
	// Apply ±25 % jitter.
	jitter := time.Duration(float64(b.current) * 0.25 * (rand.Float64()*2 - 1)) //nolint:gosec // not crypto
	d += jitter
	if d < 0 {
		d = 0
	}

	// Advance for next call.
	b.current = time.Duration(float64(b.current) * backoffMultiplier)
	if b.current > backoffMax {
		b.current = backoffMax
	}
	return d
}

func (b *backoff) reset() {
	b.current = b.initial
}
