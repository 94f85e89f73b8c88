package receiver

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rulboard/rulboard/pkg/types"
	"github.com/rulboard/rulboard/server/internal/compute"
	"github.com/rulboard/rulboard/server/internal/store"
)

// Transport labels reported to the metrics registry.
const (
	TransportHTTP = "http"
	TransportMQTT = "mqtt"
)

// ErrInvalidSourceID is returned for empty or malformed source IDs.
var ErrInvalidSourceID = errors.New("invalid source id")

var sourceIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// Evaluator is notified with the summary of every stored batch.
type Evaluator interface {
	Evaluate(sourceID string, sum compute.Summary)
}

// Observer records ingest counters.
type Observer interface {
	ObserveBatch(transport string, accepted, rejected int)
}

// Listener is called after a batch has been stored.
type Listener func(sourceID string, res Result)

// Result is the acknowledgement returned to producers.
type Result struct {
	OK       bool   `json:"ok"`
	BatchID  string `json:"batch_id"`
	Accepted int    `json:"accepted"`
	Rejected int    `json:"rejected"`
	Version  uint64 `json:"version"`
}

// Receiver validates incoming batches and stores them.
type Receiver struct {
	store   *store.Store
	alerts  Evaluator
	metrics Observer
	now     func() time.Time

	mu        sync.RWMutex
	listeners []Listener
}

// New creates a Receiver that writes accepted batches to st. alerts and
// metrics may be nil.
func New(st *store.Store, alerts Evaluator, metrics Observer) *Receiver {
	return &Receiver{store: st, alerts: alerts, metrics: metrics, now: time.Now}
}

// OnStored registers l to run after every stored batch, once alerts have
// been evaluated. Listeners run on the ingesting goroutine and must not block.
func (r *Receiver) OnStored(l Listener) {
	r.mu.Lock()
	r.listeners = append(r.listeners, l)
	r.mu.Unlock()
}

// ValidSourceID reports whether id can be used as a source key.
func ValidSourceID(id string) bool {
	return sourceIDPattern.MatchString(id)
}

// Ingest decodes a predictions document from body and stores it as the
// latest batch for sourceID. An empty predictions array is accepted and
// replaces the previous batch.
func (r *Receiver) Ingest(transport, sourceID string, body io.Reader) (Result, error) {
	if !ValidSourceID(sourceID) {
		return Result{}, fmt.Errorf("%w: %q", ErrInvalidSourceID, sourceID)
	}
	records, relayRejected, err := types.DecodePredictions(body)
	if err != nil {
		return Result{}, err
	}

	sum, valid := compute.SummarizeValid(records)
	sum.Rejected += relayRejected

	b := &types.Batch{
		SourceID:   sourceID,
		BatchID:    uuid.NewString(),
		ReceivedAt: r.now().UTC(),
		Records:    valid,
		Rejected:   sum.Rejected,
	}
	e := r.store.Put(b, sum)

	slog.Debug("receiver: batch stored",
		"source_id", sourceID,
		"transport", transport,
		"batch_id", b.BatchID,
		"accepted", len(valid),
		"rejected", sum.Rejected,
		"version", e.Version,
	)
	if sum.Rejected > 0 {
		slog.Warn("receiver: records rejected",
			"source_id", sourceID,
			"rejected", sum.Rejected,
		)
	}

	if r.metrics != nil {
		r.metrics.ObserveBatch(transport, len(valid), sum.Rejected)
	}
	if r.alerts != nil {
		r.alerts.Evaluate(sourceID, sum)
	}

	res := Result{
		OK:       true,
		BatchID:  b.BatchID,
		Accepted: len(valid),
		Rejected: sum.Rejected,
		Version:  e.Version,
	}

	r.mu.RLock()
	listeners := r.listeners
	r.mu.RUnlock()
	for _, l := range listeners {
		l(sourceID, res)
	}
	return res, nil
}
