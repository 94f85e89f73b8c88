// Package metrics keeps the server's ingest counters and renders them in the
// Prometheus text exposition format at /metrics.
package metrics

import (
	"net/http"
	"sort"
	"sync"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// Metric names exposed by the server.
const (
	nameBatches  = "rulboard_batches_received_total"
	nameAccepted = "rulboard_records_accepted_total"
	nameRejected = "rulboard_records_rejected_total"
	nameSources  = "rulboard_live_sources"
)

// Registry accumulates ingest counters. The zero value is not usable; call New.
//
// All exported methods are safe for concurrent use.
type Registry struct {
	mu       sync.Mutex
	batches  map[string]float64 // by transport
	accepted float64
	rejected float64

	liveSources func() int
}

// New returns a Registry. liveSources is sampled on every render; it may be nil.
func New(liveSources func() int) *Registry {
	return &Registry{
		batches:     make(map[string]float64),
		liveSources: liveSources,
	}
}

// ObserveBatch records one ingested batch received over transport
// ("http" or "mqtt") with its accepted and rejected record counts.
func (r *Registry) ObserveBatch(transport string, accepted, rejected int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches[transport]++
	r.accepted += float64(accepted)
	r.rejected += float64(rejected)
}

// Families returns the current metric families, sorted by name.
func (r *Registry) Families() []*dto.MetricFamily {
	r.mu.Lock()
	transports := make([]string, 0, len(r.batches))
	for t := range r.batches {
		transports = append(transports, t)
	}
	sort.Strings(transports)

	batches := &dto.MetricFamily{
		Name: ptr(nameBatches),
		Help: ptr("Prediction batches received, by transport."),
		Type: dto.MetricType_COUNTER.Enum(),
	}
	for _, t := range transports {
		batches.Metric = append(batches.Metric, &dto.Metric{
			Label:   []*dto.LabelPair{{Name: ptr("transport"), Value: ptr(t)}},
			Counter: &dto.Counter{Value: ptr(r.batches[t])},
		})
	}
	accepted, rejected := r.accepted, r.rejected
	r.mu.Unlock()

	fams := []*dto.MetricFamily{
		counter(nameAccepted, "Prediction records accepted into the store.", accepted),
		counter(nameRejected, "Prediction records rejected for an invalid remaining-life value.", rejected),
	}
	// The text format rejects families without samples.
	if len(batches.Metric) > 0 {
		fams = append(fams, batches)
	}
	if r.liveSources != nil {
		fams = append(fams, &dto.MetricFamily{
			Name:   ptr(nameSources),
			Help:   ptr("Sources with a live prediction batch."),
			Type:   dto.MetricType_GAUGE.Enum(),
			Metric: []*dto.Metric{{Gauge: &dto.Gauge{Value: ptr(float64(r.liveSources()))}}},
		})
	}
	sort.Slice(fams, func(i, j int) bool { return fams[i].GetName() < fams[j].GetName() })
	return fams
}

// ServeHTTP writes all families in the text exposition format.
func (r *Registry) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", string(expfmt.NewFormat(expfmt.TypeTextPlain)))
	for _, mf := range r.Families() {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return
		}
	}
}

func counter(name, help string, v float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   ptr(name),
		Help:   ptr(help),
		Type:   dto.MetricType_COUNTER.Enum(),
		Metric: []*dto.Metric{{Counter: &dto.Counter{Value: ptr(v)}}},
	}
}

func ptr[T any](v T) *T { return &v }
