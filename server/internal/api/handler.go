package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/rulboard/rulboard/pkg/types"
	"github.com/rulboard/rulboard/server/internal/alerts"
	"github.com/rulboard/rulboard/server/internal/chart"
	"github.com/rulboard/rulboard/server/internal/compute"
	"github.com/rulboard/rulboard/server/internal/config"
	"github.com/rulboard/rulboard/server/internal/store"
	"github.com/rulboard/rulboard/server/internal/table"
)

const sourcesPrefix = "/api/v1/sources/"

// AlertSource exposes the alert engine's current state.
type AlertSource interface {
	Active() []*alerts.Alert
	FiringCount() int
}

// Options tunes a Handler. Zero values fall back to the config defaults.
type Options struct {
	// PageSize is the table page size used when the request has no size.
	PageSize int
	// CacheTTL bounds how long a sorted table view is kept.
	CacheTTL time.Duration
	// Ingest serves POST /api/v1/sources/{id}/predictions. Nil disables it.
	Ingest http.Handler
}

// Handler is the HTTP handler for all /api/v1/* endpoints.
// It reads prediction batches from the store and returns JSON responses.
type Handler struct {
	store    *store.Store
	alerts   AlertSource
	ingest   http.Handler
	pageSize int
	views    *cache.Cache
	mux      *http.ServeMux
}

// New creates a Handler wired to the given store and alert engine and
// registers all routes. alerts may be nil.
func New(st *store.Store, al AlertSource, opts Options) *Handler {
	if opts.PageSize <= 0 {
		opts.PageSize = config.DefaultPageSize
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = config.DefaultCacheTTL
	}
	h := &Handler{
		store:    st,
		alerts:   al,
		ingest:   opts.Ingest,
		pageSize: opts.PageSize,
		views:    cache.New(opts.CacheTTL, 2*opts.CacheTTL),
		mux:      http.NewServeMux(),
	}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/sources", h.listSources)
	h.mux.HandleFunc(sourcesPrefix, h.sourceRoutes) // subtree, extracts {id}
	h.mux.HandleFunc("/api/v1/alerts", h.listAlerts)
	h.mux.HandleFunc("/api/v1/snapshot", h.snapshot)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health: fleet totals across live batches.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, h.buildHealth(h.store.List()))
}

// listSources returns GET /api/v1/sources: all live sources.
func (h *Handler) listSources(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	entries := h.store.List()
	out := make([]SourceResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toSourceResponse(e))
	}
	jsonResp(w, http.StatusOK, out)
}

// sourceRoutes dispatches /api/v1/sources/{id}/{view}.
func (h *Handler) sourceRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, sourcesPrefix)
	if rest == "" {
		// Bare /api/v1/sources/ behaves like the list handler.
		h.listSources(w, r)
		return
	}
	id, view, ok := strings.Cut(rest, "/")
	if !ok || id == "" || strings.Contains(view, "/") {
		jsonErr(w, http.StatusNotFound, "not found")
		return
	}

	if view == "predictions" {
		if h.ingest == nil {
			jsonErr(w, http.StatusNotFound, "not found")
			return
		}
		h.ingest.ServeHTTP(w, r)
		return
	}

	var serve func(http.ResponseWriter, *http.Request, *store.Entry)
	switch view {
	case "summary":
		serve = h.summary
	case "table":
		serve = h.table
	case "chart":
		serve = h.chart
	case "insights":
		serve = h.insights
	default:
		jsonErr(w, http.StatusNotFound, "not found")
		return
	}

	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	e, found := h.store.Get(id)
	if !found {
		jsonErr(w, http.StatusNotFound, "source not found")
		return
	}
	serve(w, r, e)
}

// summary returns GET /api/v1/sources/{id}/summary.
func (h *Handler) summary(w http.ResponseWriter, _ *http.Request, e *store.Entry) {
	jsonResp(w, http.StatusOK, SummaryResponse{
		SourceID: e.Batch.SourceID,
		Version:  e.Version,
		Summary:  e.Summary,
	})
}

// table returns GET /api/v1/sources/{id}/table?sort=&dir=&page=&size=.
func (h *Handler) table(w http.ResponseWriter, r *http.Request, e *store.Entry) {
	q := r.URL.Query()

	page, err := intParam(q.Get("page"), 0)
	if err != nil || page < 0 {
		jsonErr(w, http.StatusBadRequest, "page must be a non-negative integer")
		return
	}
	size, err := intParam(q.Get("size"), h.pageSize)
	if err != nil || size < 1 || size > config.MaxPageSize {
		jsonErr(w, http.StatusBadRequest, fmt.Sprintf("size must be between 1 and %d", config.MaxPageSize))
		return
	}

	spec := table.SortSpec{Key: q.Get("sort"), Direction: table.ParseDirection(q.Get("dir"))}
	if !table.KnownKey(spec.Key) {
		// Unknown keys keep input order; collapse them to one cache entry.
		spec.Key = ""
	}

	st := table.NewState(size).WithSortSpec(spec).WithPage(page)
	p := table.View(h.sortedView(e, spec), st)

	rows := make([]TableRow, 0, len(p.Rows))
	for _, rec := range p.Rows {
		rows = append(rows, toTableRow(rec))
	}
	jsonResp(w, http.StatusOK, TableResponse{
		SourceID:  e.Batch.SourceID,
		Version:   e.Version,
		Rows:      rows,
		Sort:      p.Sort,
		Page:      p.Index,
		PageSize:  p.Size,
		PageCount: p.PageCount,
		Total:     p.Total,
		From:      p.From,
		To:        p.To,
		HasPrev:   p.HasPrev,
		HasNext:   p.HasNext,
		Links:     p.Links,
	})
}

// chart returns GET /api/v1/sources/{id}/chart.
func (h *Handler) chart(w http.ResponseWriter, _ *http.Request, e *store.Entry) {
	jsonResp(w, http.StatusOK, ChartResponse{
		SourceID: e.Batch.SourceID,
		Version:  e.Version,
		Points:   chart.ToTuples(e.Batch.Records),
	})
}

// insights returns GET /api/v1/sources/{id}/insights.
func (h *Handler) insights(w http.ResponseWriter, _ *http.Request, e *store.Entry) {
	jsonResp(w, http.StatusOK, computeInsights(e))
}

// listAlerts returns GET /api/v1/alerts: firing and recently resolved alerts.
func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.alerts == nil {
		jsonResp(w, http.StatusOK, []struct{}{})
		return
	}
	jsonResp(w, http.StatusOK, h.alerts.Active())
}

// snapshot returns GET /api/v1/snapshot: every live source plus fleet health.
func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, h.Snapshot())
}

// Snapshot builds the full payload served by /api/v1/snapshot and pushed to
// websocket clients.
func (h *Handler) Snapshot() SnapshotResponse {
	entries := h.store.List()
	sources := make([]SourceResponse, 0, len(entries))
	for _, e := range entries {
		sources = append(sources, toSourceResponse(e))
	}
	return SnapshotResponse{
		Health:      h.buildHealth(entries),
		Sources:     sources,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}

func intParam(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

// sortedView returns e's records ordered by spec. Views are cached per batch
// version, so paging through one sort order never re-sorts, and a newer batch
// for the same source never reuses an older view.
func (h *Handler) sortedView(e *store.Entry, spec table.SortSpec) []types.PredictionRecord {
	key := fmt.Sprintf("%s|%d|%s|%s", e.Batch.SourceID, e.Version, spec.Key, spec.Direction)
	if v, ok := h.views.Get(key); ok {
		return v.([]types.PredictionRecord)
	}
	sorted := table.Sort(e.Batch.Records, spec)
	h.views.SetDefault(key, sorted)
	return sorted
}

// buildHealth aggregates fleet totals over live entries.
func (h *Handler) buildHealth(entries []*store.Entry) HealthResponse {
	resp := HealthResponse{SourceCount: len(entries)}
	if h.alerts != nil {
		resp.AlertCount = h.alerts.FiringCount()
	}

	var healthCritical int
	for _, e := range entries {
		s := e.Summary
		resp.DeviceCount += s.Total
		resp.RejectedCount += s.Rejected
		resp.CriticalCount += s.PriorityCount(compute.PriorityCritical)
		resp.AttentionCount += s.PriorityCount(compute.PriorityAttention)
		resp.NormalCount += s.PriorityCount(compute.PriorityNormal)
		healthCritical += s.CriticalCount()
	}

	switch {
	case resp.DeviceCount == 0:
		resp.State = "unknown"
		return resp
	case resp.CriticalCount > 0:
		resp.State = string(compute.PriorityCritical)
	case resp.AttentionCount > 0:
		resp.State = string(compute.PriorityAttention)
	default:
		resp.State = "healthy"
	}
	resp.Split = compute.SplitBuckets(resp.DeviceCount, healthCritical)
	return resp
}

// toSourceResponse maps a store.Entry to its JSON representation.
func toSourceResponse(e *store.Entry) SourceResponse {
	return SourceResponse{
		SourceID:   e.Batch.SourceID,
		BatchID:    e.Batch.BatchID,
		Version:    e.Version,
		ReceivedAt: e.Batch.ReceivedAt.UTC().Format(time.RFC3339),
		LastSeen:   e.UpdatedAt.UTC().Format(time.RFC3339),
		Summary:    e.Summary,
		Insights:   computeInsights(e),
	}
}

func toTableRow(r types.PredictionRecord) TableRow {
	row := TableRow{
		Device:               r.Device,
		CurrentDate:          r.CurrentDate,
		PredictedRULDays:     r.PredictedRULDays,
		PredictedFailureDate: r.PredictedFailureDate,
	}
	// Stored records are always valid, so the error is unreachable here.
	if p, err := compute.ClassifyPriority(r.PredictedRULDays); err == nil {
		row.Priority = string(p)
		row.PriorityColor = compute.PriorityColor(p)
	}
	return row
}
