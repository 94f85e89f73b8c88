package api

import (
	"github.com/rulboard/rulboard/server/internal/chart"
	"github.com/rulboard/rulboard/server/internal/compute"
	"github.com/rulboard/rulboard/server/internal/table"
)

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	State          string           `json:"state"`
	SourceCount    int              `json:"source_count"`
	DeviceCount    int              `json:"device_count"`
	CriticalCount  int              `json:"critical_count"`
	AttentionCount int              `json:"attention_count"`
	NormalCount    int              `json:"normal_count"`
	RejectedCount  int              `json:"rejected_count"`
	Split          []compute.Bucket `json:"split,omitempty"`
	AlertCount     int              `json:"alert_count"`
}

// SourceResponse is one source entry in GET /api/v1/sources and in the
// snapshot payload.
type SourceResponse struct {
	SourceID   string          `json:"source_id"`
	BatchID    string          `json:"batch_id"`
	Version    uint64          `json:"version"`
	ReceivedAt string          `json:"received_at"` // RFC3339
	LastSeen   string          `json:"last_seen"`   // RFC3339
	Summary    compute.Summary `json:"summary"`
	Insights   []Insight       `json:"insights"`
}

// SummaryResponse is the payload for GET /api/v1/sources/{id}/summary.
type SummaryResponse struct {
	SourceID string `json:"source_id"`
	Version  uint64 `json:"version"`
	compute.Summary
}

// TableRow is one prediction with its derived priority.
type TableRow struct {
	Device               string  `json:"device"`
	CurrentDate          string  `json:"current_date"`
	PredictedRULDays     float64 `json:"predicted_rul_days"`
	PredictedFailureDate string  `json:"predicted_failure_date"`
	Priority             string  `json:"priority"`
	PriorityColor        string  `json:"priority_color"`
}

// TableResponse is the payload for GET /api/v1/sources/{id}/table.
type TableResponse struct {
	SourceID  string         `json:"source_id"`
	Version   uint64         `json:"version"`
	Rows      []TableRow     `json:"rows"`
	Sort      table.SortSpec `json:"sort"`
	Page      int            `json:"page"`
	PageSize  int            `json:"page_size"`
	PageCount int            `json:"page_count"`
	Total     int            `json:"total"`
	From      int            `json:"from"`
	To        int            `json:"to"`
	HasPrev   bool           `json:"has_prev"`
	HasNext   bool           `json:"has_next"`
	Links     []int          `json:"links"`
}

// ChartResponse is the payload for GET /api/v1/sources/{id}/chart.
type ChartResponse struct {
	SourceID string        `json:"source_id"`
	Version  uint64        `json:"version"`
	Points   []chart.Tuple `json:"points"`
}

// SnapshotResponse is the payload for GET /api/v1/snapshot and the data of
// every websocket push.
type SnapshotResponse struct {
	Health      HealthResponse   `json:"health"`
	Sources     []SourceResponse `json:"sources"`
	GeneratedAt string           `json:"generated_at"` // RFC3339
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
