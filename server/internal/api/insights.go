package api

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rulboard/rulboard/pkg/types"
	"github.com/rulboard/rulboard/server/internal/compute"
	"github.com/rulboard/rulboard/server/internal/store"
	"github.com/rulboard/rulboard/server/internal/table"
)

// maxNamedDevices caps how many device IDs an insight lists by name.
const maxNamedDevices = 5

// Insight is one human-readable observation about a source's latest batch.
// The UI shows Title as a chip and Detail on click.
type Insight struct {
	// Key is a stable machine-readable identifier.
	Key string `json:"key"`
	// Level is "ok" | "info" | "warning" | "critical"
	Level  string   `json:"level"`
	Title  string   `json:"title"`
	Detail string   `json:"detail"`
	Value  *float64 `json:"value,omitempty"`
}

var levelRank = map[string]int{"critical": 0, "warning": 1, "info": 2, "ok": 3}

// computeInsights derives hints from a stored batch.
// Insights are ordered: critical first, then warnings, then info.
func computeInsights(e *store.Entry) []Insight {
	sum := e.Summary
	var hints []Insight

	// ── No usable data ───────────────────────────────────────────────────────
	if sum.Total == 0 {
		if sum.Rejected > 0 {
			v := float64(sum.Rejected)
			hints = append(hints, Insight{
				Key:   "all_rejected",
				Level: "critical",
				Title: "No valid predictions",
				Detail: fmt.Sprintf(
					"All %d records in the latest batch were rejected because their "+
						"predicted_rul_days value was missing, negative or not a number. "+
						"Check the prediction service output for this source.",
					sum.Rejected),
				Value: &v,
			})
			return hints
		}
		return []Insight{{
			Key:   "no_data",
			Level: "info",
			Title: "No predictions",
			Detail: "The latest batch for this source is empty. " +
				"This is normal while the prediction service has nothing to report.",
		}}
	}

	// ── Priority counts ──────────────────────────────────────────────────────
	if n := sum.PriorityCount(compute.PriorityCritical); n > 0 {
		v := float64(n)
		hints = append(hints, Insight{
			Key:   "critical_devices",
			Level: "critical",
			Title: plural(n, "critical device", "critical devices"),
			Detail: fmt.Sprintf(
				"%s less than %d days of remaining useful life. Urgent maintenance is "+
					"required. Most urgent: %s.",
				plural(n, "device has", "devices have"), int(compute.ThresholdCritical),
				strings.Join(mostUrgent(e.Batch.Records, min(n, maxNamedDevices)), ", ")),
			Value: &v,
		})
	}
	if n := sum.PriorityCount(compute.PriorityAttention); n > 0 {
		v := float64(n)
		hints = append(hints, Insight{
			Key:   "attention_devices",
			Level: "warning",
			Title: plural(n, "device needs attention", "devices need attention"),
			Detail: fmt.Sprintf(
				"%s between %d and %d days of remaining useful life. "+
					"Monitoring is recommended and maintenance should be scheduled.",
				plural(n, "device has", "devices have"),
				int(compute.ThresholdCritical), int(compute.ThresholdAttention)),
			Value: &v,
		})
	}

	// ── Rejected records ─────────────────────────────────────────────────────
	if sum.Rejected > 0 {
		v := float64(sum.Rejected)
		hints = append(hints, Insight{
			Key:   "rejected_records",
			Level: "warning",
			Title: plural(sum.Rejected, "record rejected", "records rejected"),
			Detail: fmt.Sprintf(
				"%d of %d records were dropped because their predicted_rul_days value "+
					"was missing, negative or not a number. They are excluded from every "+
					"chart and table.",
				sum.Rejected, sum.Total+sum.Rejected),
			Value: &v,
		})
	}

	// ── Fleet outlook ────────────────────────────────────────────────────────
	v := sum.MeanRULDays
	hints = append(hints, Insight{
		Key:   "mean_rul",
		Level: "info",
		Title: fmt.Sprintf("%.0f days mean RUL", sum.MeanRULDays),
		Detail: fmt.Sprintf(
			"Across %d devices the mean remaining useful life is %.1f days "+
				"and the lowest is %.1f days. %.0f%% of devices are at risk.",
			sum.Total, sum.MeanRULDays, sum.MinRULDays, sum.AtRiskPct()),
		Value: &v,
	})

	sort.SliceStable(hints, func(i, j int) bool {
		return levelRank[hints[i].Level] < levelRank[hints[j].Level]
	})
	return hints
}

// mostUrgent returns up to n device IDs with the lowest RUL.
func mostUrgent(records []types.PredictionRecord, n int) []string {
	sorted := table.Sort(records, table.SortSpec{Key: table.KeyRULDays, Direction: table.Ascending})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	out := make([]string, 0, len(sorted))
	for _, r := range sorted {
		out = append(out, fmt.Sprintf("%s (%.0f days)", r.Device, r.PredictedRULDays))
	}
	return out
}

func plural(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return fmt.Sprintf("%d %s", n, many)
}
