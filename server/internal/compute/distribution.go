package compute

import (
	"math"

	"github.com/rulboard/rulboard/pkg/types"
)

// Color tokens shared by every chart. Assignment is fixed per category so
// repeated renders stay visually consistent.
const (
	ColorGreen = "#10B981"
	ColorBlue  = "#3B82F6"
	ColorAmber = "#F59E0B"
	ColorRed   = "#EF4444"
)

// Bucket is one labelled count in a chart-ready distribution.
type Bucket struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Count int    `json:"count"`
	Color string `json:"color"`
}

// Summary is the full set of distributions derived from one record set.
type Summary struct {
	// Health counts records per health category in the order
	// Excellent, Good, Attention, Critical.
	Health [4]Bucket `json:"health"`

	// RiskRange counts records per day range in the order
	// 0-30, 31-90, 91-180, >180.
	RiskRange [4]Bucket `json:"risk_range"`

	// Split holds Healthy and AtRisk percentages summing to exactly 100.
	// It is nil when there are no valid records.
	Split []Bucket `json:"split,omitempty"`

	// Priority counts records per table priority (Critical, Attention, Normal).
	Priority [3]Bucket `json:"priority"`

	Total       int     `json:"total"`
	Rejected    int     `json:"rejected"`
	MinRULDays  float64 `json:"min_rul_days"`
	MeanRULDays float64 `json:"mean_rul_days"`
}

// Indices into Summary.Health.
const (
	idxExcellent = iota
	idxGood
	idxAttention
	idxCritical
)

// Indices into Summary.Priority.
const (
	idxPrioCritical = iota
	idxPrioAttention
	idxPrioNormal
)

// Summarize classifies every record and aggregates the results in a single
// pass. Invalid records are counted in Rejected and otherwise ignored; an
// empty or all-invalid input yields zero-filled buckets and a nil Split.
func Summarize(records []types.PredictionRecord) Summary {
	return summarize(records, nil)
}

// SummarizeValid is Summarize that also returns the valid records, in input
// order, from the same pass. The input slice is not modified.
func SummarizeValid(records []types.PredictionRecord) (Summary, []types.PredictionRecord) {
	valid := make([]types.PredictionRecord, 0, len(records))
	s := summarize(records, func(r types.PredictionRecord) { valid = append(valid, r) })
	return s, valid
}

// summarize aggregates records, handing each valid one to keep when set.
func summarize(records []types.PredictionRecord, keep func(types.PredictionRecord)) Summary {
	s := emptySummary()

	var sum float64
	lowest := math.Inf(1)
	for _, r := range records {
		days := r.PredictedRULDays
		if checkDays(days) != nil {
			s.Rejected++
			continue
		}
		if keep != nil {
			keep(r)
		}
		s.Total++
		sum += days
		if days < lowest {
			lowest = days
		}

		h := healthOf(days)
		switch h {
		case HealthExcellent:
			s.Health[idxExcellent].Count++
		case HealthGood:
			s.Health[idxGood].Count++
		case HealthAttention:
			s.Health[idxAttention].Count++
		default:
			s.Health[idxCritical].Count++
		}
		s.RiskRange[riskRangeIndex(days)].Count++

		switch {
		case days < ThresholdCritical:
			s.Priority[idxPrioCritical].Count++
		case days < ThresholdAttention:
			s.Priority[idxPrioAttention].Count++
		default:
			s.Priority[idxPrioNormal].Count++
		}
	}

	if s.Total == 0 {
		return s
	}

	s.MinRULDays = lowest
	s.MeanRULDays = sum / float64(s.Total)
	s.Split = SplitBuckets(s.Total, s.Health[idxCritical].Count)
	return s
}

// CriticalCount returns the number of records in the Critical health bucket.
func (s Summary) CriticalCount() int { return s.Health[idxCritical].Count }

// AtRiskPct returns the AtRisk percentage, or 0 when Split is absent.
func (s Summary) AtRiskPct() float64 {
	if len(s.Split) != 2 {
		return 0
	}
	return float64(s.Split[1].Count)
}

// PriorityCount returns the number of records with priority p.
func (s Summary) PriorityCount(p Priority) int {
	for _, b := range s.Priority {
		if b.Key == string(p) {
			return b.Count
		}
	}
	return 0
}

// riskRangeIndex assumes days is valid. Fractional values between two ranges
// (e.g. 30.5) fall into the higher range.
func riskRangeIndex(days float64) int {
	switch {
	case days <= ThresholdCritical:
		return 0
	case days <= ThresholdAttention:
		return 1
	case days <= ThresholdGood:
		return 2
	default:
		return 3
	}
}

// SplitBuckets derives AtRisk as the complement of the rounded Healthy
// percentage so the pair always sums to 100. total must be > 0.
func SplitBuckets(total, critical int) []Bucket {
	healthy := int(math.Round(100 * float64(total-critical) / float64(total)))
	return []Bucket{
		{Key: string(ConditionHealthy), Label: "Healthy", Count: healthy, Color: ColorGreen},
		{Key: string(ConditionAtRisk), Label: "At risk", Count: 100 - healthy, Color: ColorRed},
	}
}

func emptySummary() Summary {
	return Summary{
		Health: [4]Bucket{
			{Key: string(HealthExcellent), Label: "Excellent", Color: ColorGreen},
			{Key: string(HealthGood), Label: "Good", Color: ColorBlue},
			{Key: string(HealthAttention), Label: "Attention", Color: ColorAmber},
			{Key: string(HealthCritical), Label: "Critical", Color: ColorRed},
		},
		RiskRange: [4]Bucket{
			{Key: "0-30", Label: "0-30 days", Color: ColorRed},
			{Key: "31-90", Label: "31-90 days", Color: ColorAmber},
			{Key: "91-180", Label: "91-180 days", Color: ColorBlue},
			{Key: "180+", Label: "> 180 days", Color: ColorGreen},
		},
		Priority: [3]Bucket{
			{Key: string(PriorityCritical), Label: "Critical", Color: ColorRed},
			{Key: string(PriorityAttention), Label: "Attention", Color: ColorAmber},
			{Key: string(PriorityNormal), Label: "Normal", Color: ColorGreen},
		},
	}
}

// PriorityColor returns the table color token for p.
func PriorityColor(p Priority) string {
	switch p {
	case PriorityCritical:
		return ColorRed
	case PriorityAttention:
		return ColorAmber
	default:
		return ColorGreen
	}
}
