// Package chart flattens prediction records into the tuples plotted by the
// remaining-life bar and line charts.
package chart

import (
	"math"

	"github.com/rulboard/rulboard/pkg/types"
)

// Tuple is one bar of the remaining-life chart.
type Tuple struct {
	Device      string `json:"device"`
	RULDays     int    `json:"rul_days"`
	CurrentDate string `json:"current_date"`
	FailureDate string `json:"failure_date"`
}

// ToTuple maps a validated record to its chart tuple, rounding the remaining
// life to whole days (halves away from zero).
func ToTuple(r types.PredictionRecord) Tuple {
	return Tuple{
		Device:      r.Device,
		RULDays:     int(math.Round(r.PredictedRULDays)),
		CurrentDate: r.CurrentDate,
		FailureDate: r.PredictedFailureDate,
	}
}

// ToTuples maps records in order. The result is never nil.
func ToTuples(records []types.PredictionRecord) []Tuple {
	out := make([]Tuple, len(records))
	for i, r := range records {
		out[i] = ToTuple(r)
	}
	return out
}
