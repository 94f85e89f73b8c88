package table

import (
	"cmp"
	"slices"
	"strings"

	"github.com/rulboard/rulboard/pkg/types"
)

// Direction is the sort order of a SortSpec.
type Direction string

const (
	Ascending  Direction = "ascending"
	Descending Direction = "descending"
)

// Sortable keys. KeyPriority is not a stored field.
const (
	KeyDevice      = "device"
	KeyCurrentDate = "current_date"
	KeyRULDays     = "predicted_rul_days"
	KeyFailureDate = "predicted_failure_date"
	KeyPriority    = "priority"
)

// SortSpec selects the sort key and direction. An empty Key means no sort.
type SortSpec struct {
	Key       string    `json:"key"`
	Direction Direction `json:"direction"`
}

// Toggle returns the spec produced by a user selecting key: the same key
// flips from ascending to descending, anything else starts ascending.
func (s SortSpec) Toggle(key string) SortSpec {
	if s.Key == key && s.Direction != Descending {
		return SortSpec{Key: key, Direction: Descending}
	}
	return SortSpec{Key: key, Direction: Ascending}
}

// ParseDirection maps user input to a Direction, defaulting to Ascending.
func ParseDirection(v string) Direction {
	switch strings.ToLower(v) {
	case "desc", "descending":
		return Descending
	default:
		return Ascending
	}
}

// KnownKey reports whether key selects a comparator.
func KnownKey(key string) bool {
	return comparator(key) != nil
}

// Sort returns a new slice holding records ordered by spec. The sort is
// stable in both directions: records with equal keys keep their input order.
// An empty or unknown key returns a copy in input order.
func Sort(records []types.PredictionRecord, spec SortSpec) []types.PredictionRecord {
	out := slices.Clone(records)
	if out == nil {
		out = []types.PredictionRecord{}
	}
	cmpFn := comparator(spec.Key)
	if cmpFn == nil {
		return out
	}
	if spec.Direction == Descending {
		asc := cmpFn
		cmpFn = func(a, b types.PredictionRecord) int { return -asc(a, b) }
	}
	slices.SortStableFunc(out, cmpFn)
	return out
}

// comparator returns the ascending comparison for key, or nil.
func comparator(key string) func(a, b types.PredictionRecord) int {
	switch key {
	case KeyRULDays, KeyPriority:
		return func(a, b types.PredictionRecord) int {
			return cmp.Compare(a.PredictedRULDays, b.PredictedRULDays)
		}
	case KeyDevice:
		return func(a, b types.PredictionRecord) int { return strings.Compare(a.Device, b.Device) }
	case KeyCurrentDate:
		return func(a, b types.PredictionRecord) int { return strings.Compare(a.CurrentDate, b.CurrentDate) }
	case KeyFailureDate:
		return func(a, b types.PredictionRecord) int {
			return strings.Compare(a.PredictedFailureDate, b.PredictedFailureDate)
		}
	default:
		return nil
	}
}
