package types

import (
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/spf13/cast"
)

// rawRecord mirrors PredictionRecord with loosely typed fields. Upstream
// services built on dataframes emit device IDs as numbers and RUL values as
// numeric strings often enough that strict decoding would reject whole batches.
type rawRecord struct {
	Device               any `json:"device"`
	CurrentDate          any `json:"current_date"`
	PredictedRULDays     any `json:"predicted_rul_days"`
	PredictedFailureDate any `json:"predicted_failure_date"`
}

type rawPayload struct {
	Predictions []rawRecord `json:"predictions"`
	Rejected    int         `json:"rejected"`
}

// DecodePredictions reads a {"predictions": [...]} document from r.
//
// A predicted_rul_days value that cannot be coerced to a number decodes as NaN
// rather than failing the document; validity is decided downstream.
// The returned count is the optional "rejected" field of the envelope, set by
// relays that already dropped records before forwarding.
func DecodePredictions(r io.Reader) ([]PredictionRecord, int, error) {
	var raw rawPayload
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, 0, fmt.Errorf("decode predictions: %w", err)
	}
	if raw.Rejected < 0 {
		raw.Rejected = 0
	}

	out := make([]PredictionRecord, 0, len(raw.Predictions))
	for _, rr := range raw.Predictions {
		out = append(out, PredictionRecord{
			Device:               cast.ToString(rr.Device),
			CurrentDate:          cast.ToString(rr.CurrentDate),
			PredictedRULDays:     decodeRUL(rr.PredictedRULDays),
			PredictedFailureDate: cast.ToString(rr.PredictedFailureDate),
		})
	}
	return out, raw.Rejected, nil
}

// decodeRUL coerces a JSON number or numeric string. Booleans, objects,
// arrays, null and unparseable strings decode as NaN.
func decodeRUL(v any) float64 {
	switch v.(type) {
	case float64, string:
		days, err := cast.ToFloat64E(v)
		if err != nil {
			return math.NaN()
		}
		return days
	default:
		return math.NaN()
	}
}

// ValidRUL reports whether days is a usable remaining-life value: finite and
// non-negative. It is the single validity rule shared by ingest and the
// analytics core.
func ValidRUL(days float64) bool {
	return !math.IsNaN(days) && !math.IsInf(days, 0) && days >= 0
}

// Valid reports whether the record's RUL value passes ValidRUL.
func (p PredictionRecord) Valid() bool {
	return ValidRUL(p.PredictedRULDays)
}

// SplitValid partitions records into valid ones (input order preserved) and
// a count of invalid ones. The input slice is not modified.
func SplitValid(records []PredictionRecord) ([]PredictionRecord, int) {
	valid := make([]PredictionRecord, 0, len(records))
	var rejected int
	for _, r := range records {
		if r.Valid() {
			valid = append(valid, r)
		} else {
			rejected++
		}
	}
	return valid, rejected
}
