package types

import "time"

// PredictionRecord is one device's remaining-useful-life prediction as
// produced by the prediction service. Records are treated as read-only once
// they enter a Batch.
type PredictionRecord struct {
	Device string `json:"device"`

	// CurrentDate is the observation date, formatted YYYY-MM-DD.
	CurrentDate string `json:"current_date"`

	// PredictedRULDays is the predicted number of days until failure.
	// NaN marks a value that could not be decoded as a number.
	PredictedRULDays float64 `json:"predicted_rul_days"`

	// PredictedFailureDate is CurrentDate + PredictedRULDays, as computed
	// upstream. It is never recomputed here.
	PredictedFailureDate string `json:"predicted_failure_date"`
}

// Batch is the full set of predictions received from one source in a single
// delivery. A new batch for a source replaces the previous one.
type Batch struct {
	SourceID   string             `json:"source_id"`
	BatchID    string             `json:"batch_id"`
	ReceivedAt time.Time          `json:"received_at"`
	Records    []PredictionRecord `json:"predictions"`

	// Rejected counts records dropped during decoding or validation.
	Rejected int `json:"rejected"`
}

// PredictionsPayload is the wire envelope used by the prediction service and
// by the server's ingest endpoint.
type PredictionsPayload struct {
	Predictions []PredictionRecord `json:"predictions"`
}
