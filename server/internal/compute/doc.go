// Package compute derives risk categories and chart distributions from
// prediction records.
//
// classify.go maps a remaining-useful-life value to one of three category
// sets: Priority (table view), Health (4-bucket pie) and Condition (binary
// healthy/at-risk split). Non-finite or negative values fail with
// ErrInvalidMetric.
//
// distribution.go provides Summarize, a single pass over a record set that
// produces fixed-order, fixed-color buckets ready for charting.
//
// Thresholds, in days:
//
//	Priority:  Critical <30, Attention 30–89.x, Normal ≥90
//	Health:    Critical ≤30, Attention ≤90, Good ≤180, Excellent >180
//	Condition: AtRisk ≤30, Healthy >30
package compute
