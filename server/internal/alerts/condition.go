package alerts

import (
	"strconv"
	"strings"

	"github.com/rulboard/rulboard/server/internal/compute"
)

// evalCondition evaluates a rule condition string against a batch summary.
//
// Supported expressions (field operator value):
//
//	critical_count > 5
//	attention_count >= 20
//	at_risk_pct > 25
//	min_rul_days < 7
//	mean_rul_days < 60
//	rejected_count > 0
//	device_count == 0
//
// Returns (fires bool, triggering value float64).
// Returns (false, 0) if the expression cannot be parsed or the field is unknown.
func evalCondition(cond string, sum compute.Summary) (bool, float64) {
	parts := strings.Fields(cond)
	if len(parts) != 3 {
		return false, 0
	}
	field, op, rhs := parts[0], parts[1], parts[2]

	v, ok := numericField(field, sum)
	if !ok {
		return false, 0
	}
	// min/mean are meaningless for a batch without valid records.
	if sum.Total == 0 && (field == "min_rul_days" || field == "mean_rul_days") {
		return false, 0
	}
	threshold, err := strconv.ParseFloat(rhs, 64)
	if err != nil {
		return false, 0
	}
	return compareFloat(v, op, threshold), v
}

// numericField maps a field name to its value in the summary.
func numericField(field string, sum compute.Summary) (float64, bool) {
	switch field {
	case "critical_count":
		return float64(sum.PriorityCount(compute.PriorityCritical)), true
	case "attention_count":
		return float64(sum.PriorityCount(compute.PriorityAttention)), true
	case "at_risk_pct":
		return sum.AtRiskPct(), true
	case "min_rul_days":
		return sum.MinRULDays, true
	case "mean_rul_days":
		return sum.MeanRULDays, true
	case "rejected_count":
		return float64(sum.Rejected), true
	case "device_count":
		return float64(sum.Total), true
	default:
		return 0, false
	}
}

// compareFloat applies a comparison operator to two float64 values.
func compareFloat(v float64, op string, threshold float64) bool {
	switch op {
	case ">":
		return v > threshold
	case ">=":
		return v >= threshold
	case "<":
		return v < threshold
	case "<=":
		return v <= threshold
	case "==":
		return v == threshold
	case "!=":
		return v != threshold
	default:
		return false
	}
}
