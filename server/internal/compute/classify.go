package compute

import (
	"errors"
	"fmt"

	"github.com/rulboard/rulboard/pkg/types"
)

// ErrInvalidMetric is returned when a remaining-life value is negative,
// NaN or infinite.
var ErrInvalidMetric = errors.New("invalid metric")

// Priority is the 3-bucket classification shown in the predictions table.
type Priority string

// Health is the 4-bucket classification used by the health-status chart.
type Health string

// Condition is the binary healthy/at-risk classification.
type Condition string

const (
	PriorityCritical  Priority = "critical"
	PriorityAttention Priority = "attention"
	PriorityNormal    Priority = "normal"
)

const (
	HealthExcellent Health = "excellent"
	HealthGood      Health = "good"
	HealthAttention Health = "attention"
	HealthCritical  Health = "critical"
)

const (
	ConditionHealthy Condition = "healthy"
	ConditionAtRisk  Condition = "at_risk"
)

// Day thresholds. Priority uses strict "<" comparisons, Health and Condition
// use "<=", so a value of exactly 30 is Attention in the table but Critical in
// the health chart.
const (
	ThresholdCritical  = 30.0
	ThresholdAttention = 90.0
	ThresholdGood      = 180.0
)

// ClassifyPriority maps days to Critical (<30), Attention (<90) or Normal.
func ClassifyPriority(days float64) (Priority, error) {
	if err := checkDays(days); err != nil {
		return "", err
	}
	switch {
	case days < ThresholdCritical:
		return PriorityCritical, nil
	case days < ThresholdAttention:
		return PriorityAttention, nil
	default:
		return PriorityNormal, nil
	}
}

// ClassifyHealth maps days to Excellent (>180), Good (>90), Attention (>30)
// or Critical.
func ClassifyHealth(days float64) (Health, error) {
	if err := checkDays(days); err != nil {
		return "", err
	}
	return healthOf(days), nil
}

// ClassifyCondition maps days to AtRisk (<=30) or Healthy.
func ClassifyCondition(days float64) (Condition, error) {
	if err := checkDays(days); err != nil {
		return "", err
	}
	if days <= ThresholdCritical {
		return ConditionAtRisk, nil
	}
	return ConditionHealthy, nil
}

// healthOf assumes days has already passed checkDays.
func healthOf(days float64) Health {
	switch {
	case days > ThresholdGood:
		return HealthExcellent
	case days > ThresholdAttention:
		return HealthGood
	case days > ThresholdCritical:
		return HealthAttention
	default:
		return HealthCritical
	}
}

func checkDays(days float64) error {
	if !types.ValidRUL(days) {
		return fmt.Errorf("%w: remaining life %v days", ErrInvalidMetric, days)
	}
	return nil
}
