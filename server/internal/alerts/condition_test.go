package alerts

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rulboard/rulboard/pkg/types"
	"github.com/rulboard/rulboard/server/internal/compute"
)

func summaryOf(days ...float64) compute.Summary {
	recs := make([]types.PredictionRecord, len(days))
	for i, d := range days {
		recs[i] = types.PredictionRecord{Device: "d", PredictedRULDays: d}
	}
	return compute.Summarize(recs)
}

func TestEvalCondition(t *testing.T) {
	// priorities: 5 critical, 45 attention, 200 normal; health critical: 5
	sum := summaryOf(5, 45, 200, 400)
	sum.Rejected = 2

	cases := []struct {
		cond  string
		fires bool
		value float64
	}{
		{"critical_count > 0", true, 1},
		{"critical_count > 1", false, 1},
		{"attention_count >= 1", true, 1},
		{"at_risk_pct == 25", true, 25},
		{"at_risk_pct > 30", false, 25},
		{"min_rul_days < 7", true, 5},
		{"mean_rul_days <= 162.5", true, 162.5},
		{"rejected_count != 0", true, 2},
		{"device_count == 4", true, 4},
	}
	for _, tc := range cases {
		fires, v := evalCondition(tc.cond, sum)
		assert.Equal(t, tc.fires, fires, "%q fires", tc.cond)
		assert.Equal(t, tc.value, v, "%q value", tc.cond)
	}
}

func TestEvalCondition_Malformed(t *testing.T) {
	sum := summaryOf(5)
	for _, cond := range []string{
		"",
		"critical_count >",
		"critical_count > 1 extra",
		"unknown_field > 0",
		"critical_count ~ 0",
		"critical_count > abc",
	} {
		fires, v := evalCondition(cond, sum)
		assert.False(t, fires, "%q", cond)
		assert.Zero(t, v, "%q", cond)
	}
}

func TestEvalCondition_EmptyBatchSkipsRULStats(t *testing.T) {
	sum := summaryOf()

	fires, _ := evalCondition("min_rul_days < 7", sum)
	assert.False(t, fires, "min_rul_days should not fire on an empty batch")
	fires, _ = evalCondition("mean_rul_days < 7", sum)
	assert.False(t, fires, "mean_rul_days should not fire on an empty batch")
	fires, _ = evalCondition("device_count == 0", sum)
	assert.True(t, fires, "device_count == 0 should fire on an empty batch")
}
