package types

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePredictions_Lenient(t *testing.T) {
	body := `{"predictions":[
		{"device":"S1F0KYCR","current_date":"2015-11-02","predicted_rul_days":12.4,"predicted_failure_date":"2015-11-14"},
		{"device":1234,"current_date":"2015-11-02","predicted_rul_days":"95","predicted_failure_date":"2016-02-05"},
		{"device":"W1F0","current_date":"2015-11-02","predicted_rul_days":"soon","predicted_failure_date":""},
		{"device":"Z1F0","current_date":"2015-11-02","predicted_failure_date":""},
		{"device":"T1","current_date":"2015-11-02","predicted_rul_days":true,"predicted_failure_date":""},
		{"device":"F1","current_date":"2015-11-02","predicted_rul_days":false,"predicted_failure_date":""},
		{"device":"O1","current_date":"2015-11-02","predicted_rul_days":{"v":3},"predicted_failure_date":""},
		{"device":"A1","current_date":"2015-11-02","predicted_rul_days":[7],"predicted_failure_date":""}
	]}`

	recs, rejected, err := DecodePredictions(strings.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, 0, rejected)
	require.Len(t, recs, 8)

	assert.Equal(t, 12.4, recs[0].PredictedRULDays)
	assert.Equal(t, "1234", recs[1].Device)
	assert.Equal(t, 95.0, recs[1].PredictedRULDays)
	for i, why := range map[int]string{
		2: "unparseable string",
		3: "missing value",
		4: "boolean true",
		5: "boolean false",
		6: "object",
		7: "array",
	} {
		assert.True(t, math.IsNaN(recs[i].PredictedRULDays), "recs[%d] (%s) = %v, want NaN", i, why, recs[i].PredictedRULDays)
		assert.False(t, recs[i].Valid(), "recs[%d] (%s) must be invalid", i, why)
	}
}

func TestDecodePredictions_BooleansAreRejected(t *testing.T) {
	body := `{"predictions":[{"device":"a","predicted_rul_days":true},{"device":"b","predicted_rul_days":false}]}`

	recs, _, err := DecodePredictions(strings.NewReader(body))
	require.NoError(t, err)

	valid, rejected := SplitValid(recs)
	assert.Empty(t, valid)
	assert.Equal(t, 2, rejected)
}

func TestDecodePredictions_RelayRejectedCount(t *testing.T) {
	recs, rejected, err := DecodePredictions(strings.NewReader(`{"predictions":[],"rejected":3}`))
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.Equal(t, 3, rejected)
}

func TestDecodePredictions_Malformed(t *testing.T) {
	_, _, err := DecodePredictions(strings.NewReader(`{"predictions":`))
	assert.Error(t, err, "truncated JSON must fail")
}

func TestSplitValid(t *testing.T) {
	in := []PredictionRecord{
		{Device: "a", PredictedRULDays: 0},
		{Device: "b", PredictedRULDays: -1},
		{Device: "c", PredictedRULDays: math.Inf(1)},
		{Device: "d", PredictedRULDays: math.NaN()},
		{Device: "e", PredictedRULDays: 400.5},
	}
	valid, rejected := SplitValid(in)
	assert.Equal(t, 3, rejected)
	require.Len(t, valid, 2)
	assert.Equal(t, "a", valid[0].Device)
	assert.Equal(t, "e", valid[1].Device)
	assert.Equal(t, "b", in[1].Device, "input slice was modified")
}

func TestValidRUL(t *testing.T) {
	tests := []struct {
		days float64
		want bool
	}{
		{0, true},
		{365.25, true},
		{-0.5, false},
		{math.NaN(), false},
		{math.Inf(1), false},
		{math.Inf(-1), false},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, ValidRUL(tc.days), "ValidRUL(%v)", tc.days)
	}
}
