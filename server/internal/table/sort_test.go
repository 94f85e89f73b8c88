package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rulboard/rulboard/pkg/types"
)

func rec(device string, days float64) types.PredictionRecord {
	return types.PredictionRecord{
		Device:               device,
		CurrentDate:          "2015-11-02",
		PredictedRULDays:     days,
		PredictedFailureDate: "2015-12-01",
	}
}

func devices(rs []types.PredictionRecord) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Device
	}
	return out
}

func TestSort_ByRULAscending(t *testing.T) {
	in := []types.PredictionRecord{rec("B", 95), rec("C", 200), rec("A", 10)}
	got := Sort(in, SortSpec{Key: KeyRULDays, Direction: Ascending})
	assert.Equal(t, []string{"A", "B", "C"}, devices(got))
	assert.Equal(t, []string{"B", "C", "A"}, devices(in), "input must not be modified")
}

func TestSort_ByRULDescending(t *testing.T) {
	in := []types.PredictionRecord{rec("B", 95), rec("C", 200), rec("A", 10)}
	got := Sort(in, SortSpec{Key: KeyRULDays, Direction: Descending})
	assert.Equal(t, []string{"C", "B", "A"}, devices(got))
}

func TestSort_PriorityAliasesRUL(t *testing.T) {
	in := []types.PredictionRecord{
		rec("d1", 45), rec("d2", 3), rec("d3", 45), rec("d4", 120), rec("d5", 3), rec("d6", 0.5),
	}
	for _, dir := range []Direction{Ascending, Descending} {
		byRUL := Sort(in, SortSpec{Key: KeyRULDays, Direction: dir})
		byPrio := Sort(in, SortSpec{Key: KeyPriority, Direction: dir})
		assert.Equal(t, byRUL, byPrio, "direction %s", dir)
	}
}

func TestSort_StableTiesInBothDirections(t *testing.T) {
	in := []types.PredictionRecord{
		rec("first", 50), rec("x", 10), rec("second", 50), rec("y", 90), rec("third", 50),
	}

	asc := Sort(in, SortSpec{Key: KeyRULDays, Direction: Ascending})
	assert.Equal(t, []string{"x", "first", "second", "third", "y"}, devices(asc))

	desc := Sort(in, SortSpec{Key: KeyRULDays, Direction: Descending})
	assert.Equal(t, []string{"y", "first", "second", "third", "x"}, devices(desc))
}

func TestSort_StringKeys(t *testing.T) {
	in := []types.PredictionRecord{
		{Device: "Z1F0", CurrentDate: "2015-03-01", PredictedFailureDate: "2015-04-01"},
		{Device: "S1F0", CurrentDate: "2015-01-15", PredictedFailureDate: "2015-09-01"},
		{Device: "W1F0", CurrentDate: "2015-02-10", PredictedFailureDate: "2015-01-20"},
	}
	assert.Equal(t, []string{"S1F0", "W1F0", "Z1F0"}, devices(Sort(in, SortSpec{Key: KeyDevice, Direction: Ascending})))
	assert.Equal(t, []string{"Z1F0", "W1F0", "S1F0"}, devices(Sort(in, SortSpec{Key: KeyCurrentDate, Direction: Descending})))
	assert.Equal(t, []string{"W1F0", "Z1F0", "S1F0"}, devices(Sort(in, SortSpec{Key: KeyFailureDate, Direction: Ascending})))
}

func TestSort_DuplicateDevicesKept(t *testing.T) {
	in := []types.PredictionRecord{rec("A", 5), rec("A", 1), rec("A", 3)}
	got := Sort(in, SortSpec{Key: KeyDevice, Direction: Ascending})
	require.Len(t, got, 3)
	assert.Equal(t, []float64{5, 1, 3}, []float64{got[0].PredictedRULDays, got[1].PredictedRULDays, got[2].PredictedRULDays})
}

func TestSort_NoKeyOrUnknownKeyIsIdentity(t *testing.T) {
	in := []types.PredictionRecord{rec("B", 2), rec("A", 1)}
	for _, spec := range []SortSpec{{}, {Key: "metric7", Direction: Descending}} {
		got := Sort(in, spec)
		assert.Equal(t, devices(in), devices(got), "spec %+v", spec)
		got[0].Device = "mutated"
		assert.Equal(t, "B", in[0].Device, "result must not alias input")
	}
}

func TestSort_Empty(t *testing.T) {
	got := Sort(nil, SortSpec{Key: KeyRULDays})
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestSort_Idempotent(t *testing.T) {
	in := []types.PredictionRecord{rec("a", 7), rec("b", 7), rec("c", 1), rec("d", 300), rec("e", 7)}
	for _, spec := range []SortSpec{
		{Key: KeyRULDays, Direction: Ascending},
		{Key: KeyPriority, Direction: Descending},
		{Key: KeyDevice, Direction: Descending},
	} {
		once := Sort(in, spec)
		assert.Equal(t, once, Sort(once, spec), "spec %+v", spec)
	}
}

func TestSortSpec_Toggle(t *testing.T) {
	var s SortSpec
	s = s.Toggle(KeyRULDays)
	assert.Equal(t, SortSpec{Key: KeyRULDays, Direction: Ascending}, s)
	s = s.Toggle(KeyRULDays)
	assert.Equal(t, SortSpec{Key: KeyRULDays, Direction: Descending}, s)
	s = s.Toggle(KeyRULDays)
	assert.Equal(t, Ascending, s.Direction)
	s = s.Toggle(KeyDevice)
	assert.Equal(t, SortSpec{Key: KeyDevice, Direction: Ascending}, s)
}

func TestParseDirection(t *testing.T) {
	assert.Equal(t, Descending, ParseDirection("desc"))
	assert.Equal(t, Descending, ParseDirection("DESCENDING"))
	assert.Equal(t, Ascending, ParseDirection("asc"))
	assert.Equal(t, Ascending, ParseDirection(""))
}

func TestKnownKey(t *testing.T) {
	for _, k := range []string{KeyDevice, KeyCurrentDate, KeyRULDays, KeyFailureDate, KeyPriority} {
		assert.True(t, KnownKey(k), k)
	}
	assert.False(t, KnownKey(""))
	assert.False(t, KnownKey("metric1"))
}
