package lookup

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/swervesim/internal/config"
)

var testRows = []config.LookupRow{
	{Distance: 1, StdX: 0.1, StdY: 0.2, StdHeadingDegrees: 5},
	{Distance: 2, StdX: 0.3, StdY: 0.4, StdHeadingDegrees: 10},
	{Distance: 4, StdX: 0.7, StdY: 1.0, StdHeadingDegrees: 30},
}

var approx = cmpopts.EquateApprox(0, 1e-12)

func TestTableClampsOutsideDomain(t *testing.T) {
	t.Parallel()
	table := MustNewTable(testRows)

	for _, d := range []float64{0, 0.5, 0.999, math.Inf(-1)} {
		assert.Equal(t, rowUncertainty(testRows[0]), table.Lookup(d), "distance %v", d)
	}
	for _, d := range []float64{4.001, 10, math.Inf(1)} {
		assert.Equal(t, rowUncertainty(testRows[2]), table.Lookup(d), "distance %v", d)
	}
}

func TestTableExactRows(t *testing.T) {
	t.Parallel()
	table := MustNewTable(testRows)
	for _, r := range testRows {
		assert.Equal(t, rowUncertainty(r), table.Lookup(r.Distance))
	}
}

func TestTableInterpolates(t *testing.T) {
	t.Parallel()
	table := MustNewTable(testRows)

	tests := []struct {
		distance float64
		want     Uncertainty
	}{
		{1.5, Uncertainty{StdX: 0.2, StdY: 0.3, StdHeadingDegrees: 7.5}},
		{3, Uncertainty{StdX: 0.5, StdY: 0.7, StdHeadingDegrees: 20}},
		{3.5, Uncertainty{StdX: 0.6, StdY: 0.85, StdHeadingDegrees: 25}},
	}
	for _, tt := range tests {
		got := table.Lookup(tt.distance)
		if diff := cmp.Diff(tt.want, got, approx); diff != "" {
			t.Errorf("Lookup(%v) mismatch (-want +got):\n%s", tt.distance, diff)
		}
	}
}

func TestTableMonotoneBetweenRows(t *testing.T) {
	t.Parallel()
	table := MustNewTable(testRows)
	prev := table.Lookup(1)
	for d := 1.0; d <= 4.0; d += 0.05 {
		got := table.Lookup(d)
		assert.GreaterOrEqual(t, got.StdX, prev.StdX-1e-12)
		prev = got
	}
}

func TestTableUnsortedInput(t *testing.T) {
	t.Parallel()
	shuffled := []config.LookupRow{testRows[2], testRows[0], testRows[1]}
	table := MustNewTable(shuffled)
	assert.Equal(t, testRows, table.Rows())
}

func TestTableDuplicateDistanceUsesLowerRow(t *testing.T) {
	t.Parallel()
	rows := []config.LookupRow{
		{Distance: 1, StdX: 0.1, StdY: 0.1, StdHeadingDegrees: 1},
		{Distance: 2, StdX: 0.5, StdY: 0.5, StdHeadingDegrees: 5},
		{Distance: 2, StdX: 9, StdY: 9, StdHeadingDegrees: 90},
		{Distance: 3, StdX: 1.0, StdY: 1.0, StdHeadingDegrees: 10},
	}
	table, err := NewTable(rows)
	require.NoError(t, err)

	assert.Len(t, table.Rows(), 3)
	assert.Equal(t, rowUncertainty(rows[1]), table.Lookup(2))
	got := table.Lookup(2.5)
	assert.InDelta(t, 0.75, got.StdX, 1e-12)
}

func TestTableSingleDistance(t *testing.T) {
	t.Parallel()
	rows := []config.LookupRow{
		{Distance: 2, StdX: 0.3, StdY: 0.3, StdHeadingDegrees: 3},
		{Distance: 2, StdX: 0.6, StdY: 0.6, StdHeadingDegrees: 6},
	}
	table := MustNewTable(rows)
	for _, d := range []float64{0, 2, 7} {
		assert.Equal(t, rowUncertainty(rows[0]), table.Lookup(d))
	}
}

func TestTableErrors(t *testing.T) {
	t.Parallel()
	_, err := NewTable(nil)
	assert.ErrorIs(t, err, ErrEmptyTable)

	_, err = NewTable([]config.LookupRow{{Distance: math.NaN(), StdX: 1, StdY: 1, StdHeadingDegrees: 1}, {Distance: 1, StdX: 1, StdY: 1, StdHeadingDegrees: 1}})
	assert.Error(t, err)

	assert.Panics(t, func() { MustNewTable(nil) })
}

func TestLookupNaNDistanceIsInvalid(t *testing.T) {
	t.Parallel()
	table := MustNewTable(testRows)
	assert.False(t, table.Lookup(math.NaN()).Valid())
}

func TestUncertaintyValid(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		u    Uncertainty
		want bool
	}{
		{"positive", Uncertainty{0.1, 0.1, 1}, true},
		{"zero x", Uncertainty{0, 0.1, 1}, false},
		{"negative heading", Uncertainty{0.1, 0.1, -1}, false},
		{"nan y", Uncertainty{0.1, math.NaN(), 1}, false},
		{"inf x", Uncertainty{math.Inf(1), 0.1, 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.u.Valid())
		})
	}
	assert.InDelta(t, math.Pi, Uncertainty{StdHeadingDegrees: 180}.StdHeadingRadians(), 1e-12)
}

func TestSelector(t *testing.T) {
	t.Parallel()
	sel, err := NewSelector(config.EmptySwerveConfig())
	require.NoError(t, err)

	_, ok := sel.Select(0, 2)
	assert.False(t, ok, "no tags means no uncertainty")

	single, ok := sel.Select(1, 2)
	require.True(t, ok)
	assert.Equal(t, sel.Single.Lookup(2), single)

	multi, ok := sel.Select(3, 2)
	require.True(t, ok)
	assert.Equal(t, sel.Multi.Lookup(2), multi)
	assert.Less(t, multi.StdX, single.StdX, "multi-tag detections are trusted more")

	// Switching back is immediate.
	again, ok := sel.Select(1, 2)
	require.True(t, ok)
	assert.Equal(t, single, again)
}
