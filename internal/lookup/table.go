// Package lookup maps the distance to the nearest visible tag onto the
// standard deviations a vision pose should be trusted with.
package lookup

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/interp"

	"github.com/banshee-data/swervesim/internal/config"
)

// ErrEmptyTable is returned when a table is built from no rows.
var ErrEmptyTable = errors.New("lookup: table has no rows")

// Uncertainty is the standard deviation triple attached to a vision pose.
type Uncertainty struct {
	StdX              float64 `json:"std_x"`
	StdY              float64 `json:"std_y"`
	StdHeadingDegrees float64 `json:"std_heading_deg"`
}

// Valid reports whether every member is a finite, strictly positive number.
// The estimator refuses to fuse samples with an invalid triple.
func (u Uncertainty) Valid() bool {
	for _, v := range [3]float64{u.StdX, u.StdY, u.StdHeadingDegrees} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return false
		}
	}
	return true
}

// StdHeadingRadians returns the heading deviation in radians.
func (u Uncertainty) StdHeadingRadians() float64 {
	return u.StdHeadingDegrees * math.Pi / 180
}

// Table interpolates uncertainty rows by distance. Queries outside the table
// clamp to the nearest boundary row. Table is immutable after construction
// and safe for concurrent use.
type Table struct {
	distances []float64
	rows      []config.LookupRow

	// One fitted predictor per column; nil when the table collapses to a
	// single distance.
	stdX, stdY, stdHeading interp.Predictor
}

// NewTable builds a table from rows in any order. Rows sharing a distance
// collapse onto the first of them, so a zero-width interval always answers
// with its lower endpoint.
func NewTable(rows []config.LookupRow) (*Table, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyTable
	}

	sorted := make([]config.LookupRow, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Distance < sorted[j].Distance })

	unique := make([]config.LookupRow, 0, len(sorted))
	unique = append(unique, sorted[0])
	for _, r := range sorted[1:] {
		if r.Distance == unique[len(unique)-1].Distance {
			continue
		}
		unique = append(unique, r)
	}

	t := &Table{rows: unique, distances: make([]float64, len(unique))}
	for i, r := range unique {
		if math.IsNaN(r.Distance) || math.IsInf(r.Distance, 0) {
			return nil, fmt.Errorf("lookup: row %d has non-finite distance", i)
		}
		t.distances[i] = r.Distance
	}
	if len(unique) == 1 {
		return t, nil
	}

	column := func(get func(config.LookupRow) float64) (interp.Predictor, error) {
		ys := make([]float64, len(unique))
		for i, r := range unique {
			ys[i] = get(r)
		}
		var pl interp.PiecewiseLinear
		if err := pl.Fit(t.distances, ys); err != nil {
			return nil, err
		}
		return pl, nil
	}

	var err error
	if t.stdX, err = column(func(r config.LookupRow) float64 { return r.StdX }); err != nil {
		return nil, fmt.Errorf("lookup: fit std_x: %w", err)
	}
	if t.stdY, err = column(func(r config.LookupRow) float64 { return r.StdY }); err != nil {
		return nil, fmt.Errorf("lookup: fit std_y: %w", err)
	}
	if t.stdHeading, err = column(func(r config.LookupRow) float64 { return r.StdHeadingDegrees }); err != nil {
		return nil, fmt.Errorf("lookup: fit std_heading: %w", err)
	}
	return t, nil
}

// MustNewTable is NewTable that panics on error, for tests and static tables.
func MustNewTable(rows []config.LookupRow) *Table {
	t, err := NewTable(rows)
	if err != nil {
		panic(err)
	}
	return t
}

// Lookup returns the interpolated uncertainty at distance. A NaN distance
// yields an invalid (NaN) triple so the caller's validity check rejects it.
func (t *Table) Lookup(distance float64) Uncertainty {
	if math.IsNaN(distance) {
		nan := math.NaN()
		return Uncertainty{StdX: nan, StdY: nan, StdHeadingDegrees: nan}
	}
	first, last := t.rows[0], t.rows[len(t.rows)-1]
	switch {
	case distance <= first.Distance:
		return rowUncertainty(first)
	case distance >= last.Distance:
		return rowUncertainty(last)
	}
	return Uncertainty{
		StdX:              t.stdX.Predict(distance),
		StdY:              t.stdY.Predict(distance),
		StdHeadingDegrees: t.stdHeading.Predict(distance),
	}
}

// Rows returns a copy of the de-duplicated rows in ascending distance order.
func (t *Table) Rows() []config.LookupRow {
	out := make([]config.LookupRow, len(t.rows))
	copy(out, t.rows)
	return out
}

func rowUncertainty(r config.LookupRow) Uncertainty {
	return Uncertainty{StdX: r.StdX, StdY: r.StdY, StdHeadingDegrees: r.StdHeadingDegrees}
}

// Selector picks the table that matches the number of visible tags.
type Selector struct {
	Single *Table
	Multi  *Table
}

// NewSelector builds both tables from configuration.
func NewSelector(cfg *config.SwerveConfig) (*Selector, error) {
	single, err := NewTable(cfg.GetSingleTagTable())
	if err != nil {
		return nil, fmt.Errorf("single tag table: %w", err)
	}
	multi, err := NewTable(cfg.GetMultiTagTable())
	if err != nil {
		return nil, fmt.Errorf("multi tag table: %w", err)
	}
	return &Selector{Single: single, Multi: multi}, nil
}

// Select returns the uncertainty for a detection of tagCount tags at
// distance. ok is false when no tag is visible. The switch between tables
// is immediate on every call.
func (s *Selector) Select(tagCount int, distance float64) (u Uncertainty, ok bool) {
	switch {
	case tagCount <= 0:
		return Uncertainty{}, false
	case tagCount == 1:
		return s.Single.Lookup(distance), true
	default:
		return s.Multi.Lookup(distance), true
	}
}
