// Copyright ©2023 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Summary statistics over a per-frame score series.
//
// Only arithmetic mean, min/max, standard deviation and rank percentiles are
// offered. Harmonic and geometric means are deliberately not computed: the
// score range includes negative values, for which both are mathematically
// undefined (harmonic mean blows up on non-positive inputs, geometric mean's
// log is undefined for them).

package stats

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrEmptySeries is returned when aggregation is requested over zero samples.
var ErrEmptySeries = errors.New("empty score series")

// Summary holds final aggregate statistics of a complete score series.
type Summary struct {
	Count uint64  `json:"count"`
	Mean  float64 `json:"mean"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	StDev float64 `json:"stdev"`
	// Requested percentiles in ascending rank order, e.g. p5, p50, p95.
	Percentiles []Percentile `json:"percentiles,omitempty"`
}

// Percentile is the value below which Rank percent of the ordered sample
// set falls.
type Percentile struct {
	Rank  float64 `json:"rank"`
	Value float64 `json:"value"`
}

// Percentile looks up the computed value for given rank.
func (s *Summary) Percentile(rank float64) (float64, bool) {
	for _, p := range s.Percentiles {
		if p.Rank == rank {
			return p.Value, true
		}
	}
	return 0, false
}

// Aggregate computes a Summary over the full ordered score series. It is a
// pure function of its inputs: the same series always yields an identical
// Summary, and the input slice is left unmodified.
func Aggregate(values []float64, percentiles []float64) (Summary, error) {
	var s Summary

	if len(values) == 0 {
		return s, fmt.Errorf("aggregating scores: %w", ErrEmptySeries)
	}

	s.Count = uint64(len(values))
	s.Min = floats.Min(values)
	s.Max = floats.Max(values)
	s.Mean, s.StDev = stat.MeanStdDev(values, nil)
	// MeanStdDev gives NaN stdev for a single sample, report 0 instead.
	if math.IsNaN(s.StDev) {
		s.StDev = 0
	}

	if len(percentiles) == 0 {
		return s, nil
	}

	// Percentiles need sorted values, work on a copy to keep the caller's
	// series intact.
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	ranks := make([]float64, len(percentiles))
	copy(ranks, percentiles)
	sort.Float64s(ranks)

	s.Percentiles = make([]Percentile, 0, len(ranks))
	for _, p := range ranks {
		if p < 0 || p > 100 {
			return Summary{}, fmt.Errorf("percentile rank %v out of range [0, 100]", p)
		}
		s.Percentiles = append(s.Percentiles, Percentile{Rank: p, Value: percentile(sorted, p)})
	}

	return s, nil
}

// percentile returns the p-th percentile of sorted values using linear
// interpolation between adjacent ranks at position p/100*(n-1).
//
// gonum's stat.Quantile is not used here: its cumulant kinds interpolate on
// the weighted empirical CDF, which lands on sample boundaries rather than
// interpolating between ranks, e.g. p50 of 0..90 step 10 would be 40 instead
// of 45.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}

	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}
