// Package stats summarizes samples collected during a simulation: plain
// observations (waiting times, sojourn times) and time series whose samples
// each hold until the next one (queue lengths, resource occupancy).
package stats

import (
	"math"
	"sort"

	"golang.org/x/exp/constraints"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary describes a set of samples. For a time series the statistics are
// weighted by how long each sample held.
type Summary struct {
	Count    int     `json:"count"`
	Mean     float64 `json:"mean"`
	Variance float64 `json:"variance"`
	StdDev   float64 `json:"std_dev"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Median   float64 `json:"median"`
	P95      float64 `json:"p95"`
	Duration float64 `json:"duration,omitempty"`
}

// Dataset collects unweighted observations.
type Dataset struct {
	xs []float64
}

// NewDataset returns an empty Dataset.
func NewDataset() *Dataset {
	return &Dataset{xs: make([]float64, 0)}
}

// Add appends one observation.
func (d *Dataset) Add(x float64) {
	d.xs = append(d.xs, x)
}

// AddAll appends observations of any integer or floating point type.
func AddAll[T constraints.Integer | constraints.Float](d *Dataset, xs ...T) {
	for _, x := range xs {
		d.xs = append(d.xs, float64(x))
	}
}

// Len returns the number of observations.
func (d *Dataset) Len() int { return len(d.xs) }

// Values returns the observations in insertion order.
func (d *Dataset) Values() []float64 { return d.xs }

// Merge appends all observations of other.
func (d *Dataset) Merge(other *Dataset) {
	d.xs = append(d.xs, other.xs...)
}

// Summary computes the summary of the observations. Variance is the unbiased
// sample variance; it is zero for fewer than two observations.
func (d *Dataset) Summary() Summary {
	n := len(d.xs)
	if n == 0 {
		return Summary{}
	}
	sorted := append([]float64(nil), d.xs...)
	sort.Float64s(sorted)

	s := Summary{
		Count:  n,
		Mean:   stat.Mean(sorted, nil),
		Min:    sorted[0],
		Max:    sorted[n-1],
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
		P95:    stat.Quantile(0.95, stat.Empirical, sorted, nil),
	}
	if n > 1 {
		s.Variance = stat.Variance(sorted, nil)
		s.StdDev = math.Sqrt(s.Variance)
	}
	return s
}

// weightedSummary summarizes xs with non-negative weights. Samples with zero
// weight count toward Count, Min and Max only.
func weightedSummary(xs, weights []float64) Summary {
	n := len(xs)
	if n == 0 {
		return Summary{}
	}
	s := Summary{
		Count:    n,
		Min:      floats.Min(xs),
		Max:      floats.Max(xs),
		Duration: floats.Sum(weights),
	}
	if s.Duration <= 0 {
		last := xs[n-1]
		s.Mean, s.Median, s.P95 = last, last, last
		return s
	}

	s.Mean = stat.Mean(xs, weights)
	s.Variance = stat.Moment(2, xs, weights)
	s.StdDev = math.Sqrt(s.Variance)

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return xs[idx[a]] < xs[idx[b]] })
	sx := make([]float64, n)
	sw := make([]float64, n)
	for i, j := range idx {
		sx[i], sw[i] = xs[j], weights[j]
	}
	s.Median = stat.Quantile(0.5, stat.Empirical, sx, sw)
	s.P95 = stat.Quantile(0.95, stat.Empirical, sx, sw)
	return s
}
