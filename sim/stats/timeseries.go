package stats

import "fmt"

// Timeseries records (value, time) samples. Each value holds from its own
// timestamp until the next sample.
type Timeseries struct {
	X []float64 `json:"x"`
	T []float64 `json:"t"`
}

// NewTimeseries returns an empty Timeseries.
func NewTimeseries() *Timeseries {
	return &Timeseries{X: make([]float64, 0), T: make([]float64, 0)}
}

// Add appends a sample. Timestamps must not decrease.
func (ts *Timeseries) Add(x, t float64) {
	if n := len(ts.T); n > 0 && t < ts.T[n-1] {
		panic(fmt.Sprintf("stats: Timeseries.Add: time %g before last sample at %g", t, ts.T[n-1]))
	}
	ts.X = append(ts.X, x)
	ts.T = append(ts.T, t)
}

// Len returns the number of samples.
func (ts *Timeseries) Len() int { return len(ts.X) }

// Last returns the most recent sample.
func (ts *Timeseries) Last() (x, t float64, ok bool) {
	n := len(ts.X)
	if n == 0 {
		return 0, 0, false
	}
	return ts.X[n-1], ts.T[n-1], true
}

// Summarize weights every sample by how long it held. The last sample holds
// until end; pass its own timestamp to give it no weight.
func (ts *Timeseries) Summarize(end float64) Summary {
	n := len(ts.X)
	if n == 0 {
		return Summary{}
	}
	if end < ts.T[n-1] {
		end = ts.T[n-1]
	}
	weights := make([]float64, n)
	for i := 0; i < n-1; i++ {
		weights[i] = ts.T[i+1] - ts.T[i]
	}
	weights[n-1] = end - ts.T[n-1]
	return weightedSummary(ts.X, weights)
}
