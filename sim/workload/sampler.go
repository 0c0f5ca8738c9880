// Package workload draws the random durations a model is driven by:
// inter-arrival gaps and service times. Every sampler is parameterized by
// its mean and, where the family allows it, its coefficient of variation.
package workload

import (
	"math"
	"math/rand"
	"sort"

	"github.com/sirupsen/logrus"
)

// Sampler generates non-negative durations.
type Sampler interface {
	// Sample returns the next duration.
	Sample(rng *rand.Rand) float64
	// Mean returns the theoretical mean of the samples.
	Mean() float64
}

// ExponentialSampler produces exponentially distributed durations (CV=1).
// As an arrival process it is Poisson.
type ExponentialSampler struct {
	mean float64
}

func (s *ExponentialSampler) Sample(rng *rand.Rand) float64 { return rng.ExpFloat64() * s.mean }
func (s *ExponentialSampler) Mean() float64                 { return s.mean }

// GammaSampler produces Gamma-distributed durations. CV > 1 gives bursty
// arrivals, CV < 1 regular ones.
// Implemented using Marsaglia-Tsang's method for shape >= 1,
// with transformation for shape < 1.
type GammaSampler struct {
	shape float64 // 1/CV² (alpha parameter)
	scale float64 // mean*CV² (beta parameter)
}

func (s *GammaSampler) Sample(rng *rand.Rand) float64 { return gammaRand(rng, s.shape, s.scale) }
func (s *GammaSampler) Mean() float64                 { return s.shape * s.scale }

// gammaRand samples from Gamma(shape, scale) using Marsaglia-Tsang's method.
// For shape >= 1: direct method.
// For shape < 1: Gamma(shape) = Gamma(shape+1) * U^(1/shape).
func gammaRand(rng *rand.Rand, shape, scale float64) float64 {
	if shape < 1.0 {
		u := rng.Float64()
		return gammaRand(rng, shape+1.0, scale) * math.Pow(u, 1.0/shape)
	}

	d := shape - 1.0/3.0
	c := 1.0 / math.Sqrt(9.0*d)

	for {
		var x, v float64
		for {
			x = rng.NormFloat64()
			v = 1.0 + c*x
			if v > 0 {
				break
			}
		}
		v = v * v * v
		u := rng.Float64()

		// Squeeze test
		if u < 1.0-0.0331*(x*x)*(x*x) {
			return d * v * scale
		}
		if math.Log(u) < 0.5*x*x+d*(1.0-v+math.Log(v)) {
			return d * v * scale
		}
	}
}

// WeibullSampler produces Weibull-distributed durations.
type WeibullSampler struct {
	shape float64 // Weibull k parameter
	scale float64 // Weibull λ parameter
}

func (s *WeibullSampler) Sample(rng *rand.Rand) float64 {
	// Inverse CDF: scale * (-ln(U))^(1/shape)
	u := rng.Float64()
	if u == 0 {
		u = math.SmallestNonzeroFloat64 // prevent -ln(0) = +Inf
	}
	return s.scale * math.Pow(-math.Log(u), 1.0/s.shape)
}

func (s *WeibullSampler) Mean() float64 { return s.scale * math.Gamma(1.0+1.0/s.shape) }

// LogNormalSampler produces log-normally distributed durations.
type LogNormalSampler struct {
	mu    float64 // mean of ln(X)
	sigma float64 // std dev of ln(X)
}

func (s *LogNormalSampler) Sample(rng *rand.Rand) float64 {
	val := math.Exp(s.mu + s.sigma*rng.NormFloat64())
	// Guard against +Inf from extreme sigma values
	if math.IsInf(val, 0) || math.IsNaN(val) {
		return math.MaxFloat64
	}
	return val
}

func (s *LogNormalSampler) Mean() float64 { return math.Exp(s.mu + s.sigma*s.sigma/2) }

// ConstantSampler always returns the same duration.
type ConstantSampler struct {
	value float64
}

func (s *ConstantSampler) Sample(_ *rand.Rand) float64 { return s.value }
func (s *ConstantSampler) Mean() float64               { return s.value }

// EmpiricalSampler draws from a discrete distribution of durations using
// inverse CDF via binary search.
type EmpiricalSampler struct {
	values []float64 // sorted
	cdf    []float64 // cumulative probabilities (same length as values)
	mean   float64
}

// NewEmpiricalSampler creates a sampler from parallel slices of durations
// and weights. Weights are normalized; non-positive weights are skipped.
func NewEmpiricalSampler(values, weights []float64) *EmpiricalSampler {
	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return values[idx[a]] < values[idx[b]] })

	total := 0.0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	s := &EmpiricalSampler{}
	cumulative := 0.0
	for _, i := range idx {
		w := weights[i]
		if w <= 0 {
			continue // skip zero or negative weights
		}
		cumulative += w / total
		s.values = append(s.values, values[i])
		s.cdf = append(s.cdf, cumulative)
		s.mean += values[i] * w / total
	}
	// Ensure last CDF entry is exactly 1.0
	if len(s.cdf) > 0 {
		s.cdf[len(s.cdf)-1] = 1.0
	}
	return s
}

func (s *EmpiricalSampler) Sample(rng *rand.Rand) float64 {
	switch len(s.values) {
	case 0:
		return 0
	case 1:
		return s.values[0]
	}
	i := sort.SearchFloat64s(s.cdf, rng.Float64())
	if i >= len(s.values) {
		i = len(s.values) - 1
	}
	return s.values[i]
}

func (s *EmpiricalSampler) Mean() float64 { return s.mean }

// weibullShapeFromCV finds Weibull shape parameter k such that
// CV² = Γ(1+2/k)/Γ(1+1/k)² - 1, using bisection.
// Range: k ∈ [0.1, 100], tolerance: |CV_computed - CV_target| < 0.001.
// Max 100 iterations; logs warning if convergence fails.
func weibullShapeFromCV(targetCV float64) float64 {
	lo, hi := 0.1, 100.0
	for i := 0; i < 100; i++ {
		mid := (lo + hi) / 2.0
		cv := weibullCV(mid)
		if math.Abs(cv-targetCV) < 0.001 {
			return mid
		}
		// CV is monotonically decreasing in k
		if cv > targetCV {
			lo = mid
		} else {
			hi = mid
		}
	}
	logrus.Warnf("weibullShapeFromCV: bisection did not converge for CV=%.3f after 100 iterations; using k=%.3f", targetCV, (lo+hi)/2.0)
	return (lo + hi) / 2.0
}

// weibullCV computes the coefficient of variation for Weibull(k).
func weibullCV(k float64) float64 {
	g1 := math.Gamma(1.0 + 1.0/k)
	g2 := math.Gamma(1.0 + 2.0/k)
	return math.Sqrt(g2/(g1*g1) - 1.0)
}
