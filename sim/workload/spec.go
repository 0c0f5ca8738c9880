package workload

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

// DistSpec parameterizes a duration distribution in scenario files.
type DistSpec struct {
	Process string   `yaml:"process" json:"process"`
	Mean    float64  `yaml:"mean,omitempty" json:"mean,omitempty"`
	CV      *float64 `yaml:"cv,omitempty" json:"cv,omitempty"`
	// Values and Weights describe an empirical distribution.
	Values  []float64 `yaml:"values,omitempty" json:"values,omitempty"`
	Weights []float64 `yaml:"weights,omitempty" json:"weights,omitempty"`
}

// validProcesses maps accepted process names.
var validProcesses = map[string]bool{
	"exponential": true,
	"poisson":     true, // alias of exponential for arrival streams
	"gamma":       true,
	"weibull":     true,
	"lognormal":   true,
	"constant":    true,
	"empirical":   true,
}

// IsValidProcess reports whether name is a recognized process.
func IsValidProcess(name string) bool { return validProcesses[name] }

// Validate checks a DistSpec; prefix names it in error messages.
func (d *DistSpec) Validate(prefix string) error {
	if !validProcesses[d.Process] {
		return fmt.Errorf("%s: unknown process %q; valid: exponential, poisson, gamma, weibull, lognormal, constant, empirical", prefix, d.Process)
	}
	if d.Process == "empirical" {
		if len(d.Values) == 0 {
			return fmt.Errorf("%s: empirical distribution has no values", prefix)
		}
		if len(d.Values) != len(d.Weights) {
			return fmt.Errorf("%s: %d values but %d weights", prefix, len(d.Values), len(d.Weights))
		}
		positive := false
		for i, v := range d.Values {
			if err := validateFiniteNonNegative(fmt.Sprintf("%s.values[%d]", prefix, i), v); err != nil {
				return err
			}
			if err := validateFiniteNonNegative(fmt.Sprintf("%s.weights[%d]", prefix, i), d.Weights[i]); err != nil {
				return err
			}
			positive = positive || d.Weights[i] > 0
		}
		if !positive {
			return fmt.Errorf("%s: empirical weights are all zero", prefix)
		}
		return nil
	}
	if d.Process == "constant" {
		if err := validateFiniteNonNegative(prefix+".mean", d.Mean); err != nil {
			return err
		}
	} else if err := validateFinitePositive(prefix+".mean", d.Mean); err != nil {
		return err
	}
	if d.CV != nil {
		if err := validateFinitePositive(prefix+".cv", *d.CV); err != nil {
			return err
		}
	}
	return nil
}

// NewSampler creates a Sampler from a validated spec. A missing CV means 1.
func NewSampler(spec DistSpec) (Sampler, error) {
	if err := spec.Validate("distribution"); err != nil {
		return nil, err
	}
	cv := 1.0
	if spec.CV != nil {
		cv = *spec.CV
	}
	switch spec.Process {
	case "exponential", "poisson":
		return &ExponentialSampler{mean: spec.Mean}, nil

	case "gamma":
		// shape = 1/CV², scale = mean * CV²
		shape := 1.0 / (cv * cv)
		if shape < 0.01 {
			logrus.Warnf("Gamma shape %.4f (CV=%.1f) is very small; falling back to exponential", shape, cv)
			return &ExponentialSampler{mean: spec.Mean}, nil
		}
		return &GammaSampler{shape: shape, scale: spec.Mean * cv * cv}, nil

	case "weibull":
		k := weibullShapeFromCV(cv)
		// scale = mean / Γ(1 + 1/k)
		return &WeibullSampler{shape: k, scale: spec.Mean / math.Gamma(1.0+1.0/k)}, nil

	case "lognormal":
		// σ² = ln(1 + CV²), μ = ln(mean) - σ²/2
		s2 := math.Log1p(cv * cv)
		return &LogNormalSampler{mu: math.Log(spec.Mean) - s2/2, sigma: math.Sqrt(s2)}, nil

	case "constant":
		return &ConstantSampler{value: spec.Mean}, nil

	case "empirical":
		return NewEmpiricalSampler(spec.Values, spec.Weights), nil

	default:
		return nil, fmt.Errorf("unknown process %q", spec.Process)
	}
}

func validateFinitePositive(name string, val float64) error {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return fmt.Errorf("%s must be a finite number, got %f", name, val)
	}
	if val <= 0 {
		return fmt.Errorf("%s must be positive, got %f", name, val)
	}
	return nil
}

func validateFiniteNonNegative(name string, val float64) error {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return fmt.Errorf("%s must be a finite number, got %f", name, val)
	}
	if val < 0 {
		return fmt.Errorf("%s must not be negative, got %f", name, val)
	}
	return nil
}
