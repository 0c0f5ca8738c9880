// Package scenario builds runnable models on top of the simulation runtime.
// Queueing is a multi-server queue with two customer classes and optional
// preemption of the lower class.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/procsim/procsim/sim/workload"
	"gopkg.in/yaml.v3"
)

// Config describes a queueing scenario.
type Config struct {
	Horizon float64 `yaml:"horizon" json:"horizon"`
	Servers uint64  `yaml:"servers" json:"servers"`
	// Arrival gives the inter-arrival times of customers.
	Arrival workload.DistSpec `yaml:"arrival" json:"arrival"`
	Service workload.DistSpec `yaml:"service" json:"service"`
	// HighPriority is the fraction of customers in the high class.
	HighPriority float64 `yaml:"high_priority" json:"high_priority"`
	// Preempt lets high-class customers evict low-class ones from a server.
	Preempt bool `yaml:"preempt" json:"preempt"`
}

// DefaultConfig returns an M/M/2 queue at 80% load with no high class.
func DefaultConfig() Config {
	return Config{
		Horizon: 10000,
		Servers: 2,
		Arrival: workload.DistSpec{Process: "poisson", Mean: 1},
		Service: workload.DistSpec{Process: "exponential", Mean: 1.6},
	}
}

// Validate checks the scenario parameters.
func (c *Config) Validate() error {
	if math.IsNaN(c.Horizon) || math.IsInf(c.Horizon, 0) || c.Horizon <= 0 {
		return fmt.Errorf("horizon must be a positive finite number, got %f", c.Horizon)
	}
	if c.Servers == 0 {
		return fmt.Errorf("servers must be at least 1")
	}
	if math.IsNaN(c.HighPriority) || c.HighPriority < 0 || c.HighPriority > 1 {
		return fmt.Errorf("high_priority must be in [0, 1], got %f", c.HighPriority)
	}
	if err := c.Arrival.Validate("arrival"); err != nil {
		return err
	}
	return c.Service.Validate("service")
}

// OfferedLoad returns the expected number of busy servers per server,
// derived from the sampler means.
func (c *Config) OfferedLoad() float64 {
	arrival, err := workload.NewSampler(c.Arrival)
	if err != nil {
		return math.NaN()
	}
	service, err := workload.NewSampler(c.Service)
	if err != nil {
		return math.NaN()
	}
	return service.Mean() / arrival.Mean() / float64(c.Servers)
}

// File is the on-disk form of an experiment: the scenario plus how many
// trials to run and how to seed them.
type File struct {
	Seed   int64  `yaml:"seed"`
	Trials int    `yaml:"trials"`
	Trace  string `yaml:"trace"`
	Config `yaml:",inline"`
}

// LoadFile reads an experiment file over the defaults. Unknown keys are
// errors.
func LoadFile(path string) (File, error) {
	f := File{Seed: 42, Trials: 1, Config: DefaultConfig()}
	data, err := os.ReadFile(path)
	if err != nil {
		return f, fmt.Errorf("reading scenario file: %w", err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return f, fmt.Errorf("parsing scenario file %s: %w", path, err)
	}
	return f, nil
}
