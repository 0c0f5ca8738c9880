package scenario

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/procsim/procsim/sim"
	"github.com/procsim/procsim/sim/internal/testutil"
	"github.com/procsim/procsim/sim/trace"
	"github.com/procsim/procsim/sim/workload"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func ptr(v float64) *float64 { return &v }

func TestQueueing_ConstantFlow_ExactResults(t *testing.T) {
	// GIVEN one server, an arrival every time unit and half a unit of service
	cfg := Config{
		Horizon: 100,
		Servers: 1,
		Arrival: workload.DistSpec{Process: "constant", Mean: 1},
		Service: workload.DistSpec{Process: "constant", Mean: 0.5},
	}

	// WHEN one trial runs to its horizon
	r, err := RunTrial(cfg, TrialOptions{Seed: 1, Logger: quietLogger()})
	require.NoError(t, err)

	// THEN nobody waits, every finished customer spent 0.5, and the
	// customer arriving at the horizon is still in service
	assert.Equal(t, 100, r.Arrived)
	assert.Equal(t, 99, r.Served)
	assert.Equal(t, 0, r.Preemptions)
	assert.Equal(t, 0.0, r.Wait.Max)
	assert.Equal(t, 0.5, r.Sojourn.Min)
	assert.Equal(t, 0.5, r.Sojourn.Max)
	testutil.AssertFloat64Equal(t, "utilization", 0.495, r.Utilization, 1e-9)
	assert.Equal(t, 100.0, r.EndTime)
	assert.Nil(t, r.Trace)
}

func TestQueueing_MM1_MatchesTheory(t *testing.T) {
	// GIVEN an M/M/1 queue with arrival rate 1 and service rate 2
	cfg := Config{
		Horizon: 20000,
		Servers: 1,
		Arrival: workload.DistSpec{Process: "poisson", Mean: 1},
		Service: workload.DistSpec{Process: "exponential", Mean: 0.5},
	}
	require.InDelta(t, 0.5, cfg.OfferedLoad(), 1e-12)

	// WHEN a long trial runs
	r, err := RunTrial(cfg, TrialOptions{Seed: 7, Logger: quietLogger()})
	require.NoError(t, err)

	// THEN utilization is near rho and the mean sojourn near 1/(mu-lambda)
	assert.InDelta(t, 0.5, r.Utilization, 0.05)
	assert.InDelta(t, 1.0, r.Sojourn.Mean, 0.15)
	assert.InDelta(t, 0.5, r.Wait.Mean, 0.15)
	assert.LessOrEqual(t, r.BusyServers.Max, 1.0)
}

func TestQueueing_Preemption_FavoursHighClass(t *testing.T) {
	// GIVEN an overloaded server shared by two classes
	cfg := Config{
		Horizon:      500,
		Servers:      1,
		Arrival:      workload.DistSpec{Process: "poisson", Mean: 1},
		Service:      workload.DistSpec{Process: "gamma", Mean: 1.2, CV: ptr(0.5)},
		HighPriority: 0.4,
		Preempt:      true,
	}

	// WHEN the high class may preempt
	s := sim.NewSimulator(sim.Config{Seed: 3, Logger: quietLogger(), Trace: trace.TraceConfig{Level: trace.TraceLevelEvents}})
	defer s.Close()
	q, err := NewQueueing(s, cfg)
	require.NoError(t, err)
	q.Start()
	for s.Step() {
		require.NoError(t, q.Servers().Validate())
	}
	r := q.Result()

	// THEN low-class customers are preempted and the high class waits less
	assert.Positive(t, r.Preemptions)
	assert.LessOrEqual(t, r.Served, r.Arrived)
	high, low := r.WaitByClass["high"], r.WaitByClass["low"]
	require.Positive(t, high.Count)
	require.Positive(t, low.Count)
	assert.Less(t, high.Mean, low.Mean)
	assert.InDelta(t, 1.0, r.Utilization, 0.05, "an overloaded server is never idle for long")

	times := make([]float64, 0, len(s.Trace().Dispatches))
	for _, d := range s.Trace().Dispatches {
		times = append(times, d.Time)
	}
	testutil.AssertNonDecreasing(t, "dispatch times", times)
	testutil.AssertNonDecreasing(t, "occupancy sample times", q.Servers().History().T)
}

func TestQueueing_WithoutPreemption_NoneHappen(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Horizon = 500
	cfg.HighPriority = 0.5
	r, err := RunTrial(cfg, TrialOptions{Seed: 11, Logger: quietLogger()})
	require.NoError(t, err)
	assert.Zero(t, r.Preemptions)
	assert.Positive(t, r.Served)
	assert.Equal(t, r.Served, r.WaitByClass["high"].Count+r.WaitByClass["low"].Count)
}

func TestRunTrial_SameSeedSameResult(t *testing.T) {
	// GIVEN a traced scenario with preemption
	cfg := DefaultConfig()
	cfg.Horizon = 300
	cfg.HighPriority = 0.3
	cfg.Preempt = true
	opts := TrialOptions{Seed: 99, Logger: quietLogger(), Trace: trace.TraceConfig{Level: trace.TraceLevelEvents}}

	// WHEN it runs twice with the same seed and once with another
	a, err := RunTrial(cfg, opts)
	require.NoError(t, err)
	b, err := RunTrial(cfg, opts)
	require.NoError(t, err)
	opts.Seed = 100
	c, err := RunTrial(cfg, opts)
	require.NoError(t, err)

	// THEN the first two are identical and the third is not
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("same seed, different results (-first +second):\n%s", diff)
	}
	assert.NotEqual(t, a.Sojourn, c.Sojourn)
	require.NotNil(t, a.Trace)
	assert.Equal(t, int(a.Events), a.Trace.TotalDispatches)
	assert.Equal(t, 1, a.Trace.KindDistribution["stop"])
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "zero horizon", mutate: func(c *Config) { c.Horizon = 0 }, wantErr: "horizon"},
		{name: "no servers", mutate: func(c *Config) { c.Servers = 0 }, wantErr: "servers"},
		{name: "fraction above one", mutate: func(c *Config) { c.HighPriority = 1.5 }, wantErr: "high_priority"},
		{name: "bad arrival", mutate: func(c *Config) { c.Arrival.Process = "zipf" }, wantErr: "arrival"},
		{name: "bad service", mutate: func(c *Config) { c.Service.Mean = -1 }, wantErr: "service.mean"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
		return path
	}

	t.Run("overrides defaults", func(t *testing.T) {
		f, err := LoadFile(write("ok.yaml", `
seed: 5
trials: 3
servers: 4
service:
  process: weibull
  mean: 2
  cv: 1.5
preempt: true
`))
		require.NoError(t, err)
		assert.Equal(t, int64(5), f.Seed)
		assert.Equal(t, 3, f.Trials)
		assert.Equal(t, uint64(4), f.Servers)
		assert.True(t, f.Preempt)
		assert.Equal(t, "weibull", f.Service.Process)
		require.NotNil(t, f.Service.CV)
		assert.Equal(t, 1.5, *f.Service.CV)
		assert.Equal(t, DefaultConfig().Arrival, f.Arrival)
		assert.NoError(t, f.Validate())
	})

	t.Run("empty file keeps defaults", func(t *testing.T) {
		f, err := LoadFile(write("empty.yaml", ""))
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), f.Config)
		assert.Equal(t, int64(42), f.Seed)
	})

	t.Run("unknown key", func(t *testing.T) {
		_, err := LoadFile(write("typo.yaml", "serverz: 3\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "serverz")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(dir, "nope.yaml"))
		assert.Error(t, err)
	})
}
