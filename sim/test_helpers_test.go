package sim

import (
	"io"
	"os"
	"testing"

	"github.com/procsim/procsim/sim/trace"
	"github.com/sirupsen/logrus"
)

// newTestSim returns a traced simulator that is closed when the test ends.
func newTestSim(t *testing.T) *Simulator {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	if os.Getenv("DEBUG_TESTS") != "" {
		logger.SetOutput(os.Stderr)
		logger.SetLevel(logrus.DebugLevel)
	}
	sim := NewSimulator(Config{
		Seed:   42,
		Logger: logger,
		Trace:  trace.TraceConfig{Level: trace.TraceLevelEvents},
	})
	t.Cleanup(sim.Close)
	return sim
}

// spawn creates and starts a process.
func spawn(sim *Simulator, name string, priority int64, fn func(p *Process) any) *Process {
	p := NewProcess(sim, name, func(p *Process, _ any) any { return fn(p) }, nil, priority)
	p.Start()
	return p
}

// logEntry is one observation made from inside a process body.
type logEntry struct {
	Who  string
	At   float64
	What string
}
