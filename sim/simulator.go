// sim/simulator.go
package sim

import (
	"fmt"
	"math"
	"sort"

	"github.com/procsim/procsim/sim/fiber"
	"github.com/procsim/procsim/sim/hashheap"
	"github.com/procsim/procsim/sim/trace"
	"github.com/sirupsen/logrus"
)

// DefaultQueueExponent sizes the event queue for 2^10 pending events before
// its first growth.
const DefaultQueueExponent = 10

// Config holds the per-trial settings of a Simulator.
type Config struct {
	StartTime float64
	Seed      int64
	// Logger receives event dispatch and process lifecycle messages at Debug
	// level. Nil selects logrus.StandardLogger().
	Logger *logrus.Logger
	Trace  trace.TraceConfig
	// Switcher provides fiber contexts. Nil selects fiber.GoroutineSwitcher.
	Switcher      fiber.Switcher
	QueueExponent uint
}

// Simulator is the state of one simulation trial: the clock, the event
// queue, the fibers of its processes and its random streams. Nothing in a
// Simulator is shared with other trials, and a Simulator must only be driven
// from the goroutine that created it.
type Simulator struct {
	clock  float64
	queue  *hashheap.HashHeap[eventTag]
	fibers *fiber.Engine
	log    *logrus.Logger
	rng    *PartitionedRNG
	trace  *trace.SimulationTrace

	nextProcessID uint64
	live          map[*Process]struct{} // started and not finished
	dispatched    uint64
}

// NewSimulator returns a Simulator whose clock reads cfg.StartTime. The
// calling goroutine becomes the scheduler fiber.
func NewSimulator(cfg Config) *Simulator {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	exp := cfg.QueueExponent
	if exp == 0 {
		exp = DefaultQueueExponent
	}
	sim := &Simulator{
		clock:  cfg.StartTime,
		queue:  hashheap.New(exp, hashheap.EventOrder[eventTag]),
		fibers: fiber.NewEngine(cfg.Switcher),
		log:    logger,
		rng:    NewPartitionedRNG(NewSimulationKey(cfg.Seed)),
		live:   make(map[*Process]struct{}),
	}
	if cfg.Trace.Level != "" && cfg.Trace.Level != trace.TraceLevelNone {
		sim.trace = trace.NewSimulationTrace(cfg.Trace)
	}
	return sim
}

// Now returns the simulated time.
func (sim *Simulator) Now() float64 { return sim.clock }

// RNG returns the trial's random streams.
func (sim *Simulator) RNG() *PartitionedRNG { return sim.rng }

// Logger returns the logger the simulator writes to.
func (sim *Simulator) Logger() *logrus.Logger { return sim.log }

// Trace returns the dispatch trace, or nil when tracing is off.
func (sim *Simulator) Trace() *trace.SimulationTrace { return sim.trace }

// Dispatched returns the number of events executed so far.
func (sim *Simulator) Dispatched() uint64 { return sim.dispatched }

// Current returns the running process, or nil when the scheduler is running.
func (sim *Simulator) Current() *Process {
	if p, ok := sim.fibers.Current().Data.(*Process); ok {
		return p
	}
	return nil
}

// Run dispatches events until the queue is empty.
func (sim *Simulator) Run() {
	sim.debugf("simulation started")
	for sim.Step() {
	}
	sim.debugf("simulation ended after %d events", sim.dispatched)
}

// Step dispatches the next event: the clock advances to its time, processes
// waiting on it are woken, then its action runs. Step reports false when the
// queue was empty.
func (sim *Simulator) Step() bool {
	if sim.fibers.Current() != sim.fibers.Main() {
		panic("sim: Step: called from inside a process")
	}
	it, ok := sim.queue.Dequeue()
	if !ok {
		return false
	}
	if it.Keys.When < sim.clock {
		panic(fmt.Sprintf("sim: Step: event at %g dispatched at %g", it.Keys.When, sim.clock))
	}
	sim.clock = it.Keys.When
	sim.dispatched++

	tag := it.Value
	if sim.log.IsLevelEnabled(logrus.DebugLevel) {
		sim.debugf("dispatch %s event %d (priority %d)%s", tag.kind, it.Handle, it.Keys.Priority, describeSubject(tag.subject))
	}
	if sim.trace != nil {
		sim.trace.RecordDispatch(trace.DispatchRecord{
			Handle:   uint64(it.Handle),
			Time:     it.Keys.When,
			Priority: it.Keys.Priority,
			Kind:     tag.kind.String(),
			Subject:  subjectName(tag.subject),
		})
	}

	for _, w := range tag.waiters {
		sim.scheduleResume(w, SignalSuccess)
	}
	tag.action(tag.subject, tag.object)
	return true
}

// Clear drops every pending event, ending Run after the current event.
// Processes suspended on those events stay suspended; Close releases them.
func (sim *Simulator) Clear() {
	sim.debugf("event queue cleared with %d pending events", sim.queue.Len())
	sim.queue.Clear()
}

// ScheduleStop schedules a terminal event at time at that clears the queue.
// It sorts after every other event at the same time.
func (sim *Simulator) ScheduleStop(at float64) hashheap.Handle {
	return sim.schedule(kindStop, func(any, any) { sim.Clear() }, nil, nil, at, math.MinInt64)
}

// Close ends the trial: every process that has not finished is destroyed,
// running its deferred calls. The Simulator must not be used afterwards.
func (sim *Simulator) Close() {
	procs := make([]*Process, 0, len(sim.live))
	for p := range sim.live {
		procs = append(procs, p)
	}
	sort.Slice(procs, func(i, j int) bool { return procs[i].id < procs[j].id })
	for _, p := range procs {
		sim.fibers.Destroy(p.fiber)
		delete(sim.live, p)
	}
	sim.queue.Clear()
}

func (sim *Simulator) debugf(format string, args ...any) {
	if !sim.log.IsLevelEnabled(logrus.DebugLevel) {
		return
	}
	sim.log.Debugf("[t %12.4f] "+format, append([]any{sim.clock}, args...)...)
}

func (sim *Simulator) warnf(format string, args ...any) {
	sim.log.Warnf("[t %12.4f] "+format, append([]any{sim.clock}, args...)...)
}

func describeSubject(subject any) string {
	if name := subjectName(subject); name != "" {
		return " for " + name
	}
	return ""
}

func subjectName(subject any) string {
	if p, ok := subject.(*Process); ok {
		return p.name
	}
	return ""
}
