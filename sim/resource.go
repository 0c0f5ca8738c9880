package sim

import (
	"fmt"

	"github.com/procsim/procsim/sim/stats"
)

// Resource is a binary semaphore: at most one process holds it.
type Resource struct {
	sim       *Simulator
	name      string
	guard     ResourceGuard
	holder    *Process
	recording bool
	history   *stats.Timeseries
}

// NewResource returns an available Resource.
func NewResource(sim *Simulator, name string) *Resource {
	r := &Resource{sim: sim, name: name}
	r.guard.init(sim, name, false)
	return r
}

// Name returns the resource name.
func (r *Resource) Name() string { return r.name }

// Guard returns the waiting room of the resource.
func (r *Resource) Guard() *ResourceGuard { return &r.guard }

// Holder returns the holding process, or nil.
func (r *Resource) Holder() *Process { return r.holder }

// IsAvailable reports whether nobody holds r.
func (r *Resource) IsAvailable() bool { return r.holder == nil }

func (r *Resource) available(*Process) bool { return r.holder == nil }

// Acquire takes r for p, waiting in line while it is held. It returns
// SignalSuccess once p holds r; any other signal means p does not hold it.
func (r *Resource) Acquire(p *Process) Signal {
	p.mustBeCurrent("Resource.Acquire")
	if r.holder == p {
		panic(fmt.Sprintf("sim: Resource.Acquire: process %s already holds %s", p.name, r.name))
	}
	for r.holder != nil {
		if sig := r.guard.Wait(p, r.available); sig != SignalSuccess {
			return sig
		}
	}
	r.grab(p)
	return SignalSuccess
}

// Preempt takes r from its holder if p has strictly higher priority; the
// holder's pending call resumes with SignalPreempted. Otherwise Preempt
// behaves like Acquire.
func (r *Resource) Preempt(p *Process) Signal {
	p.mustBeCurrent("Resource.Preempt")
	victim := r.holder
	if victim == nil || victim == p || p.priority <= victim.priority {
		return r.Acquire(p)
	}
	r.sim.debugf("process %s preempts %s from %s", p.name, victim.name, r.name)
	r.holder = nil
	victim.removeHolding(r)
	victim.preempt()
	r.grab(p)
	return SignalSuccess
}

// Release gives r back and admits the next waiter.
func (r *Resource) Release(p *Process) {
	if r.holder != p {
		panic(fmt.Sprintf("sim: Resource.Release: process %s does not hold %s", p.name, r.name))
	}
	r.holder = nil
	p.removeHolding(r)
	r.record()
	r.guard.Signal()
}

func (r *Resource) grab(p *Process) {
	r.holder = p
	p.addHolding(r)
	r.record()
}

func (r *Resource) dropHolder(p *Process) {
	if r.holder != p {
		return
	}
	r.sim.debugf("%s dropped by finished process %s", r.name, p.name)
	r.holder = nil
	r.record()
	r.guard.Signal()
}

func (r *Resource) reprioritizeHolder(*Process, int64) {}

// StartRecording begins sampling occupancy (0 or 1) on every change.
func (r *Resource) StartRecording() {
	r.recording = true
	if r.history == nil {
		r.history = stats.NewTimeseries()
	}
	r.record()
}

// StopRecording stops sampling; the history is kept.
func (r *Resource) StopRecording() { r.recording = false }

// History returns the recorded occupancy, or nil if recording never started.
func (r *Resource) History() *stats.Timeseries { return r.history }

func (r *Resource) record() {
	if !r.recording {
		return
	}
	x := 0.0
	if r.holder != nil {
		x = 1
	}
	r.history.Add(x, r.sim.clock)
}
