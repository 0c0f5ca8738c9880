package sim

import (
	"fmt"
	"math"
	"slices"

	"github.com/procsim/procsim/sim/fiber"
)

// ProcessFunc is the body of a process. It runs on the process's own fiber;
// its return value becomes the exit value.
type ProcessFunc func(p *Process, arg any) any

// Process is a simulated entity with its own thread of control. It advances
// only through explicit suspension points: Hold, the waits of resources and
// guards, WaitProcess and WaitEvent.
type Process struct {
	sim      *Simulator
	id       uint64
	name     string
	priority int64
	fiber    *fiber.Fiber
	body     ProcessFunc
	arg      any

	started  bool
	finished bool
	awaits   []awaitable
	joiners  []*Process
	holdings []Holdable
}

type awaitKind int

const (
	awaitTime awaitKind = iota
	awaitGuard
	awaitProcess
	awaitEvent
)

// awaitable is something a suspended process will be woken by.
type awaitable struct {
	kind   awaitKind
	handle Handle // timer or awaited event
	guard  *ResourceGuard
	proc   *Process
}

// NewProcess creates a process that will run fn(p, arg) once started.
func NewProcess(sim *Simulator, name string, fn ProcessFunc, arg any, priority int64) *Process {
	if fn == nil {
		panic("sim: NewProcess: nil body")
	}
	sim.nextProcessID++
	p := &Process{
		sim:      sim,
		id:       sim.nextProcessID,
		name:     name,
		priority: priority,
		body:     fn,
		arg:      arg,
	}
	p.fiber = sim.fibers.Create(0)
	p.fiber.Data = p
	return p
}

// Name returns the process name.
func (p *Process) Name() string { return p.name }

// ID returns a number unique among the processes of the trial.
func (p *Process) ID() uint64 { return p.id }

// Sim returns the simulator the process belongs to.
func (p *Process) Sim() *Simulator { return p.sim }

// Priority returns the current priority.
func (p *Process) Priority() int64 { return p.priority }

// Status returns the lifecycle state of the process.
func (p *Process) Status() fiber.State {
	if p.finished {
		return fiber.Finished
	}
	return p.fiber.State()
}

// ExitValue returns the value the process exited or was stopped with.
func (p *Process) ExitValue() any { return p.fiber.ExitValue() }

// Holdings returns the resources the process currently holds.
func (p *Process) Holdings() []Holdable { return slices.Clone(p.holdings) }

func (p *Process) String() string { return p.name }

// Start schedules the process to begin running now, at its own priority.
func (p *Process) Start() {
	if p.started || p.finished {
		panic(fmt.Sprintf("sim: Start: process %s already started", p.name))
	}
	p.started = true
	p.sim.schedule(kindStart, startAction, p, nil, p.sim.clock, p.priority)
}

func startAction(subject, _ any) {
	p := subject.(*Process)
	if p.finished {
		return
	}
	p.sim.live[p] = struct{}{}
	p.sim.debugf("process %s started", p.name)
	p.sim.fibers.Start(p.fiber, p.run, p.arg)
}

func (p *Process) run(_ *fiber.Fiber, arg any) any {
	v := p.body(p, arg)
	p.finish(SignalSuccess)
	return v
}

// Hold suspends the process for d time units. It returns SignalSuccess when
// the time elapsed, or the signal of an interrupt that came first.
func (p *Process) Hold(d float64) Signal {
	p.mustBeCurrent("Hold")
	if d < 0 || math.IsNaN(d) {
		panic(fmt.Sprintf("sim: Hold: invalid duration %g", d))
	}
	h := p.sim.schedule(kindResume, resumeAction, p, SignalSuccess, p.sim.clock+d, p.priority)
	p.awaits = append(p.awaits, awaitable{kind: awaitTime, handle: h})
	sig := p.yield()
	p.dropAwait(func(a awaitable) bool { return a.kind == awaitTime && a.handle == h })
	if sig != SignalSuccess {
		p.sim.queue.Cancel(h)
	}
	return sig
}

// Interrupt schedules an interruption of p at the current time with the
// given event priority. When it fires, everything p is waiting for is
// withdrawn and p resumes with sig. The caller keeps running until it
// suspends itself.
func (p *Process) Interrupt(sig Signal, priority int64) {
	if sig == SignalSuccess {
		panic("sim: Interrupt: cannot interrupt with SignalSuccess")
	}
	if p.finished {
		p.sim.warnf("interrupt %s of finished process %s ignored", sig, p.name)
		return
	}
	p.sim.schedule(kindInterrupt, interruptAction, p, sig, p.sim.clock, priority)
}

// preempt withdraws p's pending wake-ups, so that nothing it was about to
// resume with can overtake the preemption, and interrupts it with
// SignalPreempted.
func (p *Process) preempt() {
	p.sim.cancelResumes(p)
	p.Interrupt(SignalPreempted, p.priority)
}

func interruptAction(subject, object any) {
	p, sig := subject.(*Process), object.(Signal)
	if p.finished {
		p.sim.warnf("interrupt %s of finished process %s ignored", sig, p.name)
		return
	}
	if p.fiber.State() != fiber.Running {
		p.sim.warnf("interrupt %s of process %s dropped: not started", sig, p.name)
		return
	}
	p.sim.debugf("process %s interrupted: %s", p.name, sig)
	p.cancelAwaits()
	p.sim.cancelWakeups(p)
	p.resume(sig)
}

// Exit ends the running process with value v. Held resources are released,
// pending waits withdrawn and joiners woken with SignalSuccess. Exit does not
// return.
func (p *Process) Exit(v any) {
	p.mustBeCurrent("Exit")
	p.finish(SignalSuccess)
	p.sim.fibers.Exit(v)
}

// Stop ends p with value v. Stopping the running process is Exit. Otherwise
// p is unwound where it is suspended, its resources are released and its
// joiners resume with SignalStopped.
func (p *Process) Stop(v any) {
	if p.finished {
		p.sim.warnf("stop of finished process %s ignored", p.name)
		return
	}
	if p == p.sim.Current() {
		p.Exit(v)
		return
	}
	p.finished = true
	p.sim.fibers.Stop(p.fiber, v)
	p.finish(SignalStopped)
}

// SetPriority changes the priority of p and re-sorts every queue p occupies:
// its pending timer, the guard it waits at and the holder registries of the
// resources it holds.
func (p *Process) SetPriority(priority int64) {
	p.priority = priority
	for _, a := range p.awaits {
		switch a.kind {
		case awaitTime:
			p.sim.Reprioritize(a.handle, priority)
		case awaitGuard:
			a.guard.reprioritize(p, priority)
		}
	}
	for _, r := range p.holdings {
		r.reprioritizeHolder(p, priority)
	}
}

// WaitProcess suspends the running process until q finishes. It returns
// SignalSuccess if q exited, SignalStopped if q was stopped, or the signal
// of an interrupt that came first.
func (p *Process) WaitProcess(q *Process) Signal {
	p.mustBeCurrent("WaitProcess")
	if q == p {
		panic(fmt.Sprintf("sim: WaitProcess: process %s waiting for itself", p.name))
	}
	if q.finished {
		return SignalSuccess
	}
	q.joiners = append(q.joiners, p)
	p.awaits = append(p.awaits, awaitable{kind: awaitProcess, proc: q})
	sig := p.yield()
	p.dropAwait(func(a awaitable) bool { return a.kind == awaitProcess && a.proc == q })
	return sig
}

// WaitEvent suspends the running process until event h runs (SignalSuccess)
// or is cancelled (SignalCancelled). An event that is not pending returns
// SignalCancelled at once.
func (p *Process) WaitEvent(h Handle) Signal {
	p.mustBeCurrent("WaitEvent")
	if !p.sim.addEventWaiter(h, p) {
		return SignalCancelled
	}
	p.awaits = append(p.awaits, awaitable{kind: awaitEvent, handle: h})
	sig := p.yield()
	p.dropAwait(func(a awaitable) bool { return a.kind == awaitEvent && a.handle == h })
	return sig
}

func (p *Process) yield() Signal {
	return p.sim.fibers.Yield(nil).(Signal)
}

func (p *Process) resume(sig Signal) {
	if p.sim.fibers.Current() != p.sim.fibers.Main() {
		panic(fmt.Sprintf("sim: resume: process %s resumed from inside a process", p.name))
	}
	p.sim.fibers.Resume(p.fiber, sig)
}

// finish releases everything p holds or waits for and wakes its joiners.
func (p *Process) finish(sig Signal) {
	p.finished = true
	admitted := p.cancelAwaits()
	p.sim.cancelWakeups(p)
	for len(p.holdings) > 0 {
		r := p.holdings[len(p.holdings)-1]
		p.holdings = p.holdings[:len(p.holdings)-1]
		r.dropHolder(p)
	}
	// An admission p will never take up passes to the next waiter.
	for _, g := range admitted {
		g.Signal()
	}
	for _, j := range p.joiners {
		p.sim.scheduleResume(j, sig)
	}
	p.joiners = nil
	delete(p.sim.live, p)
	p.sim.debugf("process %s finished: %s", p.name, sig)
}

// cancelAwaits withdraws every wait of p. It returns the admission-mode
// guards that had already admitted p.
func (p *Process) cancelAwaits() []*ResourceGuard {
	var admitted []*ResourceGuard
	for _, a := range p.awaits {
		switch a.kind {
		case awaitTime:
			p.sim.queue.Cancel(a.handle)
		case awaitGuard:
			if !a.guard.Remove(p) && !a.guard.broadcast {
				admitted = append(admitted, a.guard)
			}
		case awaitProcess:
			a.proc.joiners = slices.DeleteFunc(a.proc.joiners, func(j *Process) bool { return j == p })
		case awaitEvent:
			p.sim.removeEventWaiter(a.handle, p)
		}
	}
	p.awaits = p.awaits[:0]
	return admitted
}

func (p *Process) dropAwait(match func(awaitable) bool) {
	p.awaits = slices.DeleteFunc(p.awaits, match)
}

func (p *Process) addHolding(r Holdable) {
	if !slices.Contains(p.holdings, r) {
		p.holdings = append(p.holdings, r)
	}
}

func (p *Process) removeHolding(r Holdable) {
	p.holdings = slices.DeleteFunc(p.holdings, func(h Holdable) bool { return h == r })
}

func (p *Process) mustBeCurrent(op string) {
	if p.sim.Current() != p {
		panic(fmt.Sprintf("sim: %s: process %s is not running", op, p.name))
	}
}
