package sim

import (
	"slices"

	"github.com/procsim/procsim/sim/hashheap"
)

// DemandFunc reports whether a waiting process could proceed now.
type DemandFunc func(p *Process) bool

type waiter struct {
	proc   *Process
	demand DemandFunc
}

// ResourceGuard is the waiting room of a resource: processes wait in order
// of priority, then arrival, until their demand can be met.
//
// A guard in admission mode (the default, used by resources) admits the
// front waiter when it is signalled and its demand holds; the admitted
// process takes what it needs and signals again if anything is left. A
// guard in broadcast mode (conditions) wakes every waiter whose demand holds.
type ResourceGuard struct {
	sim       *Simulator
	name      string
	broadcast bool
	waiting   *hashheap.HashHeap[waiter]
	index     map[*Process]Handle
	observers []*ResourceGuard
}

// NewResourceGuard returns an empty guard in admission mode.
func NewResourceGuard(sim *Simulator, name string) *ResourceGuard {
	g := &ResourceGuard{}
	g.init(sim, name, false)
	return g
}

func (g *ResourceGuard) init(sim *Simulator, name string, broadcast bool) {
	g.sim = sim
	g.name = name
	g.broadcast = broadcast
	g.waiting = hashheap.New(3, hashheap.WaitOrder[waiter])
	g.index = make(map[*Process]Handle)
}

// Name returns the guard name.
func (g *ResourceGuard) Name() string { return g.name }

// Len returns the number of waiting processes.
func (g *ResourceGuard) Len() int { return g.waiting.Len() }

// IsWaiting reports whether p is queued at g.
func (g *ResourceGuard) IsWaiting(p *Process) bool {
	_, ok := g.index[p]
	return ok
}

// Wait returns SignalSuccess at once if demand holds for p. Otherwise p
// joins the queue and suspends until it is admitted (SignalSuccess),
// cancelled (SignalCancelled) or interrupted.
func (g *ResourceGuard) Wait(p *Process, demand DemandFunc) Signal {
	p.mustBeCurrent("ResourceGuard.Wait")
	if demand == nil {
		panic("sim: ResourceGuard.Wait: nil demand")
	}
	if demand(p) {
		return SignalSuccess
	}
	if g.IsWaiting(p) {
		panic("sim: ResourceGuard.Wait: process " + p.name + " already waiting at " + g.name)
	}
	h := g.waiting.Enqueue(waiter{proc: p, demand: demand}, hashheap.Keys{When: g.sim.clock, Priority: p.priority})
	g.index[p] = h
	p.awaits = append(p.awaits, awaitable{kind: awaitGuard, guard: g})
	g.sim.debugf("process %s waits at %s (%d waiting)", p.name, g.name, g.waiting.Len())

	sig := p.yield()
	p.dropAwait(func(a awaitable) bool { return a.kind == awaitGuard && a.guard == g })
	g.Remove(p)
	if sig != SignalSuccess && !g.broadcast {
		// Whatever this waiter was admitted for may now serve the next one.
		g.Signal()
	}
	return sig
}

// Signal tells g that its resource changed. In admission mode the front
// waiter is admitted if its demand holds; in broadcast mode every satisfied
// waiter is woken. The signal is then forwarded to observers. Signal reports
// whether any waiter was woken.
func (g *ResourceGuard) Signal() bool {
	var woke bool
	if g.broadcast {
		woke = g.Broadcast() > 0
	} else {
		woke = g.admitFront()
	}
	for _, o := range g.observers {
		o.Signal()
	}
	return woke
}

func (g *ResourceGuard) admitFront() bool {
	it, ok := g.waiting.Peek()
	if !ok || !it.Value.demand(it.Value.proc) {
		return false
	}
	g.waiting.Dequeue()
	delete(g.index, it.Value.proc)
	g.sim.debugf("%s admits process %s", g.name, it.Value.proc.name)
	g.sim.scheduleResume(it.Value.proc, SignalSuccess)
	return true
}

// Broadcast wakes every waiter whose demand holds, in queue order, and
// returns how many were woken. Observers are not notified.
func (g *ResourceGuard) Broadcast() int {
	var ready []hashheap.Item[waiter]
	for it := range g.waiting.All() {
		if it.Value.demand(it.Value.proc) {
			ready = append(ready, it)
		}
	}
	slices.SortFunc(ready, func(a, b hashheap.Item[waiter]) int {
		if hashheap.WaitOrder(&a, &b) {
			return -1
		}
		return 1
	})
	for _, it := range ready {
		g.waiting.Cancel(it.Handle)
		delete(g.index, it.Value.proc)
		g.sim.scheduleResume(it.Value.proc, SignalSuccess)
	}
	return len(ready)
}

// Cancel removes p from the queue and resumes it with SignalCancelled.
func (g *ResourceGuard) Cancel(p *Process) bool {
	if !g.Remove(p) {
		return false
	}
	g.sim.scheduleResume(p, SignalCancelled)
	return true
}

// Remove takes p out of the queue without waking it.
func (g *ResourceGuard) Remove(p *Process) bool {
	h, ok := g.index[p]
	if !ok {
		return false
	}
	delete(g.index, p)
	return g.waiting.Cancel(h)
}

// AddObserver makes g forward its signals to o.
func (g *ResourceGuard) AddObserver(o *ResourceGuard) {
	if o == g {
		panic("sim: ResourceGuard.AddObserver: guard observing itself")
	}
	if !slices.Contains(g.observers, o) {
		g.observers = append(g.observers, o)
	}
}

// RemoveObserver stops forwarding signals to o.
func (g *ResourceGuard) RemoveObserver(o *ResourceGuard) bool {
	n := len(g.observers)
	g.observers = slices.DeleteFunc(g.observers, func(x *ResourceGuard) bool { return x == o })
	return len(g.observers) < n
}

func (g *ResourceGuard) reprioritize(p *Process, priority int64) {
	h, ok := g.index[p]
	if !ok {
		return
	}
	keys, _ := g.waiting.KeysOf(h)
	keys.Priority = priority
	g.waiting.Reprioritize(h, keys)
}
