package sim

import (
	"fmt"

	"github.com/procsim/procsim/sim/hashheap"
	"github.com/procsim/procsim/sim/stats"
)

type holderRecord struct {
	proc   *Process
	amount uint64
}

// ResourcePool is a counting semaphore over an integer amount. Processes
// hold parts of it; the holder registry is ordered so the cheapest
// preemption victim (lowest priority, most recently admitted) comes first.
type ResourcePool struct {
	sim       *Simulator
	name      string
	guard     ResourceGuard
	capacity  uint64
	inUse     uint64
	holders   *hashheap.HashHeap[holderRecord]
	byProc    map[*Process]Handle
	recording bool
	history   *stats.Timeseries
}

// NewResourcePool returns a pool with the given capacity, all of it free.
func NewResourcePool(sim *Simulator, name string, capacity uint64) *ResourcePool {
	if capacity == 0 {
		panic(fmt.Sprintf("sim: NewResourcePool: pool %s with zero capacity", name))
	}
	rp := &ResourcePool{
		sim:      sim,
		name:     name,
		capacity: capacity,
		holders:  hashheap.New(3, hashheap.HolderOrder[holderRecord]),
		byProc:   make(map[*Process]Handle),
	}
	rp.guard.init(sim, name, false)
	return rp
}

// Name returns the pool name.
func (rp *ResourcePool) Name() string { return rp.name }

// Guard returns the waiting room of the pool.
func (rp *ResourcePool) Guard() *ResourceGuard { return &rp.guard }

// Capacity returns the total amount.
func (rp *ResourcePool) Capacity() uint64 { return rp.capacity }

// InUse returns the amount currently held.
func (rp *ResourcePool) InUse() uint64 { return rp.inUse }

// Available returns the amount currently free.
func (rp *ResourcePool) Available() uint64 { return rp.capacity - rp.inUse }

// Holders returns the number of processes holding a part of the pool.
func (rp *ResourcePool) Holders() int { return rp.holders.Len() }

// HeldBy returns the amount p holds.
func (rp *ResourcePool) HeldBy(p *Process) uint64 {
	h, ok := rp.byProc[p]
	if !ok {
		return 0
	}
	rec, _ := rp.holders.Get(h)
	return rec.amount
}

func (rp *ResourcePool) hasAvailable(*Process) bool { return rp.inUse < rp.capacity }

// Acquire adds n to p's holding. It takes whatever is free at once and
// waits for the rest. On SignalSuccess p holds n more than before the call.
// If an interrupt other than preemption arrives first, p's holding is rolled
// back to what it was before the call. On SignalPreempted p holds nothing.
func (rp *ResourcePool) Acquire(p *Process, n uint64) Signal {
	p.mustBeCurrent("ResourcePool.Acquire")
	return rp.acquire(p, n, false)
}

// Preempt is Acquire, except that when too little is free it evicts whole
// holdings of processes with strictly lower priority, cheapest first. Each
// victim's pending call resumes with SignalPreempted. What is still missing
// after that is waited for.
func (rp *ResourcePool) Preempt(p *Process, n uint64) Signal {
	p.mustBeCurrent("ResourcePool.Preempt")
	return rp.acquire(p, n, true)
}

func (rp *ResourcePool) acquire(p *Process, n uint64, preempt bool) Signal {
	initial := rp.HeldBy(p)
	if n == 0 || n > rp.capacity-initial {
		panic(fmt.Sprintf("sim: ResourcePool.Acquire: process %s asks for %d of %s holding %d of %d",
			p.name, n, rp.name, initial, rp.capacity))
	}
	target := initial + n

	for {
		held := rp.HeldBy(p)
		if held >= target {
			if rp.inUse < rp.capacity {
				rp.guard.Signal()
			}
			return SignalSuccess
		}
		claim := target - held

		if free := rp.capacity - rp.inUse; free > 0 {
			take := min(free, claim)
			rp.inUse += take
			rp.addHolding(p, take)
			rp.record()
			claim -= take
		}
		if claim > 0 && preempt {
			claim = rp.evictFor(p, claim)
		}
		if claim == 0 {
			continue
		}

		sig := rp.guard.Wait(p, rp.hasAvailable)
		if sig == SignalPreempted {
			return sig
		}
		if sig != SignalSuccess {
			rp.rollback(p, initial)
			return sig
		}
	}
}

// evictFor takes whole holdings from lower-priority holders until claim is
// covered. It returns what is still missing.
func (rp *ResourcePool) evictFor(p *Process, claim uint64) uint64 {
	for claim > 0 {
		top, ok := rp.holders.Peek()
		if !ok || top.Keys.Priority >= p.priority {
			break
		}
		rp.holders.Dequeue()
		victim, loot := top.Value.proc, top.Value.amount
		delete(rp.byProc, victim)
		victim.removeHolding(rp)
		victim.preempt()
		rp.sim.debugf("process %s preempts %d of %s from %s", p.name, loot, rp.name, victim.name)

		if loot <= claim {
			rp.addHolding(p, loot)
			claim -= loot
			continue
		}
		rp.addHolding(p, claim)
		rp.inUse -= loot - claim
		rp.record()
		claim = 0
	}
	return claim
}

// rollback restores p's holding to initial, returning the difference.
func (rp *ResourcePool) rollback(p *Process, initial uint64) {
	held := rp.HeldBy(p)
	if held <= initial {
		return
	}
	rp.inUse -= held - initial
	if initial == 0 {
		rp.removeHolder(p)
	} else {
		rp.setHolding(p, initial)
	}
	rp.sim.debugf("process %s rolled back to %d of %s", p.name, initial, rp.name)
	rp.record()
	rp.guard.Signal()
}

// Release gives back n of p's holding and signals waiters.
func (rp *ResourcePool) Release(p *Process, n uint64) {
	held := rp.HeldBy(p)
	if n == 0 || n > held {
		panic(fmt.Sprintf("sim: ResourcePool.Release: process %s releases %d of %s holding %d", p.name, n, rp.name, held))
	}
	rp.inUse -= n
	if n == held {
		rp.removeHolder(p)
	} else {
		rp.setHolding(p, held-n)
	}
	rp.record()
	rp.guard.Signal()
}

func (rp *ResourcePool) addHolding(p *Process, amount uint64) {
	if h, ok := rp.byProc[p]; ok {
		rec, _ := rp.holders.Get(h)
		rec.amount += amount
		rp.holders.Set(h, rec)
		return
	}
	rp.byProc[p] = rp.holders.Enqueue(holderRecord{proc: p, amount: amount}, hashheap.Keys{Priority: p.priority})
	p.addHolding(rp)
}

func (rp *ResourcePool) setHolding(p *Process, amount uint64) {
	h := rp.byProc[p]
	rec, _ := rp.holders.Get(h)
	rec.amount = amount
	rp.holders.Set(h, rec)
}

func (rp *ResourcePool) removeHolder(p *Process) {
	if h, ok := rp.byProc[p]; ok {
		rp.holders.Cancel(h)
		delete(rp.byProc, p)
	}
	p.removeHolding(rp)
}

func (rp *ResourcePool) dropHolder(p *Process) {
	held := rp.HeldBy(p)
	if held == 0 {
		return
	}
	rp.sim.debugf("%d of %s dropped by finished process %s", held, rp.name, p.name)
	rp.inUse -= held
	rp.removeHolder(p)
	rp.record()
	rp.guard.Signal()
}

func (rp *ResourcePool) reprioritizeHolder(p *Process, priority int64) {
	if h, ok := rp.byProc[p]; ok {
		rp.holders.Reprioritize(h, hashheap.Keys{Priority: priority})
	}
}

// Validate checks that the holder amounts add up to the amount in use and
// that no holder has a zero amount.
func (rp *ResourcePool) Validate() error {
	var sum uint64
	for it := range rp.holders.All() {
		if it.Value.amount == 0 {
			return fmt.Errorf("sim: pool %s: process %s holds zero", rp.name, it.Value.proc.name)
		}
		if rp.byProc[it.Value.proc] != it.Handle {
			return fmt.Errorf("sim: pool %s: process %s indexed under the wrong handle", rp.name, it.Value.proc.name)
		}
		sum += it.Value.amount
	}
	if len(rp.byProc) != rp.holders.Len() {
		return fmt.Errorf("sim: pool %s: %d indexed holders, %d records", rp.name, len(rp.byProc), rp.holders.Len())
	}
	if sum != rp.inUse {
		return fmt.Errorf("sim: pool %s: holders sum to %d, in use %d", rp.name, sum, rp.inUse)
	}
	if rp.inUse > rp.capacity {
		return fmt.Errorf("sim: pool %s: %d in use exceeds capacity %d", rp.name, rp.inUse, rp.capacity)
	}
	return nil
}

// StartRecording begins sampling the amount in use on every change.
func (rp *ResourcePool) StartRecording() {
	rp.recording = true
	if rp.history == nil {
		rp.history = stats.NewTimeseries()
	}
	rp.record()
}

// StopRecording stops sampling; the history is kept.
func (rp *ResourcePool) StopRecording() { rp.recording = false }

// History returns the recorded amounts in use, or nil if recording never
// started.
func (rp *ResourcePool) History() *stats.Timeseries { return rp.history }

func (rp *ResourcePool) record() {
	if rp.recording {
		rp.history.Add(float64(rp.inUse), rp.sim.clock)
	}
}
