package sim

import (
	"fmt"

	"github.com/procsim/procsim/sim/stats"
)

// Buffer holds an integer level between zero and its capacity. Producers
// put amounts in and consumers get amounts out; both move what they can at
// once and wait for the rest.
type Buffer struct {
	sim       *Simulator
	name      string
	capacity  uint64
	level     uint64
	front     ResourceGuard // getters
	rear      ResourceGuard // putters
	recording bool
	history   *stats.Timeseries
}

// NewBuffer returns an empty buffer.
func NewBuffer(sim *Simulator, name string, capacity uint64) *Buffer {
	if capacity == 0 {
		panic(fmt.Sprintf("sim: NewBuffer: buffer %s with zero capacity", name))
	}
	b := &Buffer{sim: sim, name: name, capacity: capacity}
	b.front.init(sim, name+".front", false)
	b.rear.init(sim, name+".rear", false)
	return b
}

// Name returns the buffer name.
func (b *Buffer) Name() string { return b.name }

// Level returns the current content.
func (b *Buffer) Level() uint64 { return b.level }

// Capacity returns the maximum content.
func (b *Buffer) Capacity() uint64 { return b.capacity }

// Front returns the guard getters wait at.
func (b *Buffer) Front() *ResourceGuard { return &b.front }

// Rear returns the guard putters wait at.
func (b *Buffer) Rear() *ResourceGuard { return &b.rear }

func (b *Buffer) hasContent(*Process) bool { return b.level > 0 }
func (b *Buffer) hasSpace(*Process) bool   { return b.level < b.capacity }

// Put adds n to the buffer on behalf of p. It returns the amount actually
// added: n on SignalSuccess, possibly less if p was interrupted. Amounts
// already added stay in the buffer.
func (b *Buffer) Put(p *Process, n uint64) (uint64, Signal) {
	p.mustBeCurrent("Buffer.Put")
	var moved uint64
	for {
		if space := b.capacity - b.level; space > 0 && moved < n {
			x := min(space, n-moved)
			b.level += x
			moved += x
			b.record()
			b.front.Signal()
		}
		if moved == n {
			if b.level < b.capacity {
				b.rear.Signal()
			}
			return moved, SignalSuccess
		}
		if sig := b.rear.Wait(p, b.hasSpace); sig != SignalSuccess {
			return moved, sig
		}
	}
}

// Get removes n from the buffer on behalf of p. It returns the amount
// actually removed: n on SignalSuccess, possibly less if p was interrupted.
func (b *Buffer) Get(p *Process, n uint64) (uint64, Signal) {
	p.mustBeCurrent("Buffer.Get")
	var moved uint64
	for {
		if b.level > 0 && moved < n {
			x := min(b.level, n-moved)
			b.level -= x
			moved += x
			b.record()
			b.rear.Signal()
		}
		if moved == n {
			if b.level > 0 {
				b.front.Signal()
			}
			return moved, SignalSuccess
		}
		if sig := b.front.Wait(p, b.hasContent); sig != SignalSuccess {
			return moved, sig
		}
	}
}

// StartRecording begins sampling the level on every change.
func (b *Buffer) StartRecording() {
	b.recording = true
	if b.history == nil {
		b.history = stats.NewTimeseries()
	}
	b.record()
}

// StopRecording stops sampling; the history is kept.
func (b *Buffer) StopRecording() { b.recording = false }

// History returns the recorded levels, or nil if recording never started.
func (b *Buffer) History() *stats.Timeseries { return b.history }

func (b *Buffer) record() {
	if b.recording {
		b.history.Add(float64(b.level), b.sim.clock)
	}
}
