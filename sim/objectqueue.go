package sim

import (
	"fmt"

	"github.com/procsim/procsim/sim/stats"
)

// ObjectQueue is a FIFO of values with a capacity. Put waits while it is
// full and Get waits while it is empty.
type ObjectQueue[T any] struct {
	sim       *Simulator
	name      string
	capacity  int
	items     []T
	front     ResourceGuard // getters
	rear      ResourceGuard // putters
	recording bool
	history   *stats.Timeseries
}

// NewObjectQueue returns an empty queue. A capacity of zero means unbounded.
func NewObjectQueue[T any](sim *Simulator, name string, capacity int) *ObjectQueue[T] {
	if capacity < 0 {
		panic(fmt.Sprintf("sim: NewObjectQueue: queue %s with negative capacity", name))
	}
	q := &ObjectQueue[T]{sim: sim, name: name, capacity: capacity}
	q.front.init(sim, name+".front", false)
	q.rear.init(sim, name+".rear", false)
	return q
}

// Name returns the queue name.
func (q *ObjectQueue[T]) Name() string { return q.name }

// Len returns the number of queued values.
func (q *ObjectQueue[T]) Len() int { return len(q.items) }

// Front returns the guard getters wait at.
func (q *ObjectQueue[T]) Front() *ResourceGuard { return &q.front }

// Rear returns the guard putters wait at.
func (q *ObjectQueue[T]) Rear() *ResourceGuard { return &q.rear }

func (q *ObjectQueue[T]) notEmpty(*Process) bool { return len(q.items) > 0 }
func (q *ObjectQueue[T]) notFull(*Process) bool {
	return q.capacity == 0 || len(q.items) < q.capacity
}

// Put appends v, waiting while the queue is full.
func (q *ObjectQueue[T]) Put(p *Process, v T) Signal {
	p.mustBeCurrent("ObjectQueue.Put")
	for !q.notFull(p) {
		if sig := q.rear.Wait(p, q.notFull); sig != SignalSuccess {
			return sig
		}
	}
	q.items = append(q.items, v)
	q.record()
	q.front.Signal()
	if q.notFull(p) {
		q.rear.Signal()
	}
	return SignalSuccess
}

// Get removes the oldest value, waiting while the queue is empty.
func (q *ObjectQueue[T]) Get(p *Process) (T, Signal) {
	p.mustBeCurrent("ObjectQueue.Get")
	for len(q.items) == 0 {
		if sig := q.front.Wait(p, q.notEmpty); sig != SignalSuccess {
			var zero T
			return zero, sig
		}
	}
	v := q.items[0]
	var zero T
	q.items[0] = zero
	q.items = q.items[1:]
	q.record()
	q.rear.Signal()
	if len(q.items) > 0 {
		q.front.Signal()
	}
	return v, SignalSuccess
}

// StartRecording begins sampling the queue length on every change.
func (q *ObjectQueue[T]) StartRecording() {
	q.recording = true
	if q.history == nil {
		q.history = stats.NewTimeseries()
	}
	q.record()
}

// StopRecording stops sampling; the history is kept.
func (q *ObjectQueue[T]) StopRecording() { q.recording = false }

// History returns the recorded lengths, or nil if recording never started.
func (q *ObjectQueue[T]) History() *stats.Timeseries { return q.history }

func (q *ObjectQueue[T]) record() {
	if q.recording {
		q.history.Add(float64(len(q.items)), q.sim.clock)
	}
}
