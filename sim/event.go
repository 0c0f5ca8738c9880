package sim

import (
	"fmt"

	"github.com/procsim/procsim/sim/hashheap"
)

// Action is the callback of a scheduled event. It runs on the scheduler
// fiber and must not block.
type Action func(subject, object any)

// Handle names a scheduled event.
type Handle = hashheap.Handle

type eventKind int

const (
	kindUser eventKind = iota
	kindStart
	kindResume
	kindInterrupt
	kindStop
)

func (k eventKind) String() string {
	switch k {
	case kindUser:
		return "user"
	case kindStart:
		return "start"
	case kindResume:
		return "resume"
	case kindInterrupt:
		return "interrupt"
	case kindStop:
		return "stop"
	default:
		return fmt.Sprintf("eventKind(%d)", int(k))
	}
}

type eventTag struct {
	kind    eventKind
	action  Action
	subject any
	object  any
	waiters []*Process // processes in WaitEvent on this event
}

// Event is a read-only view of a pending event.
type Event struct {
	Handle   Handle
	Time     float64
	Priority int64
	Subject  any
	Object   any
}

// Match selects events for the pattern operations.
type Match func(Event) bool

// AnyEvent matches every event.
func AnyEvent(Event) bool { return true }

// WithSubject matches events whose subject equals s. Subjects are compared
// with ==, so s must be of a comparable type.
func WithSubject(s any) Match {
	return func(e Event) bool { return e.Subject == s }
}

// WithObject matches events whose object equals o.
func WithObject(o any) Match {
	return func(e Event) bool { return e.Object == o }
}

// Schedule queues action to run at time at. Among events at the same time,
// higher priority runs first, then earlier scheduling.
func (sim *Simulator) Schedule(action Action, subject, object any, at float64, priority int64) Handle {
	if action == nil {
		panic("sim: Schedule: nil action")
	}
	return sim.schedule(kindUser, action, subject, object, at, priority)
}

// ScheduleIn queues action to run delay time units from now.
func (sim *Simulator) ScheduleIn(action Action, subject, object any, delay float64, priority int64) Handle {
	return sim.Schedule(action, subject, object, sim.clock+delay, priority)
}

func (sim *Simulator) schedule(kind eventKind, action Action, subject, object any, at float64, priority int64) Handle {
	if at < sim.clock {
		panic(fmt.Sprintf("sim: Schedule: time %g is before now (%g)", at, sim.clock))
	}
	tag := eventTag{kind: kind, action: action, subject: subject, object: object}
	return sim.queue.Enqueue(tag, hashheap.Keys{When: at, Priority: priority})
}

// Cancel removes a pending event. Processes waiting on it resume with
// SignalCancelled. Cancel returns false if the event already ran or was
// cancelled.
func (sim *Simulator) Cancel(h Handle) bool {
	tag, ok := sim.queue.Get(h)
	if !ok {
		return false
	}
	sim.queue.Cancel(h)
	for _, w := range tag.waiters {
		sim.scheduleResume(w, SignalCancelled)
	}
	return true
}

// Reschedule moves a pending event to time at, keeping its priority.
func (sim *Simulator) Reschedule(h Handle, at float64) bool {
	if at < sim.clock {
		panic(fmt.Sprintf("sim: Reschedule: time %g is before now (%g)", at, sim.clock))
	}
	keys, ok := sim.queue.KeysOf(h)
	if !ok {
		return false
	}
	keys.When = at
	return sim.queue.Reprioritize(h, keys)
}

// Reprioritize changes the priority of a pending event, keeping its time.
func (sim *Simulator) Reprioritize(h Handle, priority int64) bool {
	keys, ok := sim.queue.KeysOf(h)
	if !ok {
		return false
	}
	keys.Priority = priority
	return sim.queue.Reprioritize(h, keys)
}

// IsScheduled reports whether h is pending.
func (sim *Simulator) IsScheduled(h Handle) bool { return sim.queue.Contains(h) }

// TimeOf returns the time a pending event is scheduled for.
func (sim *Simulator) TimeOf(h Handle) (float64, bool) {
	keys, ok := sim.queue.KeysOf(h)
	return keys.When, ok
}

// PriorityOf returns the priority of a pending event.
func (sim *Simulator) PriorityOf(h Handle) (int64, bool) {
	keys, ok := sim.queue.KeysOf(h)
	return keys.Priority, ok
}

// Pending returns the number of queued events.
func (sim *Simulator) Pending() int { return sim.queue.Len() }

// FindEvent returns the handle of a pending event selected by m, or 0.
func (sim *Simulator) FindEvent(m Match) Handle {
	return sim.queue.Find(viewMatch(m))
}

// CountEvents returns the number of pending events selected by m.
func (sim *Simulator) CountEvents(m Match) int {
	return sim.queue.Count(viewMatch(m))
}

// CancelEvents cancels every pending event selected by m and returns how
// many were cancelled.
func (sim *Simulator) CancelEvents(m Match) int {
	var victims []Handle
	for it := range sim.queue.All() {
		if m(view(&it)) {
			victims = append(victims, it.Handle)
		}
	}
	for _, h := range victims {
		sim.Cancel(h)
	}
	return len(victims)
}

func view(it *hashheap.Item[eventTag]) Event {
	return Event{
		Handle:   it.Handle,
		Time:     it.Keys.When,
		Priority: it.Keys.Priority,
		Subject:  it.Value.subject,
		Object:   it.Value.object,
	}
}

func viewMatch(m Match) func(*hashheap.Item[eventTag]) bool {
	return func(it *hashheap.Item[eventTag]) bool { return m(view(it)) }
}

// scheduleResume queues an immediate wake-up of p carrying sig.
func (sim *Simulator) scheduleResume(p *Process, sig Signal) Handle {
	return sim.schedule(kindResume, resumeAction, p, sig, sim.clock, p.priority)
}

func resumeAction(subject, object any) {
	subject.(*Process).resume(object.(Signal))
}

// cancelWakeups drops the pending resume and interrupt events of p.
func (sim *Simulator) cancelWakeups(p *Process) int {
	return sim.queue.CancelAll(func(it *hashheap.Item[eventTag]) bool {
		k := it.Value.kind
		return (k == kindResume || k == kindInterrupt) && it.Value.subject == p
	})
}

// cancelResumes drops the pending resume events of p, timers included.
func (sim *Simulator) cancelResumes(p *Process) int {
	return sim.queue.CancelAll(func(it *hashheap.Item[eventTag]) bool {
		return it.Value.kind == kindResume && it.Value.subject == p
	})
}

func (sim *Simulator) addEventWaiter(h Handle, p *Process) bool {
	tag, ok := sim.queue.Get(h)
	if !ok {
		return false
	}
	tag.waiters = append(tag.waiters, p)
	return sim.queue.Set(h, tag)
}

func (sim *Simulator) removeEventWaiter(h Handle, p *Process) {
	tag, ok := sim.queue.Get(h)
	if !ok {
		return
	}
	kept := tag.waiters[:0]
	for _, w := range tag.waiters {
		if w != p {
			kept = append(kept, w)
		}
	}
	tag.waiters = kept
	sim.queue.Set(h, tag)
}
