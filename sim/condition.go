package sim

// Condition lets processes wait for an arbitrary predicate over the model
// state. Signal wakes every waiter whose predicate holds. A condition can
// observe resource guards so that it is signalled whenever they are.
type Condition struct {
	sim   *Simulator
	name  string
	guard ResourceGuard
}

// NewCondition returns a condition with no waiters.
func NewCondition(sim *Simulator, name string) *Condition {
	c := &Condition{sim: sim, name: name}
	c.guard.init(sim, name, true)
	return c
}

// Name returns the condition name.
func (c *Condition) Name() string { return c.name }

// Len returns the number of waiting processes.
func (c *Condition) Len() int { return c.guard.Len() }

// Wait suspends p until pred holds at a Signal. It returns at once if pred
// already holds.
func (c *Condition) Wait(p *Process, pred DemandFunc) Signal {
	p.mustBeCurrent("Condition.Wait")
	return c.guard.Wait(p, pred)
}

// Signal wakes every waiter whose predicate holds and returns how many.
func (c *Condition) Signal() int {
	n := c.guard.Broadcast()
	for _, o := range c.guard.observers {
		o.Signal()
	}
	return n
}

// Cancel removes p and resumes it with SignalCancelled.
func (c *Condition) Cancel(p *Process) bool { return c.guard.Cancel(p) }

// Remove takes p out without waking it.
func (c *Condition) Remove(p *Process) bool { return c.guard.Remove(p) }

// Observe signals c whenever g is signalled.
func (c *Condition) Observe(g *ResourceGuard) { g.AddObserver(&c.guard) }

// Unobserve undoes Observe.
func (c *Condition) Unobserve(g *ResourceGuard) bool { return g.RemoveObserver(&c.guard) }
