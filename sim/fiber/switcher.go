package fiber

import "runtime"

// Context is a saved execution context owned by a Switcher.
type Context interface {
	// Release destroys a suspended context. Deferred calls pending in the
	// context run before Release returns. Releasing a context that already
	// ended is a no-op.
	Release()
}

// Switcher is the context switch provider: everything above it works on
// opaque Context values.
type Switcher interface {
	// Adopt returns a context for the calling goroutine.
	Adopt() Context

	// Seed allocates a context that runs entry with the first message it
	// receives. Once entry ends, by returning or by runtime.Goexit, finish
	// names the context that receives control and the message it gets.
	Seed(stackSize int, entry func(msg any), finish func() (Context, any)) Context

	// Switch suspends from, activates to with msg, and returns the message
	// delivered when from is next activated.
	Switch(from, to Context, msg any) any
}

// GoroutineSwitcher backs every context with a goroutine parked on an
// unbuffered channel, so exactly one of them runs at a time. The stack size
// is advisory; goroutine stacks grow on demand and overflow is caught by the
// runtime.
//
// A panic inside a context is recovered and raised again in the context
// that receives control next.
type GoroutineSwitcher struct{}

type message struct {
	val      any
	kill     bool
	panicked bool
}

type goContext struct {
	wake    chan message
	done    chan struct{}
	adopted bool
	killed  bool
}

func newGoContext() *goContext {
	return &goContext{wake: make(chan message), done: make(chan struct{})}
}

// Adopt implements Switcher.
func (GoroutineSwitcher) Adopt() Context {
	c := newGoContext()
	c.adopted = true
	return c
}

// Seed implements Switcher.
func (GoroutineSwitcher) Seed(_ int, entry func(msg any), finish func() (Context, any)) Context {
	c := newGoContext()
	go c.run(entry, finish)
	return c
}

// Switch implements Switcher.
func (GoroutineSwitcher) Switch(from, to Context, msg any) any {
	f, t := from.(*goContext), to.(*goContext)
	t.wake <- message{val: msg}
	return f.await()
}

func (c *goContext) await() any {
	m := <-c.wake
	if m.kill {
		c.killed = true
		runtime.Goexit()
	}
	if m.panicked {
		panic(m.val)
	}
	return m.val
}

func (c *goContext) run(entry func(any), finish func() (Context, any)) {
	defer close(c.done)
	m := <-c.wake
	if m.kill {
		return
	}
	defer func() {
		if c.killed {
			return
		}
		r := recover()
		next, out := finish()
		to := next.(*goContext)
		if r != nil {
			to.wake <- message{val: r, panicked: true}
			return
		}
		to.wake <- message{val: out}
	}()
	entry(m.val)
}

// Release implements Context.
func (c *goContext) Release() {
	if c.adopted {
		return
	}
	select {
	case c.wake <- message{kill: true}:
		<-c.done
	case <-c.done:
	}
}
