// Package fiber implements stackful cooperative coroutines. A fiber runs
// only when another fiber explicitly transfers control to it, and suspends
// only at an explicit Transfer, Yield or Resume. The goroutine that creates
// an Engine becomes its main fiber.
package fiber

import (
	"fmt"
	"runtime"
)

// DefaultStackSize is the stack size recorded for fibers created without an
// explicit size.
const DefaultStackSize = 64 << 10

// State is the lifecycle state of a fiber.
type State int

const (
	Created State = iota
	Running
	Finished
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Running:
		return "running"
	case Finished:
		return "finished"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Func is a fiber body. Its return value becomes the fiber's exit value.
type Func func(f *Fiber, arg any) any

// Fiber is a cooperative execution context.
type Fiber struct {
	// Data is free for the owner of the fiber.
	Data any

	engine    *Engine
	ctx       Context
	stackSize int
	state     State
	parent    *Fiber // started this fiber, receives control on exit
	caller    *Fiber // last transferred in, receives control on Yield
	exitValue any
}

// State returns the fiber's lifecycle state.
func (f *Fiber) State() State { return f.state }

// ExitValue returns the value the fiber exited with, or nil.
func (f *Fiber) ExitValue() any { return f.exitValue }

// StackSize returns the stack size the fiber was created with.
func (f *Fiber) StackSize() int { return f.stackSize }

// Engine switches between the fibers of one simulation trial. It is not safe
// for use by more than one trial.
type Engine struct {
	sw      Switcher
	main    *Fiber
	current *Fiber
}

// NewEngine returns an engine whose main fiber is the calling goroutine.
// A nil Switcher selects GoroutineSwitcher.
func NewEngine(sw Switcher) *Engine {
	if sw == nil {
		sw = GoroutineSwitcher{}
	}
	e := &Engine{sw: sw}
	e.main = &Fiber{engine: e, ctx: sw.Adopt(), state: Running}
	e.current = e.main
	return e
}

// Main returns the fiber that created the engine.
func (e *Engine) Main() *Fiber { return e.main }

// Current returns the active fiber.
func (e *Engine) Current() *Fiber { return e.current }

// Create allocates a fiber. A stackSize of zero selects DefaultStackSize.
func (e *Engine) Create(stackSize int) *Fiber {
	if stackSize < 0 {
		panic(fmt.Sprintf("fiber: Create: negative stack size %d", stackSize))
	}
	if stackSize == 0 {
		stackSize = DefaultStackSize
	}
	return &Fiber{engine: e, stackSize: stackSize, state: Created}
}

// Start makes the current fiber the parent of f and transfers control to it;
// fn receives arg. Start returns the message the current fiber is next
// activated with: a yielded value, or f's exit value if f ends first.
func (e *Engine) Start(f *Fiber, fn Func, arg any) any {
	e.owns("Start", f)
	if f.state != Created {
		panic(fmt.Sprintf("fiber: Start: fiber is %s", f.state))
	}
	f.parent = e.current
	f.state = Running
	f.ctx = e.sw.Seed(f.stackSize,
		func(msg any) { f.exitValue = fn(f, msg) },
		func() (Context, any) { return e.finish(f) })
	return e.Transfer(f, arg)
}

// Transfer suspends the current fiber and activates to with msg. It returns
// the message the current fiber is next activated with.
func (e *Engine) Transfer(to *Fiber, msg any) any {
	e.owns("Transfer", to)
	from := e.current
	if to == from {
		panic("fiber: Transfer: fiber transferring to itself")
	}
	if to.state != Running {
		panic(fmt.Sprintf("fiber: Transfer: target fiber is %s", to.state))
	}
	to.caller = from
	e.current = to
	return e.sw.Switch(from.ctx, to.ctx, msg)
}

// Yield transfers control back to whoever last transferred into the current
// fiber.
func (e *Engine) Yield(msg any) any {
	caller := e.current.caller
	if caller == nil {
		panic("fiber: Yield: current fiber has no caller")
	}
	return e.Transfer(caller, msg)
}

// Resume transfers control to f. It is the counterpart of Yield.
func (e *Engine) Resume(f *Fiber, msg any) any {
	return e.Transfer(f, msg)
}

// Exit ends the current fiber with value v. Deferred calls run, then control
// passes to the fiber's parent with v. Exit does not return.
func (e *Engine) Exit(v any) {
	f := e.current
	if f == e.main {
		panic("fiber: Exit: main fiber cannot exit")
	}
	f.exitValue = v
	runtime.Goexit()
}

// Stop ends f with value v without running it further. Stopping the current
// fiber is Exit; stopping a finished fiber does nothing.
func (e *Engine) Stop(f *Fiber, v any) {
	e.owns("Stop", f)
	if f == e.current {
		e.Exit(v)
		return
	}
	if f == e.main {
		panic("fiber: Stop: main fiber cannot be stopped")
	}
	if f.state == Finished {
		return
	}
	f.state = Finished
	f.exitValue = v
	if f.ctx != nil {
		f.ctx.Release()
	}
}

// Destroy releases f's context. The active fiber and the main fiber cannot
// be destroyed. A fiber suspended mid-body is unwound: its deferred calls
// run before Destroy returns.
func (e *Engine) Destroy(f *Fiber) {
	e.owns("Destroy", f)
	if f == e.current {
		panic("fiber: Destroy: fiber is active")
	}
	if f == e.main {
		panic("fiber: Destroy: main fiber")
	}
	if f.ctx != nil {
		f.ctx.Release()
		f.ctx = nil
	}
	f.state = Finished
}

// finish runs on f's own context after its body ended.
func (e *Engine) finish(f *Fiber) (Context, any) {
	f.state = Finished
	to := f.parent
	if to == nil || to.state != Running {
		to = e.main
	}
	e.current = to
	return to.ctx, f.exitValue
}

func (e *Engine) owns(op string, f *Fiber) {
	if f == nil {
		panic(fmt.Sprintf("fiber: %s: nil fiber", op))
	}
	if f.engine != e {
		panic(fmt.Sprintf("fiber: %s: fiber belongs to another engine", op))
	}
}
