package fiber

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_MainFiberIsCurrent(t *testing.T) {
	e := NewEngine(nil)
	assert.Same(t, e.Main(), e.Current())
	assert.Equal(t, Running, e.Main().State())
}

func TestEngine_StartReturnsExitValueWhenBodyReturns(t *testing.T) {
	e := NewEngine(nil)
	f := e.Create(0)
	assert.Equal(t, Created, f.State())
	assert.Equal(t, DefaultStackSize, f.StackSize())

	got := e.Start(f, func(_ *Fiber, arg any) any {
		return arg.(int) * 2
	}, 21)

	assert.Equal(t, 42, got)
	assert.Equal(t, Finished, f.State())
	assert.Equal(t, 42, f.ExitValue())
	assert.Same(t, e.Main(), e.Current())
}

func TestEngine_YieldAndResumeExchangeMessages(t *testing.T) {
	// GIVEN a generator fiber that yields running totals of what it receives
	e := NewEngine(nil)
	f := e.Create(4096)
	first := e.Start(f, func(f *Fiber, arg any) any {
		total := arg.(int)
		for total < 10 {
			total += e.Yield(total).(int)
		}
		return "done"
	}, 1)

	// WHEN the main fiber keeps resuming it
	got := []any{first}
	for f.State() != Finished {
		got = append(got, e.Resume(f, 3))
	}

	// THEN values flow both ways until the body returns
	want := []any{1, 4, 7, "done"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("exchanged values (-want +got):\n%s", diff)
	}
}

func TestEngine_NestedFiberReturnsToParent(t *testing.T) {
	e := NewEngine(nil)
	outer := e.Create(0)
	inner := e.Create(0)
	var trace []string

	got := e.Start(outer, func(*Fiber, any) any {
		trace = append(trace, "outer start")
		v := e.Start(inner, func(*Fiber, any) any {
			trace = append(trace, "inner")
			return "inner done"
		}, nil)
		trace = append(trace, "outer got "+v.(string))
		assert.Same(t, outer, e.Current())
		return "outer done"
	}, nil)

	assert.Equal(t, "outer done", got)
	assert.Equal(t, []string{"outer start", "inner", "outer got inner done"}, trace)
}

func TestEngine_ExitRunsDefersAndDeliversValue(t *testing.T) {
	e := NewEngine(nil)
	f := e.Create(0)
	deferred := false

	got := e.Start(f, func(*Fiber, any) any {
		defer func() { deferred = true }()
		func() {
			e.Exit("early")
		}()
		t.Error("Exit returned")
		return "late"
	}, nil)

	assert.Equal(t, "early", got)
	assert.True(t, deferred)
	assert.Equal(t, Finished, f.State())
}

func TestEngine_StopSuspendedFiberUnwindsIt(t *testing.T) {
	// GIVEN a fiber suspended in the middle of its body
	e := NewEngine(nil)
	f := e.Create(0)
	cleaned := false
	e.Start(f, func(*Fiber, any) any {
		defer func() { cleaned = true }()
		e.Yield(nil)
		t.Error("stopped fiber resumed")
		return nil
	}, nil)
	require.Equal(t, Running, f.State())

	// WHEN it is stopped from the main fiber
	e.Stop(f, "stopped")

	// THEN its defers have run and it can no longer be resumed
	assert.True(t, cleaned)
	assert.Equal(t, Finished, f.State())
	assert.Equal(t, "stopped", f.ExitValue())
	assert.Panics(t, func() { e.Resume(f, nil) })

	// Stopping again is harmless.
	e.Stop(f, "again")
	assert.Equal(t, "stopped", f.ExitValue())
}

func TestEngine_DestroySuspendedAndUnstartedFibers(t *testing.T) {
	e := NewEngine(nil)
	idle := e.Create(0)
	e.Destroy(idle)
	assert.Equal(t, Finished, idle.State())

	parked := e.Create(0)
	e.Start(parked, func(*Fiber, any) any {
		e.Yield(nil)
		return nil
	}, nil)
	e.Destroy(parked)
	assert.Equal(t, Finished, parked.State())
}

func TestEngine_PanicInFiberSurfacesInMain(t *testing.T) {
	e := NewEngine(nil)
	f := e.Create(0)

	assert.PanicsWithValue(t, "boom", func() {
		e.Start(f, func(*Fiber, any) any { panic("boom") }, nil)
	})
	assert.Equal(t, Finished, f.State())
	assert.Same(t, e.Main(), e.Current())
}

func TestEngine_MisusePanics(t *testing.T) {
	e := NewEngine(nil)
	other := NewEngine(nil)
	done := e.Create(0)
	e.Start(done, func(*Fiber, any) any { return nil }, nil)

	tests := []struct {
		name string
		fn   func()
	}{
		{"transfer to finished", func() { e.Transfer(done, nil) }},
		{"restart finished", func() { e.Start(done, func(*Fiber, any) any { return nil }, nil) }},
		{"transfer to self", func() { e.Transfer(e.Main(), nil) }},
		{"yield without caller", func() { e.Yield(nil) }},
		{"exit main", func() { e.Exit(nil) }},
		{"destroy main", func() { e.Destroy(e.Main()) }},
		{"stop main", func() { other.Stop(other.Main(), nil) }},
		{"foreign fiber", func() { e.Resume(other.Create(0), nil) }},
		{"nil fiber", func() { e.Resume(nil, nil) }},
		{"negative stack", func() { e.Create(-1) }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Panics(t, tc.fn)
		})
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "created", Created.String())
	assert.Equal(t, "running", Running.String())
	assert.Equal(t, "finished", Finished.String())
	assert.Equal(t, "State(9)", State(9).String())
}
