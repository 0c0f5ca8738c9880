package hashheap

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain[T any](hh *HashHeap[T]) []T {
	var out []T
	for {
		it, ok := hh.Dequeue()
		if !ok {
			return out
		}
		out = append(out, it.Value)
	}
}

func TestHashHeap_EmptyDequeueAndPeek(t *testing.T) {
	hh := New[string](2, EventOrder[string])

	_, ok := hh.Dequeue()
	assert.False(t, ok)
	_, ok = hh.Peek()
	assert.False(t, ok)
	assert.True(t, hh.IsEmpty())
	assert.Equal(t, 0, hh.Len())
}

func TestHashHeap_EventOrder_TimeThenPriorityThenFIFO(t *testing.T) {
	// GIVEN events at (t=5, pri=0), (t=5, pri=3), (t=3, pri=0)
	hh := New[string](1, EventOrder[string])
	hh.Enqueue("t5p0", Keys{When: 5, Priority: 0})
	hh.Enqueue("t5p3", Keys{When: 5, Priority: 3})
	hh.Enqueue("t3p0", Keys{When: 3, Priority: 0})
	hh.Enqueue("t5p0-second", Keys{When: 5, Priority: 0})

	// WHEN drained
	got := drain(hh)

	// THEN earlier time first, then higher priority, then insertion order
	want := []string{"t3p0", "t5p3", "t5p0", "t5p0-second"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("dispatch order mismatch (-want +got):\n%s", diff)
	}
}

func TestHashHeap_WaitOrder_EqualPriorityIsFIFO(t *testing.T) {
	hh := New[int](0, WaitOrder[int])
	for i := range 20 {
		hh.Enqueue(i, Keys{Priority: 7})
	}
	got := drain(hh)
	for i, v := range got {
		if v != i {
			t.Fatalf("position %d: got waiter %d, want %d", i, v, i)
		}
	}
}

func TestHashHeap_HolderOrder_LowestPriorityMostRecentFirst(t *testing.T) {
	hh := New[string](2, HolderOrder[string])
	hh.Enqueue("high", Keys{Priority: 5})
	hh.Enqueue("low-old", Keys{Priority: 1})
	hh.Enqueue("low-new", Keys{Priority: 1})
	hh.Enqueue("mid", Keys{Priority: 3})

	want := []string{"low-new", "low-old", "mid", "high"}
	if diff := cmp.Diff(want, drain(hh)); diff != "" {
		t.Errorf("victim order mismatch (-want +got):\n%s", diff)
	}
}

func TestHashHeap_HandlesStartAtOneAndIncrease(t *testing.T) {
	hh := New[int](0, EventOrder[int])
	h1 := hh.Enqueue(1, Keys{})
	h2 := hh.Enqueue(2, Keys{})
	assert.Equal(t, Handle(1), h1)
	assert.Equal(t, Handle(2), h2)

	hh.Clear()
	h3 := hh.Enqueue(3, Keys{})
	assert.Equal(t, Handle(3), h3, "handles are never reused, even after Clear")
}

func TestHashHeap_GrowPreservesEntriesAndHandles(t *testing.T) {
	// GIVEN a heap starting with room for a single entry
	hh := New[int](0, EventOrder[int])
	handles := make(map[Handle]int)
	for i := range 100 {
		h := hh.Enqueue(i, Keys{When: float64(100 - i)})
		handles[h] = i
	}

	// THEN every handle is still reachable with its value
	require.NoError(t, hh.Validate())
	for h, v := range handles {
		got, ok := hh.Get(h)
		require.True(t, ok, "handle %d lost after growth", h)
		assert.Equal(t, v, got)
	}
	assert.Equal(t, uint64(128), hh.capacity())
	assert.Len(t, hh.hash, 256)
}

func TestHashHeap_Cancel(t *testing.T) {
	hh := New[string](3, EventOrder[string])
	a := hh.Enqueue("a", Keys{When: 1})
	b := hh.Enqueue("b", Keys{When: 2})
	c := hh.Enqueue("c", Keys{When: 3})

	assert.True(t, hh.Cancel(b))
	assert.False(t, hh.Cancel(b), "second cancel of the same handle")
	assert.False(t, hh.Cancel(0))
	assert.False(t, hh.Cancel(999))
	assert.False(t, hh.Contains(b))
	assert.True(t, hh.Contains(a))
	assert.True(t, hh.Contains(c))
	require.NoError(t, hh.Validate())

	// Cancel the last slot, then the root.
	assert.True(t, hh.Cancel(c))
	assert.True(t, hh.Cancel(a))
	assert.True(t, hh.IsEmpty())
}

func TestHashHeap_CancelMiddleSiftsBothWays(t *testing.T) {
	// GIVEN a heap where the moved last entry must travel up
	hh := New[int](3, EventOrder[int])
	var hs []Handle
	for _, w := range []float64{1, 10, 2, 11, 12, 3, 4} {
		hs = append(hs, hh.Enqueue(int(w), Keys{When: w}))
	}
	// slot 4 holds 11; cancelling it moves 4 (a smaller key) into a subtree under 10
	require.True(t, hh.Cancel(hs[3]))
	require.NoError(t, hh.Validate())

	// and one where the moved entry already sits below its new parent
	require.True(t, hh.Cancel(hs[2]))
	require.NoError(t, hh.Validate())

	want := []int{1, 3, 4, 10, 12}
	if diff := cmp.Diff(want, drain(hh)); diff != "" {
		t.Errorf("order after cancels (-want +got):\n%s", diff)
	}
}

func TestHashHeap_Reprioritize(t *testing.T) {
	hh := New[string](2, EventOrder[string])
	a := hh.Enqueue("a", Keys{When: 1})
	b := hh.Enqueue("b", Keys{When: 2})
	hh.Enqueue("c", Keys{When: 3})

	// Move a behind everything, then b to the front by priority alone.
	require.True(t, hh.Reprioritize(a, Keys{When: 10}))
	require.True(t, hh.Reprioritize(b, Keys{When: 2, Priority: 1}))
	require.NoError(t, hh.Validate())
	assert.False(t, hh.Reprioritize(Handle(42), Keys{}))

	keys, ok := hh.KeysOf(a)
	require.True(t, ok)
	assert.Equal(t, Keys{When: 10}, keys)

	want := []string{"b", "c", "a"}
	if diff := cmp.Diff(want, drain(hh)); diff != "" {
		t.Errorf("order after reprioritize (-want +got):\n%s", diff)
	}
}

func TestHashHeap_SetKeepsOrdering(t *testing.T) {
	hh := New[int](1, EventOrder[int])
	h := hh.Enqueue(1, Keys{When: 5})
	hh.Enqueue(2, Keys{When: 1})

	assert.True(t, hh.Set(h, 100))
	v, ok := hh.Get(h)
	assert.True(t, ok)
	assert.Equal(t, 100, v)

	top, _ := hh.Peek()
	assert.Equal(t, 2, top.Value)
}

func TestHashHeap_PatternOperations(t *testing.T) {
	type tag struct{ owner, kind string }
	hh := New[tag](2, EventOrder[tag])
	hh.Enqueue(tag{"p1", "wake"}, Keys{When: 1})
	hh.Enqueue(tag{"p2", "wake"}, Keys{When: 2})
	hh.Enqueue(tag{"p1", "timeout"}, Keys{When: 3})
	hh.Enqueue(tag{"p3", "wake"}, Keys{When: 4})

	ownedBy := func(o string) func(*Item[tag]) bool {
		return func(it *Item[tag]) bool { return it.Value.owner == o }
	}
	anyItem := func(*Item[tag]) bool { return true }

	assert.Equal(t, 4, hh.Count(anyItem))
	assert.Equal(t, 2, hh.Count(ownedBy("p1")))
	assert.NotZero(t, hh.Find(ownedBy("p3")))
	assert.Zero(t, hh.Find(ownedBy("nobody")))

	assert.Equal(t, 2, hh.CancelAll(ownedBy("p1")))
	assert.Equal(t, 0, hh.Count(ownedBy("p1")))
	assert.Equal(t, 2, hh.Len())
	require.NoError(t, hh.Validate())

	var owners []string
	for it := range hh.All() {
		owners = append(owners, it.Value.owner)
	}
	sort.Strings(owners)
	assert.Equal(t, []string{"p2", "p3"}, owners)
}

func TestHashHeap_TombstonesDoNotExhaustMap(t *testing.T) {
	// GIVEN a small heap cycled far beyond its map size
	hh := New[int](2, EventOrder[int])
	for i := range 10_000 {
		hh.Enqueue(i, Keys{When: float64(i)})
		if hh.Len() > 3 {
			_, ok := hh.Dequeue()
			require.True(t, ok)
		}
	}

	// THEN the map never fills with tombstones and never grew
	require.NoError(t, hh.Validate())
	assert.LessOrEqual(t, 4*hh.used, 3*uint64(len(hh.hash)))
	assert.Equal(t, uint64(4), hh.capacity())
	assert.False(t, hh.Contains(1), "long-gone handle must not be found")
}

// TestHashHeap_RandomOperations_MatchesReferenceModel checks heap/map
// consistency after arbitrary interleavings of every mutating operation.
func TestHashHeap_RandomOperations_MatchesReferenceModel(t *testing.T) {
	rng := rand.New(rand.NewSource(20240611))
	hh := New[int](0, EventOrder[int])
	model := make(map[Handle]Item[int])

	pickLive := func() Handle {
		if len(model) == 0 {
			return Handle(rng.Intn(50) + 1)
		}
		keys := make([]Handle, 0, len(model))
		for h := range model {
			keys = append(keys, h)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
		return keys[rng.Intn(len(keys))]
	}
	modelMin := func() Item[int] {
		var best Item[int]
		first := true
		for _, it := range model {
			if first || EventOrder(&it, &best) {
				best, first = it, false
			}
		}
		return best
	}

	for step := range 5000 {
		keys := Keys{When: float64(rng.Intn(20)), Priority: int64(rng.Intn(4))}
		switch op := rng.Intn(10); {
		case op < 4:
			h := hh.Enqueue(step, keys)
			model[h] = Item[int]{Handle: h, Keys: keys, Value: step}
		case op < 6:
			it, ok := hh.Dequeue()
			require.Equal(t, len(model) > 0, ok)
			if ok {
				want := modelMin()
				require.Equal(t, want, it, "step %d", step)
				delete(model, it.Handle)
			}
		case op < 8:
			h := pickLive()
			_, live := model[h]
			require.Equal(t, live, hh.Cancel(h), "step %d cancel %d", step, h)
			delete(model, h)
		default:
			h := pickLive()
			it, live := model[h]
			require.Equal(t, live, hh.Reprioritize(h, keys), "step %d reprioritize %d", step, h)
			if live {
				it.Keys = keys
				model[h] = it
			}
		}
		require.NoError(t, hh.Validate(), "step %d", step)
		require.Equal(t, len(model), hh.Len())
	}

	for h, it := range model {
		v, ok := hh.Get(h)
		require.True(t, ok)
		assert.Equal(t, it.Value, v)
	}
}

func TestNew_NilComparatorPanics(t *testing.T) {
	assert.Panics(t, func() { New[int](0, nil) })
}
