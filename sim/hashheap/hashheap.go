// Package hashheap provides an indexed binary heap: a priority queue whose
// entries can also be found, cancelled and reprioritized in O(1) expected time
// through a stable handle.
//
// The heap array is 1-indexed with slot 0 used as working space during sifts.
// Handles are mapped to heap slots by an open-addressing hash map that is
// always twice the heap capacity, both powers of two, using Fibonacci hashing
// and linear probing. A map entry whose heap index is 0 is either empty
// (handle 0) or a tombstone left behind by a removed entry.
package hashheap

import (
	"fmt"
	"iter"
)

// Handle identifies an entry for its whole lifetime. Zero is never issued.
type Handle uint64

// Keys are the ordering keys of an entry. Handle order serves as the
// tie-breaker for comparators that need one.
type Keys struct {
	When     float64
	Priority int64
}

// Item is a queued entry.
type Item[T any] struct {
	Handle Handle
	Keys   Keys
	Value  T
}

// Less reports whether a should leave the heap before b.
type Less[T any] func(a, b *Item[T]) bool

// fibonacci is 2^64 divided by the golden ratio.
const fibonacci = 11400714819323198485

type entry[T any] struct {
	item Item[T]
	slot uint64 // index of this entry's hash tag
}

type hashTag struct {
	handle Handle
	index  uint64 // heap slot, 0 when free or tombstoned
}

// HashHeap is a priority queue ordered by a caller-supplied comparator.
// It is not safe for concurrent use.
type HashHeap[T any] struct {
	heap    []entry[T]
	hash    []hashTag
	count   uint64
	exp     uint
	used    uint64 // hash tags with a non-zero handle, live or tombstoned
	counter Handle
	less    Less[T]
}

// New returns an empty HashHeap with room for 2^exp entries before the first
// growth.
func New[T any](exp uint, less Less[T]) *HashHeap[T] {
	if less == nil {
		panic("hashheap: New: nil comparator")
	}
	if exp > 40 {
		panic(fmt.Sprintf("hashheap: New: capacity exponent %d too large", exp))
	}
	hh := &HashHeap[T]{exp: exp, less: less}
	hh.heap = make([]entry[T], hh.capacity()+1)
	hh.hash = make([]hashTag, hh.capacity()*2)
	return hh
}

func (hh *HashHeap[T]) capacity() uint64 { return 1 << hh.exp }

// Len returns the number of queued entries.
func (hh *HashHeap[T]) Len() int { return int(hh.count) }

// IsEmpty reports whether the heap holds no entries.
func (hh *HashHeap[T]) IsEmpty() bool { return hh.count == 0 }

// Enqueue inserts v with the given keys and returns its handle.
func (hh *HashHeap[T]) Enqueue(v T, keys Keys) Handle {
	if hh.count == hh.capacity() {
		hh.grow()
	} else if 4*(hh.used+1) > 3*uint64(len(hh.hash)) {
		hh.rehash()
	}

	hh.counter++
	h := hh.counter
	hh.count++
	k := hh.count
	slot := hh.findSlot(h)
	if hh.hash[slot].handle == 0 {
		hh.used++
	}
	hh.hash[slot] = hashTag{handle: h, index: k}
	hh.heap[k] = entry[T]{item: Item[T]{Handle: h, Keys: keys, Value: v}, slot: slot}
	hh.siftUp(k)

	if debug {
		hh.mustValidate("Enqueue")
	}
	return h
}

// Peek returns the top entry without removing it.
func (hh *HashHeap[T]) Peek() (Item[T], bool) {
	if hh.count == 0 {
		return Item[T]{}, false
	}
	return hh.heap[1].item, true
}

// Dequeue removes and returns the top entry.
func (hh *HashHeap[T]) Dequeue() (Item[T], bool) {
	if hh.count == 0 {
		return Item[T]{}, false
	}
	top := hh.heap[1]
	hh.hash[top.slot].index = 0
	if hh.count > 1 {
		hh.place(1, hh.heap[hh.count])
		hh.heap[hh.count] = entry[T]{}
		hh.count--
		hh.siftDown(1)
	} else {
		hh.heap[1] = entry[T]{}
		hh.count--
	}

	if debug {
		hh.mustValidate("Dequeue")
	}
	return top.item, true
}

// Cancel removes the entry with handle h. It returns false if h is not
// queued, which is an expected outcome for entries that already left.
func (hh *HashHeap[T]) Cancel(h Handle) bool {
	slot, ok := hh.findHandle(h)
	if !ok {
		return false
	}
	k := hh.hash[slot].index
	hh.hash[slot].index = 0
	if k == hh.count {
		hh.heap[k] = entry[T]{}
		hh.count--
		if debug {
			hh.mustValidate("Cancel")
		}
		return true
	}

	removed := hh.heap[k].item
	last := hh.heap[hh.count]
	hh.heap[hh.count] = entry[T]{}
	hh.count--
	hh.place(k, last)
	if hh.less(&removed, &last.item) {
		hh.siftDown(k)
	} else {
		hh.siftUp(k)
	}

	if debug {
		hh.mustValidate("Cancel")
	}
	return true
}

// Reprioritize replaces the keys of entry h and restores heap order.
func (hh *HashHeap[T]) Reprioritize(h Handle, keys Keys) bool {
	slot, ok := hh.findHandle(h)
	if !ok {
		return false
	}
	k := hh.hash[slot].index
	hh.heap[0] = hh.heap[k]
	hh.heap[k].item.Keys = keys
	if hh.less(&hh.heap[k].item, &hh.heap[0].item) {
		hh.siftUp(k)
	} else {
		hh.siftDown(k)
	}
	hh.heap[0] = entry[T]{}

	if debug {
		hh.mustValidate("Reprioritize")
	}
	return true
}

// Contains reports whether h is queued.
func (hh *HashHeap[T]) Contains(h Handle) bool {
	_, ok := hh.findHandle(h)
	return ok
}

// Get returns the value stored under h.
func (hh *HashHeap[T]) Get(h Handle) (T, bool) {
	slot, ok := hh.findHandle(h)
	if !ok {
		var zero T
		return zero, false
	}
	return hh.heap[hh.hash[slot].index].item.Value, true
}

// Set replaces the value stored under h. Ordering keys are unchanged.
func (hh *HashHeap[T]) Set(h Handle, v T) bool {
	slot, ok := hh.findHandle(h)
	if !ok {
		return false
	}
	hh.heap[hh.hash[slot].index].item.Value = v
	return true
}

// KeysOf returns the ordering keys of h.
func (hh *HashHeap[T]) KeysOf(h Handle) (Keys, bool) {
	slot, ok := hh.findHandle(h)
	if !ok {
		return Keys{}, false
	}
	return hh.heap[hh.hash[slot].index].item.Keys, true
}

// Find returns the handle of some entry for which match returns true, or 0.
// Entries are visited in heap array order, not priority order.
func (hh *HashHeap[T]) Find(match func(*Item[T]) bool) Handle {
	for k := uint64(1); k <= hh.count; k++ {
		if match(&hh.heap[k].item) {
			return hh.heap[k].item.Handle
		}
	}
	return 0
}

// Count returns the number of entries for which match returns true.
func (hh *HashHeap[T]) Count(match func(*Item[T]) bool) int {
	n := 0
	for k := uint64(1); k <= hh.count; k++ {
		if match(&hh.heap[k].item) {
			n++
		}
	}
	return n
}

// CancelAll removes every entry for which match returns true and returns how
// many were removed.
func (hh *HashHeap[T]) CancelAll(match func(*Item[T]) bool) int {
	var victims []Handle
	for k := uint64(1); k <= hh.count; k++ {
		if match(&hh.heap[k].item) {
			victims = append(victims, hh.heap[k].item.Handle)
		}
	}
	for _, h := range victims {
		hh.Cancel(h)
	}
	return len(victims)
}

// All iterates over the queued entries in heap array order. The heap must
// not be modified during iteration.
func (hh *HashHeap[T]) All() iter.Seq[Item[T]] {
	return func(yield func(Item[T]) bool) {
		for k := uint64(1); k <= hh.count; k++ {
			if !yield(hh.heap[k].item) {
				return
			}
		}
	}
}

// Clear removes every entry. Handles already issued are never reused.
func (hh *HashHeap[T]) Clear() {
	clear(hh.heap)
	clear(hh.hash)
	hh.count = 0
	hh.used = 0
}

func (hh *HashHeap[T]) hashOf(h Handle) uint64 {
	return (uint64(h) * fibonacci) >> (64 - (hh.exp + 1))
}

// findSlot returns the first free or tombstoned tag on h's probe sequence.
func (hh *HashHeap[T]) findSlot(h Handle) uint64 {
	mask := uint64(len(hh.hash) - 1)
	i := hh.hashOf(h)
	for hh.hash[i].index != 0 {
		i = (i + 1) & mask
	}
	return i
}

func (hh *HashHeap[T]) findHandle(h Handle) (uint64, bool) {
	if h == 0 {
		return 0, false
	}
	mask := uint64(len(hh.hash) - 1)
	i := hh.hashOf(h)
	for range len(hh.hash) {
		t := hh.hash[i]
		if t.handle == 0 {
			return 0, false
		}
		if t.handle == h {
			return i, t.index != 0
		}
		i = (i + 1) & mask
	}
	return 0, false
}

func (hh *HashHeap[T]) grow() {
	hh.exp++
	heap := make([]entry[T], hh.capacity()+1)
	copy(heap, hh.heap[:hh.count+1])
	hh.heap = heap
	hh.hash = make([]hashTag, hh.capacity()*2)
	hh.reindex()
}

// rehash rebuilds the map at its current size, dropping tombstones.
func (hh *HashHeap[T]) rehash() {
	clear(hh.hash)
	hh.reindex()
}

func (hh *HashHeap[T]) reindex() {
	for k := uint64(1); k <= hh.count; k++ {
		h := hh.heap[k].item.Handle
		slot := hh.findSlot(h)
		hh.hash[slot] = hashTag{handle: h, index: k}
		hh.heap[k].slot = slot
	}
	hh.used = hh.count
}

func (hh *HashHeap[T]) place(k uint64, e entry[T]) {
	hh.heap[k] = e
	hh.hash[e.slot].index = k
}

func (hh *HashHeap[T]) siftUp(k uint64) {
	hh.heap[0] = hh.heap[k]
	for k > 1 && hh.less(&hh.heap[0].item, &hh.heap[k/2].item) {
		hh.place(k, hh.heap[k/2])
		k /= 2
	}
	hh.place(k, hh.heap[0])
	hh.heap[0] = entry[T]{}
}

func (hh *HashHeap[T]) siftDown(k uint64) {
	hh.heap[0] = hh.heap[k]
	for {
		j := 2 * k
		if j > hh.count {
			break
		}
		if j < hh.count && hh.less(&hh.heap[j+1].item, &hh.heap[j].item) {
			j++
		}
		if !hh.less(&hh.heap[j].item, &hh.heap[0].item) {
			break
		}
		hh.place(k, hh.heap[j])
		k = j
	}
	hh.place(k, hh.heap[0])
	hh.heap[0] = entry[T]{}
}

// Validate checks the heap ordering and the handle map against each other.
func (hh *HashHeap[T]) Validate() error {
	if uint64(len(hh.heap)) != hh.capacity()+1 || uint64(len(hh.hash)) != 2*hh.capacity() {
		return fmt.Errorf("hashheap: sizes heap=%d hash=%d for exponent %d", len(hh.heap), len(hh.hash), hh.exp)
	}
	for k := uint64(2); k <= hh.count; k++ {
		if hh.less(&hh.heap[k].item, &hh.heap[k/2].item) {
			return fmt.Errorf("hashheap: slot %d (handle %d) precedes its parent %d", k, hh.heap[k].item.Handle, k/2)
		}
	}
	for k := uint64(1); k <= hh.count; k++ {
		e := hh.heap[k]
		if e.item.Handle == 0 {
			return fmt.Errorf("hashheap: slot %d holds handle 0", k)
		}
		if e.slot >= uint64(len(hh.hash)) {
			return fmt.Errorf("hashheap: slot %d points past the map", k)
		}
		t := hh.hash[e.slot]
		if t.handle != e.item.Handle || t.index != k {
			return fmt.Errorf("hashheap: slot %d handle %d maps to tag {%d %d}", k, e.item.Handle, t.handle, t.index)
		}
		if slot, ok := hh.findHandle(e.item.Handle); !ok || slot != e.slot {
			return fmt.Errorf("hashheap: handle %d not reachable by probing", e.item.Handle)
		}
	}
	live, used := uint64(0), uint64(0)
	for _, t := range hh.hash {
		if t.handle != 0 {
			used++
		}
		if t.index != 0 {
			live++
		}
	}
	if live != hh.count {
		return fmt.Errorf("hashheap: %d live tags for %d entries", live, hh.count)
	}
	if used != hh.used {
		return fmt.Errorf("hashheap: %d used tags, recorded %d", used, hh.used)
	}
	return nil
}

func (hh *HashHeap[T]) mustValidate(op string) {
	if err := hh.Validate(); err != nil {
		panic(fmt.Sprintf("%s after %s", err, op))
	}
}
