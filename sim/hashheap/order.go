package hashheap

// EventOrder sorts by time ascending, then priority descending, then
// insertion order.
func EventOrder[T any](a, b *Item[T]) bool {
	if a.Keys.When != b.Keys.When {
		return a.Keys.When < b.Keys.When
	}
	if a.Keys.Priority != b.Keys.Priority {
		return a.Keys.Priority > b.Keys.Priority
	}
	return a.Handle < b.Handle
}

// WaitOrder sorts by priority descending, then arrival order.
func WaitOrder[T any](a, b *Item[T]) bool {
	if a.Keys.Priority != b.Keys.Priority {
		return a.Keys.Priority > b.Keys.Priority
	}
	return a.Handle < b.Handle
}

// HolderOrder puts the cheapest preemption victim first: lowest priority,
// then the most recently admitted.
func HolderOrder[T any](a, b *Item[T]) bool {
	if a.Keys.Priority != b.Keys.Priority {
		return a.Keys.Priority < b.Keys.Priority
	}
	return a.Handle > b.Handle
}
