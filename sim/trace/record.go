package trace

// DispatchRecord captures one event taken off the event queue.
type DispatchRecord struct {
	Handle   uint64  `json:"handle"`
	Time     float64 `json:"time"`
	Priority int64   `json:"priority"`
	Kind     string  `json:"kind"`    // start, resume, interrupt, stop or user
	Subject  string  `json:"subject"` // process name for process events
}
