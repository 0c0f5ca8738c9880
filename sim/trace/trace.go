// Package trace records the events a simulation dispatched, in dispatch
// order. It has no dependencies on sim/ and stores pure data types.
package trace

// TraceLevel controls the verbosity of dispatch tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelEvents captures every dispatched event.
	TraceLevelEvents TraceLevel = "events"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:   true,
	TraceLevelEvents: true,
	"":               true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
	Limit int // maximum records kept; 0 keeps all
}

// SimulationTrace collects dispatch records during one trial.
type SimulationTrace struct {
	Config     TraceConfig
	Dispatches []DispatchRecord
	Dropped    int // records beyond Limit
}

// NewSimulationTrace creates a SimulationTrace ready for recording.
func NewSimulationTrace(config TraceConfig) *SimulationTrace {
	return &SimulationTrace{
		Config:     config,
		Dispatches: make([]DispatchRecord, 0),
	}
}

// RecordDispatch appends a dispatch record, or counts it as dropped once the
// limit is reached.
func (st *SimulationTrace) RecordDispatch(record DispatchRecord) {
	if st.Config.Limit > 0 && len(st.Dispatches) >= st.Config.Limit {
		st.Dropped++
		return
	}
	st.Dispatches = append(st.Dispatches, record)
}
