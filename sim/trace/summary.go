package trace

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	TotalDispatches  int            `json:"total_dispatches"`
	KindDistribution map[string]int `json:"kind_distribution"` // event kind → count
	FirstTime        float64        `json:"first_time"`
	LastTime         float64        `json:"last_time"`
	// MaxSimultaneous is the largest number of events dispatched at one
	// simulated instant.
	MaxSimultaneous int `json:"max_simultaneous"`
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		KindDistribution: make(map[string]int),
	}
	if st == nil || len(st.Dispatches) == 0 {
		return summary
	}

	summary.TotalDispatches = len(st.Dispatches)
	summary.FirstTime = st.Dispatches[0].Time
	summary.LastTime = st.Dispatches[len(st.Dispatches)-1].Time

	run := 0
	for i, d := range st.Dispatches {
		summary.KindDistribution[d.Kind]++
		if i > 0 && d.Time == st.Dispatches[i-1].Time {
			run++
		} else {
			run = 1
		}
		summary.MaxSimultaneous = max(summary.MaxSimultaneous, run)
	}
	return summary
}
