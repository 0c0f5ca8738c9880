package sim

import "fmt"

// Signal is the value a suspended process resumes with. Negative values are
// reserved; applications may use positive values for their own interrupts.
type Signal int64

const (
	SignalSuccess     Signal = 0
	SignalPreempted   Signal = -1
	SignalInterrupted Signal = -2
	SignalStopped     Signal = -3
	SignalCancelled   Signal = -4
)

func (s Signal) String() string {
	switch s {
	case SignalSuccess:
		return "success"
	case SignalPreempted:
		return "preempted"
	case SignalInterrupted:
		return "interrupted"
	case SignalStopped:
		return "stopped"
	case SignalCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("signal(%d)", int64(s))
	}
}
