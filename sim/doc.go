// Package sim provides a process-oriented discrete-event simulation runtime.
//
// # Reading Guide
//
// Start with these three files to understand the kernel:
//   - simulator.go: the clock, the event loop and the trial lifecycle
//   - event.go: scheduling, cancelling and matching events in the queue
//   - process.go: processes as fibers that hold, wait, interrupt and exit
//
// # Architecture
//
// A Simulator owns one trial. Its event queue is a hashheap.HashHeap ordered
// by time, then priority (higher first), then scheduling order. Every process
// runs on its own fiber (sim/fiber); exactly one fiber is active at a time,
// and control passes between the scheduler and processes only when a process
// blocks or finishes.
//
// Blocking primitives share one building block, the ResourceGuard: a
// priority queue of waiting processes, each with a demand predicate that is
// re-evaluated whenever the guarded state changes. On top of it:
//   - Resource: a binary semaphore with holder tracking and preemption
//   - ResourcePool: a counting semaphore where holders take amounts
//   - Condition: wait for an arbitrary predicate over observed guards
//   - Buffer: a bounded level with amount-based put and get
//   - ObjectQueue: a bounded FIFO of values
//
// Blocking calls return a Signal: SignalSuccess, or the reason the wait was
// cut short (preempted, interrupted, stopped, cancelled, or an application
// defined value). Programming errors panic with "sim: Func: msg" messages.
//
// Sub-packages:
//   - sim/hashheap/: the indexed priority queue behind the event queue and guards
//   - sim/fiber/: fiber contexts and the switcher that runs them
//   - sim/stats/: datasets and time series with summary statistics
//   - sim/trace/: dispatch trace recording
//   - sim/workload/: duration samplers parameterized from YAML
//   - sim/scenario/: a multi-server priority queue model
//   - sim/experiment/: parallel trial runner
package sim
