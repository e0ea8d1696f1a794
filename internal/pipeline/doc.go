package pipeline

// Package pipeline wires the proxy dispatch pipeline together and owns
// the monitor loop.
//
// Data flow:
//
//	candidates -> pool.Raw -> Validator workers -> pool.Validated
//	                                                   |
//	           Dispatcher workers <--------------------+
//	                |  pick incomplete job (round robin)
//	                |  job.Attempt(proxy)
//	                +--> proxy requeued to pool.Validated
//
// The monitor polls on a fixed interval: it forwards validator stats and
// per-job snapshots to the reporting sink, refreshes each incomplete
// job's progress, announces completions once, and exits when every job
// is complete or the run context is canceled. Cancellation is graceful:
// workers observe the stop signal within one bounded-wait interval and
// in-flight attempts are allowed to finish before the final summary is
// collected.
//
// The fixed-interval poll is a deliberate simplicity/latency tradeoff:
// cancellation and completion are both observed within one interval.
//
// Invariants:
//   - a validated proxy is never discarded by the dispatcher; the pool
//     only shrinks through validator attrition
//   - a completed job is never selected for new attempts, modulo one
//     stale read which costs a wasted attempt and nothing else
//   - per-attempt and per-probe errors stay inside their component; only
//     startup errors (no candidates, no preparable jobs) are fatal
