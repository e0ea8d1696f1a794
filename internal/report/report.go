// Package report receives pipeline progress. Sinks are push-only and
// must return quickly: a slow sink degrades the monitor's polling
// cadence.
package report

import (
	"time"

	"github.com/driftlock/drover/internal/job"
	"github.com/driftlock/drover/internal/validate"
)

// Sink receives periodic snapshots from the monitor loop.
type Sink interface {
	// ValidatorStats is pushed once per poll tick.
	ValidatorStats(s validate.Stats)
	// Progress is pushed for every job on every poll tick.
	Progress(s job.Snapshot)
	// Completed is pushed exactly once per job, on the tick that first
	// observes its completion.
	Completed(s job.Snapshot)
	// Summary is pushed once, after workers have stopped.
	Summary(s Summary)
}

// Summary is the final state of one pipeline run.
type Summary struct {
	RunID       string
	Started     time.Time
	Elapsed     time.Duration
	Interrupted bool
	Seeded      int
	Stats       validate.Stats
	Jobs        []job.Snapshot
	FailedJobs  []string
}

// Nop discards everything. Used by tests and quiet scheduling runs.
type Nop struct{}

func (Nop) ValidatorStats(validate.Stats) {}
func (Nop) Progress(job.Snapshot)         {}
func (Nop) Completed(job.Snapshot)        {}
func (Nop) Summary(Summary)               {}
