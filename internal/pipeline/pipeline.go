package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/driftlock/drover/internal/dispatch"
	"github.com/driftlock/drover/internal/job"
	"github.com/driftlock/drover/internal/model"
	"github.com/driftlock/drover/internal/pool"
	"github.com/driftlock/drover/internal/report"
	"github.com/driftlock/drover/internal/validate"
)

// Options sizes the worker pools and the monitor cadence. FailedJobs
// carries the ids that never prepared, so the summary can report them.
type Options struct {
	Validators int
	Poll       time.Duration
	FailedJobs []string
}

func (o Options) withDefaults() Options {
	if o.Validators <= 0 {
		o.Validators = model.DefaultValidators
	}
	if o.Poll <= 0 {
		o.Poll = model.DefaultPollMillis * time.Millisecond
	}
	return o
}

// Pipeline owns one run: it seeds the pool, starts the validator and
// dispatcher, monitors the jobs and coordinates the graceful stop.
type Pipeline struct {
	runID      string
	pool       *pool.Pool
	validator  *validate.Validator
	dispatcher *dispatch.Dispatcher
	jobs       []*job.Job
	sink       report.Sink
	opts       Options
}

func New(p *pool.Pool, v *validate.Validator, d *dispatch.Dispatcher, jobs []*job.Job, sink report.Sink, opts Options) *Pipeline {
	if sink == nil {
		sink = report.Nop{}
	}
	return &Pipeline{
		runID:      uuid.NewString(),
		pool:       p,
		validator:  v,
		dispatcher: d,
		jobs:       jobs,
		sink:       sink,
		opts:       opts.withDefaults(),
	}
}

func (pl *Pipeline) RunID() string {
	return pl.runID
}

// Run executes the pipeline until every job completes or ctx is
// canceled. Cancellation is not an error: the summary of whatever
// progress exists is returned either way. Only an empty candidate list
// or an empty job list fails.
func (pl *Pipeline) Run(ctx context.Context, candidates []string) (report.Summary, error) {
	if len(candidates) == 0 {
		return report.Summary{}, model.ErrNoCandidates
	}
	if len(pl.jobs) == 0 {
		return report.Summary{}, model.ErrNoJobs
	}

	started := time.Now()
	seeded := pl.pool.Seed(candidates)
	slog.InfoContext(ctx, "pipeline starting",
		"run_id", pl.runID,
		"candidates", seeded,
		"jobs", len(pl.jobs),
		"validators", pl.opts.Validators,
	)

	pl.validator.Start(ctx, pl.opts.Validators)
	pl.dispatcher.Start(ctx)

	interrupted := pl.monitor(ctx)

	// Graceful stop: Stop waits for each worker's in-flight probe or
	// attempt, each bounded by its own timeout.
	pl.validator.Stop()
	pl.dispatcher.Stop()

	summary := report.Summary{
		RunID:       pl.runID,
		Started:     started,
		Elapsed:     time.Since(started),
		Interrupted: interrupted,
		Seeded:      seeded,
		Stats:       pl.validator.Stats(),
		Jobs:        make([]job.Snapshot, 0, len(pl.jobs)),
		FailedJobs:  pl.opts.FailedJobs,
	}
	for _, j := range pl.jobs {
		summary.Jobs = append(summary.Jobs, j.Snapshot())
	}
	pl.sink.Summary(summary)

	slog.InfoContext(ctx, "pipeline finished",
		"run_id", pl.runID,
		"interrupted", interrupted,
		"elapsed", summary.Elapsed,
		"checked", summary.Stats.Checked,
		"validated", summary.Stats.Validated,
	)
	return summary, nil
}

// monitor is the polling loop. It reports true when it exited due to
// cancellation rather than global completion.
func (pl *Pipeline) monitor(ctx context.Context) bool {
	ticker := time.NewTicker(pl.opts.Poll)
	defer ticker.Stop()

	announced := make(map[string]bool, len(pl.jobs))
	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "cancellation requested, shutting down gracefully", "run_id", pl.runID)
			return true
		case <-ticker.C:
		}

		pl.sink.ValidatorStats(pl.validator.Stats())

		done := true
		for _, j := range pl.jobs {
			if !j.Complete() {
				done = false
				j.RefreshProgress(ctx)
			}
			snap := j.Snapshot()
			pl.sink.Progress(snap)
			if snap.Completed && !announced[snap.ID] {
				announced[snap.ID] = true
				pl.sink.Completed(snap)
			}
		}
		if done {
			return false
		}
	}
}
