package pipeline

import (
	"context"
	"log/slog"
	"slices"

	"github.com/driftlock/drover/internal/job"
	"github.com/driftlock/drover/internal/model"
	"github.com/driftlock/drover/internal/parallel"
)

const prepareConcurrency = 8

// Prepare builds one Job per id, fetching its context and baseline
// progress concurrently. A job that fails to prepare is skipped and
// returned in failed; the run only aborts when nothing prepared at all.
func Prepare(ctx context.Context, adapter job.Adapter, ids []string, target int64, opts ...job.Option) ([]*job.Job, []string, error) {
	results, errs := parallel.Collect(ctx, prepareConcurrency, ids,
		func(ctx context.Context, id string) (*job.Job, error) {
			return job.New(ctx, id, adapter, target, opts...)
		})

	jobs := make([]*job.Job, 0, len(ids))
	var failed []string
	for i, j := range results {
		if errs[i] != nil {
			slog.WarnContext(ctx, "job skipped", "id", ids[i], "error", errs[i])
			failed = append(failed, ids[i])
			continue
		}
		jobs = append(jobs, j)
	}
	if len(jobs) == 0 {
		return nil, failed, model.ErrNoJobs
	}
	return jobs, failed, nil
}

// Blacklist removes the listed ids before preparation.
func Blacklist(ids, blacklist []string) []string {
	if len(blacklist) == 0 {
		return ids
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if slices.Contains(blacklist, id) {
			continue
		}
		out = append(out, id)
	}
	return out
}
