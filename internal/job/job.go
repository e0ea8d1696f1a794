// Package job implements the per-job state machine: progress toward a
// target delta, the per-proxy cooldown table, and the completion latch.
package job

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Info is the opaque job context fetched once at preparation time and
// passed back to the adapter on every action. The core never interprets
// its contents.
type Info map[string]any

// Adapter is the capability interface every platform implements. The job
// calls these three operations exclusively and never constructs
// protocol-specific payloads itself.
type Adapter interface {
	// Info fetches the opaque per-job context.
	Info(ctx context.Context, id string) (Info, error)
	// Progress reads the job's current progress metric.
	Progress(ctx context.Context, id string) (int64, error)
	// Act performs one action for the job routed through proxy.
	Act(ctx context.Context, id string, info Info, proxy string) error
}

// Snapshot is an immutable copy of the job counters for reporting.
type Snapshot struct {
	ID        string
	Baseline  int64
	Current   int64
	Delta     int64
	Target    int64
	Hits      int
	Completed bool
	Elapsed   time.Duration
}

type Job struct {
	id       string
	adapter  Adapter
	info     Info
	baseline int64
	target   int64
	cooldown time.Duration
	timeout  time.Duration
	now      func() time.Time

	mu        sync.Mutex
	current   int64
	hits      int
	lastUsed  map[string]time.Time
	completed bool
	started   time.Time
	ended     time.Time
}

type Option func(*Job)

func WithCooldown(d time.Duration) Option {
	return func(j *Job) { j.cooldown = d }
}

func WithTimeout(d time.Duration) Option {
	return func(j *Job) { j.timeout = d }
}

// WithClock overrides the time source, for cooldown tests.
func WithClock(now func() time.Time) Option {
	return func(j *Job) { j.now = now }
}

// New prepares a job: it fetches the opaque context and captures the
// baseline progress. Either call failing is fatal for this job, the only
// kind of error the pipeline surfaces per job.
func New(ctx context.Context, id string, adapter Adapter, target int64, opts ...Option) (*Job, error) {
	j := &Job{
		id:       id,
		adapter:  adapter,
		target:   target,
		cooldown: 300 * time.Second,
		timeout:  3 * time.Second,
		now:      time.Now,
		lastUsed: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(j)
	}

	info, err := adapter.Info(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetching info for %s: %w", id, err)
	}
	baseline, err := adapter.Progress(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetching baseline progress for %s: %w", id, err)
	}

	j.info = info
	j.baseline = baseline
	j.current = baseline
	j.started = j.now()
	return j, nil
}

func (j *Job) ID() string {
	return j.id
}

// Eligible reports whether proxy is out of cooldown for this job.
// Absence from the cooldown table means immediately eligible.
func (j *Job) Eligible(proxy string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	last, ok := j.lastUsed[proxy]
	return !ok || j.now().Sub(last) >= j.cooldown
}

// Attempt performs one action through proxy. An ineligible proxy returns
// false with no side effects. On success the hit counter and the cooldown
// stamp are committed together; on any error false is returned and no
// state changes. Errors are swallowed: attempts through unreliable
// proxies fail at high rates and must not abort the pipeline. The network
// call happens outside the lock.
func (j *Job) Attempt(ctx context.Context, proxy string) bool {
	if !j.Eligible(proxy) {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()
	if err := j.adapter.Act(ctx, j.id, j.info, proxy); err != nil {
		return false
	}

	j.mu.Lock()
	j.hits++
	j.lastUsed[proxy] = j.now()
	j.mu.Unlock()
	return true
}

// RefreshProgress reads the current progress metric and overwrites the
// cached value. A failed read keeps the last known good value: stale is
// safe, regressing on a transient error is not.
func (j *Job) RefreshProgress(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()
	current, err := j.adapter.Progress(ctx, j.id)
	if err != nil {
		return
	}
	j.mu.Lock()
	j.current = current
	j.mu.Unlock()
}

// Complete evaluates the completion invariant and latches it: the first
// observation of current-baseline >= target stamps the end time, under
// the same lock as the test, so two callers cannot both see the
// transition.
func (j *Job) Complete() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.completed {
		return true
	}
	if j.current-j.baseline >= j.target {
		j.completed = true
		j.ended = j.now()
		return true
	}
	return false
}

// Snapshot copies all counters without any network I/O.
func (j *Job) Snapshot() Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	elapsed := j.now().Sub(j.started)
	if j.completed {
		elapsed = j.ended.Sub(j.started)
	}
	return Snapshot{
		ID:        j.id,
		Baseline:  j.baseline,
		Current:   j.current,
		Delta:     j.current - j.baseline,
		Target:    j.target,
		Hits:      j.hits,
		Completed: j.completed,
		Elapsed:   elapsed,
	}
}
