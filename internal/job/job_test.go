package job_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/driftlock/drover/internal/job"
)

// fakeAdapter is a scriptable adapter: progress values are set by the
// test, actions succeed unless actErr is set.
type fakeAdapter struct {
	mu          sync.Mutex
	progress    map[string]int64
	progressErr error
	actErr      error
	acts        map[string]int
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{
		progress: make(map[string]int64),
		acts:     make(map[string]int),
	}
}

func (f *fakeAdapter) setProgress(id string, v int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.progress[id] = v
}

func (f *fakeAdapter) setProgressErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.progressErr = err
}

func (f *fakeAdapter) Info(context.Context, string) (job.Info, error) {
	return job.Info{"kind": "fake"}, nil
}

func (f *fakeAdapter) Progress(_ context.Context, id string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.progressErr != nil {
		return 0, f.progressErr
	}
	return f.progress[id], nil
}

func (f *fakeAdapter) Act(_ context.Context, id string, _ job.Info, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.actErr != nil {
		return f.actErr
	}
	f.acts[id]++
	return nil
}

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func TestCooldownScenario(t *testing.T) {
	t.Parallel()

	adapter := newFakeAdapter()
	adapter.setProgress("j1", 100)
	clk := &fakeClock{t: time.Unix(1_700_000_000, 0)}

	j, err := job.New(t.Context(), "j1", adapter, 50,
		job.WithCooldown(300*time.Second),
		job.WithClock(clk.Now),
	)
	require.NoError(t, err)

	const proxy = "1.2.3.4:8080"

	// t=0: first attempt succeeds
	require.True(t, j.Attempt(t.Context(), proxy))

	// t=1: refresh shows 101, not complete, proxy still cooling down
	clk.Advance(time.Second)
	adapter.setProgress("j1", 101)
	j.RefreshProgress(t.Context())
	require.False(t, j.Complete())
	require.False(t, j.Attempt(t.Context(), proxy))
	require.Equal(t, 1, adapter.acts["j1"])

	// a sibling job is unaffected by j1's cooldown table
	j2, err := job.New(t.Context(), "j2", adapter, 50,
		job.WithCooldown(300*time.Second),
		job.WithClock(clk.Now),
	)
	require.NoError(t, err)
	require.True(t, j2.Attempt(t.Context(), proxy))

	// t=301: cooldown over, same proxy accepted again
	clk.Advance(300 * time.Second)
	require.True(t, j.Attempt(t.Context(), proxy))
	require.Equal(t, 2, adapter.acts["j1"])
}

func TestAttemptFailureLeavesStateUntouched(t *testing.T) {
	t.Parallel()

	adapter := newFakeAdapter()
	adapter.actErr = errors.New("proxy refused")
	j, err := job.New(t.Context(), "j1", adapter, 10)
	require.NoError(t, err)

	require.False(t, j.Attempt(t.Context(), "1.2.3.4:80"))
	snap := j.Snapshot()
	require.Zero(t, snap.Hits)

	// the failed attempt did not stamp the cooldown table
	require.True(t, j.Eligible("1.2.3.4:80"))
}

func TestRefreshProgressStaleIsSafe(t *testing.T) {
	t.Parallel()

	adapter := newFakeAdapter()
	adapter.setProgress("j1", 7)
	j, err := job.New(t.Context(), "j1", adapter, 100)
	require.NoError(t, err)

	adapter.setProgress("j1", 42)
	j.RefreshProgress(t.Context())
	require.EqualValues(t, 42, j.Snapshot().Current)

	adapter.setProgressErr(errors.New("read failed"))
	j.RefreshProgress(t.Context())
	require.EqualValues(t, 42, j.Snapshot().Current, "transient read error must not regress progress")
}

func TestCompletionLatch(t *testing.T) {
	t.Parallel()

	adapter := newFakeAdapter()
	adapter.setProgress("j1", 100)
	j, err := job.New(t.Context(), "j1", adapter, 50)
	require.NoError(t, err)

	adapter.setProgress("j1", 150)
	j.RefreshProgress(t.Context())
	require.True(t, j.Complete())

	// a later lower reading cannot un-complete the job
	adapter.setProgress("j1", 0)
	j.RefreshProgress(t.Context())
	require.True(t, j.Complete())
	require.True(t, j.Snapshot().Completed)
}

func TestZeroTargetCompletesImmediately(t *testing.T) {
	t.Parallel()

	adapter := newFakeAdapter()
	j, err := job.New(t.Context(), "j1", adapter, 0)
	require.NoError(t, err)
	require.True(t, j.Complete())
}

func TestSnapshotIdempotent(t *testing.T) {
	t.Parallel()

	adapter := newFakeAdapter()
	adapter.setProgress("j1", 5)
	clk := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	j, err := job.New(t.Context(), "j1", adapter, 10, job.WithClock(clk.Now))
	require.NoError(t, err)

	require.Equal(t, j.Snapshot(), j.Snapshot())
}

func TestPreparationErrorIsFatal(t *testing.T) {
	t.Parallel()

	adapter := newFakeAdapter()
	adapter.setProgressErr(errors.New("api down"))
	_, err := job.New(t.Context(), "j1", adapter, 10)
	require.Error(t, err)
	require.ErrorContains(t, err, "baseline")
}
