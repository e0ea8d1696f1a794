// Package dispatch allocates validated proxies to incomplete jobs.
//
// Selection is round-robin over the jobs that are incomplete right now:
// the rotation index is taken modulo the live incomplete count, so the
// eligible set shrinks as jobs finish and remaining jobs absorb a larger
// share of the stream. A proxy is always requeued after an attempt,
// whatever the outcome: a proxy in cooldown for one job may be
// immediately useful for another.
package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/driftlock/drover/internal/job"
	"github.com/driftlock/drover/internal/pool"
)

const (
	defaultWait = time.Second
	defaultIdle = 100 * time.Millisecond
)

type Dispatcher struct {
	validated *pool.Queue
	jobs      []*job.Job
	workers   int
	wait      time.Duration
	idle      time.Duration

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu   sync.Mutex
	next int
}

type Option func(*Dispatcher)

// WithWait changes the bounded wait on the validated queue.
func WithWait(d time.Duration) Option {
	return func(dp *Dispatcher) { dp.wait = d }
}

// WithIdleSleep changes how long a worker sleeps when every job is
// complete but the monitor has not observed it yet.
func WithIdleSleep(d time.Duration) Option {
	return func(dp *Dispatcher) { dp.idle = d }
}

func New(p *pool.Pool, jobs []*job.Job, workers int, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		validated: p.Validated,
		jobs:      jobs,
		workers:   workers,
		wait:      defaultWait,
		idle:      defaultIdle,
		stop:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start spawns the dispatch workers.
func (d *Dispatcher) Start(ctx context.Context) {
	for range d.workers {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.work(ctx)
		}()
	}
}

// Stop signals all workers and waits for in-flight attempts to finish.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		close(d.stop)
	})
	d.wg.Wait()
}

func (d *Dispatcher) work(ctx context.Context) {
	for {
		select {
		case <-d.stop:
			return
		default:
		}

		proxy, ok := d.validated.Take(d.stop, d.wait)
		if !ok {
			continue
		}

		j := d.pick()
		if j == nil {
			// nothing to do: requeue and back off to avoid a busy spin
			d.validated.Put(proxy)
			t := time.NewTimer(d.idle)
			select {
			case <-d.stop:
				t.Stop()
				return
			case <-t.C:
			}
			continue
		}

		j.Attempt(ctx, proxy)
		d.validated.Put(proxy)
	}
}

// pick returns the next incomplete job in rotation, or nil when all jobs
// are complete. The incomplete set is re-read under the lock on every
// selection.
func (d *Dispatcher) pick() *job.Job {
	d.mu.Lock()
	defer d.mu.Unlock()

	incomplete := make([]*job.Job, 0, len(d.jobs))
	for _, j := range d.jobs {
		if !j.Complete() {
			incomplete = append(incomplete, j)
		}
	}
	if len(incomplete) == 0 {
		return nil
	}

	d.next %= len(incomplete)
	j := incomplete[d.next]
	d.next++
	return j
}
