// Package pool holds the two FIFO queues the pipeline cycles proxies
// through: raw candidates awaiting a health check and validated proxies
// awaiting dispatch. Queues have a fixed capacity sized to the candidate
// cap, so a validated proxy can always be requeued without blocking.
package pool

import (
	"time"
)

// Queue is a FIFO of proxy addresses backed by a buffered channel.
type Queue struct {
	ch chan string
}

func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{ch: make(chan string, capacity)}
}

// Put enqueues p without blocking. It reports false when the queue is
// full, which cannot happen as long as the queue was sized to the number
// of candidates seeded into the pool.
func (q *Queue) Put(p string) bool {
	select {
	case q.ch <- p:
		return true
	default:
		return false
	}
}

// Take dequeues one address, waiting at most wait. It returns early with
// ok=false when stop is closed, so no worker blocks past one wait
// interval after a stop signal.
func (q *Queue) Take(stop <-chan struct{}, wait time.Duration) (string, bool) {
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case p := <-q.ch:
		return p, true
	case <-stop:
		return "", false
	case <-t.C:
		return "", false
	}
}

// Len reports how many addresses currently sit in the queue.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Pool bundles the raw and validated queues.
type Pool struct {
	Raw       *Queue
	Validated *Queue
}

func New(capacity int) *Pool {
	return &Pool{
		Raw:       NewQueue(capacity),
		Validated: NewQueue(capacity),
	}
}

// Seed pushes candidates into the raw queue and returns how many fit.
func (p *Pool) Seed(candidates []string) int {
	n := 0
	for _, c := range candidates {
		if p.Raw.Put(c) {
			n++
		}
	}
	return n
}
