package platform

import (
	"context"
	"sync"

	"github.com/driftlock/drover/internal/job"
)

// Sim is an in-memory adapter for dry runs and tests: every action
// advances a per-job counter and progress reads it back, so a run
// completes without touching the network.
type Sim struct {
	mu     sync.Mutex
	counts map[string]int64
}

func NewSim() *Sim {
	return &Sim{counts: make(map[string]int64)}
}

func (s *Sim) Info(_ context.Context, id string) (job.Info, error) {
	return job.Info{"kind": "sim", "id": id}, nil
}

func (s *Sim) Progress(_ context.Context, id string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[id], nil
}

func (s *Sim) Act(_ context.Context, id string, _ job.Info, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[id]++
	return nil
}
