// Package platform provides the adapter implementations behind the job
// capability interface. Adapters are selected at construction time by the
// config kind; the pipeline core never inspects which one it got.
package platform

import (
	"fmt"
	"time"

	"github.com/driftlock/drover/internal/job"
	"github.com/driftlock/drover/internal/model"
)

// New builds the adapter selected by cfg.Kind.
func New(cfg model.Platform, timeout time.Duration) (job.Adapter, error) {
	switch cfg.Kind {
	case model.PlatformHTTPAPI:
		return NewHTTPAPI(cfg, timeout)
	case model.PlatformSim:
		return NewSim(), nil
	default:
		return nil, fmt.Errorf("unknown platform kind %q", cfg.Kind)
	}
}
