package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	gocron "github.com/go-co-op/gocron/v2"

	"github.com/driftlock/drover/internal/model"
)

// RunEvery executes fn on a 5-field cron schedule until ctx is canceled.
// Timer mode for recurring runs; the one-shot path never comes here.
func RunEvery(ctx context.Context, spec string, fn func(context.Context)) error {
	if err := model.ValidateSchedule(spec); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("creating scheduler: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.CronJob(spec, false),
		gocron.NewTask(func() { fn(ctx) }),
		// a run still in flight is never doubled up
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("scheduling run: %w", err)
	}

	scheduler.Start()
	slog.InfoContext(ctx, "timer mode: waiting for schedule", "schedule", spec)

	<-ctx.Done()
	if err := scheduler.Shutdown(); err != nil {
		return fmt.Errorf("shutting down scheduler: %w", err)
	}
	return nil
}
