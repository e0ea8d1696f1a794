package parallel

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Collect runs fn over items with at most limit concurrent calls and
// returns results and errors in input order. Per-item errors land in the
// errors slice instead of aborting the whole batch; a canceled context
// surfaces as the error of every not-yet-finished item.
func Collect[E, D any](ctx context.Context, limit int, items []E, fn func(context.Context, E) (D, error)) ([]D, []error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	out := make([]D, len(items))
	errs := make([]error, len(items))
	for i, item := range items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			out[i], errs[i] = fn(gctx, item)
			return nil
		})
	}
	_ = g.Wait() // workers never return an error
	return out, errs
}
