package parallel_test

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/driftlock/drover/internal/parallel"
)

func TestCollectKeepsOrder(t *testing.T) {
	t.Parallel()

	items := []int{1, 2, 3, 4, 5}
	out, errs := parallel.Collect(t.Context(), 3, items,
		func(_ context.Context, n int) (string, error) {
			return strconv.Itoa(n * 10), nil
		})

	require.Equal(t, []string{"10", "20", "30", "40", "50"}, out)
	for _, err := range errs {
		require.NoError(t, err)
	}
}

func TestCollectIsolatesErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	out, errs := parallel.Collect(t.Context(), 2, []int{1, 2, 3},
		func(_ context.Context, n int) (int, error) {
			if n == 2 {
				return 0, boom
			}
			return n, nil
		})

	require.Equal(t, 1, out[0])
	require.ErrorIs(t, errs[1], boom)
	require.Equal(t, 3, out[2])
}

func TestCollectHonorsLimit(t *testing.T) {
	t.Parallel()

	var inFlight, peak atomic.Int32
	_, _ = parallel.Collect(t.Context(), 2, make([]int, 16),
		func(context.Context, int) (int, error) {
			n := inFlight.Add(1)
			defer inFlight.Add(-1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			return 0, nil
		})

	require.LessOrEqual(t, peak.Load(), int32(2))
}
