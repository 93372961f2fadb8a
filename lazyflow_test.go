package lazyflow_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/lazyflow"
	"github.com/vk/lazyflow/internal/errs"
)

type report struct {
	Total int
	Label string `whiteboard:"label"`
}

func TestFacade_EndToEnd(t *testing.T) {
	var calls atomic.Int32
	add := lazyflow.MustDefine("add", func(a, b int) int {
		calls.Add(1)
		return a + b
	}, lazyflow.WithCache(true), lazyflow.WithVersion("1"))
	label := lazyflow.MustDefine("label", func(n int) string {
		if n > 10 {
			return "big"
		}
		return "small"
	})

	factory := lazyflow.Local()
	ctx := context.Background()

	for run := 0; run < 2; run++ {
		var rep report
		err := lazyflow.Run(ctx, factory, func(ctx context.Context) error {
			wf, ok := lazyflow.Active(ctx)
			require.True(t, ok)

			sum, err := lazyflow.CallT[int](ctx, add, 5, 7)
			if err != nil {
				return err
			}
			l, err := lazyflow.CallT[string](ctx, label, sum)
			if err != nil {
				return err
			}
			if err := wf.Whiteboard().Set("Total", sum); err != nil {
				return err
			}
			return wf.Whiteboard().Set("label", l)
		}, lazyflow.WithWhiteboard(&rep))
		require.NoError(t, err)
		assert.Equal(t, report{Total: 12, Label: "big"}, rep)
	}
	assert.Equal(t, int32(1), calls.Load(), "second run is served from the cache")
}

func TestFacade_DirectCall(t *testing.T) {
	double := lazyflow.MustDefine("double", func(x int) int { return 2 * x })
	v, err := lazyflow.CallT[int](context.Background(), double, 21)
	require.NoError(t, err)
	n, err := v.Force(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, n)
}

func TestFacade_EmptyWorkflow(t *testing.T) {
	err := lazyflow.Run(context.Background(), lazyflow.Local(), func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, errs.ErrUsage)
}
