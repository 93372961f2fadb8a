package workflow

import (
	"context"

	"github.com/vk/lazyflow/internal/ctxlog"
	"github.com/vk/lazyflow/internal/scheduler"
	"golang.org/x/sync/errgroup"
)

// run materializes every recorded operation, wave by wave, and stops at the
// first failure.
func (w *Workflow) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	waves, err := scheduler.New(w.graph, w.workers).Waves(ctx)
	if err != nil {
		return err
	}

	logger := ctxlog.FromContext(ctx)
	for wave := range waves {
		if len(wave) == 1 {
			if _, err := wave[0].Materialize(ctx); err != nil {
				return err
			}
			continue
		}

		logger.Debug("Running wave concurrently.", "size", len(wave))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(w.workers)
		for _, o := range wave {
			g.Go(func() error {
				_, err := o.Materialize(gctx)
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
	return ctx.Err()
}
