package scheduler

import (
	"context"

	"github.com/vk/lazyflow/internal/ctxlog"
	"github.com/vk/lazyflow/internal/graph"
	"github.com/vk/lazyflow/internal/op"
)

// Scheduler streams ready waves of operations.
type Scheduler interface {
	// Waves returns a channel that yields waves until every operation was
	// emitted or ctx is done. The channel is closed by the scheduler.
	Waves(ctx context.Context) (<-chan []*op.Operation, error)
}

// New returns the Sequential scheduler for one worker, Layered otherwise.
func New(g graph.Graph, workers int) Scheduler {
	if workers > 1 {
		return &Layered{graph: g}
	}
	return &Sequential{graph: g}
}

// Sequential emits operations one by one in registration order.
type Sequential struct {
	graph graph.Graph
}

func (s *Sequential) Waves(ctx context.Context) (<-chan []*op.Operation, error) {
	ops := s.graph.AllOperations(ctx)
	waves := make([][]*op.Operation, len(ops))
	for i, o := range ops {
		waves[i] = []*op.Operation{o}
	}
	return stream(ctx, waves), nil
}

// Layered emits dependency layers.
type Layered struct {
	graph graph.Graph
}

func (s *Layered) Waves(ctx context.Context) (<-chan []*op.Operation, error) {
	waves, err := s.graph.Waves(ctx)
	if err != nil {
		return nil, err
	}
	ctxlog.FromContext(ctx).Debug("Planned concurrent waves.", "waves", len(waves), "operations", s.graph.Len())
	return stream(ctx, waves), nil
}

func stream(ctx context.Context, waves [][]*op.Operation) <-chan []*op.Operation {
	ch := make(chan []*op.Operation)
	go func() {
		defer close(ch)
		for _, w := range waves {
			select {
			case ch <- w:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}
