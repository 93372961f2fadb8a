package scheduler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/lazyflow/internal/graph"
	"github.com/vk/lazyflow/internal/op"
)

var double = op.MustDefine("double", func(x int) int { return 2 * x })

func buildGraph(t *testing.T) (*graph.Manager, []*op.Operation) {
	t.Helper()
	ctx := context.Background()
	g := graph.New()

	a := op.New("double#1", double, []any{1}, nil, "wf", nil)
	b := op.New("double#2", double, []any{2}, nil, "wf", nil)
	c := op.New("double#3", double, []any{op.Bind(a)}, nil, "wf", nil)
	require.NoError(t, g.AddOperation(ctx, a))
	require.NoError(t, g.AddOperation(ctx, b))
	require.NoError(t, g.AddOperation(ctx, c, a.ID()))
	return g, []*op.Operation{a, b, c}
}

func collect(t *testing.T, s Scheduler, ctx context.Context) [][]*op.Operation {
	t.Helper()
	ch, err := s.Waves(ctx)
	require.NoError(t, err)
	var out [][]*op.Operation
	for w := range ch {
		out = append(out, w)
	}
	return out
}

func TestSequential(t *testing.T) {
	g, ops := buildGraph(t)
	s := New(g, 1)
	require.IsType(t, &Sequential{}, s)

	waves := collect(t, s, context.Background())
	assert.Equal(t, [][]*op.Operation{{ops[0]}, {ops[1]}, {ops[2]}}, waves)
}

func TestLayered(t *testing.T) {
	g, ops := buildGraph(t)
	s := New(g, 4)
	require.IsType(t, &Layered{}, s)

	waves := collect(t, s, context.Background())
	assert.Equal(t, [][]*op.Operation{{ops[0], ops[1]}, {ops[2]}}, waves)
}

func TestWaves_StopOnCancel(t *testing.T) {
	g, _ := buildGraph(t)
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := New(g, 1).Waves(ctx)
	require.NoError(t, err)
	<-ch
	cancel()

	// The channel is closed once the producer observes the cancellation.
	for range ch {
	}
}
