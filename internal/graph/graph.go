package graph

import (
	"context"
	"fmt"
	"sync"

	"github.com/vk/lazyflow/internal/ctxlog"
	"github.com/vk/lazyflow/internal/dag"
	"github.com/vk/lazyflow/internal/op"
)

// Manager is the reference Graph implementation.
type Manager struct {
	topology   *dag.Graph
	operations sync.Map // Key: operation ID, Value: *op.Operation
	mu         sync.Mutex
}

// New creates an empty graph.
func New() *Manager {
	return &Manager{topology: dag.New()}
}

func (m *Manager) AddOperation(ctx context.Context, o *op.Operation, dependsOn ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.topology.Has(o.ID()) {
		return fmt.Errorf("operation %s already recorded", o.ID())
	}
	for _, dep := range dependsOn {
		if !m.topology.Has(dep) {
			return fmt.Errorf("operation %s depends on unknown operation %s", o.ID(), dep)
		}
	}

	m.topology.AddNode(o.ID())
	for _, dep := range dependsOn {
		if err := m.topology.AddEdge(dep, o.ID()); err != nil {
			return fmt.Errorf("linking %s -> %s: %w", dep, o.ID(), err)
		}
	}
	m.operations.Store(o.ID(), o)

	ctxlog.FromContext(ctx).Debug("Operation recorded.", "op", o.ID(), "deps", len(dependsOn))
	return nil
}

func (m *Manager) Operation(ctx context.Context, id string) (*op.Operation, bool) {
	v, ok := m.operations.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*op.Operation), true
}

func (m *Manager) DependenciesOf(ctx context.Context, id string) ([]*op.Operation, error) {
	ids, err := m.topology.Dependencies(id)
	if err != nil {
		return nil, err
	}
	return m.lookup(ctx, ids)
}

func (m *Manager) AllOperations(ctx context.Context) []*op.Operation {
	ops, _ := m.lookup(ctx, m.topology.Nodes())
	return ops
}

func (m *Manager) Waves(ctx context.Context) ([][]*op.Operation, error) {
	layers, err := m.topology.Layers()
	if err != nil {
		return nil, err
	}
	waves := make([][]*op.Operation, 0, len(layers))
	for _, layer := range layers {
		ops, err := m.lookup(ctx, layer)
		if err != nil {
			return nil, err
		}
		waves = append(waves, ops)
	}
	return waves, nil
}

func (m *Manager) Len() int {
	return m.topology.Len()
}

func (m *Manager) lookup(ctx context.Context, ids []string) ([]*op.Operation, error) {
	ops := make([]*op.Operation, 0, len(ids))
	for _, id := range ids {
		o, ok := m.Operation(ctx, id)
		if !ok {
			return nil, fmt.Errorf("operation %s missing from store", id)
		}
		ops = append(ops, o)
	}
	return ops, nil
}
