// Package localsession provides a session.Factory for local, in-process
// execution.
package localsession

import (
	"context"

	"github.com/vk/lazyflow/internal/cache"
	"github.com/vk/lazyflow/internal/ctxlog"
	"github.com/vk/lazyflow/internal/inmemorystore"
	"github.com/vk/lazyflow/internal/localexecutor"
	"github.com/vk/lazyflow/internal/session"
	"github.com/vk/lazyflow/internal/workflow"
)

// Factory implements session.Factory for local runs.
type Factory struct {
	store   cache.Store
	workers int
	closer  func() error
}

var _ session.Factory = (*Factory)(nil)

// Option configures a Factory.
type Option func(*Factory)

// WithStore replaces the default in-memory result cache. If the store has a
// Close method, Factory.Close calls it.
func WithStore(s cache.Store) Option {
	return func(f *Factory) {
		f.store = s
		if c, ok := s.(interface{ Close() error }); ok {
			f.closer = c.Close
		}
	}
}

// WithWorkers sets the default worker count of created workflows.
func WithWorkers(n int) Option {
	return func(f *Factory) { f.workers = n }
}

// New creates a local factory. Workflows share one result cache.
func New(opts ...Option) *Factory {
	f := &Factory{store: inmemorystore.New(), workers: 1}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// NewWorkflow creates and configures a new local workflow. Options passed
// here override the factory defaults.
func (f *Factory) NewWorkflow(ctx context.Context, opts ...workflow.Option) (*workflow.Workflow, error) {
	ctxlog.FromContext(ctx).Debug("localsession.Factory.NewWorkflow called")

	// --- This is where the dependency injection wiring happens ---
	base := []workflow.Option{
		workflow.WithExecutor(localexecutor.New(), workflow.TargetLocal),
		workflow.WithCache(f.store),
		workflow.WithWorkers(f.workers),
	}
	return workflow.New(append(base, opts...)...), nil
}

// Close closes the result store when it owns one.
func (f *Factory) Close(ctx context.Context) error {
	ctxlog.FromContext(ctx).Debug("localsession.Factory.Close called")
	if f.closer != nil {
		return f.closer()
	}
	return nil
}
