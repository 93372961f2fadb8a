// Package remotesession provides a session.Factory whose workflows execute
// their operations on a servant.
package remotesession

import (
	"context"
	"errors"
	"time"

	"github.com/vk/lazyflow/internal/cache"
	"github.com/vk/lazyflow/internal/ctxlog"
	"github.com/vk/lazyflow/internal/envexplorer"
	"github.com/vk/lazyflow/internal/inmemorystore"
	"github.com/vk/lazyflow/internal/remoteexecutor"
	"github.com/vk/lazyflow/internal/servant"
	"github.com/vk/lazyflow/internal/session"
	"github.com/vk/lazyflow/internal/workflow"
)

// Factory implements session.Factory for remote runs. All workflows share the
// servant client and the result cache; each gets its own executor so that its
// channels are released when it closes.
type Factory struct {
	client   *servant.Client
	manifest *envexplorer.Manifest
	timeout  time.Duration
	store    cache.Store
	workers  int
	closers  []func(ctx context.Context) error
}

var _ session.Factory = (*Factory)(nil)

// Option configures a Factory.
type Option func(*Factory)

// WithManifest attaches an environment manifest to published zygotes.
func WithManifest(m *envexplorer.Manifest) Option {
	return func(f *Factory) { f.manifest = m }
}

// WithTimeout bounds every remote execution.
func WithTimeout(d time.Duration) Option {
	return func(f *Factory) { f.timeout = d }
}

// WithStore replaces the default in-memory result cache.
func WithStore(s cache.Store) Option {
	return func(f *Factory) {
		f.store = s
		if c, ok := s.(interface{ Close() error }); ok {
			f.closers = append(f.closers, func(context.Context) error { return c.Close() })
		}
	}
}

// WithWorkers sets the default worker count of created workflows.
func WithWorkers(n int) Option {
	return func(f *Factory) { f.workers = n }
}

// WithCloser registers a function run by Close, typically closing the
// transport behind the client.
func WithCloser(fn func(ctx context.Context) error) Option {
	return func(f *Factory) { f.closers = append(f.closers, fn) }
}

// New creates a remote factory around client.
func New(client *servant.Client, opts ...Option) *Factory {
	f := &Factory{client: client, store: inmemorystore.New(), workers: 1}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// NewWorkflow creates a workflow targeting the servant.
func (f *Factory) NewWorkflow(ctx context.Context, opts ...workflow.Option) (*workflow.Workflow, error) {
	ctxlog.FromContext(ctx).Debug("remotesession.Factory.NewWorkflow called", "mount", f.client.Mount())

	// --- This is where the dependency injection wiring happens ---
	exec := remoteexecutor.New(f.client,
		remoteexecutor.WithManifest(f.manifest),
		remoteexecutor.WithTimeout(f.timeout),
	)
	base := []workflow.Option{
		workflow.WithExecutor(exec, workflow.TargetRemote),
		workflow.WithCache(f.store),
		workflow.WithWorkers(f.workers),
	}
	return workflow.New(append(base, opts...)...), nil
}

// Close runs the registered closers.
func (f *Factory) Close(ctx context.Context) error {
	ctxlog.FromContext(ctx).Debug("remotesession.Factory.Close called")
	var errList []error
	for _, c := range f.closers {
		if err := c(ctx); err != nil {
			errList = append(errList, err)
		}
	}
	return errors.Join(errList...)
}
