// Package lazyflow records calls of marked Go functions as a graph of
// deferred operations and runs them when the enclosing workflow closes,
// either in-process or on a remote servant.
//
//	square := lazyflow.MustDefine("square", func(x int) int { return x * x })
//
//	wf := lazyflow.NewWorkflow()
//	ctx, _ := wf.Enter(ctx)
//	v, _ := lazyflow.CallT[int](ctx, square, 7)
//	_ = wf.Close(ctx)
//	n, _ := v.Force(ctx) // 49
//
// Outside an active workflow a call runs immediately.
//
// Remote returns a factory whose workflows run on a servant started with
// "lazyflow serve". Functions must be registered on the servant under the
// same identity:
//
//	cfg := lazyflow.DefaultConfig()
//	cfg.Server = "http://servant:8899"
//	f, err := lazyflow.Remote(ctx, cfg)
//	defer f.Close(ctx)
//	err = lazyflow.Run(ctx, f, func(ctx context.Context) error { ... })
package lazyflow

import (
	"context"
	"io"
	"os"

	"github.com/vk/lazyflow/internal/app"
	"github.com/vk/lazyflow/internal/builder"
	"github.com/vk/lazyflow/internal/config"
	"github.com/vk/lazyflow/internal/localsession"
	"github.com/vk/lazyflow/internal/op"
	"github.com/vk/lazyflow/internal/session"
	"github.com/vk/lazyflow/internal/workflow"
)

type (
	// Func is a function marked for deferred execution.
	Func = op.Func
	// FuncOption configures Define.
	FuncOption = op.FuncOption
	// Deferred is the untyped handle of a future result.
	Deferred = op.Deferred
	// Lazy is implemented by every deferred handle.
	Lazy = op.Lazy
	// Workflow collects operations and runs them on Close.
	Workflow = workflow.Workflow
	// Option configures a Workflow.
	Option = workflow.Option
	// Factory creates workflows for one execution backend.
	Factory = session.Factory
	// Config holds servant, transport, cache and logging settings.
	Config = config.Config
)

// Value is the typed handle of a future result.
type Value[T any] = op.Value[T]

var (
	Define         = op.Define
	MustDefine     = op.MustDefine
	WithVersion    = op.WithVersion
	WithCache      = op.WithCache
	WithInputTypes = op.WithInputTypes
	WithOutputType = op.WithOutputType

	WithName       = workflow.WithName
	WithEager      = workflow.WithEager
	WithWorkers    = workflow.WithWorkers
	WithWhiteboard = workflow.WithWhiteboard
	WithStore      = workflow.WithCache

	// Stdout is where marked functions should print.
	Stdout = op.Stdout

	// DefaultConfig returns the built-in settings.
	DefaultConfig = config.Default
)

// LogOutput is where factories built from a Config write their logs.
var LogOutput io.Writer = os.Stderr

// NewWorkflow creates a workflow that runs its operations in-process.
func NewWorkflow(opts ...Option) *Workflow {
	return workflow.New(opts...)
}

// Active returns the workflow entered in ctx.
func Active(ctx context.Context) (*Workflow, bool) {
	return workflow.FromContext(ctx)
}

// Call records f(args...) in the workflow active for ctx, or runs it now when
// there is none.
func Call(ctx context.Context, f *Func, args ...any) (*Deferred, error) {
	return builder.Call(ctx, f, args...)
}

// CallT is Call with a typed result.
func CallT[T any](ctx context.Context, f *Func, args ...any) (Value[T], error) {
	return builder.CallT[T](ctx, f, args...)
}

// Get forces l and converts the result to T.
func Get[T any](ctx context.Context, l Lazy) (T, error) {
	return op.Get[T](ctx, l)
}

// Local returns a factory for in-process workflows sharing one result cache.
func Local(opts ...localsession.Option) Factory {
	return localsession.New(opts...)
}

// Remote returns a factory for workflows that run on the servant described by
// cfg, reached over cfg.Transport. Close the factory to drop the connection.
func Remote(ctx context.Context, cfg *Config) (Factory, error) {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return a.RemoteSession(a.Context())
}

// LocalFromConfig returns an in-process factory using the cache and worker
// settings of cfg.
func LocalFromConfig(ctx context.Context, cfg *Config) (Factory, error) {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return a.LocalSession()
}

func newApp(ctx context.Context, cfg *Config) (*app.App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return app.NewApp(ctx, LogOutput, cfg), nil
}

// Run enters a workflow from f, runs body inside it and closes it.
func Run(ctx context.Context, f Factory, body func(ctx context.Context) error, opts ...Option) error {
	return session.Run(ctx, f, body, opts...)
}
