// Package remoteexecutor runs operations on a servant. Every call publishes
// the function as a zygote (once per identity), moves the arguments through
// freshly created channels, executes and waits, then reads the result back
// from the output slot.
package remoteexecutor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vk/lazyflow/internal/cache"
	"github.com/vk/lazyflow/internal/ctxlog"
	"github.com/vk/lazyflow/internal/envexplorer"
	"github.com/vk/lazyflow/internal/errs"
	"github.com/vk/lazyflow/internal/executor"
	"github.com/vk/lazyflow/internal/op"
	"github.com/vk/lazyflow/internal/servant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("lazyflow.remote")

// ChannelPrefix starts the name of every channel this executor creates.
const ChannelPrefix = "lzy-"

// Executor dispatches operations to one servant.
type Executor struct {
	client   *servant.Client
	manifest *envexplorer.Manifest
	timeout  time.Duration

	mu        sync.Mutex
	published map[string]bool
	channels  []string
}

var (
	_ executor.Executor = (*Executor)(nil)
	_ executor.Releaser = (*Executor)(nil)
)

// Option configures an Executor.
type Option func(*Executor)

// WithManifest attaches an environment manifest to every published zygote.
func WithManifest(m *envexplorer.Manifest) Option {
	return func(e *Executor) { e.manifest = m }
}

// WithTimeout bounds each remote execution. Zero means no limit.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) { e.timeout = d }
}

// New creates an executor that talks to the servant through client.
func New(client *servant.Client, opts ...Option) *Executor {
	e := &Executor{client: client, published: make(map[string]bool)}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Executor) Execute(ctx context.Context, o *op.Operation, args []any) (out any, err error) {
	fn := o.Func()
	ctx, span := tracer.Start(ctx, "remote.execute", trace.WithAttributes(
		attribute.String("op.id", o.ID()),
		attribute.String("zygote", fn.Identity()),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	logger := ctxlog.FromContext(ctx)

	z := e.zygote(o)
	if err := e.publish(ctx, z); err != nil {
		return nil, err
	}

	base := "/" + o.WorkflowID() + "/" + o.ID()
	bindings := make([]servant.Binding, 0, len(z.Slots))
	for i, arg := range args {
		slot, _ := z.Slot(servant.InputSlot(i))
		path := base + "/" + slot.Name
		ch, err := e.bind(ctx, path, slot)
		if err != nil {
			return nil, err
		}
		b, err := cache.Encode(arg)
		if err != nil {
			return nil, fmt.Errorf("encoding argument %d of %s: %w", i, o.ID(), err)
		}
		if err := os.WriteFile(e.client.Path(path), b, 0o644); err != nil {
			return nil, fmt.Errorf("writing argument %d of %s: %w", i, o.ID(), err)
		}
		bindings = append(bindings, servant.Binding{Slot: slot.Name, Channel: ch})
	}

	outPath := base + "/" + servant.OutputSlot
	if slot, ok := z.Slot(servant.OutputSlot); ok {
		ch, err := e.bind(ctx, outPath, slot)
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, servant.Binding{Slot: slot.Name, Channel: ch})
	}

	res, err := e.run(ctx, z.Name, bindings)
	if err != nil {
		return nil, err
	}
	if res.Stdout != "" {
		_, _ = fmt.Fprint(op.Stdout(ctx), res.Stdout)
	}
	if !res.Succeeded() {
		logger.Debug("Remote execution failed.", "exit_code", res.ExitCode)
		return nil, &errs.MaterializationError{
			Operation: o.ID(),
			Stderr:    res.Stderr,
			Err:       fmt.Errorf("remote execution exited with code %d", res.ExitCode),
		}
	}

	if o.OutputType() == nil {
		return nil, nil
	}
	b, err := os.ReadFile(e.client.Path(outPath))
	if err != nil {
		return nil, fmt.Errorf("reading result of %s: %w", o.ID(), err)
	}
	return cache.Decode(b, decodeType(o.OutputType()))
}

func (e *Executor) run(ctx context.Context, zygote string, bindings []servant.Binding) (servant.ExecutionResult, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	exec := e.client.NewExecution(zygote, bindings)
	if err := exec.Start(ctx); err != nil {
		return servant.ExecutionResult{}, err
	}
	return exec.Wait(ctx)
}

func (e *Executor) zygote(o *op.Operation) servant.Zygote {
	fn := o.Func()
	types := o.InputTypes()
	if len(types) == 0 {
		types = fn.Params()
	}
	z := servant.Zygote{Name: fn.Identity(), Env: e.manifest}
	for i, t := range fn.Params() {
		if i < len(types) && types[i] != nil {
			t = types[i]
		}
		z.Slots = append(z.Slots, servant.Slot{Name: servant.InputSlot(i), Direction: servant.Input, Type: servant.TypeDescriptor(t)})
	}
	if out := o.OutputType(); out != nil {
		z.Slots = append(z.Slots, servant.Slot{Name: servant.OutputSlot, Direction: servant.Output, Type: servant.TypeDescriptor(out)})
	}
	return z
}

func (e *Executor) publish(ctx context.Context, z servant.Zygote) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.published[z.Name] {
		return nil
	}
	if err := e.client.Publish(ctx, z); err != nil {
		return err
	}
	e.published[z.Name] = true
	ctxlog.FromContext(ctx).Debug("Zygote published.", "zygote", z.Name)
	return nil
}

// bind creates a channel and touches slot at path on it.
func (e *Executor) bind(ctx context.Context, path string, slot servant.Slot) (string, error) {
	name := ChannelPrefix + uuid.NewString()
	if _, err := e.client.CreateChannel(ctx, name); err != nil {
		return "", err
	}
	e.mu.Lock()
	e.channels = append(e.channels, name)
	e.mu.Unlock()
	if err := e.client.TouchSlot(ctx, path, slot, name); err != nil {
		return "", err
	}
	return name, nil
}

// Release destroys every channel created so far.
func (e *Executor) Release(ctx context.Context) error {
	e.mu.Lock()
	channels := e.channels
	e.channels = nil
	e.mu.Unlock()

	var errList []error
	for _, ch := range channels {
		if err := e.client.DestroyChannel(ctx, ch); err != nil {
			errList = append(errList, err)
		}
	}
	if len(channels) > 0 {
		ctxlog.FromContext(ctx).Debug("Remote channels released.", "channels", len(channels), "failed", len(errList))
	}
	return errors.Join(errList...)
}

func decodeType(t reflect.Type) reflect.Type {
	if t.Kind() == reflect.Interface {
		return nil
	}
	return t
}
