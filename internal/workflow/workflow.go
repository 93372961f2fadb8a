package workflow

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/vk/lazyflow/internal/cache"
	"github.com/vk/lazyflow/internal/ctxlog"
	"github.com/vk/lazyflow/internal/errs"
	"github.com/vk/lazyflow/internal/executor"
	"github.com/vk/lazyflow/internal/graph"
	"github.com/vk/lazyflow/internal/localexecutor"
	"github.com/vk/lazyflow/internal/metrics"
	"github.com/vk/lazyflow/internal/op"
	"github.com/vk/lazyflow/internal/whiteboard"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("lazyflow.workflow")

// State is the lifecycle state of a workflow.
type State int32

const (
	Created State = iota
	Entered
	Closed
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Entered:
		return "entered"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

type activeKey struct{}

// Workflow records deferred operations and runs them on Close.
type Workflow struct {
	id      string
	name    string
	eager   bool
	target  string
	workers int

	exec   executor.Executor
	store  cache.Store
	wb     *whiteboard.Whiteboard
	graph  *graph.Manager
	optErr error

	seq       atomic.Int64
	abandoned atomic.Bool

	mu    sync.Mutex
	state State
}

// New creates a workflow in the Created state. Without WithExecutor the
// operations run in-process.
func New(opts ...Option) *Workflow {
	w := &Workflow{
		id:      uuid.NewString(),
		workers: 1,
		graph:   graph.New(),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.exec == nil {
		w.exec = localexecutor.New()
		w.target = TargetLocal
	}
	if w.name == "" {
		w.name = w.id[:8]
	}
	return w
}

func (w *Workflow) ID() string                         { return w.id }
func (w *Workflow) Name() string                       { return w.name }
func (w *Workflow) Eager() bool                        { return w.eager }
func (w *Workflow) Target() string                     { return w.target }
func (w *Workflow) Whiteboard() *whiteboard.Whiteboard { return w.wb }

// State returns the current lifecycle state.
func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// FromContext returns the workflow that is active for ctx, if any.
func FromContext(ctx context.Context) (*Workflow, bool) {
	w, ok := ctx.Value(activeKey{}).(*Workflow)
	if !ok || w.State() != Entered {
		return nil, false
	}
	return w, true
}

// Enter activates the workflow and returns the context that routes calls to
// it. A context may carry at most one active workflow.
func (w *Workflow) Enter(ctx context.Context) (context.Context, error) {
	if w.optErr != nil {
		return ctx, w.optErr
	}
	if active, ok := FromContext(ctx); ok {
		return ctx, errs.Usage("workflow %s is already active; nested workflows are not supported", active.name)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != Created {
		return ctx, errs.Usage("cannot enter workflow %s: it is %s", w.name, w.state)
	}
	if w.wb != nil {
		if err := w.wb.Activate(); err != nil {
			return ctx, err
		}
	}
	w.state = Entered

	ctx = context.WithValue(ctx, activeKey{}, w)
	ctx = ctxlog.With(ctx, "workflow", w.name)
	ctxlog.FromContext(ctx).Debug("Workflow entered.", "id", w.id, "eager", w.eager, "target", w.target)
	return ctx, nil
}

// Register records a call of fn. It is only legal while the workflow is
// entered. In eager mode the operation is materialized before returning.
func (w *Workflow) Register(ctx context.Context, fn *op.Func, args []any, inputTypes []reflect.Type) (*op.Deferred, error) {
	w.mu.Lock()
	if w.state != Entered {
		state := w.state
		w.mu.Unlock()
		return nil, errs.Usage("cannot register %s: workflow %s is %s", fn.Name(), w.name, state)
	}

	var deps []string
	for i, a := range args {
		l, ok := a.(op.Lazy)
		if !ok || l.Deferred() == nil || l.Deferred().Operation() == nil {
			continue
		}
		dep := l.Deferred().Operation()
		if dep.WorkflowID() == w.id {
			deps = append(deps, dep.ID())
			continue
		}
		if dep.State() == op.Pending {
			w.mu.Unlock()
			return nil, errs.Usage("argument %d of %s is a pending result of another workflow", i, fn.Name())
		}
	}

	id := fmt.Sprintf("%s#%d", fn.Name(), w.seq.Add(1))
	o := op.New(id, fn, args, inputTypes, w.id, w)
	if err := w.graph.AddOperation(ctx, o, deps...); err != nil {
		w.mu.Unlock()
		return nil, err
	}
	w.mu.Unlock()

	d := op.Bind(o)
	if w.eager {
		if _, err := o.Materialize(ctx); err != nil {
			return d, err
		}
	}
	return d, nil
}

// Operations returns every recorded operation in registration order.
func (w *Workflow) Operations() []*op.Operation {
	return w.graph.AllOperations(context.Background())
}

// Describe renders the recorded operations, one per line.
func (w *Workflow) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "workflow %s (%s, %s)\n", w.name, w.State(), w.target)
	for _, o := range w.Operations() {
		fmt.Fprintf(&b, "  %s\n", o)
	}
	return b.String()
}

// Close runs the workflow. It fails with a usage error when nothing was
// registered or when called twice. The whiteboard stops accepting writes as
// soon as Close starts. On failure the remaining operations are
// abandoned and the whiteboard is frozen without being committed. Executor
// resources are released in every case.
func (w *Workflow) Close(ctx context.Context) (err error) {
	w.mu.Lock()
	switch w.state {
	case Created:
		w.mu.Unlock()
		return errs.Usage("workflow %s was never entered", w.name)
	case Closed:
		w.mu.Unlock()
		return errs.Usage("workflow %s is already closed", w.name)
	}
	w.state = Closed
	if w.wb != nil {
		w.wb.Seal()
	}
	w.mu.Unlock()

	if ctx.Value(activeKey{}) != w {
		ctx = ctxlog.With(ctx, "workflow", w.name)
	}
	logger := ctxlog.FromContext(ctx)

	ctx, span := tracer.Start(ctx, "workflow.run", trace.WithAttributes(
		attribute.String("workflow.id", w.id),
		attribute.String("workflow.target", w.target),
		attribute.Int("workflow.operations", w.graph.Len()),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			metrics.WorkflowRuns.WithLabelValues(metrics.OutcomeFailed).Inc()
		} else {
			metrics.WorkflowRuns.WithLabelValues(metrics.OutcomeSucceeded).Inc()
		}
		span.End()
	}()

	defer func() {
		if w.wb != nil {
			w.wb.Freeze()
		}
		if rel, ok := w.exec.(executor.Releaser); ok {
			if relErr := rel.Release(ctx); relErr != nil {
				logger.Warn("Releasing executor resources failed.", "error", relErr)
				err = errors.Join(err, relErr)
			}
		}
	}()

	if w.graph.Len() == 0 {
		return errs.Usage("workflow %s has no registered operations", w.name)
	}

	logger.Info("Running workflow.", "operations", w.graph.Len(), "workers", w.workers)
	if err := w.run(ctx); err != nil {
		w.abandoned.Store(true)
		logger.Error("Workflow failed.", "error", err)
		return err
	}

	if w.wb != nil {
		if err := w.wb.Commit(ctx); err != nil {
			return err
		}
		logger.Debug("Whiteboard committed.", "fields", len(w.wb.Fields()))
	}
	logger.Info("Workflow finished.")
	return nil
}

// Materialize implements op.Materializer.
func (w *Workflow) Materialize(ctx context.Context, o *op.Operation) (out any, err error) {
	if w.abandoned.Load() {
		return nil, errs.Usage("operation %s was abandoned after workflow %s failed", o.ID(), w.name)
	}

	ctx = ctxlog.With(ctx, "op", o.ID())
	logger := ctxlog.FromContext(ctx)
	ctx, span := tracer.Start(ctx, "workflow.materialize", trace.WithAttributes(
		attribute.String("op.id", o.ID()),
		attribute.String("op.func", o.Func().Identity()),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	args, err := op.Resolve(ctx, o.Args())
	if err != nil {
		return nil, err
	}

	fn := o.Func()
	var key string
	if fn.Cacheable() && w.store != nil {
		if out, key, err = w.lookup(ctx, o, args); err == nil && key == "" {
			span.SetAttributes(attribute.Bool("op.cache_hit", true))
			metrics.Operations.WithLabelValues(metrics.OutcomeCached, w.target).Inc()
			return out, nil
		}
	}

	timer := metrics.OperationDuration.WithLabelValues(w.target)
	logger.Debug("Executing operation.", "target", w.target)
	start := time.Now()
	out, err = w.exec.Execute(ctx, o, args)
	timer.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.Operations.WithLabelValues(metrics.OutcomeFailed, w.target).Inc()
		var me *errs.MaterializationError
		if errors.As(err, &me) && me.Operation == o.ID() {
			return nil, err
		}
		return nil, &errs.MaterializationError{Operation: o.ID(), Err: err}
	}
	metrics.Operations.WithLabelValues(metrics.OutcomeComputed, w.target).Inc()

	if key != "" {
		w.remember(ctx, key, out)
	}
	logger.Debug("Operation materialized.")
	return out, nil
}

// lookup consults the cache. On a hit it returns the value and an empty key;
// on a miss it returns the key to store the result under. A non-nil error
// means the call cannot be cached at all.
func (w *Workflow) lookup(ctx context.Context, o *op.Operation, args []any) (any, string, error) {
	logger := ctxlog.FromContext(ctx)
	fn := o.Func()

	key, err := cache.Fingerprint(fn.Name(), fn.Version(), args)
	if err != nil {
		logger.Warn("Arguments cannot be fingerprinted; caching disabled for this call.", "error", err)
		return nil, "", err
	}

	b, ok, err := w.store.Get(ctx, key)
	if err != nil {
		logger.Warn("Result cache lookup failed.", "error", err)
		metrics.CacheLookups.WithLabelValues("error").Inc()
		return nil, key, nil
	}
	if !ok {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil, key, nil
	}

	v, err := cache.Decode(b, o.OutputType())
	if err != nil {
		logger.Warn("Cached result cannot be decoded; recomputing.", "error", err)
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil, key, nil
	}
	metrics.CacheLookups.WithLabelValues("hit").Inc()
	logger.Debug("Result cache hit.", "key", key)
	return v, "", nil
}

func (w *Workflow) remember(ctx context.Context, key string, out any) {
	logger := ctxlog.FromContext(ctx)
	b, err := cache.Encode(out)
	if err != nil {
		logger.Warn("Result cannot be encoded for the cache.", "error", err)
		return
	}
	if err := w.store.Put(ctx, key, b); err != nil {
		logger.Warn("Storing result in the cache failed.", "error", err)
	}
}
