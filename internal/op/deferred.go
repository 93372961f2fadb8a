package op

import (
	"context"
	"reflect"

	"github.com/vk/lazyflow/internal/errs"
)

// Lazy is implemented by every handle that stands for a deferred result.
// Passing a Lazy as an argument never forces it.
type Lazy interface {
	Deferred() *Deferred
}

// Deferred is a placeholder for the result of one operation. A Deferred can
// also be pre-resolved, for calls made outside any workflow.
type Deferred struct {
	op *Operation

	resolved bool
	value    any
	err      error
	typ      reflect.Type
}

// Bind returns the handle for the result of o.
func Bind(o *Operation) *Deferred {
	return &Deferred{op: o, typ: o.OutputType()}
}

// Resolved returns a handle that already holds value (or err).
func Resolved(value any, typ reflect.Type, err error) *Deferred {
	return &Deferred{resolved: true, value: value, err: err, typ: typ}
}

// Deferred implements Lazy.
func (d *Deferred) Deferred() *Deferred { return d }

// Operation returns the producing operation, or nil for a resolved handle.
func (d *Deferred) Operation() *Operation { return d.op }

// Type is the declared output type of the producing operation.
func (d *Deferred) Type() reflect.Type { return d.typ }

// Materialized reports whether forcing would return without computing.
func (d *Deferred) Materialized() bool {
	return d.resolved || d.op.State() != Pending
}

// Force returns the value, computing it on first use. Repeated calls return
// the cached result or replay the captured failure.
func (d *Deferred) Force(ctx context.Context) (any, error) {
	if d.resolved {
		return d.value, d.err
	}
	return d.op.Materialize(ctx)
}

// Value is the statically typed view of a Deferred.
type Value[T any] struct {
	d *Deferred
}

// Typed wraps d in a typed handle.
func Typed[T any](d *Deferred) Value[T] { return Value[T]{d: d} }

// Deferred implements Lazy.
func (v Value[T]) Deferred() *Deferred { return v.d }

// Force materializes the value and converts it to T.
func (v Value[T]) Force(ctx context.Context) (T, error) { return Get[T](ctx, v.d) }

// Get forces l and converts the result to T.
func Get[T any](ctx context.Context, l Lazy) (T, error) {
	var zero T
	v, err := Force(ctx, l)
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, errs.Usage("value of type %T is not a %s", v, reflect.TypeOf((*T)(nil)).Elem())
	}
	return t, nil
}

// Force forces l. An empty handle, such as the zero Value returned next to
// an error, is a usage error.
func Force(ctx context.Context, l Lazy) (any, error) {
	if Empty(l) {
		return nil, errs.Usage("empty deferred value")
	}
	return l.Deferred().Force(ctx)
}

// Empty reports whether l is not bound to any result.
func Empty(l Lazy) bool {
	return l == nil || l.Deferred() == nil
}

// CheckArgs rejects empty deferred handles among args.
func CheckArgs(args []any) error {
	for i, a := range args {
		if l, ok := a.(Lazy); ok && Empty(l) {
			return errs.Usage("argument %d is an empty deferred value", i)
		}
	}
	return nil
}

// TypeOf returns the effective type of an argument: the producing output
// type for a Lazy, the runtime type otherwise, nil for a nil literal or an
// empty handle.
func TypeOf(arg any) reflect.Type {
	if l, ok := arg.(Lazy); ok {
		if Empty(l) {
			return nil
		}
		return l.Deferred().Type()
	}
	return reflect.TypeOf(arg)
}

// Resolve forces every Lazy argument depth-first and returns plain values.
func Resolve(ctx context.Context, args []any) ([]any, error) {
	out := make([]any, len(args))
	for i, a := range args {
		l, ok := a.(Lazy)
		if !ok {
			out[i] = a
			continue
		}
		if Empty(l) {
			return nil, errs.Usage("argument %d is an empty deferred value", i)
		}
		v, err := l.Deferred().Force(ctx)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
