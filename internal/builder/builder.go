// Package builder turns calls of marked functions into graph operations.
//
// Call inspects the effective argument types (a deferred argument contributes
// the output type of the operation that produces it, without forcing it),
// validates them against the function signature, and then either records an
// operation in the workflow active for ctx or, when there is none, invokes
// the function right away.
package builder

import (
	"context"
	"reflect"

	"github.com/vk/lazyflow/internal/ctxlog"
	"github.com/vk/lazyflow/internal/errs"
	"github.com/vk/lazyflow/internal/op"
	"github.com/vk/lazyflow/internal/workflow"
)

// Call records or executes one call of f.
//
// Inside an active workflow the result is a pending Deferred bound to a new
// operation. Outside any workflow, deferred arguments are forced, f runs
// immediately and the result is a resolved Deferred; the returned error is
// the call's own error.
func Call(ctx context.Context, f *op.Func, args ...any) (*op.Deferred, error) {
	if err := op.CheckArgs(args); err != nil {
		return nil, err
	}
	argTypes := make([]reflect.Type, len(args))
	for i, a := range args {
		argTypes[i] = op.TypeOf(a)
	}
	inputTypes, err := f.ResolveInputTypes(argTypes)
	if err != nil {
		return nil, err
	}

	w, ok := workflow.FromContext(ctx)
	if !ok {
		ctxlog.FromContext(ctx).Debug("No active workflow; calling directly.", "func", f.Name())
		resolved, err := op.Resolve(ctx, args)
		if err != nil {
			return op.Resolved(nil, f.OutputType(), err), err
		}
		out, err := f.Invoke(ctx, resolved)
		return op.Resolved(out, f.OutputType(), err), err
	}

	return w.Register(ctx, f, args, inputTypes)
}

// CallT is Call with a statically typed result handle. The output type of f
// must be assignable to T.
func CallT[T any](ctx context.Context, f *op.Func, args ...any) (op.Value[T], error) {
	want := reflect.TypeOf((*T)(nil)).Elem()
	if out := f.OutputType(); out != nil && !out.AssignableTo(want) {
		return op.Value[T]{}, errs.Usage("%s returns %s, not %s", f.Name(), out, want)
	}
	d, err := Call(ctx, f, args...)
	if d == nil {
		return op.Value[T]{}, err
	}
	return op.Typed[T](d), err
}
