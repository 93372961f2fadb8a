// Package executor defines how a single operation is carried out once its
// arguments are resolved. The workflow owns ordering, caching and failure
// escalation; an Executor only runs one call.
package executor

import (
	"context"

	"github.com/vk/lazyflow/internal/op"
)

// Executor runs one operation with already resolved arguments.
type Executor interface {
	Execute(ctx context.Context, o *op.Operation, args []any) (any, error)
}

// Releaser is implemented by executors that hold resources across calls,
// such as remote channels. The workflow calls Release when it closes.
type Releaser interface {
	Release(ctx context.Context) error
}

// Func adapts a function to the Executor interface.
type Func func(ctx context.Context, o *op.Operation, args []any) (any, error)

func (f Func) Execute(ctx context.Context, o *op.Operation, args []any) (any, error) {
	return f(ctx, o, args)
}
