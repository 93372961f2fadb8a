// Package localexecutor provides a concrete, in-process implementation of the
// executor.Executor interface.
package localexecutor

import (
	"context"

	"github.com/vk/lazyflow/internal/ctxlog"
	"github.com/vk/lazyflow/internal/executor"
	"github.com/vk/lazyflow/internal/op"
)

// Executor calls the marked function directly in the current process.
type Executor struct{}

var _ executor.Executor = (*Executor)(nil)

// New creates a new local executor.
func New() *Executor {
	return &Executor{}
}

func (e *Executor) Execute(ctx context.Context, o *op.Operation, args []any) (any, error) {
	logger := ctxlog.FromContext(ctx).With("op", o.ID())
	logger.Debug("Invoking operation in-process.")
	out, err := o.Func().Invoke(ctx, args)
	if err != nil {
		logger.Debug("Operation returned an error.", "error", err)
		return nil, err
	}
	return out, nil
}
