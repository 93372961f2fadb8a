// Package session defines how workflows are created for a given execution
// backend. It abstracts away the details of local vs. remote execution: the
// caller asks a Factory for a workflow and gets one with the right executor,
// cache and settings already wired in.
package session

import (
	"context"

	"github.com/vk/lazyflow/internal/workflow"
)

// Factory creates workflows bound to one execution backend.
type Factory interface {
	NewWorkflow(ctx context.Context, opts ...workflow.Option) (*workflow.Workflow, error)
	// Close releases resources shared by every workflow of the factory,
	// such as a persistent cache or a transport connection.
	Close(ctx context.Context) error
}

// Run enters a fresh workflow, calls body with the workflow context and
// closes it. The body's error wins over the close error; the workflow is
// closed either way.
func Run(ctx context.Context, f Factory, body func(ctx context.Context) error, opts ...workflow.Option) error {
	wf, err := f.NewWorkflow(ctx, opts...)
	if err != nil {
		return err
	}
	wctx, err := wf.Enter(ctx)
	if err != nil {
		return err
	}
	bodyErr := body(wctx)
	closeErr := wf.Close(wctx)
	if bodyErr != nil {
		return bodyErr
	}
	return closeErr
}
