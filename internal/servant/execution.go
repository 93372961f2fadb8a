package servant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/vk/lazyflow/internal/ctxlog"
	"github.com/vk/lazyflow/internal/errs"
	"gopkg.in/yaml.v3"
)

// Execution is one run of a published zygote with concrete bindings.
type Execution struct {
	client   *Client
	zygote   string
	bindings []Binding

	mu      sync.Mutex
	id      string
	started bool
}

// ID returns the servant-assigned id, empty until Start succeeds.
func (e *Execution) ID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.id
}

// Start asks the servant to run the zygote. An execution can be started once.
func (e *Execution) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return errs.Usage("execution of %s was already started", e.zygote)
	}
	payload, err := yaml.Marshal(e.bindings)
	if err != nil {
		return fmt.Errorf("encoding bindings: %w", err)
	}
	resp, err := e.client.run(ctx, Command{Name: CmdExecute, Args: []string{e.zygote}, Payload: payload})
	if err != nil {
		return err
	}
	e.id = strings.TrimSpace(resp.Stdout)
	e.started = true
	ctxlog.FromContext(ctx).Debug("Execution started.", "zygote", e.zygote, "execution", e.id)
	return nil
}

// Wait blocks until the execution finishes. If ctx ends first the execution
// is cancelled on the servant.
func (e *Execution) Wait(ctx context.Context) (ExecutionResult, error) {
	id := e.ID()
	if id == "" {
		return ExecutionResult{}, errs.Usage("execution of %s was not started", e.zygote)
	}
	resp, err := e.client.run(ctx, Command{Name: CmdWait, Args: []string{id}})
	if err != nil {
		if ctx.Err() != nil {
			cancelCtx := context.WithoutCancel(ctx)
			if cErr := e.Cancel(cancelCtx); cErr != nil {
				ctxlog.FromContext(ctx).Warn("Cancelling execution failed.", "execution", id, "error", cErr)
			}
			return ExecutionResult{}, errors.Join(ctx.Err(), err)
		}
		return ExecutionResult{}, err
	}
	var res ExecutionResult
	if err := yaml.Unmarshal([]byte(resp.Stdout), &res); err != nil {
		return ExecutionResult{}, fmt.Errorf("decoding result of %s: %w", id, err)
	}
	return res, nil
}

// Cancel stops a running execution. Cancelling a finished execution is a
// no-op on the servant.
func (e *Execution) Cancel(ctx context.Context) error {
	id := e.ID()
	if id == "" {
		return errs.Usage("execution of %s was not started", e.zygote)
	}
	_, err := e.client.run(ctx, Command{Name: CmdCancel, Args: []string{id}})
	return err
}
