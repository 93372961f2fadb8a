package daemon

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vk/lazyflow/internal/cache"
	"github.com/vk/lazyflow/internal/ctxlog"
	"github.com/vk/lazyflow/internal/metrics"
	"github.com/vk/lazyflow/internal/op"
	"github.com/vk/lazyflow/internal/servant"
	"gopkg.in/yaml.v3"
)

type execution struct {
	id     string
	zygote servant.Zygote
	cancel context.CancelFunc
	done   chan struct{}
	result servant.ExecutionResult
}

func (d *Daemon) execute(ctx context.Context, cmd servant.Command) servant.Response {
	if len(cmd.Args) != 1 {
		return servant.Fail(ExitFailure, "usage: execute <zygote>")
	}
	var bindings []servant.Binding
	if len(cmd.Payload) > 0 {
		if err := yaml.Unmarshal(cmd.Payload, &bindings); err != nil {
			return servant.Fail(ExitFailure, fmt.Sprintf("decoding bindings: %v", err))
		}
	}

	z, ok := d.Zygote(cmd.Args[0])
	if !ok {
		return servant.Fail(ExitNotFound, fmt.Sprintf("zygote %s is not published", cmd.Args[0]))
	}
	channels := make(map[string]string, len(bindings))
	for _, b := range bindings {
		if _, ok := z.Slot(b.Slot); !ok {
			return servant.Fail(ExitFailure, fmt.Sprintf("zygote %s has no slot %s", z.Name, b.Slot))
		}
		path, ok := d.channelPath(b.Channel)
		if !ok {
			return servant.Fail(ExitNotFound, fmt.Sprintf("channel %s does not exist", b.Channel))
		}
		channels[b.Slot] = path
	}
	for _, s := range z.Slots {
		if _, ok := channels[s.Name]; !ok {
			return servant.Fail(ExitFailure, fmt.Sprintf("slot %s of zygote %s is not bound", s.Name, z.Name))
		}
	}

	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	if d.timeout > 0 {
		var stop context.CancelFunc
		jobCtx, stop = context.WithTimeout(jobCtx, d.timeout)
		inner := cancel
		cancel = func() { stop(); inner() }
	}
	e := &execution{id: uuid.NewString(), zygote: z, cancel: cancel, done: make(chan struct{})}

	d.mu.Lock()
	d.executions[e.id] = e
	d.mu.Unlock()

	jobCtx = ctxlog.With(jobCtx, "execution", e.id, "zygote", z.Name)
	ctxlog.FromContext(jobCtx).Info("▶️ Execution started.")
	metrics.ServantRunning.Inc()
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer metrics.ServantRunning.Dec()
		defer close(e.done)
		defer cancel()
		e.result = d.run(jobCtx, z, channels)
		metrics.ServantExecutions.WithLabelValues(outcome(e.result)).Inc()
		ctxlog.FromContext(jobCtx).Info("⏹️ Execution finished.", "exit_code", e.result.ExitCode)
		if d.retention > 0 {
			time.AfterFunc(d.retention, func() { d.forget(e.id) })
		}
	}()

	return servant.Response{Stdout: e.id + "\n"}
}

func outcome(r servant.ExecutionResult) string {
	if r.Succeeded() {
		return metrics.OutcomeSucceeded
	}
	return metrics.OutcomeFailed
}

// run executes the zygote's function. It never returns an error; failures
// are described by the result.
func (d *Daemon) run(ctx context.Context, z servant.Zygote, channels map[string]string) servant.ExecutionResult {
	f, ok := d.reg.Lookup(z.Name)
	if !ok {
		return servant.ExecutionResult{ExitCode: ExitNotFound, Stderr: fmt.Sprintf("function %s is not registered", z.Name)}
	}

	args, err := readInputs(f, z, channels)
	if err != nil {
		return servant.ExecutionResult{ExitCode: ExitFailure, Stderr: err.Error()}
	}

	var stdout bytes.Buffer
	type invocation struct {
		value any
		err   error
	}
	done := make(chan invocation, 1)
	go func() {
		v, err := f.Invoke(op.WithStdout(ctx, &stdout), args)
		done <- invocation{v, err}
	}()

	var res invocation
	select {
	case res = <-done:
	case <-ctx.Done():
	}
	if ctx.Err() != nil {
		reason := "execution cancelled"
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			reason = "execution timed out"
		}
		return servant.ExecutionResult{ExitCode: ExitCancelled, Stderr: reason}
	}
	if res.err != nil {
		return servant.ExecutionResult{Stdout: stdout.String(), ExitCode: ExitFailure, Stderr: res.err.Error()}
	}

	if path, ok := channels[servant.OutputSlot]; ok && f.OutputType() != nil {
		b, err := cache.Encode(res.value)
		if err != nil {
			return servant.ExecutionResult{Stdout: stdout.String(), ExitCode: ExitFailure, Stderr: fmt.Sprintf("encoding result: %v", err)}
		}
		if err := os.WriteFile(path, b, 0o644); err != nil {
			return servant.ExecutionResult{Stdout: stdout.String(), ExitCode: ExitFailure, Stderr: fmt.Sprintf("writing result: %v", err)}
		}
	}
	return servant.ExecutionResult{Stdout: stdout.String(), ExitCode: ExitOK}
}

func readInputs(f *op.Func, z servant.Zygote, channels map[string]string) ([]any, error) {
	params := f.Params()
	args := make([]any, len(params))
	seen := 0
	for _, s := range z.Slots {
		if s.Direction != servant.Input {
			continue
		}
		i, err := inputIndex(s.Name)
		if err != nil || i >= len(params) {
			return nil, fmt.Errorf("slot %s does not match a parameter of %s", s.Name, f.Identity())
		}
		b, err := os.ReadFile(channels[s.Name])
		if err != nil {
			return nil, fmt.Errorf("reading slot %s: %w", s.Name, err)
		}
		args[i], err = decodeParam(b, params[i])
		if err != nil {
			return nil, fmt.Errorf("slot %s: %w", s.Name, err)
		}
		seen++
	}
	if seen != len(params) {
		return nil, fmt.Errorf("%s takes %d arguments, zygote provides %d", f.Identity(), len(params), seen)
	}
	return args, nil
}

func decodeParam(b []byte, t reflect.Type) (any, error) {
	if t.Kind() == reflect.Interface {
		return cache.Decode(b, nil)
	}
	return cache.Decode(b, t)
}

func inputIndex(slot string) (int, error) {
	rest, ok := strings.CutPrefix(slot, "in/")
	if !ok {
		return 0, fmt.Errorf("not an input slot: %s", slot)
	}
	return strconv.Atoi(rest)
}

func (d *Daemon) lookup(cmd servant.Command, usage string) (*execution, servant.Response, bool) {
	if len(cmd.Args) != 1 {
		return nil, servant.Fail(ExitFailure, usage), false
	}
	d.mu.Lock()
	e, ok := d.executions[cmd.Args[0]]
	d.mu.Unlock()
	if !ok {
		return nil, servant.Fail(ExitNotFound, fmt.Sprintf("execution %s does not exist", cmd.Args[0])), false
	}
	return e, servant.Response{}, true
}

func (d *Daemon) wait(ctx context.Context, cmd servant.Command) servant.Response {
	e, resp, ok := d.lookup(cmd, "usage: wait <id>")
	if !ok {
		return resp
	}
	select {
	case <-e.done:
	case <-ctx.Done():
		return servant.Fail(ExitCancelled, "wait interrupted: "+ctx.Err().Error())
	}
	b, err := yaml.Marshal(e.result)
	if err != nil {
		return servant.Fail(ExitFailure, err.Error())
	}
	d.forget(e.id)
	return servant.Response{Stdout: string(b)}
}

// forget drops a finished execution. Its result has been delivered or has
// outlived the retention period.
func (d *Daemon) forget(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.executions, id)
}

func (d *Daemon) cancel(ctx context.Context, cmd servant.Command) servant.Response {
	e, resp, ok := d.lookup(cmd, "usage: cancel <id>")
	if !ok {
		return resp
	}
	e.cancel()
	ctxlog.FromContext(ctx).Debug("Execution cancel requested.", "execution", e.id)
	return servant.Response{}
}
