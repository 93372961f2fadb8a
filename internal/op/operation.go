package op

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
)

// State is the materialization state of an operation.
type State int32

const (
	// Pending means the operation has not been materialized yet.
	Pending State = iota
	// Materialized means the result is cached on the operation.
	Materialized
	// Failed means the captured failure is replayed on every force.
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Materialized:
		return "materialized"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Materializer computes the result of an operation. The owning workflow
// provides it; it decides between cache, local and remote execution.
type Materializer interface {
	Materialize(ctx context.Context, o *Operation) (any, error)
}

// MaterializerFunc adapts a function to the Materializer interface.
type MaterializerFunc func(ctx context.Context, o *Operation) (any, error)

func (f MaterializerFunc) Materialize(ctx context.Context, o *Operation) (any, error) {
	return f(ctx, o)
}

// Operation is one recorded call of a Func inside a workflow.
type Operation struct {
	id         string
	fn         *Func
	args       []any
	inputTypes []reflect.Type
	workflowID string

	materializer Materializer

	state  atomic.Int32
	once   sync.Once
	result any
	err    error
}

// New creates a pending operation. args may contain literals and Lazy
// values produced by earlier operations.
func New(id string, fn *Func, args []any, inputTypes []reflect.Type, workflowID string, m Materializer) *Operation {
	return &Operation{
		id:           id,
		fn:           fn,
		args:         append([]any(nil), args...),
		inputTypes:   append([]reflect.Type(nil), inputTypes...),
		workflowID:   workflowID,
		materializer: m,
	}
}

func (o *Operation) ID() string                 { return o.id }
func (o *Operation) Func() *Func                { return o.fn }
func (o *Operation) WorkflowID() string         { return o.workflowID }
func (o *Operation) OutputType() reflect.Type   { return o.fn.OutputType() }
func (o *Operation) State() State               { return State(o.state.Load()) }
func (o *Operation) Args() []any                { return append([]any(nil), o.args...) }
func (o *Operation) InputTypes() []reflect.Type { return append([]reflect.Type(nil), o.inputTypes...) }

// Dependencies returns the operations whose deferred results are arguments
// of this one, in argument order.
func (o *Operation) Dependencies() []*Operation {
	var deps []*Operation
	for _, a := range o.args {
		if l, ok := a.(Lazy); ok && !Empty(l) {
			if dep := l.Deferred().Operation(); dep != nil {
				deps = append(deps, dep)
			}
		}
	}
	return deps
}

// Materialize computes the result at most once. Concurrent callers block on
// the in-flight computation and observe the same outcome.
func (o *Operation) Materialize(ctx context.Context) (any, error) {
	o.once.Do(func() {
		if o.materializer == nil {
			o.err = fmt.Errorf("operation %s has no materializer", o.id)
			o.state.Store(int32(Failed))
			return
		}
		o.result, o.err = o.materializer.Materialize(ctx, o)
		if o.err != nil {
			o.result = nil
			o.state.Store(int32(Failed))
			return
		}
		o.state.Store(int32(Materialized))
	})
	return o.result, o.err
}

func (o *Operation) String() string {
	types := make([]string, len(o.inputTypes))
	for i, t := range o.inputTypes {
		types[i] = typeName(t)
	}
	return fmt.Sprintf("%s(%s) -> %s [%s]", o.id, strings.Join(types, ", "), typeName(o.OutputType()), o.State())
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "none"
	}
	return t.String()
}
