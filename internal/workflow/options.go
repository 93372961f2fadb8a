package workflow

import (
	"github.com/vk/lazyflow/internal/cache"
	"github.com/vk/lazyflow/internal/executor"
	"github.com/vk/lazyflow/internal/whiteboard"
)

// Execution targets.
const (
	TargetLocal  = "local"
	TargetRemote = "remote"
)

// Option configures a Workflow.
type Option func(*Workflow)

// WithName sets a human-readable name used in logs.
func WithName(name string) Option {
	return func(w *Workflow) { w.name = name }
}

// WithEager makes every registration materialize immediately.
func WithEager(eager bool) Option {
	return func(w *Workflow) { w.eager = eager }
}

// WithExecutor sets the executor and the target label reported in metrics.
func WithExecutor(e executor.Executor, target string) Option {
	return func(w *Workflow) {
		w.exec = e
		w.target = target
	}
}

// WithCache sets the result store for cacheable operations.
func WithCache(s cache.Store) Option {
	return func(w *Workflow) { w.store = s }
}

// WithWorkers bounds how many independent operations run at once. One (the
// default) runs operations strictly in registration order.
func WithWorkers(n int) Option {
	return func(w *Workflow) {
		if n < 1 {
			n = 1
		}
		w.workers = n
	}
}

// WithWhiteboard attaches a write-once output record. target must be a
// pointer to a struct; a bad target is reported by Enter.
func WithWhiteboard(target any) Option {
	return func(w *Workflow) {
		wb, err := whiteboard.New(target)
		if err != nil {
			w.optErr = err
			return
		}
		w.wb = wb
	}
}
