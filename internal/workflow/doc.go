// Package workflow implements the session that records deferred calls and
// runs them.
//
// # Lifecycle
//
//	Created --Enter--> Entered --Close--> Closed
//
// Enter binds the workflow to a derived context; every builder.Call made
// with that context is recorded instead of executed. Close runs the recorded
// operations (in registration order, or in dependency waves when more than
// one worker is configured), commits the whiteboard if everything succeeded
// and releases executor resources whatever the outcome.
//
// # Materialization
//
// The workflow is the op.Materializer of its operations. For each operation
// it resolves the arguments depth-first, consults the result cache when the
// function is cacheable, and otherwise hands the call to its Executor.
//
// # Concurrency
//
// Workflows are scoped to a context chain: two goroutines may hold two
// different active workflows, but a context that already carries an active
// workflow cannot enter another one.
package workflow
