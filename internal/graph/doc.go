// Package graph is the facade the workflow uses to record operations and
// query their topology.
//
// A Manager pairs two stores:
//
//	┌──────────────────────────────┐
//	│         graph.Manager        │
//	└──────────┬────────────┬──────┘
//	           ▼            ▼
//	  ┌────────────┐  ┌────────────┐
//	  │    dag     │  │ operations │
//	  │ (edges)    │  │ (by ID)    │
//	  └────────────┘  └────────────┘
//
// The dag holds the dependency edges and registration order. The operation
// map resolves IDs back to the *op.Operation values, which carry their own
// materialization state. Callers never touch either store directly.
//
// Registration order is always a valid topological order: an operation can
// only reference results of operations recorded before it.
package graph
