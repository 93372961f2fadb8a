package graph

import (
	"context"

	"github.com/vk/lazyflow/internal/op"
)

// Graph records the operations of one workflow.
//
// Thread-safety: implementations must be safe for concurrent use; operations
// of independent waves are materialized from several goroutines.
type Graph interface {
	// AddOperation records o with edges from the listed dependency IDs. Every
	// dependency must already be recorded.
	AddOperation(ctx context.Context, o *op.Operation, dependsOn ...string) error

	// Operation looks up a recorded operation by ID.
	Operation(ctx context.Context, id string) (*op.Operation, bool)

	// DependenciesOf returns the full operations id depends on.
	DependenciesOf(ctx context.Context, id string) ([]*op.Operation, error)

	// AllOperations returns every operation in registration order.
	AllOperations(ctx context.Context) []*op.Operation

	// Waves groups operations into sets whose members depend only on earlier
	// sets.
	Waves(ctx context.Context) ([][]*op.Operation, error)

	// Len returns the number of recorded operations.
	Len() int
}
