package print

import (
	"context"
	"fmt"
	"sort"

	"github.com/vk/lazyflow/internal/ctxlog"
	"github.com/vk/lazyflow/internal/op"
	"github.com/vk/lazyflow/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Func prints a map, one sorted key per line.
var Func = op.MustDefine("print", Print)

// Print writes values to the operation's stdout and returns how many entries
// it printed.
func Print(ctx context.Context, values map[string]string) int {
	ctxlog.FromContext(ctx).Info("Printing input")
	w := op.Stdout(ctx)

	if values == nil {
		fmt.Fprintln(w, "      (null)")
		return 0
	}

	// Sort keys for consistent output
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		fmt.Fprintf(w, "      %s = %q\n", k, values[k])
	}
	return len(keys)
}

// Register registers the function with the servant registry.
func (m *Module) Register(r *registry.Registry) {
	r.Register(Func)
}
