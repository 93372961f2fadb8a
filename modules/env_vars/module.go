package env_vars

import (
	"context"
	"os"
	"strings"

	"github.com/vk/lazyflow/internal/op"
	"github.com/vk/lazyflow/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Func returns the environment of the process that runs it, filtered by
// prefix. On a servant that is the remote environment.
var Func = op.MustDefine("env_vars", EnvVars)

// EnvVars returns every environment variable whose name starts with prefix.
func EnvVars(ctx context.Context, prefix string) map[string]string {
	envMap := make(map[string]string)
	for _, e := range os.Environ() {
		pair := strings.SplitN(e, "=", 2)
		if len(pair) == 2 && strings.HasPrefix(pair[0], prefix) {
			envMap[pair[0]] = pair[1]
		}
	}
	return envMap
}

// Register registers the function with the servant registry.
func (m *Module) Register(r *registry.Registry) {
	r.Register(Func)
}
