package app

import (
	"github.com/vk/lazyflow/internal/registry"
	"github.com/vk/lazyflow/modules/env_vars"
	"github.com/vk/lazyflow/modules/http_client"
	"github.com/vk/lazyflow/modules/print"
)

// coreModules is the definitive list of all function modules that are
// compiled into the lazyflow binary.
var coreModules = []registry.Module{
	&env_vars.Module{},
	&print.Module{},
	&http_client.Module{},
}
