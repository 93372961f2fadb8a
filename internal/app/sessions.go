package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/vk/lazyflow/internal/badgerstore"
	"github.com/vk/lazyflow/internal/cache"
	"github.com/vk/lazyflow/internal/config"
	"github.com/vk/lazyflow/internal/ctxlog"
	"github.com/vk/lazyflow/internal/envexplorer"
	"github.com/vk/lazyflow/internal/inmemorystore"
	"github.com/vk/lazyflow/internal/localsession"
	"github.com/vk/lazyflow/internal/remotesession"
	"github.com/vk/lazyflow/internal/servant"
	"github.com/vk/lazyflow/internal/session"
	"github.com/vk/lazyflow/internal/transport/shell"
	"github.com/vk/lazyflow/internal/transport/socketio"
)

var errNoBuildInfo = errors.New("build information is not available")

// CacheStore opens the configured result cache: badger when a path is set,
// memory otherwise.
func (a *App) CacheStore() (cache.Store, error) {
	if !a.config.CacheInMemory && a.config.CachePath == "" {
		return inmemorystore.New(), nil
	}
	var (
		store *badgerstore.Store
		err   error
	)
	if a.config.CacheInMemory {
		store, err = badgerstore.OpenInMemory()
	} else {
		cfg := badgerstore.DefaultConfig(a.config.CachePath)
		cfg.Logger = a.logger
		store, err = badgerstore.Open(cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("opening result cache: %w", err)
	}
	return store, nil
}

// Dial connects to the configured servant.
func (a *App) Dial(ctx context.Context) (*socketio.Client, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	return socketio.Dial(ctx, a.config.ServerURL())
}

// LocalSession returns a factory for in-process workflows.
func (a *App) LocalSession() (session.Factory, error) {
	store, err := a.CacheStore()
	if err != nil {
		return nil, err
	}
	return localsession.New(localsession.WithStore(store), localsession.WithWorkers(a.config.Workers)), nil
}

// Commander returns the configured command transport and the function that
// releases it.
func (a *App) Commander(ctx context.Context) (servant.Commander, func() error, error) {
	switch a.config.Transport {
	case config.TransportShell:
		cmd := shell.New(a.config.ShellBinary, "--server", a.config.ServerURL(), "--mount", a.config.Mount)
		return cmd, func() error { return nil }, nil
	default:
		client, err := a.Dial(ctx)
		if err != nil {
			return nil, nil, err
		}
		return client, client.Close, nil
	}
}

// RemoteSession returns a factory whose workflows run on the configured
// servant. The environment manifest describes the running binary; a binary
// built without module information publishes zygotes without one.
func (a *App) RemoteSession(ctx context.Context) (session.Factory, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	manifest, err := a.BinaryManifest(ctx)
	switch {
	case errors.Is(err, errNoBuildInfo):
		a.logger.Warn("Build information is not available; zygotes carry no environment manifest.")
	case err != nil:
		return nil, err
	}
	store, err := a.CacheStore()
	if err != nil {
		return nil, err
	}
	cmd, release, err := a.Commander(ctx)
	if err != nil {
		if c, ok := store.(interface{ Close() error }); ok {
			err = errors.Join(err, c.Close())
		}
		return nil, err
	}
	a.logger.Debug("Remote session configured.", "transport", a.config.Transport, "server", a.config.ServerURL())

	sc := servant.NewClient(cmd, a.config.Mount, servant.WithPollInterval(a.config.PollInterval))
	return remotesession.New(sc,
		remotesession.WithManifest(manifest),
		remotesession.WithTimeout(a.config.ExecutionTimeout),
		remotesession.WithStore(store),
		remotesession.WithWorkers(a.config.Workers),
		remotesession.WithCloser(func(context.Context) error { return release() }),
	), nil
}

// Explorer returns an environment explorer using the configured module proxy.
func (a *App) Explorer() *envexplorer.Explorer {
	return envexplorer.New(envexplorer.WithIndex(envexplorer.NewProxyIndex(a.config.ModuleProxy)))
}

// BinaryManifest explores the modules linked into the running binary.
func (a *App) BinaryManifest(ctx context.Context) (*envexplorer.Manifest, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return nil, errNoBuildInfo
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return a.Explorer().Explore(ctx, envexplorer.FromBuildInfo(bi, wd))
}
