package app

import (
	"context"
	"io"
	"log/slog"

	"github.com/vk/lazyflow/internal/config"
	"github.com/vk/lazyflow/internal/ctxlog"
	"github.com/vk/lazyflow/internal/registry"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	ctx      context.Context
	logger   *slog.Logger
	config   *config.Config
	registry *registry.Registry
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger and registry.
// Registry validation failures are programmer errors and panic.
func NewApp(ctx context.Context, outW io.Writer, cfg *config.Config, modules ...registry.Module) *App {
	logger := newLogger(cfg, outW)
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Debug("Logger configured successfully.")

	reg := registry.New()
	if len(modules) == 0 {
		modules = coreModules
	}
	reg.Load(modules...)
	logger.Debug("All Go modules registered.", "count", len(modules), "functions", reg.Identities())

	if err := reg.Validate(ctx); err != nil {
		panic(err)
	}
	logger.Debug("Registry validation passed.")

	return &App{
		outW:     outW,
		ctx:      ctx,
		logger:   logger,
		config:   cfg,
		registry: reg,
	}
}

// Context returns the application context carrying the logger.
func (a *App) Context() context.Context { return a.ctx }

// Config returns the resolved configuration.
func (a *App) Config() *config.Config { return a.config }

// Registry returns the application's registry.
func (a *App) Registry() *registry.Registry { return a.registry }
