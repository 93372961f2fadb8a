package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/vk/lazyflow/internal/ctxlog"
	"github.com/vk/lazyflow/internal/metrics"
)

// healthHandler answers liveness probes.
func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	logger := ctxlog.FromContext(a.ctx)
	logger.Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

// observabilityMux serves /health and /metrics.
func (a *App) observabilityMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", a.healthHandler)
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

// startMetricsServer runs /health and /metrics on the dedicated metrics port.
// It returns nil when the port is not configured.
func (a *App) startMetricsServer() *http.Server {
	logger := ctxlog.FromContext(a.ctx)
	if a.config.MetricsPort <= 0 {
		logger.Debug("Metrics server not started: disabled")
		return nil
	}

	addr := fmt.Sprintf(":%d", a.config.MetricsPort)
	srv := &http.Server{Addr: addr, Handler: a.observabilityMux()}

	go func() {
		logger.Info("🩺 Health check server starting", "address", fmt.Sprintf("http://localhost%s/health", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Health check server failed unexpectedly", "error", err)
		}
	}()
	return srv
}

func (a *App) shutdownServer(srv *http.Server, name string) error {
	if srv == nil {
		return nil
	}
	logger := ctxlog.FromContext(a.ctx)
	ctx, cancel := context.WithTimeout(context.WithoutCancel(a.ctx), 5*time.Second)
	defer cancel()

	logger.Info("Shutting down server...", "server", name)
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown failed", "server", name, "error", err)
		return err
	}
	logger.Debug("Server shut down gracefully.", "server", name)
	return nil
}
