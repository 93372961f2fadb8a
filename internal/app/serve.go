package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/vk/lazyflow/internal/ctxlog"
	"github.com/vk/lazyflow/internal/daemon"
	"github.com/vk/lazyflow/internal/transport/socketio"
)

// Serve runs the servant until ctx is cancelled. The socket.io endpoint,
// /health and /metrics share the servant port; /health and /metrics are also
// served on the metrics port when one is configured. ready, if not nil,
// receives the bound address once the listener is up.
func (a *App) Serve(ctx context.Context, ready chan<- string) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	logger := ctxlog.FromContext(ctx)

	d, err := daemon.New(a.config.Mount, a.registry, daemon.WithExecutionTimeout(a.config.ExecutionTimeout))
	if err != nil {
		return fmt.Errorf("starting servant: %w", err)
	}

	io := socketio.NewServer(ctx, d)
	mux := a.observabilityMux()
	mux.Handle("/socket.io/", io.Handler())

	ln, err := net.Listen("tcp", a.config.Address())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", a.config.Address(), err)
	}
	srv := &http.Server{Handler: mux}
	metricsSrv := a.startMetricsServer()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("🚀 Servant listening", "address", ln.Addr().String(), "mount", d.Mount())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()
	if ready != nil {
		ready <- ln.Addr().String()
	}

	select {
	case <-ctx.Done():
	case err = <-serveErr:
	}

	io.Close()
	shutdownErr := errors.Join(a.shutdownServer(srv, "servant"), a.shutdownServer(metricsSrv, "metrics"))
	closeErr := d.Close(context.WithoutCancel(ctx))
	logger.Info("🏁 Servant stopped.")
	return errors.Join(err, shutdownErr, closeErr)
}
