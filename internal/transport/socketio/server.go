package socketio

import (
	"context"
	"net/http"

	"github.com/vk/lazyflow/internal/ctxlog"
	"github.com/vk/lazyflow/internal/servant"
	"github.com/zishang520/socket.io/v2/socket"
)

// Server exposes a servant.Handler as a socket.io endpoint.
type Server struct {
	io      *socket.Server
	handler servant.Handler
	ctx     context.Context
}

// NewServer creates the endpoint. ctx carries the logger and bounds every
// command handled by the server.
func NewServer(ctx context.Context, h servant.Handler) *Server {
	s := &Server{io: socket.NewServer(nil, nil), handler: h, ctx: ctx}
	s.io.On("connection", func(clients ...any) {
		client := clients[0].(*socket.Socket)
		s.serve(client)
	})
	return s
}

// Handler returns the HTTP handler to mount under /socket.io/.
func (s *Server) Handler() http.Handler {
	return s.io.ServeHandler(nil)
}

// Close disconnects every client.
func (s *Server) Close() {
	s.io.Close(nil)
}

func (s *Server) serve(client *socket.Socket) {
	ctx, cancel := context.WithCancel(ctxlog.With(s.ctx, "sid", string(client.Id())))
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Command client connected.")

	client.On("disconnect", func(...any) {
		logger.Debug("Command client disconnected.")
		cancel()
	})

	client.On(EventCommand, func(datas ...any) {
		if len(datas) == 0 {
			return
		}
		ack, ok := datas[len(datas)-1].(func([]any, error))
		if !ok {
			logger.Warn("Command sent without acknowledgement; ignoring.")
			return
		}
		if len(datas) < 2 {
			ack([]any{encodeResponse(servant.Fail(1, "missing command"))}, nil)
			return
		}
		cmd, err := decodeCommand(datas[0])
		if err != nil {
			ack([]any{encodeResponse(servant.Fail(1, err.Error()))}, nil)
			return
		}
		// wait blocks until the execution ends, so commands never run on
		// the event loop.
		go func() {
			resp := s.handler.Handle(ctx, cmd)
			ack([]any{encodeResponse(resp)}, nil)
		}()
	})
}
