package socketio

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"time"

	"github.com/vk/lazyflow/internal/ctxlog"
	"github.com/vk/lazyflow/internal/servant"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// DefaultTimeout bounds commands other than wait when ctx has no deadline.
const DefaultTimeout = 30 * time.Second

// Client is a servant.Commander backed by a socket.io connection.
type Client struct {
	io      *socket.Socket
	timeout time.Duration
}

var _ servant.Commander = (*Client)(nil)

// ClientOption configures Dial.
type ClientOption func(*dialConfig)

type dialConfig struct {
	insecure bool
	timeout  time.Duration
}

// WithInsecureSkipVerify disables TLS certificate verification.
func WithInsecureSkipVerify() ClientOption {
	return func(c *dialConfig) { c.insecure = true }
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *dialConfig) { c.timeout = d }
}

// Dial connects to a servant at rawURL, e.g. http://host:8080.
func Dial(ctx context.Context, rawURL string, options ...ClientOption) (*Client, error) {
	cfg := dialConfig{timeout: DefaultTimeout}
	for _, opt := range options {
		opt(&cfg)
	}
	logger := ctxlog.FromContext(ctx).With("servant", rawURL)

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	opts := socket.DefaultOptions()
	if parsedURL.Path != "" && parsedURL.Path != "/" {
		opts.SetPath(parsedURL.Path)
	}
	if cfg.insecure {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	connectChan := make(chan error, 1)
	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket("/", opts)

	io.Once(types.EventName("connect"), func(...any) {
		logger.Debug("Connected to servant", "sid", io.Id())
		connectChan <- nil
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		err, _ := errs[0].(error)
		if err == nil {
			err = fmt.Errorf("%v", errs[0])
		}
		connectChan <- err
	})
	io.Connect()

	select {
	case err := <-connectChan:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
		return &Client{io: io, timeout: cfg.timeout}, nil
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("context cancelled while waiting for socket.io connection: %w", ctx.Err())
	case <-time.After(15 * time.Second):
		io.Disconnect()
		return nil, fmt.Errorf("timed out after 15s waiting for socket.io connection")
	}
}

type ackResult struct {
	resp servant.Response
	err  error
}

// Run sends cmd and waits for the acknowledgement.
func (c *Client) Run(ctx context.Context, cmd servant.Command) (servant.Response, error) {
	payload, err := encodeCommand(cmd)
	if err != nil {
		return servant.Response{}, err
	}

	emitter := c.io
	if deadline, ok := ctx.Deadline(); ok {
		emitter = emitter.Timeout(time.Until(deadline))
	} else if cmd.Name != servant.CmdWait {
		emitter = emitter.Timeout(c.timeout)
	}

	done := make(chan ackResult, 1)
	emitter.EmitWithAck(EventCommand, payload)(func(args []any, err error) {
		if err != nil {
			done <- ackResult{err: err}
			return
		}
		resp, err := decodeResponse(args)
		done <- ackResult{resp: resp, err: err}
	})

	select {
	case res := <-done:
		return res.resp, res.err
	case <-ctx.Done():
		return servant.Response{}, ctx.Err()
	}
}

// Close disconnects from the servant.
func (c *Client) Close() error {
	c.io.Disconnect()
	return nil
}
