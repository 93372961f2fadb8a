package http_client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vk/lazyflow/internal/ctxlog"
	"github.com/vk/lazyflow/internal/op"
	"github.com/vk/lazyflow/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct {
	// Client is used for every request; nil means a client with a 30s timeout.
	Client *http.Client
}

// Response is the result of a request.
type Response struct {
	StatusCode int    `cty:"status_code" msgpack:"status_code"`
	Body       string `cty:"body" msgpack:"body"`
}

// New builds the http_request function around client.
func New(client *http.Client) *op.Func {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return op.MustDefine("http_request", func(ctx context.Context, method, url string) (Response, error) {
		return request(ctx, client, method, url)
	}, op.WithVersion("1"))
}

func request(ctx context.Context, client *http.Client, method, url string) (Response, error) {
	if method == "" {
		method = http.MethodGet
	}
	logger := ctxlog.FromContext(ctx)
	logger.Info("Making HTTP request", "method", method, "url", url)

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return Response{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	logger.Info("Received HTTP response", "status", resp.Status)

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("failed to read response body: %w", err)
	}
	return Response{StatusCode: resp.StatusCode, Body: string(bodyBytes)}, nil
}

// Register registers the function with the servant registry.
func (m *Module) Register(r *registry.Registry) {
	r.Register(New(m.Client))
}
