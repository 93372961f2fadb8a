package http_client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/lazyflow/internal/registry"
)

func TestHTTPRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		_, _ = w.Write([]byte("pong"))
	}))
	defer srv.Close()

	r := registry.New().Load(&Module{Client: srv.Client()})
	f, ok := r.Lookup("http_request@1")
	require.True(t, ok)

	out, err := f.Invoke(context.Background(), []any{"", srv.URL})
	require.NoError(t, err)
	assert.Equal(t, Response{StatusCode: http.StatusOK, Body: "pong"}, out)
}
