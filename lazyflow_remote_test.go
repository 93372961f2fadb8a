package lazyflow_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/lazyflow"
	"github.com/vk/lazyflow/internal/app"
	"github.com/vk/lazyflow/internal/registry"
)

type servantFuncs []*lazyflow.Func

func (m servantFuncs) Register(r *registry.Registry) {
	for _, f := range m {
		r.Register(f)
	}
}

// startServant runs a servant on an ephemeral port and returns a client
// configuration pointing at it.
func startServant(t *testing.T, funcs ...*lazyflow.Func) *lazyflow.Config {
	t.Helper()

	index := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"Version":"v0.0.0"}`)
	}))
	t.Cleanup(index.Close)

	srvCfg := lazyflow.DefaultConfig()
	srvCfg.Host = "127.0.0.1"
	a, _ := app.SetupAppTest(t, srvCfg, servantFuncs(funcs))
	srvCfg.Port = 0

	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan string, 1)
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx, ready) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(10 * time.Second):
			t.Error("servant did not stop")
		}
	})

	var addr string
	select {
	case addr = <-ready:
	case <-time.After(5 * time.Second):
		t.Fatal("servant did not start")
	}

	cfg := lazyflow.DefaultConfig()
	cfg.Server = "http://" + addr
	cfg.Mount = srvCfg.Mount
	cfg.ModuleProxy = index.URL
	cfg.PollInterval = 10 * time.Millisecond
	return cfg
}

func TestRemote_RunsWorkflowOnServant(t *testing.T) {
	prev := lazyflow.LogOutput
	lazyflow.LogOutput = io.Discard
	t.Cleanup(func() { lazyflow.LogOutput = prev })

	double := lazyflow.MustDefine("remote_double", func(x int) int { return 2 * x })
	inc := lazyflow.MustDefine("remote_inc", func(x int) int { return x + 1 })
	cfg := startServant(t, double, inc)

	ctx := context.Background()
	factory, err := lazyflow.Remote(ctx, cfg)
	require.NoError(t, err)
	defer func() { assert.NoError(t, factory.Close(ctx)) }()

	var result lazyflow.Value[int]
	err = lazyflow.Run(ctx, factory, func(ctx context.Context) error {
		wf, ok := lazyflow.Active(ctx)
		require.True(t, ok)
		assert.Equal(t, "remote", wf.Target())

		d, err := lazyflow.CallT[int](ctx, double, 20)
		if err != nil {
			return err
		}
		result, err = lazyflow.CallT[int](ctx, inc, d)
		return err
	})
	require.NoError(t, err)

	n, err := result.Force(ctx)
	require.NoError(t, err)
	assert.Equal(t, 41, n)
	assert.FileExists(t, filepath.Join(cfg.Mount, ".zygotes", "remote_double.yaml"))
	assert.FileExists(t, filepath.Join(cfg.Mount, ".zygotes", "remote_inc.yaml"))
}

func TestRemote_RejectsInvalidConfig(t *testing.T) {
	cfg := lazyflow.DefaultConfig()
	cfg.Transport = "carrier-pigeon"
	_, err := lazyflow.Remote(context.Background(), cfg)
	assert.Error(t, err)
}

func TestLocalFromConfig_PersistentCache(t *testing.T) {
	prev := lazyflow.LogOutput
	lazyflow.LogOutput = io.Discard
	t.Cleanup(func() { lazyflow.LogOutput = prev })

	calls := 0
	square := lazyflow.MustDefine("square", func(x int) int {
		calls++
		return x * x
	}, lazyflow.WithCache(true))

	cfg := lazyflow.DefaultConfig()
	cfg.CachePath = filepath.Join(t.TempDir(), "cache")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		factory, err := lazyflow.LocalFromConfig(ctx, cfg)
		require.NoError(t, err)
		var v lazyflow.Value[int]
		err = lazyflow.Run(ctx, factory, func(ctx context.Context) error {
			var err error
			v, err = lazyflow.CallT[int](ctx, square, 9)
			return err
		})
		require.NoError(t, err)
		n, err := v.Force(ctx)
		require.NoError(t, err)
		assert.Equal(t, 81, n)
		require.NoError(t, factory.Close(ctx))
	}
	assert.Equal(t, 1, calls, "the reopened badger cache serves the second run")
}
