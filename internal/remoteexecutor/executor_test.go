package remoteexecutor_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/lazyflow/internal/builder"
	"github.com/vk/lazyflow/internal/daemon"
	"github.com/vk/lazyflow/internal/envexplorer"
	"github.com/vk/lazyflow/internal/errs"
	"github.com/vk/lazyflow/internal/op"
	"github.com/vk/lazyflow/internal/registry"
	"github.com/vk/lazyflow/internal/remoteexecutor"
	"github.com/vk/lazyflow/internal/servant"
	"github.com/vk/lazyflow/internal/workflow"
)

var (
	square = op.MustDefine("square", func(ctx context.Context, x int) int {
		_, _ = op.Stdout(ctx).Write([]byte("squaring\n"))
		return x * x
	})
	join  = op.MustDefine("join", func(a, b string) string { return a + "-" + b })
	crash = op.MustDefine("crash", func(x int) (int, error) { return 0, errors.New("remote crash") })
	hang  = op.MustDefine("hang", func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
)

func setup(t *testing.T) (*daemon.Daemon, *servant.Client) {
	t.Helper()
	reg := registry.New()
	for _, f := range []*op.Func{square, join, crash, hang} {
		reg.Register(f)
	}
	d, err := daemon.New(t.TempDir(), reg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close(context.Background()) })
	return d, servant.NewClient(servant.InProcess(d), d.Mount(), servant.WithPollInterval(5*time.Millisecond))
}

func channelFiles(t *testing.T, d *daemon.Daemon) []string {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(d.Mount(), ".channels"))
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestRemote_WorkflowRoundTrip(t *testing.T) {
	d, client := setup(t)
	manifest := &envexplorer.Manifest{Packages: map[string]envexplorer.Package{"example.com/app": {Paths: []string{"/src"}}}}
	exec := remoteexecutor.New(client, remoteexecutor.WithManifest(manifest))

	wf := workflow.New(workflow.WithExecutor(exec, workflow.TargetRemote))
	ctx, err := wf.Enter(context.Background())
	require.NoError(t, err)

	var stdout bytes.Buffer
	ctx = op.WithStdout(ctx, &stdout)

	a, err := builder.CallT[int](ctx, square, 3)
	require.NoError(t, err)
	b, err := builder.CallT[int](ctx, square, a)
	require.NoError(t, err)
	s, err := builder.CallT[string](ctx, join, "x", "y")
	require.NoError(t, err)

	require.NoError(t, wf.Close(ctx))

	got, err := b.Force(ctx)
	require.NoError(t, err)
	assert.Equal(t, 81, got)
	str, err := s.Force(ctx)
	require.NoError(t, err)
	assert.Equal(t, "x-y", str)
	assert.Equal(t, "squaring\nsquaring\n", stdout.String())

	z, ok := d.Zygote("square")
	require.True(t, ok)
	assert.Len(t, z.Slots, 2)
	assert.Equal(t, manifest, z.Env)
	assert.Empty(t, channelFiles(t, d), "channels are released on close")
}

func TestRemote_FailureCarriesStderr(t *testing.T) {
	d, client := setup(t)
	wf := workflow.New(workflow.WithExecutor(remoteexecutor.New(client), workflow.TargetRemote))
	ctx, err := wf.Enter(context.Background())
	require.NoError(t, err)

	v, err := builder.CallT[int](ctx, crash, 1)
	require.NoError(t, err)

	err = wf.Close(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrMaterialization)

	var me *errs.MaterializationError
	require.ErrorAs(t, err, &me)
	assert.Contains(t, me.Stderr, "remote crash")

	_, again := v.Force(ctx)
	assert.ErrorIs(t, again, errs.ErrMaterialization)
	assert.Empty(t, channelFiles(t, d), "channels are released on failure too")
}

func TestRemote_Timeout(t *testing.T) {
	_, client := setup(t)
	exec := remoteexecutor.New(client, remoteexecutor.WithTimeout(30*time.Millisecond))
	wf := workflow.New(workflow.WithExecutor(exec, workflow.TargetRemote))
	ctx, err := wf.Enter(context.Background())
	require.NoError(t, err)

	_, err = builder.Call(ctx, hang)
	require.NoError(t, err)

	start := time.Now()
	err = wf.Close(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRemote_PublishesOncePerIdentity(t *testing.T) {
	calls := map[string]int{}
	_, client := setup(t)
	counting := servant.NewClient(commanderFunc(func(ctx context.Context, cmd servant.Command) (servant.Response, error) {
		calls[cmd.Name]++
		return client.Commander().Run(ctx, cmd)
	}), client.Mount(), servant.WithPollInterval(5*time.Millisecond))

	exec := remoteexecutor.New(counting)
	wf := workflow.New(workflow.WithExecutor(exec, workflow.TargetRemote))
	ctx, err := wf.Enter(context.Background())
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := builder.Call(ctx, square, i)
		require.NoError(t, err)
	}
	require.NoError(t, wf.Close(ctx))

	assert.Equal(t, 1, calls[servant.CmdPublish])
	assert.Equal(t, 3, calls[servant.CmdExecute])
	assert.Equal(t, 6, calls[servant.CmdChannelCreate])
	assert.Equal(t, 6, calls[servant.CmdChannelDestroy])
}

type commanderFunc func(ctx context.Context, cmd servant.Command) (servant.Response, error)

func (f commanderFunc) Run(ctx context.Context, cmd servant.Command) (servant.Response, error) {
	return f(ctx, cmd)
}
