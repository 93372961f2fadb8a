package cli

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/lazyflow/internal/daemon"
	"github.com/vk/lazyflow/internal/envexplorer"
	"github.com/vk/lazyflow/internal/registry"
	"github.com/vk/lazyflow/internal/transport/socketio"
)

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := Execute(context.Background(), args, strings.NewReader(stdin), &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func clearEnv(t *testing.T) {
	t.Setenv("LAZYFLOW_MOUNT", "")
	t.Setenv("LAZYFLOW_PORT", "")
	t.Setenv("LAZYFLOW_SERVER", "")
}

func TestExecute_Version(t *testing.T) {
	out, _, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "lazyflow dev\n", out)
}

func TestExecute_UsageErrors(t *testing.T) {
	clearEnv(t)
	testCases := []struct {
		name string
		args []string
	}{
		{"unknown command", []string{"explode"}},
		{"missing argument", []string{"wait"}},
		{"bad direction", []string{"touch", "/p", "ch", "sideways"}},
		{"bad log level", []string{"--log-level", "loud", "wait", "x"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := execute(t, "", tc.args...)
			var exitErr *ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, 2, exitErr.Code)
		})
	}
}

func TestExecute_RemoteCommands(t *testing.T) {
	clearEnv(t)
	d, err := daemon.New(t.TempDir(), registry.New())
	require.NoError(t, err)
	srv := socketio.NewServer(context.Background(), d)
	defer srv.Close()
	mux := http.NewServeMux()
	mux.Handle("/socket.io/", srv.Handler())
	hs := httptest.NewServer(mux)
	defer hs.Close()

	global := []string{"--server", hs.URL, "--mount", d.Mount(), "--log-level", "error"}

	_, _, err = execute(t, "", append(global, "channel", "create", "ch")...)
	require.NoError(t, err)

	_, _, err = execute(t, "name: in/0\ndirection: input\n", append(global, "touch", "/op/in/0", "ch", "input")...)
	require.NoError(t, err)

	_, stderr, err := execute(t, "", append(global, "channel", "create", "ch")...)
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, daemon.ExitFailure, exitErr.Code)
	assert.Contains(t, stderr, "already exists")

	_, _, err = execute(t, "", append(global, "wait", "missing")...)
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, daemon.ExitNotFound, exitErr.Code)
}

func TestExecute_Env(t *testing.T) {
	clearEnv(t)
	orig := listPackages
	t.Cleanup(func() { listPackages = orig })
	listPackages = func(ctx context.Context, dir string, patterns ...string) ([]envexplorer.GoPackage, error) {
		return []envexplorer.GoPackage{
			{ImportPath: "fmt", Standard: true},
			{ImportPath: "example.com/app", Dir: "/src/app", Module: &envexplorer.GoModule{Path: "example.com/app", Main: true}},
		}, nil
	}

	out, _, err := execute(t, "", "--log-level", "error", "env", "./...")
	require.NoError(t, err)
	m, err := envexplorer.Unmarshal([]byte(out))
	require.NoError(t, err)
	assert.Equal(t, []string{"/src/app"}, m.Packages["example.com/app"].Paths)
}
