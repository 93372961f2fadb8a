package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse(nil, "empty.hcl")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "localhost:8899", cfg.Address())
	assert.Equal(t, "http://localhost:8899", cfg.ServerURL())
}

func TestParse_AllBlocks(t *testing.T) {
	src := `
servant {
  mount             = "/mnt/lzy"
  host              = "0.0.0.0"
  port              = 9000
  server            = "http://servant:9000"
  poll_interval     = "250ms"
  execution_timeout = "2m"
  transport         = "shell"
  shell_binary      = "/usr/local/bin/lazyflow"
}

cache {
  path      = "/var/cache/lazyflow"
  in_memory = false
}

log {
  level  = "debug"
  format = "json"
}

workers      = 4
metrics_port = 9090
`
	cfg, err := Parse([]byte(src), "lazyflow.hcl")
	require.NoError(t, err)
	assert.Equal(t, &Config{
		Mount:            "/mnt/lzy",
		Host:             "0.0.0.0",
		Port:             9000,
		Server:           "http://servant:9000",
		PollInterval:     250 * time.Millisecond,
		ExecutionTimeout: 2 * time.Minute,
		Transport:        TransportShell,
		ShellBinary:      "/usr/local/bin/lazyflow",
		CachePath:        "/var/cache/lazyflow",
		LogLevel:         "debug",
		LogFormat:        "json",
		Workers:          4,
		MetricsPort:      9090,
	}, cfg)
	assert.Equal(t, "http://servant:9000", cfg.ServerURL())
}

func TestParse_Errors(t *testing.T) {
	testCases := []struct {
		name string
		src  string
	}{
		{"syntax", `servant {`},
		{"unknown attribute", `colour = "red"`},
		{"bad duration", `servant { poll_interval = "soon" }`},
		{"bad level", `log { level = "loud" }`},
		{"bad port", `servant { port = 70000 }`},
		{"zero workers", `workers = 0`},
		{"bad server url", `servant { server = "not a url" }`},
		{"unknown transport", `servant { transport = "carrier-pigeon" }`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.src), "bad.hcl")
			assert.Error(t, err)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{EnvMount: "/env/mount", EnvPort: "1234", EnvServer: "http://remote:1234"}
	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(func(k string) string { return env[k] }))
	assert.Equal(t, "/env/mount", cfg.Mount)
	assert.Equal(t, 1234, cfg.Port)
	assert.Equal(t, "http://remote:1234", cfg.Server)

	err := Default().ApplyEnv(func(k string) string {
		if k == EnvPort {
			return "eighty"
		}
		return ""
	})
	assert.Error(t, err)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lazyflow.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`servant { port = 7000 }`), 0o600))
	t.Setenv(EnvMount, "/from/env")
	t.Setenv(EnvPort, "")
	t.Setenv(EnvServer, "")

	cfg, err := Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Port)
	assert.Equal(t, "/from/env", cfg.Mount)

	_, err = Load(context.Background(), filepath.Join(t.TempDir(), "missing.hcl"))
	assert.Error(t, err)
}
