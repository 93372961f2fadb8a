package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/lazyflow/internal/ctxlog"
)

// Command transports a client can use to reach the servant.
const (
	TransportSocketIO = "socketio"
	TransportShell    = "shell"
)

// Environment variables that override the file.
const (
	EnvMount  = "LAZYFLOW_MOUNT"
	EnvPort   = "LAZYFLOW_PORT"
	EnvServer = "LAZYFLOW_SERVER"
)

var validate = validator.New()

// Config is the resolved configuration.
type Config struct {
	Mount            string        `validate:"required"`
	Host             string        `validate:"required"`
	Port             int           `validate:"gte=1,lte=65535"`
	Server           string        `validate:"omitempty,url"`
	PollInterval     time.Duration `validate:"gt=0"`
	ExecutionTimeout time.Duration `validate:"gte=0"`
	ModuleProxy      string        `validate:"omitempty,url"`

	// Transport selects how clients send commands. The shell transport runs
	// ShellBinary once per command.
	Transport   string `validate:"oneof=socketio shell"`
	ShellBinary string

	CachePath     string
	CacheInMemory bool

	LogLevel  string `validate:"oneof=debug info warn error"`
	LogFormat string `validate:"oneof=text json"`

	Workers     int `validate:"gte=1"`
	MetricsPort int `validate:"gte=0,lte=65535"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Mount:        "/tmp/lzy",
		Host:         "localhost",
		Port:         8899,
		PollInterval: 100 * time.Millisecond,
		Transport:    TransportSocketIO,
		ShellBinary:  "lazyflow",
		LogLevel:     "info",
		LogFormat:    "text",
		Workers:      1,
	}
}

// fileRoot mirrors the file layout. Everything is optional; absent values
// keep their defaults.
type fileRoot struct {
	Servant     *servantBlock `hcl:"servant,block"`
	Cache       *cacheBlock   `hcl:"cache,block"`
	Log         *logBlock     `hcl:"log,block"`
	Workers     *int          `hcl:"workers,optional"`
	MetricsPort *int          `hcl:"metrics_port,optional"`
}

type servantBlock struct {
	Mount            *string `hcl:"mount,optional"`
	Host             *string `hcl:"host,optional"`
	Port             *int    `hcl:"port,optional"`
	Server           *string `hcl:"server,optional"`
	PollInterval     *string `hcl:"poll_interval,optional"`
	ExecutionTimeout *string `hcl:"execution_timeout,optional"`
	ModuleProxy      *string `hcl:"module_proxy,optional"`
	Transport        *string `hcl:"transport,optional"`
	ShellBinary      *string `hcl:"shell_binary,optional"`
}

type cacheBlock struct {
	Path     *string `hcl:"path,optional"`
	InMemory *bool   `hcl:"in_memory,optional"`
}

type logBlock struct {
	Level  *string `hcl:"level,optional"`
	Format *string `hcl:"format,optional"`
}

// Load reads path (if not empty), applies the environment and validates.
func Load(ctx context.Context, path string) (*Config, error) {
	logger := ctxlog.FromContext(ctx)
	cfg := Default()

	if path != "" {
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := cfg.decode(src, path); err != nil {
			return nil, err
		}
		logger.Debug("Config file loaded.", "path", path)
	}

	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes HCL source on top of the defaults and validates it.
// Environment variables are not consulted.
func Parse(src []byte, filename string) (*Config, error) {
	cfg := Default()
	if err := cfg.decode(src, filename); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(src []byte, filename string) error {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}

	var root fileRoot
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}

	if s := root.Servant; s != nil {
		setString(&c.Mount, s.Mount)
		setString(&c.Host, s.Host)
		setInt(&c.Port, s.Port)
		setString(&c.Server, s.Server)
		setString(&c.ModuleProxy, s.ModuleProxy)
		setString(&c.Transport, s.Transport)
		setString(&c.ShellBinary, s.ShellBinary)
		if err := setDuration(&c.PollInterval, s.PollInterval, "poll_interval"); err != nil {
			return err
		}
		if err := setDuration(&c.ExecutionTimeout, s.ExecutionTimeout, "execution_timeout"); err != nil {
			return err
		}
	}
	if b := root.Cache; b != nil {
		setString(&c.CachePath, b.Path)
		if b.InMemory != nil {
			c.CacheInMemory = *b.InMemory
		}
	}
	if l := root.Log; l != nil {
		setString(&c.LogLevel, l.Level)
		setString(&c.LogFormat, l.Format)
	}
	setInt(&c.Workers, root.Workers)
	setInt(&c.MetricsPort, root.MetricsPort)
	return nil
}

// ApplyEnv overrides mount, port and server from the environment.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv(EnvMount); v != "" {
		c.Mount = v
	}
	if v := getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: invalid port %q", EnvPort, v)
		}
		c.Port = port
	}
	if v := getenv(EnvServer); v != "" {
		c.Server = v
	}
	return nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Address is the listen address of the servant.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ServerURL is the URL clients use to reach the servant.
func (c *Config) ServerURL() string {
	if c.Server != "" {
		return c.Server
	}
	return fmt.Sprintf("http://%s:%d", c.Host, c.Port)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *string, name string) error {
	if v == nil {
		return nil
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = d
	return nil
}
