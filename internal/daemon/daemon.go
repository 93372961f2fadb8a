package daemon

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/vk/lazyflow/internal/ctxlog"
	"github.com/vk/lazyflow/internal/registry"
	"github.com/vk/lazyflow/internal/servant"
)

const (
	channelsDir = ".channels"
	zygotesDir  = ".zygotes"
)

// Exit codes reported by commands and executions.
const (
	ExitOK        = 0
	ExitFailure   = 1
	ExitNotFound  = 2
	ExitCancelled = -1
)

// DefaultRetention is how long a finished execution that nobody waited for
// stays queryable.
const DefaultRetention = 10 * time.Minute

// Option configures a Daemon.
type Option func(*Daemon)

// WithExecutionTimeout bounds every execution. Zero means no limit.
func WithExecutionTimeout(d time.Duration) Option {
	return func(s *Daemon) { s.timeout = d }
}

// WithRetention overrides DefaultRetention. Zero keeps unwaited executions
// until the daemon closes.
func WithRetention(d time.Duration) Option {
	return func(s *Daemon) { s.retention = d }
}

// Daemon is the servant runtime.
type Daemon struct {
	mount   string
	reg     *registry.Registry
	timeout   time.Duration
	retention time.Duration

	mu         sync.Mutex
	channels   map[string]string
	slots      map[string]string
	zygotes    map[string]servant.Zygote
	executions map[string]*execution

	wg sync.WaitGroup
}

// New prepares mount and returns a daemon serving the functions in reg.
func New(mount string, reg *registry.Registry, opts ...Option) (*Daemon, error) {
	if mount == "" {
		return nil, fmt.Errorf("mount point is required")
	}
	abs, err := filepath.Abs(mount)
	if err != nil {
		return nil, fmt.Errorf("resolving mount point: %w", err)
	}
	for _, dir := range []string{channelsDir, zygotesDir} {
		if err := os.MkdirAll(filepath.Join(abs, dir), 0o755); err != nil {
			return nil, fmt.Errorf("preparing mount point: %w", err)
		}
	}
	d := &Daemon{
		mount:      abs,
		reg:        reg,
		channels:   make(map[string]string),
		slots:      make(map[string]string),
		zygotes:    make(map[string]servant.Zygote),
		executions: make(map[string]*execution),
		retention:  DefaultRetention,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Mount returns the absolute mount point.
func (d *Daemon) Mount() string { return d.mount }

// Handle implements servant.Handler.
func (d *Daemon) Handle(ctx context.Context, cmd servant.Command) servant.Response {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Servant command received.", "command", cmd.String())

	var resp servant.Response
	switch cmd.Name {
	case servant.CmdChannelCreate:
		resp = d.createChannel(ctx, cmd)
	case servant.CmdChannelDestroy:
		resp = d.destroyChannel(ctx, cmd)
	case servant.CmdTouch:
		resp = d.touch(ctx, cmd)
	case servant.CmdPublish:
		resp = d.publish(ctx, cmd)
	case servant.CmdExecute:
		resp = d.execute(ctx, cmd)
	case servant.CmdWait:
		resp = d.wait(ctx, cmd)
	case servant.CmdCancel:
		resp = d.cancel(ctx, cmd)
	default:
		resp = servant.Fail(ExitNotFound, fmt.Sprintf("unknown command %q", cmd.Name))
	}
	if resp.ExitCode != ExitOK {
		logger.Debug("Servant command rejected.", "command", cmd.Name, "exit_code", resp.ExitCode, "stderr", resp.Stderr)
	}
	return resp
}

// Close cancels running executions and waits for background work.
func (d *Daemon) Close(ctx context.Context) error {
	d.mu.Lock()
	for _, e := range d.executions {
		e.cancel()
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Daemon) createChannel(ctx context.Context, cmd servant.Command) servant.Response {
	if len(cmd.Args) != 1 || cmd.Args[0] == "" {
		return servant.Fail(ExitFailure, "usage: channel create <name>")
	}
	name := cmd.Args[0]

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.channels[name]; exists {
		return servant.Fail(ExitFailure, fmt.Sprintf("channel %s already exists", name))
	}
	path := filepath.Join(d.mount, channelsDir, url.PathEscape(name))
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		return servant.Fail(ExitFailure, err.Error())
	}
	d.channels[name] = path
	ctxlog.FromContext(ctx).Debug("Channel created.", "channel", name)
	return servant.Response{}
}

func (d *Daemon) destroyChannel(ctx context.Context, cmd servant.Command) servant.Response {
	if len(cmd.Args) != 1 {
		return servant.Fail(ExitFailure, "usage: channel destroy <name>")
	}
	name := cmd.Args[0]

	d.mu.Lock()
	defer d.mu.Unlock()
	path, ok := d.channels[name]
	if !ok {
		return servant.Fail(ExitNotFound, fmt.Sprintf("channel %s does not exist", name))
	}
	for slotPath, ch := range d.slots {
		if ch == name {
			_ = os.Remove(slotPath)
			delete(d.slots, slotPath)
		}
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return servant.Fail(ExitFailure, err.Error())
	}
	delete(d.channels, name)
	ctxlog.FromContext(ctx).Debug("Channel destroyed.", "channel", name)
	return servant.Response{}
}

// resolve maps a slot path to a location inside the mount.
func (d *Daemon) resolve(slotPath string) (string, error) {
	p := filepath.Join(d.mount, filepath.FromSlash(strings.TrimPrefix(slotPath, "/")))
	rel, err := filepath.Rel(d.mount, p)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") || strings.HasPrefix(rel, ".channels") || strings.HasPrefix(rel, ".zygotes") {
		return "", fmt.Errorf("slot path %q is outside the mount", slotPath)
	}
	return p, nil
}

func (d *Daemon) channelPath(name string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.channels[name]
	return p, ok
}
