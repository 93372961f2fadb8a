package servant

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/vk/lazyflow/internal/ctxlog"
	"github.com/vk/lazyflow/internal/errs"
	"github.com/vk/lazyflow/internal/metrics"
	"gopkg.in/yaml.v3"
)

// DefaultPollInterval is how often TouchSlot re-checks an output path when no
// file system event arrives.
const DefaultPollInterval = 100 * time.Millisecond

// Client speaks the protocol to one servant.
type Client struct {
	cmd          Commander
	mount        string
	pollInterval time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithPollInterval overrides DefaultPollInterval.
func WithPollInterval(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// NewClient creates a client. mount is the local view of the servant mount
// point, where slot paths live.
func NewClient(cmd Commander, mount string, opts ...ClientOption) *Client {
	c := &Client{cmd: cmd, mount: mount, pollInterval: DefaultPollInterval}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Mount returns the mount point.
func (c *Client) Mount() string { return c.mount }

// Path maps a slot path to its location under the mount.
func (c *Client) Path(slotPath string) string {
	return filepath.Join(c.mount, filepath.FromSlash(strings.TrimPrefix(slotPath, "/")))
}

// CreateChannel creates a named channel.
func (c *Client) CreateChannel(ctx context.Context, name string) (*Channel, error) {
	if _, err := c.run(ctx, Command{Name: CmdChannelCreate, Args: []string{name}}); err != nil {
		return nil, err
	}
	return &Channel{Name: name}, nil
}

// DestroyChannel destroys a named channel.
func (c *Client) DestroyChannel(ctx context.Context, name string) error {
	_, err := c.run(ctx, Command{Name: CmdChannelDestroy, Args: []string{name}})
	return err
}

// TouchSlot binds slot at slotPath to channel. For an output slot the call
// blocks until the backing path exists under the mount.
func (c *Client) TouchSlot(ctx context.Context, slotPath string, slot Slot, channel string) error {
	payload, err := yaml.Marshal(slot)
	if err != nil {
		return fmt.Errorf("encoding slot %s: %w", slot.Name, err)
	}
	cmd := Command{Name: CmdTouch, Args: []string{slotPath, channel, string(slot.Direction)}, Payload: payload}
	if _, err := c.run(ctx, cmd); err != nil {
		return err
	}
	if slot.Direction == Output {
		return c.waitForPath(ctx, c.Path(slotPath))
	}
	return nil
}

// Publish registers a zygote on the servant. Republishing overwrites.
func (c *Client) Publish(ctx context.Context, z Zygote) error {
	payload, err := yaml.Marshal(z)
	if err != nil {
		return fmt.Errorf("encoding zygote %s: %w", z.Name, err)
	}
	_, err = c.run(ctx, Command{Name: CmdPublish, Args: []string{z.Name}, Payload: payload})
	return err
}

// NewExecution prepares an execution of zygote. Nothing is sent until Start.
func (c *Client) NewExecution(zygote string, bindings []Binding) *Execution {
	return &Execution{client: c, zygote: zygote, bindings: append([]Binding(nil), bindings...)}
}

func (c *Client) run(ctx context.Context, cmd Command) (Response, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Sending servant command.", "command", cmd.String())

	resp, err := c.cmd.Run(ctx, cmd)
	if err != nil {
		metrics.RemoteCommands.WithLabelValues(cmd.Name, metrics.OutcomeFailed).Inc()
		return resp, fmt.Errorf("sending %q: %w", cmd.Name, err)
	}
	if resp.ExitCode != 0 || resp.Stderr != "" {
		metrics.RemoteCommands.WithLabelValues(cmd.Name, metrics.OutcomeFailed).Inc()
		logger.Debug("Servant command failed.", "command", cmd.Name, "exit_code", resp.ExitCode, "stderr", resp.Stderr)
		return resp, &errs.RemoteCommandError{Command: cmd.String(), ExitCode: resp.ExitCode, Stderr: resp.Stderr}
	}
	metrics.RemoteCommands.WithLabelValues(cmd.Name, metrics.OutcomeSucceeded).Inc()
	return resp, nil
}

// waitForPath returns once path exists. It listens for file system events in
// the parent directory and falls back to polling, since the directory itself
// may not exist yet when the wait starts.
func (c *Client) waitForPath(ctx context.Context, path string) error {
	if exists(path) {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		ctxlog.FromContext(ctx).Debug("File watcher unavailable; polling only.", "error", err)
	} else {
		defer watcher.Close()
	}
	watching := false
	watch := func() {
		if watcher != nil && !watching {
			watching = watcher.Add(filepath.Dir(path)) == nil
		}
	}
	watch()

	var (
		events <-chan fsnotify.Event
		errc   <-chan error
	)
	if watcher != nil {
		events, errc = watcher.Events, watcher.Errors
	}
	return c.awaitPath(ctx, path, events, errc, watch)
}

// awaitPath loops until path exists. Watcher events only trigger an early
// re-check; the ticker alone is enough to make progress, so a failing or
// closed watcher degrades to polling.
func (c *Client) awaitPath(ctx context.Context, path string, events <-chan fsnotify.Event, errc <-chan error, rewatch func()) error {
	logger := ctxlog.FromContext(ctx)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		if exists(path) {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for slot %s: %w", path, ctx.Err())
		case _, ok := <-events:
			if !ok {
				events = nil
			}
		case err, ok := <-errc:
			if !ok {
				errc = nil
				continue
			}
			logger.Debug("File watcher error; relying on polling.", "path", path, "error", err)
		case <-ticker.C:
			rewatch()
		}
	}
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// Commander returns the transport the client sends commands through.
func (c *Client) Commander() Commander { return c.cmd }
