package daemon

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/vk/lazyflow/internal/ctxlog"
	"github.com/vk/lazyflow/internal/servant"
	"gopkg.in/yaml.v3"
)

func (d *Daemon) touch(ctx context.Context, cmd servant.Command) servant.Response {
	if len(cmd.Args) != 3 {
		return servant.Fail(ExitFailure, "usage: touch <path> <channel> <direction>")
	}
	slotPath, channel := cmd.Args[0], cmd.Args[1]
	dir, err := servant.ParseDirection(cmd.Args[2])
	if err != nil {
		return servant.Fail(ExitFailure, err.Error())
	}
	if len(cmd.Payload) > 0 {
		var slot servant.Slot
		if err := yaml.Unmarshal(cmd.Payload, &slot); err != nil {
			return servant.Fail(ExitFailure, fmt.Sprintf("decoding slot: %v", err))
		}
		if slot.Direction != "" && slot.Direction != dir {
			return servant.Fail(ExitFailure, fmt.Sprintf("slot %s is %s, touched as %s", slot.Name, slot.Direction, dir))
		}
	}
	link, err := d.resolve(slotPath)
	if err != nil {
		return servant.Fail(ExitFailure, err.Error())
	}

	d.mu.Lock()
	target, ok := d.channels[channel]
	if !ok {
		d.mu.Unlock()
		return servant.Fail(ExitNotFound, fmt.Sprintf("channel %s does not exist", channel))
	}
	if bound, exists := d.slots[link]; exists {
		d.mu.Unlock()
		if bound == channel {
			return servant.Response{}
		}
		return servant.Fail(ExitFailure, fmt.Sprintf("slot %s is already bound to channel %s", slotPath, bound))
	}
	d.slots[link] = channel
	d.mu.Unlock()

	logger := ctxlog.FromContext(ctx)
	if dir == servant.Input {
		if err := symlink(target, link); err != nil {
			d.unbind(link)
			return servant.Fail(ExitFailure, err.Error())
		}
		logger.Debug("Input slot bound.", "slot", slotPath, "channel", channel)
		return servant.Response{}
	}

	// Output slots appear after the command returns; the client waits for them.
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := symlink(target, link); err != nil {
			logger.Error("Binding output slot failed.", "slot", slotPath, "channel", channel, "error", err)
			d.unbind(link)
			return
		}
		logger.Debug("Output slot bound.", "slot", slotPath, "channel", channel)
	}()
	return servant.Response{}
}

func (d *Daemon) unbind(link string) {
	d.mu.Lock()
	delete(d.slots, link)
	d.mu.Unlock()
}

func symlink(target, link string) error {
	if err := os.MkdirAll(filepath.Dir(link), 0o755); err != nil {
		return err
	}
	return os.Symlink(target, link)
}

func (d *Daemon) publish(ctx context.Context, cmd servant.Command) servant.Response {
	if len(cmd.Args) != 1 || cmd.Args[0] == "" {
		return servant.Fail(ExitFailure, "usage: publish <name>")
	}
	var z servant.Zygote
	if err := yaml.Unmarshal(cmd.Payload, &z); err != nil {
		return servant.Fail(ExitFailure, fmt.Sprintf("decoding zygote: %v", err))
	}
	if z.Name == "" {
		z.Name = cmd.Args[0]
	}
	if z.Name != cmd.Args[0] {
		return servant.Fail(ExitFailure, fmt.Sprintf("zygote name %q does not match %q", z.Name, cmd.Args[0]))
	}
	for _, s := range z.Slots {
		if _, err := servant.ParseDirection(string(s.Direction)); err != nil {
			return servant.Fail(ExitFailure, fmt.Sprintf("slot %s: %v", s.Name, err))
		}
	}

	logger := ctxlog.FromContext(ctx)
	if _, ok := d.reg.Lookup(z.Name); !ok {
		logger.Warn("Published zygote has no registered function.", "zygote", z.Name)
	}

	path := filepath.Join(d.mount, zygotesDir, url.PathEscape(z.Name)+".yaml")
	if err := os.WriteFile(path, cmd.Payload, 0o644); err != nil {
		return servant.Fail(ExitFailure, err.Error())
	}

	d.mu.Lock()
	d.zygotes[z.Name] = z
	d.mu.Unlock()
	logger.Debug("Zygote published.", "zygote", z.Name, "slots", len(z.Slots))
	return servant.Response{}
}

// Zygote returns a published zygote.
func (d *Daemon) Zygote(name string) (servant.Zygote, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	z, ok := d.zygotes[name]
	return z, ok
}
