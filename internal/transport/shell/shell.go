// Package shell runs servant commands as subprocesses of the lazyflow
// binary, one process per command. The command payload is written to the
// process stdin; stdout, stderr and the exit code form the response.
package shell

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"

	"github.com/vk/lazyflow/internal/ctxlog"
	"github.com/vk/lazyflow/internal/servant"
)

// Commander is a servant.Commander that shells out.
type Commander struct {
	// Binary is the executable to run, "lazyflow" by default.
	Binary string
	// Prefix is inserted before the command words, e.g. global flags.
	Prefix []string
	// Env is appended to the current environment.
	Env []string
}

var _ servant.Commander = (*Commander)(nil)

// New returns a Commander running binary. An empty binary means "lazyflow"
// from PATH.
func New(binary string, prefix ...string) *Commander {
	if binary == "" {
		binary = "lazyflow"
	}
	return &Commander{Binary: binary, Prefix: prefix}
}

// Args returns the argument vector used for cmd.
func (c *Commander) Args(cmd servant.Command) []string {
	args := append([]string(nil), c.Prefix...)
	args = append(args, strings.Fields(cmd.Name)...)
	return append(args, cmd.Args...)
}

// Run executes cmd. A non-zero exit is reported in the Response; only a
// process that could not be started is an error.
func (c *Commander) Run(ctx context.Context, cmd servant.Command) (servant.Response, error) {
	proc := exec.CommandContext(ctx, c.Binary, c.Args(cmd)...)
	proc.Env = append(os.Environ(), c.Env...)
	proc.Stdin = bytes.NewReader(cmd.Payload)
	var stdout, stderr bytes.Buffer
	proc.Stdout = &stdout
	proc.Stderr = &stderr

	ctxlog.FromContext(ctx).Debug("Running servant command process.", "binary", c.Binary, "command", cmd.Name)
	err := proc.Run()
	resp := servant.Response{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return resp, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if ctx.Err() != nil {
			return resp, ctx.Err()
		}
		resp.ExitCode = exitErr.ExitCode()
		return resp, nil
	}
	return resp, err
}
