package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vk/lazyflow/internal/app"
	"github.com/vk/lazyflow/internal/config"
	"github.com/vk/lazyflow/internal/errs"
)

// Version is set at build time with -ldflags.
var Version = "dev"

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

type globalFlags struct {
	configPath string
	logLevel   string
	logFormat  string
	server     string
	mount      string
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           "lazyflow",
		Short:         "Lazy workflows of Go functions, run locally or on a servant.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "Path to an HCL config file.")
	pf.StringVar(&flags.logLevel, "log-level", "", "Logging level: debug, info, warn or error.")
	pf.StringVar(&flags.logFormat, "log-format", "", "Log output format: text or json.")
	pf.StringVar(&flags.server, "server", "", "Servant URL (overrides "+config.EnvServer+").")
	pf.StringVar(&flags.mount, "mount", "", "Servant mount point (overrides "+config.EnvMount+").")

	root.AddCommand(
		newServeCommand(flags),
		newChannelCommand(flags),
		newTouchCommand(flags),
		newPublishCommand(flags),
		newExecuteCommand(flags),
		newWaitCommand(flags),
		newCancelCommand(flags),
		newEnvCommand(flags),
		newVersionCommand(),
	)
	return root
}

// Execute runs the command tree with the given arguments and streams. Errors
// are converted to ExitError.
func Execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	slog.Debug("CLI parser started.")
	root := NewRootCommand()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	switch {
	case errors.As(err, &exitErr):
		return exitErr
	case errors.Is(err, errs.ErrUsage), isFlagError(err):
		return &ExitError{Code: 2, Message: err.Error()}
	default:
		return &ExitError{Code: 1, Message: err.Error()}
	}
}

func isFlagError(err error) bool {
	msg := err.Error()
	return strings.HasPrefix(msg, "unknown command") ||
		strings.HasPrefix(msg, "unknown flag") ||
		strings.HasPrefix(msg, "unknown shorthand flag") ||
		strings.Contains(msg, "accepts ") ||
		strings.Contains(msg, "requires at least")
}

// loadApp resolves configuration from the file, the environment and the
// flags, in that order of increasing precedence.
func loadApp(cmd *cobra.Command, flags *globalFlags) (*app.App, error) {
	ctx := cmd.Context()
	cfg, err := config.Load(ctx, flags.configPath)
	if err != nil {
		return nil, &ExitError{Code: 2, Message: err.Error()}
	}
	if flags.logLevel != "" {
		cfg.LogLevel = strings.ToLower(flags.logLevel)
	}
	if flags.logFormat != "" {
		cfg.LogFormat = strings.ToLower(flags.logFormat)
	}
	if flags.server != "" {
		cfg.Server = flags.server
	}
	if flags.mount != "" {
		cfg.Mount = flags.mount
	}
	if err := cfg.Validate(); err != nil {
		return nil, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("CLI configuration resolved.", "config", cfg)
	return app.NewApp(ctx, cmd.ErrOrStderr(), cfg), nil
}

// readPayload reads the command payload from stdin. An interactive terminal
// means there is no payload.
func readPayload(in io.Reader) ([]byte, error) {
	if f, ok := in.(*os.File); ok {
		fi, err := f.Stat()
		if err == nil && fi.Mode()&os.ModeCharDevice != 0 {
			return nil, nil
		}
	}
	b, err := io.ReadAll(in)
	if err != nil {
		return nil, fmt.Errorf("reading payload from stdin: %w", err)
	}
	return b, nil
}
