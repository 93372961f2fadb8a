package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/vk/lazyflow/internal/envexplorer"
	"github.com/vk/lazyflow/internal/servant"
)

func newServeCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run a servant on the configured mount point and port.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, flags)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.Serve(ctx, nil)
		},
	}
}

// remote forwards one command to the servant and mirrors the response.
func remote(cmd *cobra.Command, flags *globalFlags, name string, args []string, withPayload bool) error {
	a, err := loadApp(cmd, flags)
	if err != nil {
		return err
	}
	var payload []byte
	if withPayload {
		if payload, err = readPayload(cmd.InOrStdin()); err != nil {
			return err
		}
	}

	client, err := a.Dial(cmd.Context())
	if err != nil {
		return err
	}
	defer client.Close()

	resp, err := client.Run(cmd.Context(), servant.Command{Name: name, Args: args, Payload: payload})
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), resp.Stdout)
	fmt.Fprint(cmd.ErrOrStderr(), resp.Stderr)
	if resp.ExitCode != 0 {
		return &ExitError{Code: resp.ExitCode, Message: fmt.Sprintf("%s exited with code %d", name, resp.ExitCode)}
	}
	return nil
}

func newChannelCommand(flags *globalFlags) *cobra.Command {
	channel := &cobra.Command{
		Use:   "channel",
		Short: "Create or destroy channels.",
	}
	channel.AddCommand(
		&cobra.Command{
			Use:   "create <name>",
			Short: "Create a channel.",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return remote(cmd, flags, servant.CmdChannelCreate, args, false)
			},
		},
		&cobra.Command{
			Use:   "destroy <name>",
			Short: "Destroy a channel and the slots bound to it.",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return remote(cmd, flags, servant.CmdChannelDestroy, args, false)
			},
		},
	)
	return channel
}

func newTouchCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "touch <path> <channel> <input|output>",
		Short: "Bind a slot path to a channel. The slot description is read from stdin.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := servant.ParseDirection(args[2]); err != nil {
				return &ExitError{Code: 2, Message: err.Error()}
			}
			return remote(cmd, flags, servant.CmdTouch, args, true)
		},
	}
}

func newPublishCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "publish <name>",
		Short: "Publish a zygote. The zygote YAML is read from stdin.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return remote(cmd, flags, servant.CmdPublish, args, true)
		},
	}
}

func newExecuteCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "execute <zygote>",
		Short: "Start an execution and print its id. Bindings YAML is read from stdin.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return remote(cmd, flags, servant.CmdExecute, args, true)
		},
	}
}

func newWaitCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "wait <id>",
		Short: "Wait for an execution and print its result.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return remote(cmd, flags, servant.CmdWait, args, false)
		},
	}
}

func newCancelCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a running execution.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return remote(cmd, flags, servant.CmdCancel, args, false)
		},
	}
}

func newEnvCommand(flags *globalFlags) *cobra.Command {
	var dir string
	env := &cobra.Command{
		Use:   "env [packages...]",
		Short: "Print the environment manifest for the given packages.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, flags)
			if err != nil {
				return err
			}
			ctx := a.Context()
			pkgs, err := listPackages(ctx, dir, args...)
			if err != nil {
				return err
			}
			m, err := a.Explorer().Explore(ctx, pkgs)
			if err != nil {
				return err
			}
			b, err := m.Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	}
	env.Flags().StringVarP(&dir, "dir", "C", ".", "Directory to run go list in.")
	return env
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version.",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "lazyflow %s\n", Version)
		},
	}
}

// listPackages is replaced in tests.
var listPackages = envexplorer.ListPackages
