package cli

import (
	"fmt"

	"modworks/console"
	"modworks/control"
	"modworks/engine"

	"github.com/spf13/cobra"
)

// ConsoleOptions holds flags for the console command.
type ConsoleOptions struct {
	*RootOptions
	TargetOptions
}

// NewConsoleCommand creates the console command.
func NewConsoleCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ConsoleOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "console",
		Short: "Drive the engine from an interactive prompt",
		Long: `Start an interactive prompt with line editing, history and tab completion.

With --table the table's cheats are loaded and, when the table or the flags
name a process, the console attaches to it before the first prompt.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConsole(cmd, opts)
		},
	}

	opts.addFlags(cmd, true)
	cmd.Flags().DurationVar(&opts.Interval, "interval", 0, "loop tick interval, defaults to the table's or 100ms")

	return cmd
}

func runConsole(cmd *cobra.Command, opts *ConsoleOptions) error {
	table, err := opts.loadTable()
	if err != nil {
		return err
	}

	cfg, _, err := opts.config(table)
	if err != nil {
		return err
	}

	e := engine.New(cfg)
	defer e.Close()

	if err := register(e, table.Cheats); err != nil {
		return err
	}

	if spec := opts.spec(table); spec.Process != "" || spec.PID != 0 {
		if err := e.AttachTarget(spec); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "attach failed: %v\n", err)
		}
	}

	term := console.New(control.New(e), cmd.OutOrStdout(), cmd.ErrOrStderr())
	if err := term.Run(); err != nil {
		return WrapExitError(ExitCommandError, "console failed", err)
	}
	return nil
}
