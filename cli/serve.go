package cli

import (
	"os"

	"modworks/cheat"
	"modworks/control"
	"modworks/engine"

	"github.com/spf13/cobra"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	TargetOptions
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Accept control commands as JSON lines on stdin",
		Long: `Run the engine detached and answer one JSON request per stdin line with
one JSON response per stdout line, until stdin closes.

Request:  {"id": "1", "command": "attach_to_game", "args": {"processName": "game"}}
Response: {"id": "1", "ok": true, "data": {...}}

Log output goes to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Dump, "dump", "", "serve against a saved memory dump instead of live processes")
	cmd.Flags().DurationVar(&opts.Interval, "interval", 0, "loop tick interval, defaults to 100ms")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	cfg, _, err := opts.config(&cheat.Table{})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	// responses own stdout, loggers writing to os.Stdout land on stderr
	stdout := os.Stdout
	os.Stdout = os.Stderr
	defer func() { os.Stdout = stdout }()

	e := engine.New(cfg)
	defer e.Close()

	if err := control.New(e).Serve(commandContext(cmd), cmd.InOrStdin(), out); err != nil {
		return WrapExitError(ExitCommandError, "serve failed", err)
	}
	return nil
}
