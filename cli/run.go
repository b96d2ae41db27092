package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"modworks/engine"

	"github.com/spf13/cobra"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	TargetOptions
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Keep a cheat table applied until interrupted",
		Long: `Attach to the table's process, register its cheats and reapply every
enabled cheat each interval until SIGINT or SIGTERM.

Example:
  modworks run --table battlefront.yaml
  modworks run --table battlefront.yaml --interval 50ms --pid 4242`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoop(cmd, opts)
		},
	}

	opts.addFlags(cmd, true)
	cmd.Flags().DurationVar(&opts.Interval, "interval", 0, "tick interval, defaults to the table's or 100ms")
	_ = cmd.MarkFlagRequired("table")

	return cmd
}

func runLoop(cmd *cobra.Command, opts *RunOptions) error {
	out := opts.formatter(cmd)

	if opts.Verbose {
		errOut := cmd.ErrOrStderr()
		opts.Observer = func(report engine.TickReport) {
			fmt.Fprintf(errOut, "tick %d: ", report.Tick)
			printReport(errOut, report)
		}
	}

	table, err := opts.loadTable()
	if err != nil {
		return err
	}

	e, err := opts.attach(table)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := register(e, table.Cheats); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			out.Printf("Received %s, stopping\n", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := e.StartLoop(); err != nil {
		return WrapExitError(ExitCommandError, "failed to start loop", err)
	}

	target, _ := e.Target()
	out.Printf("Applying %d cheats to %s (%d) every %s\n", len(table.Cheats), target.Process, target.PID, e.Interval())

	<-ctx.Done()

	if err := e.StopLoop(); err != nil {
		return err
	}

	status := e.Status()
	return out.Result(status, func(w io.Writer) error {
		return printStatus(w, status, out.Color)
	})
}

func printStatus(w io.Writer, status engine.Status, color bool) error {
	fmt.Fprintf(w, "%d ticks, loop %s\n", status.Ticks, status.State)

	table := statusTable(color)
	for _, s := range status.Entries {
		table.AddRow(
			s.CheatID,
			fmt.Sprint(s.Applied),
			fmt.Sprint(s.TotalFailures),
			addrString(s.LastAddress),
			s.LastError,
		)
	}
	return table.Render(w)
}
