package cli

import (
	"fmt"
	"io"

	"modworks/engine"

	"github.com/spf13/cobra"
)

// ApplyOptions holds flags for the apply command.
type ApplyOptions struct {
	*RootOptions
	TargetOptions
	Cheat string
}

// NewApplyCommand creates the apply command.
func NewApplyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ApplyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply a cheat table once",
		Long: `Write every enabled cheat of a table once and exit. With --cheat only
that cheat is written, whether or not the table enables it.

Exit codes:
  0 - every cheat applied
  1 - some cheats failed
  2 - command error`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(cmd, opts)
		},
	}

	opts.addFlags(cmd, true)
	cmd.Flags().StringVarP(&opts.Cheat, "cheat", "c", "", "apply only this cheat id")
	_ = cmd.MarkFlagRequired("table")

	return cmd
}

func runApply(cmd *cobra.Command, opts *ApplyOptions) error {
	out := opts.formatter(cmd)

	table, err := opts.loadTable()
	if err != nil {
		return err
	}

	e, err := opts.attach(table)
	if err != nil {
		return err
	}
	defer e.Close()

	var report engine.TickReport
	if opts.Cheat != "" {
		entry, ok := table.Find(opts.Cheat)
		if !ok {
			return NewExitError(ExitCommandError, fmt.Sprintf("cheat %q is not in the table", opts.Cheat))
		}
		entry.IsEnabled = true

		switch err := e.ApplyOnce(entry); {
		case err != nil:
			report.Failed = append(report.Failed, engine.EntryFailure{CheatID: entry.CheatID, Err: err, Error: err.Error()})
		case entry.CurrentValue == nil:
			report.Skipped++
		default:
			report.Applied++
		}
	} else {
		if err := register(e, table.Cheats); err != nil {
			return err
		}
		if report, err = e.ApplyAll(); err != nil {
			return WrapExitError(ExitCommandError, "apply failed", err)
		}
	}

	if err := out.Result(report, func(w io.Writer) error {
		return printReport(w, report)
	}); err != nil {
		return err
	}

	if len(report.Failed) > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d cheats failed", len(report.Failed)))
	}
	return nil
}

func printReport(w io.Writer, report engine.TickReport) error {
	fmt.Fprintf(w, "%d applied, %d skipped, %d failed\n", report.Applied, report.Skipped, len(report.Failed))
	for _, f := range report.Failed {
		fmt.Fprintf(w, "  %s: %s\n", f.CheatID, f.Error)
	}
	return nil
}
