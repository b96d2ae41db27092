package cli

import (
	"fmt"
	"io"

	"modworks/cheat"
	"modworks/process_blob"

	"github.com/spf13/cobra"
)

// DumpOptions holds flags for the dump command.
type DumpOptions struct {
	*RootOptions
	TargetOptions
	Output       string
	WritableOnly bool
	MaxRegion    uint
}

// NewDumpCommand creates the dump command.
func NewDumpCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DumpOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Save a process's memory for offline use with --dump",
		Long: `Copy the readable memory of a running process into a directory. Other
commands attach to the saved copy with --dump, so a table can be checked
without the game running.

Example:
  modworks dump --process game --output ./snapshot
  modworks resolve --table game.yaml --dump ./snapshot`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(cmd, opts)
		},
	}

	opts.addFlags(cmd, false)
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output directory (required)")
	cmd.Flags().BoolVar(&opts.WritableOnly, "writable-only", false, "keep only writable regions and module images")
	cmd.Flags().UintVar(&opts.MaxRegion, "max-region", process_blob.DefaultSnapshotOptions().MaxRegionSize, "skip regions larger than this many bytes, 0 for no limit")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

func runDump(cmd *cobra.Command, opts *DumpOptions) error {
	out := opts.formatter(cmd)

	e, err := opts.attach(&cheat.Table{})
	if err != nil {
		return err
	}
	defer e.Close()

	dump, stats, err := e.Snapshot(process_blob.SnapshotOptions{
		MaxRegionSize: opts.MaxRegion,
		WritableOnly:  opts.WritableOnly,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "snapshot failed", err)
	}

	if err := dump.Save(opts.Output); err != nil {
		return WrapExitError(ExitCommandError, "failed to save dump", err)
	}

	return out.Result(stats, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "Saved %s to %s: %s\n", dump.Name, opts.Output, stats)
		return err
	})
}
