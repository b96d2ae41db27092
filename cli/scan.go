package cli

import (
	"fmt"
	"io"
	"strconv"

	"modworks/cheat"
	"modworks/scan"
	"modworks/tabular"

	"github.com/spf13/cobra"
)

// ScanOptions holds flags for the scan command.
type ScanOptions struct {
	*RootOptions
	TargetOptions
	Type       string
	Depth      int
	StructSize uint
	MaxResults int
}

// NewScanCommand creates the scan command.
func NewScanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScanOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "scan <value>",
		Short: "Find pointer paths from the module base to a value",
		Long: `Walk the structures reachable from the module base and print every
offset path whose final address currently holds value. The paths can be
pasted into a cheat table's offsets.

Example:
  modworks scan --process game --type int32 --depth 3 999`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, opts, args[0])
		},
	}

	opts.addFlags(cmd, false)
	cmd.Flags().StringVar(&opts.Type, "type", "int32", "value type (bool|int32|float32)")
	cmd.Flags().IntVar(&opts.Depth, "depth", 3, "maximum pointer dereferences")
	cmd.Flags().UintVar(&opts.StructSize, "struct-size", 256, "bytes searched at each level")
	cmd.Flags().IntVar(&opts.MaxResults, "max-results", 100, "stop after this many paths, 0 for no limit")

	return cmd
}

func runScan(cmd *cobra.Command, opts *ScanOptions, arg string) error {
	out := opts.formatter(cmd)

	t, err := cheat.ParseValueType(opts.Type)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --type", err)
	}
	value, err := cheat.ParseValue(t, arg)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid value", err)
	}

	e, err := opts.attach(&cheat.Table{})
	if err != nil {
		return err
	}
	defer e.Close()

	results, err := e.Scan(commandContext(cmd),
		scan.WithValue(t, value),
		scan.WithMaxDepth(opts.Depth),
		scan.WithMaxStructSize(opts.StructSize),
		scan.WithMaxResults(opts.MaxResults),
	)
	if err != nil {
		return WrapExitError(ExitCommandError, "scan failed", err)
	}

	return out.Result(results, func(w io.Writer) error {
		table := tabular.Columns("OFFSETS", "ADDRESS", "DEPTH")
		for _, r := range results {
			table.AddRow(offsetsString(r.Offsets), addrString(r.Address), strconv.Itoa(r.Depth()))
		}
		if err := table.Render(w); err != nil {
			return err
		}
		_, err := fmt.Fprintf(w, "%d paths\n", len(results))
		return err
	})
}
