package cli

import (
	"io"
	"strconv"

	"modworks/process_find"
	"modworks/tabular"

	"github.com/spf13/cobra"
)

// NewPsCommand creates the ps command.
func NewPsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ps <name>",
		Short: "List processes an attach by name would consider",
		Long: `List running processes matching name the way attaching does: case
insensitive, with or without ".exe". The first one listed is the one attached to.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)

			found, err := process_find.NewProcessFinder().FindProcessByName(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to list processes", err)
			}

			return out.Result(found, func(w io.Writer) error {
				table := tabular.Columns("PID", "NAME", "EXE")
				for _, p := range found {
					table.AddRow(strconv.Itoa(int(p.PID)), p.Name, p.Exe)
				}
				return table.Render(w)
			})
		},
	}
}
