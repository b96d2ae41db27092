package cli

import (
	"fmt"
	"io"
	"strings"

	"modworks/cheat"
	"modworks/engine"
	"modworks/hexdump"

	"github.com/spf13/cobra"
)

// ResolveOptions holds flags for the resolve command.
type ResolveOptions struct {
	*RootOptions
	TargetOptions
	Cheat  string
	Window int
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResolveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Show where each cheat of a table points, without writing",
		Long: `Resolve every cheat's pointer path in the target and print each hop, the
current value and a hex dump around the final address. Nothing is written.

Example:
  modworks resolve --table battlefront.yaml
  modworks resolve --table battlefront.yaml --dump ./snapshot --cheat god_mode`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd, opts)
		},
	}

	opts.addFlags(cmd, true)
	cmd.Flags().StringVarP(&opts.Cheat, "cheat", "c", "", "resolve only this cheat id")
	cmd.Flags().IntVar(&opts.Window, "window", 64, "bytes of memory to dump around each address, 0 to disable")
	_ = cmd.MarkFlagRequired("table")

	return cmd
}

func runResolve(cmd *cobra.Command, opts *ResolveOptions) error {
	out := opts.formatter(cmd)

	table, err := opts.loadTable()
	if err != nil {
		return err
	}

	entries := table.Cheats
	if opts.Cheat != "" {
		entry, ok := table.Find(opts.Cheat)
		if !ok {
			return NewExitError(ExitCommandError, fmt.Sprintf("cheat %q is not in the table", opts.Cheat))
		}
		entries = []cheat.Entry{entry}
	}

	e, err := opts.attach(table)
	if err != nil {
		return err
	}
	defer e.Close()

	type resolved struct {
		engine.Inspection
		Error string `json:"error,omitempty"`
	}

	var results []resolved
	failures := 0
	for _, entry := range entries {
		in, err := e.Inspect(entry, opts.Window)
		r := resolved{Inspection: in}
		if err != nil {
			r.Error = err.Error()
			failures++
		}
		results = append(results, r)
	}

	err = out.Result(results, func(w io.Writer) error {
		for i, r := range results {
			printInspection(w, entries[i], r.Inspection, r.Error, out.Color)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if failures > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d cheats did not resolve", failures))
	}
	return nil
}

func printInspection(w io.Writer, entry cheat.Entry, in engine.Inspection, errText string, color bool) {
	fmt.Fprintf(w, "%s %s %s\n", entry.CheatID, offsetsString(entry.Offsets), entry.ValueType)

	hops := make([]string, len(in.Hops))
	for i, h := range in.Hops {
		hops[i] = addrString(h)
	}
	if len(hops) > 0 {
		fmt.Fprintf(w, "  path:  %s\n", strings.Join(hops, " -> "))
	}

	if errText != "" {
		fmt.Fprintf(w, "  error: %s\n\n", errText)
		return
	}

	fmt.Fprintf(w, "  value: %s\n", valueString(in.Value))

	if len(in.Window) > 0 {
		t, _ := entry.Type()
		hexdump.DumpToWriter(w, in.Window, hexdump.Options{
			BytesPerLine:   16,
			StartOffset:    uint64(in.WindowStart),
			HighlightStart: uint64(in.Address),
			HighlightLen:   int(t.Size()),
			Color:          color,
			MemoryMap:      in.MemoryMap,
		})
	}
	fmt.Fprintln(w)
}
