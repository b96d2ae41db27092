package cli

import (
	"errors"
	"fmt"
	"time"

	"modworks/cheat"
	"modworks/engine"
	"modworks/process"
	"modworks/process_blob"

	"github.com/spf13/cobra"
)

// TargetOptions selects the process to attach to, live or from a dump.
// Flags override what the cheat table names.
type TargetOptions struct {
	Table    string
	Process  string
	Module   string
	PID      int
	Dump     string
	Interval time.Duration

	// Observer receives loop tick reports
	Observer func(engine.TickReport)
}

func (o *TargetOptions) addFlags(cmd *cobra.Command, withTable bool) {
	if withTable {
		cmd.Flags().StringVarP(&o.Table, "table", "t", "", "cheat table (YAML or JSON)")
	}
	cmd.Flags().StringVarP(&o.Process, "process", "p", "", "process name, defaults to the table's process")
	cmd.Flags().StringVarP(&o.Module, "module", "m", "", "module the first offset is relative to, defaults to the executable")
	cmd.Flags().IntVar(&o.PID, "pid", 0, "process ID, wins over --process")
	cmd.Flags().StringVar(&o.Dump, "dump", "", "attach to a saved memory dump instead of a live process")
}

func (o *TargetOptions) loadTable() (*cheat.Table, error) {
	if o.Table == "" {
		return &cheat.Table{}, nil
	}

	table, err := cheat.LoadTable(o.Table)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load cheat table", err)
	}
	return table, nil
}

func (o *TargetOptions) spec(table *cheat.Table) engine.TargetSpec {
	spec := engine.TargetSpec{
		Process: table.Process,
		Module:  table.Module,
		PID:     process.ProcessID(o.PID),
	}
	if o.Process != "" {
		spec.Process = o.Process
	}
	if o.Module != "" {
		spec.Module = o.Module
	}
	return spec
}

// config builds the engine configuration. With --dump set the dump stands in
// for both the process table and the process.
func (o *TargetOptions) config(table *cheat.Table) (engine.Config, *process_blob.ProcessDump, error) {
	cfg := engine.Config{Interval: o.Interval, Observer: o.Observer}
	if cfg.Interval == 0 {
		cfg.Interval = table.Interval
	}

	if o.Dump == "" {
		return cfg, nil, nil
	}

	dump, err := process_blob.LoadProcessDump(o.Dump)
	if err != nil {
		return cfg, nil, WrapExitError(ExitCommandError, "failed to load dump", err)
	}
	cfg.Finder = dump
	cfg.Opener = dump
	return cfg, dump, nil
}

// attach creates an engine attached to the selected target. The caller closes it.
func (o *TargetOptions) attach(table *cheat.Table) (*engine.Engine, error) {
	cfg, dump, err := o.config(table)
	if err != nil {
		return nil, err
	}

	spec := o.spec(table)
	if spec.Process == "" && spec.PID == 0 && dump != nil {
		spec.PID = dump.PID
	}
	if spec.Process == "" && spec.PID == 0 {
		return nil, NewExitError(ExitCommandError, "no target: set --process, --pid or the table's process")
	}

	e := engine.New(cfg)
	if err := e.AttachTarget(spec); err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to attach", err)
	}
	return e, nil
}

// register adds every table entry, reporting all invalid entries together
func register(e *engine.Engine, entries []cheat.Entry) error {
	var errs []error
	for _, entry := range entries {
		if err := e.AddCheat(entry); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("%d cheats rejected", len(errs)), err)
	}
	return nil
}
