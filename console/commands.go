package console

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"modworks/cheat"
	"modworks/control"
	"modworks/engine"
	"modworks/process"
	"modworks/tabular"

	"github.com/google/shlex"
)

var errNoCmd = errors.New("command not available")

type cmdFn func(c *Commands, w io.Writer, args []string) error

type command struct {
	aliases []string
	args    string
	fn      cmdFn
	help    string
}

func (c command) match(name string) bool {
	for _, alias := range c.aliases {
		if alias == name {
			return true
		}
	}
	return false
}

// ExitRequestError is returned by the exit command
type ExitRequestError struct{}

func (ExitRequestError) Error() string {
	return ""
}

// Commands maps console input onto control commands
type Commands struct {
	cmds    []command
	control *control.Dispatcher
}

// NewCommands creates the console command table over d
func NewCommands(d *control.Dispatcher) *Commands {
	c := &Commands{control: d}

	c.cmds = []command{
		{aliases: []string{"help", "h"}, args: "[command]", fn: help, help: `Prints the help message.

Type "help" followed by the name of a command for more information about it.`},
		{aliases: []string{"attach", "a"}, args: "<process|pid> [module]", fn: attach, help: `Attaches to a running game.

A numeric argument is taken as a process ID. Offsets are relative to module,
which defaults to the game executable.`},
		{aliases: []string{"detach"}, fn: simple("detach"), help: "Detaches from the game, keeping the cheat list."},
		{aliases: []string{"add"}, args: "<id> <offsets> <type> [value]", fn: add, help: `Adds or replaces a cheat.

Offsets are comma separated, e.g. 0x23df1b0,0x38. The cheat is enabled when a
value is given.`},
		{aliases: []string{"remove", "rm"}, args: "<id>", fn: remove, help: "Removes a cheat."},
		{aliases: []string{"enable"}, args: "<id>", fn: enable(true), help: "Enables a cheat."},
		{aliases: []string{"disable"}, args: "<id>", fn: enable(false), help: "Disables a cheat."},
		{aliases: []string{"set"}, args: "<id> <value>", fn: set, help: "Changes the value a cheat writes."},
		{aliases: []string{"read", "r"}, args: "<id>", fn: read, help: "Reads the value currently in game memory at a cheat's address."},
		{aliases: []string{"apply"}, args: "<id>", fn: apply, help: "Writes a cheat's value once, enabled or not."},
		{aliases: []string{"start"}, fn: simple("start_cheat_loop"), help: "Starts re-applying enabled cheats every tick."},
		{aliases: []string{"stop"}, fn: simple("stop_cheat_loop"), help: "Stops the cheat loop."},
		{aliases: []string{"list", "ls"}, fn: list, help: "Lists the registered cheats."},
		{aliases: []string{"status", "st"}, fn: status, help: "Shows the target, loop state and per-cheat results."},
		{aliases: []string{"load"}, args: "<table>", fn: load, help: "Adds every cheat from a YAML or JSON cheat table."},
		{aliases: []string{"exit", "quit", "q"}, fn: exit, help: "Exits the console."},
	}

	return c
}

// Aliases returns every name a command answers to
func (c *Commands) Aliases() []string {
	var aliases []string
	for _, cmd := range c.cmds {
		aliases = append(aliases, cmd.aliases...)
	}
	return aliases
}

func (c *Commands) find(name string) (command, bool) {
	for _, cmd := range c.cmds {
		if cmd.match(name) {
			return cmd, true
		}
	}
	return command{}, false
}

// Call runs one console line, writing its output to w
func (c *Commands) Call(line string, w io.Writer) error {
	fields, err := shlex.Split(line)
	if err != nil {
		return err
	}
	if len(fields) == 0 {
		return nil
	}

	cmd, ok := c.find(fields[0])
	if !ok {
		return fmt.Errorf("%w: %s", errNoCmd, fields[0])
	}
	return cmd.fn(c, w, fields[1:])
}

func (c *Commands) dispatch(command string, args any) (any, error) {
	var raw json.RawMessage
	if args != nil {
		b, err := json.Marshal(args)
		if err != nil {
			return nil, err
		}
		raw = b
	}

	res := c.control.Dispatch(command, raw)
	if !res.OK {
		return nil, fmt.Errorf("%s (%s)", res.Error, res.Code)
	}
	return res.Data, nil
}

func (c *Commands) entry(id string) (cheat.Entry, error) {
	data, err := c.dispatch("list_cheats", nil)
	if err != nil {
		return cheat.Entry{}, err
	}

	entries, _ := data.([]cheat.Entry)
	for _, e := range entries {
		if e.CheatID == id {
			return e, nil
		}
	}
	return cheat.Entry{}, fmt.Errorf("cheat %q not found", id)
}

func argCount(args []string, min, max int) error {
	if len(args) < min || len(args) > max {
		if min == max {
			return fmt.Errorf("invalid number of arguments, expected %d, actual %d", min, len(args))
		}
		return fmt.Errorf("invalid number of arguments, expected %d to %d, actual %d", min, max, len(args))
	}
	return nil
}

func help(c *Commands, w io.Writer, args []string) error {
	if len(args) > 0 {
		cmd, ok := c.find(args[0])
		if !ok {
			return fmt.Errorf("%w: %s", errNoCmd, args[0])
		}
		fmt.Fprintf(w, "%s %s\n\n%s\n", cmd.aliases[0], cmd.args, cmd.help)
		return nil
	}

	fmt.Fprintln(w, "The following commands are available:")
	tw := tabwriter.NewWriter(w, 0, 8, 1, ' ', 0)
	for _, cmd := range c.cmds {
		h, _, _ := strings.Cut(cmd.help, "\n")
		if len(cmd.aliases) > 1 {
			fmt.Fprintf(tw, "    %s (alias: %s)\t%s\n", cmd.aliases[0], strings.Join(cmd.aliases[1:], " | "), h)
		} else {
			fmt.Fprintf(tw, "    %s\t%s\n", cmd.aliases[0], h)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Type help followed by a command for full documentation.")
	return nil
}

func simple(name string) cmdFn {
	return func(c *Commands, w io.Writer, args []string) error {
		if err := argCount(args, 0, 0); err != nil {
			return err
		}
		_, err := c.dispatch(name, nil)
		return err
	}
}

func attach(c *Commands, w io.Writer, args []string) error {
	if err := argCount(args, 1, 2); err != nil {
		return err
	}

	spec := engine.TargetSpec{}
	if pid, err := strconv.ParseUint(args[0], 10, 32); err == nil {
		spec.PID = process.ProcessID(pid)
	} else {
		spec.Process = args[0]
	}
	if len(args) == 2 {
		spec.Module = args[1]
	}

	data, err := c.dispatch("attach_to_game", spec)
	if err != nil {
		return err
	}

	target := data.(engine.Target)
	fmt.Fprintf(w, "attached to %s (pid %d), %s at 0x%x\n", target.Process, target.PID, target.Module, uint64(target.Base))
	return nil
}

func add(c *Commands, w io.Writer, args []string) error {
	if err := argCount(args, 3, 4); err != nil {
		return err
	}

	offsets, err := cheat.ParseOffsets(args[1])
	if err != nil {
		return err
	}
	t, err := cheat.ParseValueType(args[2])
	if err != nil {
		return err
	}

	entry := cheat.Entry{
		CheatID:   args[0],
		Offsets:   offsets,
		ValueType: string(t),
		Size:      t.Size(),
	}
	if len(args) == 4 {
		if entry.CurrentValue, err = cheat.ParseValue(t, args[3]); err != nil {
			return err
		}
		entry.IsEnabled = true
	}

	_, err = c.dispatch("add_cheat", map[string]any{"cheatConfig": entry})
	return err
}

func remove(c *Commands, w io.Writer, args []string) error {
	if err := argCount(args, 1, 1); err != nil {
		return err
	}
	_, err := c.dispatch("remove_cheat", map[string]any{"cheatId": args[0]})
	return err
}

func enable(enabled bool) cmdFn {
	return func(c *Commands, w io.Writer, args []string) error {
		if err := argCount(args, 1, 1); err != nil {
			return err
		}
		_, err := c.dispatch("set_cheat_enabled", map[string]any{"cheatId": args[0], "enabled": enabled})
		return err
	}
}

func set(c *Commands, w io.Writer, args []string) error {
	if err := argCount(args, 2, 2); err != nil {
		return err
	}

	entry, err := c.entry(args[0])
	if err != nil {
		return err
	}
	t, err := entry.Type()
	if err != nil {
		return err
	}
	value, err := cheat.ParseValue(t, args[1])
	if err != nil {
		return err
	}

	_, err = c.dispatch("update_cheat_value", map[string]any{"cheatId": args[0], "value": value})
	return err
}

func read(c *Commands, w io.Writer, args []string) error {
	if err := argCount(args, 1, 1); err != nil {
		return err
	}

	data, err := c.dispatch("read_cheat", map[string]any{"cheatId": args[0]})
	if err != nil {
		return err
	}

	r := data.(control.ReadResult)
	fmt.Fprintf(w, "%s = %v at 0x%x\n", r.CheatID, r.Value, uint64(r.Address))
	return nil
}

func apply(c *Commands, w io.Writer, args []string) error {
	if err := argCount(args, 1, 1); err != nil {
		return err
	}

	entry, err := c.entry(args[0])
	if err != nil {
		return err
	}
	entry.IsEnabled = true

	_, err = c.dispatch("apply_cheat", map[string]any{"cheatConfig": entry})
	return err
}

func list(c *Commands, w io.Writer, args []string) error {
	if err := argCount(args, 0, 0); err != nil {
		return err
	}

	data, err := c.dispatch("list_cheats", nil)
	if err != nil {
		return err
	}

	table := tabular.Columns("CHEAT", "OFFSETS", "TYPE", "ENABLED", "VALUE")
	for _, e := range data.([]cheat.Entry) {
		table.AddRow(e.CheatID, offsetsString(e.Offsets), e.ValueType, strconv.FormatBool(e.IsEnabled), valueString(e.CurrentValue))
	}
	return table.Render(w)
}

func status(c *Commands, w io.Writer, args []string) error {
	if err := argCount(args, 0, 0); err != nil {
		return err
	}

	data, err := c.dispatch("cheat_status", nil)
	if err != nil {
		return err
	}
	s := data.(engine.Status)

	if s.Target != nil {
		fmt.Fprintf(w, "target: %s (pid %d) %s at 0x%x\n", s.Target.Process, s.Target.PID, s.Target.Module, uint64(s.Target.Base))
	} else {
		fmt.Fprintln(w, "target: none")
	}
	fmt.Fprintf(w, "loop:   %s, %d ticks every %s\n", s.State, s.Ticks, s.Interval)

	if len(s.Entries) == 0 {
		return nil
	}

	table := tabular.Columns("CHEAT", "APPLIED", "FAILURES", "ADDRESS", "LAST ERROR")
	for _, st := range s.Entries {
		addr := ""
		if st.LastAddress != 0 {
			addr = fmt.Sprintf("0x%x", uint64(st.LastAddress))
		}
		table.AddRow(st.CheatID, strconv.FormatBool(st.Applied), strconv.FormatUint(st.Failures, 10), addr, st.LastError)
	}
	return table.Render(w)
}

func load(c *Commands, w io.Writer, args []string) error {
	if err := argCount(args, 1, 1); err != nil {
		return err
	}

	table, err := cheat.LoadTable(args[0])
	if err != nil {
		return err
	}

	var errs []error
	for _, entry := range table.Cheats {
		if _, err := c.dispatch("add_cheat", map[string]any{"cheatConfig": entry}); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", entry.CheatID, err))
		}
	}

	fmt.Fprintf(w, "%d of %d cheats loaded\n", len(table.Cheats)-len(errs), len(table.Cheats))
	return errors.Join(errs...)
}

func exit(c *Commands, w io.Writer, args []string) error {
	return ExitRequestError{}
}

func offsetsString(offsets []uint64) string {
	parts := make([]string, len(offsets))
	for i, off := range offsets {
		parts[i] = fmt.Sprintf("0x%x", off)
	}
	return strings.Join(parts, ",")
}

func valueString(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
