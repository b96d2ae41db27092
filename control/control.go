// Package control exposes the engine as named commands with JSON arguments and
// results, for a UI shell or any other out-of-process driver.
package control

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"modworks/cheat"
	"modworks/engine"
	"modworks/process"
	"modworks/registry"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

// ErrUnknownCommand is returned for a command name the dispatcher does not know
var ErrUnknownCommand = errors.New("unknown command")

// ErrBadRequest is returned when command arguments are missing or malformed
var ErrBadRequest = errors.New("bad request")

// Result is the outcome of one command. Errors are carried as strings so the
// result can cross a process boundary.
type Result struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
	Data  any    `json:"data,omitempty"`
}

type handler func(args json.RawMessage) (any, error)

// Dispatcher maps command names onto engine operations
type Dispatcher struct {
	engine   *engine.Engine
	log      *logger.Logger
	handlers map[string]handler
}

// New creates a Dispatcher driving e
func New(e *engine.Engine) *Dispatcher {
	d := &Dispatcher{
		engine: e,
		log:    logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "control")),
	}

	d.handlers = map[string]handler{
		"attach_to_game":     d.attach,
		"detach":             d.detach,
		"add_cheat":          d.addCheat,
		"remove_cheat":       d.removeCheat,
		"apply_cheat":        d.applyCheat,
		"set_cheat_enabled":  d.setCheatEnabled,
		"update_cheat_value": d.updateCheatValue,
		"read_cheat":         d.readCheat,
		"start_cheat_loop":   d.startLoop,
		"stop_cheat_loop":    d.stopLoop,
		"list_cheats":        d.listCheats,
		"cheat_status":       d.status,
	}

	return d
}

// Commands returns the known command names, sorted
func (d *Dispatcher) Commands() []string {
	names := make([]string, 0, len(d.handlers))
	for name := range d.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch runs a command. It never panics on bad input; every failure is an error Result.
func (d *Dispatcher) Dispatch(command string, args json.RawMessage) Result {
	h, ok := d.handlers[command]
	if !ok {
		return failure(fmt.Errorf("%w: %q", ErrUnknownCommand, command))
	}

	data, err := h(args)
	if err != nil {
		d.log.Warn("Command ", command, " failed: ", err)
		return failure(err)
	}

	d.log.Debugln(fmt.Sprintf("Command %s ok", command))
	return Result{OK: true, Data: data}
}

func failure(err error) Result {
	return Result{Error: err.Error(), Code: Code(err)}
}

// Code returns a stable identifier for the sentinel an error wraps
func Code(err error) string {
	codes := []struct {
		err  error
		code string
	}{
		{ErrUnknownCommand, "unknown_command"},
		{ErrBadRequest, "bad_request"},
		{engine.ErrNotAttached, "not_attached"},
		{engine.ErrAttachFailed, "attach_failed"},
		{engine.ErrWriteFailed, "write_failed"},
		{cheat.ErrInvalidValueType, "invalid_value_type"},
		{cheat.ErrMissingID, "missing_id"},
		{process.ErrEmptyChain, "empty_chain"},
		{process.ErrUnreadableAddress, "unreadable_address"},
		{registry.ErrCheatNotFound, "cheat_not_found"},
	}

	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "internal"
}

// decode unmarshals args keeping numbers as json.Number, so integer values survive exactly
func decode(args json.RawMessage, v any) error {
	if len(bytes.TrimSpace(args)) == 0 {
		args = json.RawMessage("{}")
	}

	dec := json.NewDecoder(bytes.NewReader(args))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return nil
}

type cheatArgs struct {
	CheatConfig *cheat.Entry `json:"cheatConfig"`
}

func (a cheatArgs) entry() (cheat.Entry, error) {
	if a.CheatConfig == nil {
		return cheat.Entry{}, fmt.Errorf("%w: missing cheatConfig", ErrBadRequest)
	}
	return *a.CheatConfig, nil
}

type idArgs struct {
	CheatID string `json:"cheatId"`
}

func (a idArgs) id() (string, error) {
	if a.CheatID == "" {
		return "", fmt.Errorf("%w: missing cheatId", ErrBadRequest)
	}
	return a.CheatID, nil
}

func (d *Dispatcher) attach(args json.RawMessage) (any, error) {
	var spec engine.TargetSpec
	if err := decode(args, &spec); err != nil {
		return nil, err
	}
	if spec.Process == "" && spec.PID == 0 {
		return nil, fmt.Errorf("%w: missing processName", ErrBadRequest)
	}

	if err := d.engine.AttachTarget(spec); err != nil {
		return nil, err
	}

	target, _ := d.engine.Target()
	return target, nil
}

func (d *Dispatcher) detach(json.RawMessage) (any, error) {
	return nil, d.engine.Detach()
}

func (d *Dispatcher) addCheat(args json.RawMessage) (any, error) {
	var a cheatArgs
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	entry, err := a.entry()
	if err != nil {
		return nil, err
	}
	return nil, d.engine.AddCheat(entry)
}

func (d *Dispatcher) removeCheat(args json.RawMessage) (any, error) {
	var a idArgs
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	id, err := a.id()
	if err != nil {
		return nil, err
	}
	return nil, d.engine.RemoveCheat(id)
}

func (d *Dispatcher) applyCheat(args json.RawMessage) (any, error) {
	var a cheatArgs
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	entry, err := a.entry()
	if err != nil {
		return nil, err
	}
	return nil, d.engine.ApplyOnce(entry)
}

func (d *Dispatcher) setCheatEnabled(args json.RawMessage) (any, error) {
	var a struct {
		idArgs
		Enabled *bool `json:"enabled"`
	}
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	id, err := a.id()
	if err != nil {
		return nil, err
	}
	if a.Enabled == nil {
		return nil, fmt.Errorf("%w: missing enabled", ErrBadRequest)
	}
	return nil, d.engine.SetCheatEnabled(id, *a.Enabled)
}

func (d *Dispatcher) updateCheatValue(args json.RawMessage) (any, error) {
	var a struct {
		idArgs
		Value any `json:"value"`
	}
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	id, err := a.id()
	if err != nil {
		return nil, err
	}
	return nil, d.engine.UpdateCheatValue(id, a.Value)
}

// ReadResult is the data of a read_cheat command
type ReadResult struct {
	CheatID string                       `json:"cheat_id"`
	Value   any                          `json:"value"`
	Address process.ProcessMemoryAddress `json:"address"`
}

func (d *Dispatcher) readCheat(args json.RawMessage) (any, error) {
	var a idArgs
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	id, err := a.id()
	if err != nil {
		return nil, err
	}

	value, addr, err := d.engine.ReadCheat(id)
	if err != nil {
		return nil, err
	}
	return ReadResult{CheatID: id, Value: value, Address: addr}, nil
}

func (d *Dispatcher) startLoop(json.RawMessage) (any, error) {
	return nil, d.engine.StartLoop()
}

func (d *Dispatcher) stopLoop(json.RawMessage) (any, error) {
	return nil, d.engine.StopLoop()
}

func (d *Dispatcher) listCheats(json.RawMessage) (any, error) {
	return d.engine.ListCheats(), nil
}

func (d *Dispatcher) status(json.RawMessage) (any, error) {
	return d.engine.Status(), nil
}
