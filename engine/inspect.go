package engine

import (
	"context"
	"fmt"

	"modworks/cheat"
	"modworks/process"
	"modworks/process/memory_map"
	"modworks/process_blob"
	"modworks/scan"
)

// Inspection is what a cheat's pointer path looks like in the target right now
type Inspection struct {
	CheatID string                         `json:"cheat_id"`
	Hops    []process.ProcessMemoryAddress `json:"hops"`
	Address process.ProcessMemoryAddress   `json:"address"`
	Value   any                            `json:"value,omitempty"`

	// Window is memory around Address starting at WindowStart, empty when unreadable
	WindowStart process.ProcessMemoryAddress `json:"window_start"`
	Window      []byte                       `json:"window,omitempty"`

	MemoryMap []memory_map.MemoryMapItem `json:"-"`
}

// Inspect resolves entry step by step and reads the value and the surrounding
// window bytes. A failed hop is reported with the hops that did resolve.
func (e *Engine) Inspect(entry cheat.Entry, window int) (Inspection, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	in := Inspection{CheatID: entry.CheatID}
	if e.proc == nil {
		return in, ErrNotAttached
	}

	t, err := entry.Type()
	if err != nil {
		return in, err
	}

	hops, err := process.ResolvePathTrace(e.proc, e.target.Base, entry.Path()...)
	in.Hops = hops
	if err != nil {
		return in, fmt.Errorf("cheat %q: %w", entry.CheatID, err)
	}
	in.Address = hops[len(hops)-1]

	data, err := e.proc.ReadMemory(in.Address, process.ProcessMemorySize(t.Size()))
	if err != nil {
		return in, fmt.Errorf("cheat %q: read at %s: %w", entry.CheatID, in.Address.ToString(), err)
	}
	if in.Value, err = cheat.Decode(t, data); err != nil {
		return in, err
	}

	if window > 0 {
		// align the window to a line so the dump reads naturally
		start := (in.Address - process.ProcessMemoryAddress(window/2)) &^ 0xf
		if start > in.Address {
			start = 0
		}
		if data, err := e.proc.ReadMemory(start, process.ProcessMemorySize(window)); err == nil {
			in.WindowStart = start
			in.Window = data
		}
	}

	if mm, err := e.proc.GetMemoryMap(); err == nil {
		in.MemoryMap = mm
	}

	return in, nil
}

// Scan searches the attached process for pointer paths from the module base
// to a value. Control operations wait until it returns.
func (e *Engine) Scan(ctx context.Context, options ...scan.Option) ([]scan.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.proc == nil {
		return nil, ErrNotAttached
	}

	e.log.Infoln(fmt.Sprintf("Scanning %s from %s", e.target.Module, e.target.Base.ToString()))
	results, err := scan.Search(ctx, e.proc, e.target.Base, options...)
	e.log.Infoln(fmt.Sprintf("Scan complete, found %d paths", len(results)))

	return results, err
}

// Snapshot copies the attached process's memory into a dump that can be saved and attached to later
func (e *Engine) Snapshot(options process_blob.SnapshotOptions) (*process_blob.ProcessDump, process_blob.SnapshotStats, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.proc == nil {
		return nil, process_blob.SnapshotStats{}, ErrNotAttached
	}

	dump, stats, err := process_blob.Snapshot(e.proc, e.target.Process, options)
	if err != nil {
		return nil, stats, err
	}

	e.log.Infoln(fmt.Sprintf("Snapshot of %s (%d): %s", e.target.Process, e.target.PID, stats))
	return dump, stats, nil
}
