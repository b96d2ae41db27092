package engine

import (
	"errors"
	"fmt"
	"path/filepath"

	"modworks/process"
)

// TargetSpec names the process to attach to. PID wins over Process when both are set.
// Module defaults to the process executable.
type TargetSpec struct {
	Process string            `json:"processName,omitempty"`
	PID     process.ProcessID `json:"pid,omitempty"`
	Module  string            `json:"module,omitempty"`
}

// Target describes the attached process
type Target struct {
	Process string                       `json:"process"`
	PID     process.ProcessID            `json:"pid"`
	Module  string                       `json:"module"`
	Base    process.ProcessMemoryAddress `json:"base"`
}

// Attach attaches to the first (lowest PID) process matching name
func (e *Engine) Attach(processName string) error {
	return e.AttachTarget(TargetSpec{Process: processName})
}

// AttachTarget binds the engine to a process. A previous target is replaced
// only once the new one is open; a running loop is stopped, not restarted.
// On failure the previous attachment is left as it was.
func (e *Engine) AttachTarget(spec TargetSpec) error {
	e.ctl.Lock()
	defer e.ctl.Unlock()

	e.mu.Lock()

	proc, target, err := e.open(spec)
	if err != nil {
		e.mu.Unlock()
		e.log.Warn("Attach failed: ", err)
		return fmt.Errorf("%w: %w", ErrAttachFailed, err)
	}

	previous := e.proc
	handle := e.cancelLoopLocked()
	if previous != nil {
		e.log.Infoln(fmt.Sprintf("Replacing target %s (%d)", e.target.Process, e.target.PID))
	}

	e.proc = proc
	e.target = &target
	e.mu.Unlock()

	// the old worker still writes through the previous handle until it exits
	e.join(handle)

	// openers may hand back the handle that is already attached
	if previous != nil && previous != proc {
		if err := previous.Close(); err != nil {
			e.log.Warn("Closing previous target failed: ", err)
		}
	}

	e.log.Infoln(fmt.Sprintf("Attached to %s (%d), %s base %s", target.Process, target.PID, target.Module, target.Base.ToString()))
	return nil
}

func (e *Engine) open(spec TargetSpec) (process.Process, Target, error) {
	var info process.ProcessInfo

	switch {
	case spec.PID != 0:
		found, err := e.cfg.Finder.FindProcessByPID(spec.PID)
		if err != nil {
			return nil, Target{}, err
		}
		info = *found

	case spec.Process != "":
		found, err := e.cfg.Finder.FindProcessByName(spec.Process)
		if err != nil {
			return nil, Target{}, err
		}
		if len(found) == 0 {
			return nil, Target{}, fmt.Errorf("no process found with name '%s'", spec.Process)
		}
		info = found[0]

	default:
		return nil, Target{}, errors.New("no process name or PID given")
	}

	proc, err := e.cfg.Opener.NewWithPID(info.PID)
	if err != nil {
		return nil, Target{}, err
	}

	module, base, err := moduleBase(proc, spec, info)
	if err != nil {
		if proc != e.proc {
			proc.Close()
		}
		return nil, Target{}, err
	}

	name := spec.Process
	if name == "" {
		name = info.Name
	}

	return proc, Target{Process: name, PID: info.PID, Module: module, Base: base}, nil
}

// moduleBase tries the explicit module, otherwise the names the process is known by
func moduleBase(proc process.Process, spec TargetSpec, info process.ProcessInfo) (string, process.ProcessMemoryAddress, error) {
	if spec.Module != "" {
		base, err := proc.ModuleBase(spec.Module)
		return spec.Module, base, err
	}

	var candidates []string
	if info.Exe != "" {
		candidates = append(candidates, filepath.Base(info.Exe))
	}
	candidates = append(candidates, spec.Process, info.Name)

	var firstErr error
	for _, module := range candidates {
		if module == "" {
			continue
		}
		base, err := proc.ModuleBase(module)
		if err == nil {
			return module, base, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}

	if firstErr == nil {
		firstErr = process.ErrModuleNotFound
	}
	return "", 0, firstErr
}

// Detach stops the loop, closes the process and clears the target.
// Detaching while detached is a no-op. Registered cheats are kept.
func (e *Engine) Detach() error {
	e.ctl.Lock()
	defer e.ctl.Unlock()

	e.mu.Lock()
	handle := e.cancelLoopLocked()
	proc, target := e.proc, e.target
	e.proc = nil
	e.target = nil
	e.mu.Unlock()

	e.join(handle)

	if proc == nil {
		return nil
	}

	if err := proc.Close(); err != nil {
		e.log.Warn("Closing target failed: ", err)
	}

	e.log.Infoln(fmt.Sprintf("Detached from %s (%d)", target.Process, target.PID))
	return nil
}

// Target returns the attached target
func (e *Engine) Target() (Target, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.target == nil {
		return Target{}, false
	}
	return *e.target, true
}

// IsAttached reports whether a target is attached
func (e *Engine) IsAttached() bool {
	_, ok := e.Target()
	return ok
}
