// Package engine applies registered cheats to an attached process, once on
// demand or continuously from a background loop.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"modworks/cheat"
	"modworks/process"
	"modworks/process_find"
	"modworks/registry"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

var (
	// ErrNotAttached is returned when an operation needs a target process and none is attached
	ErrNotAttached = errors.New("not attached to any process")

	// ErrAttachFailed is returned when the target process cannot be found or opened
	ErrAttachFailed = errors.New("attach failed")

	// ErrWriteFailed is returned when the target rejects a write, e.g. it exited or the page is protected
	ErrWriteFailed = errors.New("write failed")
)

// DefaultInterval is the loop tick interval when Config.Interval is zero
const DefaultInterval = 100 * time.Millisecond

// Config configures an Engine. Zero values select the defaults.
type Config struct {
	// Interval between loop ticks
	Interval time.Duration

	// Finder locates processes for Attach, defaults to the gopsutil finder
	Finder process.ProcessFinder

	// Opener opens the process memory, defaults to the native backend
	Opener process.ProcessOpener

	// Observer receives a report after every loop tick, on the loop goroutine.
	// It may query the engine (Status, Target, ListCheats, ReadCheat) but must
	// not start, stop, attach or detach, since those wait for the loop to exit.
	Observer func(TickReport)

	Log *logger.Logger
}

// Engine owns the attachment, the cheat registry and the loop worker.
// Control operations are serialized; the worker only shares the registry
// and the status book with them.
type Engine struct {
	// ctl serializes operations that start or stop the worker. It is held while
	// joining the worker; mu never is.
	ctl sync.Mutex
	mu  sync.Mutex

	cfg      Config
	log      *logger.Logger
	registry *registry.Registry
	status   *statusBook

	proc   process.Process
	target *Target
	loop   *loopHandle

	state   atomic.Int32
	workers atomic.Int32
}

// New creates a detached Engine
func New(cfg Config) *Engine {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Finder == nil {
		cfg.Finder = process_find.NewProcessFinder()
	}
	if cfg.Opener == nil {
		cfg.Opener = nativeOpener
	}
	if cfg.Log == nil {
		cfg.Log = logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "engine"))
	}

	reg := registry.New()
	return &Engine{
		cfg:      cfg,
		log:      cfg.Log,
		registry: reg,
		status:   newStatusBook(reg.Has),
	}
}

// Interval returns the loop tick interval
func (e *Engine) Interval() time.Duration {
	return e.cfg.Interval
}

// AddCheat validates and registers an entry, replacing one with the same id.
// Configuration does not need a live process, but the engine still requires
// an attachment first so cheats are only ever configured against a target.
func (e *Engine) AddCheat(entry cheat.Entry) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.proc == nil {
		return ErrNotAttached
	}

	if err := entry.Validate(); err != nil {
		return err
	}

	if e.registry.Add(entry) {
		e.status.forget(entry.CheatID)
		e.log.Infoln(fmt.Sprintf("Replaced cheat %s", entry.CheatID))
	} else {
		e.log.Infoln(fmt.Sprintf("Added cheat %s", entry.CheatID))
	}

	return nil
}

// RemoveCheat unregisters an entry. Unknown ids are not an error.
func (e *Engine) RemoveCheat(cheatID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.registry.Remove(cheatID) {
		e.log.Infoln(fmt.Sprintf("Removed cheat %s", cheatID))
	}
	e.status.forget(cheatID)

	return nil
}

// SetCheatEnabled toggles whether the loop applies an entry
func (e *Engine) SetCheatEnabled(cheatID string, enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.registry.SetEnabled(cheatID, enabled)
}

// UpdateCheatValue changes the value an entry writes from the next tick on
func (e *Engine) UpdateCheatValue(cheatID string, value any) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.registry.UpdateValue(cheatID, value)
}

// ListCheats returns a snapshot of the registry
func (e *Engine) ListCheats() []cheat.Entry {
	return e.registry.List()
}

// ApplyOnce resolves and writes a single entry now, independent of the loop
// and of the registry. An entry without a value is a no-op.
func (e *Engine) ApplyOnce(entry cheat.Entry) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.proc == nil {
		return ErrNotAttached
	}

	if err := entry.Validate(); err != nil {
		return err
	}

	addr, applied, err := apply(e.proc, e.target.Base, entry)
	if err != nil {
		return err
	}

	if applied {
		e.log.Debugln(fmt.Sprintf("Applied cheat %s at %s", entry.CheatID, addr.ToString()))
	}
	return nil
}

// ApplyAll runs one pass over every enabled registered entry on the caller's goroutine.
// The pass is not a loop tick and leaves the run's tick count alone.
func (e *Engine) ApplyAll() (TickReport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.proc == nil {
		return TickReport{}, ErrNotAttached
	}

	w := e.newWorker("")
	return w.tick(context.Background(), 0), nil
}

// ReadCheat reads the current in-process value of a registered entry
func (e *Engine) ReadCheat(cheatID string) (any, process.ProcessMemoryAddress, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.proc == nil {
		return nil, 0, ErrNotAttached
	}

	entry, ok := e.registry.Get(cheatID)
	if !ok {
		return nil, 0, fmt.Errorf("%w: %q", registry.ErrCheatNotFound, cheatID)
	}

	t, err := entry.Type()
	if err != nil {
		return nil, 0, err
	}

	addr, err := process.ResolvePath(e.proc, e.target.Base, entry.Path()...)
	if err != nil {
		return nil, 0, fmt.Errorf("cheat %q: %w", cheatID, err)
	}

	data, err := e.proc.ReadMemory(addr, process.ProcessMemorySize(t.Size()))
	if err != nil {
		return nil, addr, fmt.Errorf("cheat %q: read at %s: %w", cheatID, addr.ToString(), err)
	}

	value, err := cheat.Decode(t, data)
	return value, addr, err
}

// Close detaches, stopping the loop first. Owners should defer it.
func (e *Engine) Close() error {
	return e.Detach()
}
