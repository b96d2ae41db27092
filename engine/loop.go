package engine

import (
	"context"
	"fmt"
	"time"

	"modworks/process"
	"modworks/registry"

	"github.com/Moonlight-Companies/gologger/logger"
	"github.com/google/uuid"
)

type loopHandle struct {
	runID  string
	cancel context.CancelFunc
	done   chan struct{}
}

// worker holds what a loop run captured at spawn time
type worker struct {
	proc     process.Process
	base     process.ProcessMemoryAddress
	registry *registry.Registry
	status   *statusBook
	log      *logger.Logger
	runID    string
	observer func(TickReport)
}

// newWorker assumes the mutex is held and the engine is attached
func (e *Engine) newWorker(runID string) *worker {
	return &worker{
		proc:     e.proc,
		base:     e.target.Base,
		registry: e.registry,
		status:   e.status,
		log:      e.log,
		runID:    runID,
		observer: e.cfg.Observer,
	}
}

// StartLoop spawns the loop worker. A running worker is stopped and joined first,
// so there is never more than one.
func (e *Engine) StartLoop() error {
	e.ctl.Lock()
	defer e.ctl.Unlock()

	e.join(e.cancelLoop())

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.proc == nil {
		return ErrNotAttached
	}

	runID := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	handle := &loopHandle{
		runID:  runID,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	w := e.newWorker(runID)
	e.status.startRun(runID)
	e.loop = handle
	e.state.Store(int32(LoopRunning))
	e.workers.Add(1)

	go func() {
		defer close(handle.done)
		defer e.workers.Add(-1)
		w.run(ctx, e.cfg.Interval)
	}()

	e.log.Infoln(fmt.Sprintf("Cheat loop %s started, interval %s", runID, e.cfg.Interval))
	return nil
}

// StopLoop cancels the worker and waits for it to exit. Stopping an idle loop is a no-op.
func (e *Engine) StopLoop() error {
	e.ctl.Lock()
	defer e.ctl.Unlock()

	e.join(e.cancelLoop())
	return nil
}

func (e *Engine) cancelLoop() *loopHandle {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.cancelLoopLocked()
}

// cancelLoopLocked assumes mu is held. The returned handle, if any, must be
// joined once mu is released.
func (e *Engine) cancelLoopLocked() *loopHandle {
	handle := e.loop
	if handle == nil {
		return nil
	}

	e.loop = nil
	e.state.Store(int32(LoopStopping))
	handle.cancel()
	return handle
}

// join waits for a canceled worker to exit. It assumes ctl is held and mu is not.
func (e *Engine) join(handle *loopHandle) {
	if handle == nil {
		return
	}

	<-handle.done
	e.state.Store(int32(LoopIdle))
	e.log.Infoln(fmt.Sprintf("Cheat loop %s stopped", handle.runID))
}

// LoopState returns the current loop state
func (e *Engine) LoopState() LoopState {
	return LoopState(e.state.Load())
}

// Workers returns the number of live loop goroutines, never more than one
func (e *Engine) Workers() int {
	return int(e.workers.Load())
}

func (w *worker) run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		report := w.tick(ctx, w.status.tick())
		if ctx.Err() != nil {
			return
		}
		if w.observer != nil {
			w.observer(report)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// tick applies every enabled entry of a registry snapshot once.
// Cancellation is checked between entries, never in the middle of a write.
func (w *worker) tick(ctx context.Context, n uint64) TickReport {
	report := TickReport{
		RunID: w.runID,
		Tick:  n,
	}

	for _, entry := range w.registry.List() {
		if ctx.Err() != nil {
			return report
		}

		if !entry.IsEnabled || entry.CurrentValue == nil {
			report.Skipped++
			continue
		}

		addr, _, err := apply(w.proc, w.base, entry)
		if err != nil {
			report.Failed = append(report.Failed, EntryFailure{CheatID: entry.CheatID, Err: err, Error: err.Error()})
			if w.status.failure(entry.CheatID, err) {
				w.log.Warn("Cheat ", entry.CheatID, " failed: ", err)
			}
			continue
		}

		report.Applied++
		if w.status.success(entry.CheatID, addr) {
			w.log.Infoln(fmt.Sprintf("Cheat %s recovered at %s", entry.CheatID, addr.ToString()))
		}
	}

	if len(report.Failed) == 0 {
		w.log.Debugln(fmt.Sprintf("Tick %d: %d applied, %d skipped", report.Tick, report.Applied, report.Skipped))
	}
	return report
}
