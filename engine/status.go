package engine

import (
	"sort"
	"sync"
	"time"

	"modworks/process"
)

// LoopState is the lifecycle state of the loop worker
type LoopState int32

const (
	LoopIdle LoopState = iota
	LoopRunning
	LoopStopping
)

func (s LoopState) String() string {
	switch s {
	case LoopIdle:
		return "idle"
	case LoopRunning:
		return "running"
	case LoopStopping:
		return "stopping"
	}
	return "unknown"
}

func (s LoopState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// EntryStatus is what the loop last observed for one cheat
type EntryStatus struct {
	CheatID       string                       `json:"cheat_id"`
	Applied       uint64                       `json:"applied"`
	Failures      uint64                       `json:"failures"` // consecutive
	TotalFailures uint64                       `json:"total_failures"`
	LastAddress   process.ProcessMemoryAddress `json:"last_address"`
	LastError     string                       `json:"last_error,omitempty"`
	LastApplied   time.Time                    `json:"last_applied,omitempty"`
}

// Status is a point-in-time view of the engine
type Status struct {
	Attached bool          `json:"attached"`
	Target   *Target       `json:"target,omitempty"`
	State    LoopState     `json:"state"`
	RunID    string        `json:"run_id,omitempty"`
	Interval time.Duration `json:"interval"`
	Ticks    uint64        `json:"ticks"`
	Entries  []EntryStatus `json:"entries"`
}

// EntryFailure is one failed entry in a TickReport
type EntryFailure struct {
	CheatID string `json:"cheat_id"`
	Err     error  `json:"-"`
	Error   string `json:"error"`
}

// TickReport summarizes one pass over the registry
type TickReport struct {
	RunID   string         `json:"run_id,omitempty"`
	Tick    uint64         `json:"tick"`
	Applied int            `json:"applied"`
	Skipped int            `json:"skipped"`
	Failed  []EntryFailure `json:"failed,omitempty"`
}

// statusBook tracks per-entry results, shared by control operations and the worker.
// Results for ids that live no longer reports are dropped, so a tick finishing
// after a removal cannot bring the entry back.
type statusBook struct {
	mu      sync.Mutex
	live    func(cheatID string) bool
	runID   string
	ticks   uint64
	entries map[string]*EntryStatus
}

func newStatusBook(live func(cheatID string) bool) *statusBook {
	return &statusBook{live: live, entries: make(map[string]*EntryStatus)}
}

func (b *statusBook) startRun(runID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.runID = runID
	b.ticks = 0
}

func (b *statusBook) tick() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ticks++
	return b.ticks
}

func (b *statusBook) get(cheatID string) *EntryStatus {
	s, ok := b.entries[cheatID]
	if !ok {
		s = &EntryStatus{CheatID: cheatID}
		b.entries[cheatID] = s
	}
	return s
}

// success records a write and reports whether the entry recovered from failing
func (b *statusBook) success(cheatID string, addr process.ProcessMemoryAddress) (recovered bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.live(cheatID) {
		return false
	}

	s := b.get(cheatID)
	recovered = s.Failures > 0
	s.Applied++
	s.Failures = 0
	s.LastAddress = addr
	s.LastError = ""
	s.LastApplied = time.Now()
	return recovered
}

// failure records an error and reports whether it differs from the previous outcome
func (b *statusBook) failure(cheatID string, err error) (changed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.live(cheatID) {
		return false
	}

	s := b.get(cheatID)
	msg := err.Error()
	changed = s.Failures == 0 || s.LastError != msg
	s.Failures++
	s.TotalFailures++
	s.LastError = msg
	return changed
}

func (b *statusBook) forget(cheatID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.entries, cheatID)
}

func (b *statusBook) snapshot() (string, uint64, []EntryStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries := make([]EntryStatus, 0, len(b.entries))
	for _, s := range b.entries {
		entries = append(entries, *s)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CheatID < entries[j].CheatID
	})

	return b.runID, b.ticks, entries
}

// Status returns the attachment, loop state and per-entry results.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	runID, ticks, entries := e.status.snapshot()

	status := Status{
		Attached: e.target != nil,
		State:    LoopState(e.state.Load()),
		RunID:    runID,
		Interval: e.cfg.Interval,
		Ticks:    ticks,
		Entries:  entries,
	}
	if e.target != nil {
		target := *e.target
		status.Target = &target
	}

	return status
}
