// Package registry holds the set of cheats that should currently be applied.
package registry

import (
	"errors"
	"fmt"
	"sync"

	"modworks/cheat"
)

// ErrCheatNotFound is returned when an operation names a cheat that is not registered
var ErrCheatNotFound = errors.New("cheat not found")

// Registry is an ordered, mutex-guarded collection of cheat entries keyed by cheat_id.
// Every method holds the lock only for its own O(entries) work.
type Registry struct {
	mu      sync.Mutex
	entries []cheat.Entry
}

// New creates an empty Registry
func New() *Registry {
	return &Registry{}
}

// index assumes the mutex is held
func (r *Registry) index(cheatID string) int {
	for i := range r.entries {
		if r.entries[i].CheatID == cheatID {
			return i
		}
	}
	return -1
}

// Add inserts entry, replacing an entry with the same id in place.
// It reports whether an existing entry was replaced.
func (r *Registry) Add(entry cheat.Entry) bool {
	entry = entry.Clone()

	r.mu.Lock()
	defer r.mu.Unlock()

	if i := r.index(entry.CheatID); i >= 0 {
		r.entries[i] = entry
		return true
	}

	r.entries = append(r.entries, entry)
	return false
}

// Remove deletes the entry with the given id. Unknown ids are ignored.
// It reports whether an entry was removed.
func (r *Registry) Remove(cheatID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.index(cheatID)
	if i < 0 {
		return false
	}

	r.entries = append(r.entries[:i], r.entries[i+1:]...)
	return true
}

// List returns a snapshot that later mutations never touch
func (r *Registry) List() []cheat.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := make([]cheat.Entry, len(r.entries))
	for i, e := range r.entries {
		snapshot[i] = e.Clone()
	}
	return snapshot
}

// Get returns a copy of one entry
func (r *Registry) Get(cheatID string) (cheat.Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.index(cheatID)
	if i < 0 {
		return cheat.Entry{}, false
	}
	return r.entries[i].Clone(), true
}

// SetEnabled toggles whether the loop applies an entry
func (r *Registry) SetEnabled(cheatID string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.index(cheatID)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrCheatNotFound, cheatID)
	}

	r.entries[i].IsEnabled = enabled
	return nil
}

// UpdateValue replaces the value an entry writes, nil clears it
func (r *Registry) UpdateValue(cheatID string, value any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.index(cheatID)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrCheatNotFound, cheatID)
	}

	r.entries[i].CurrentValue = value
	return nil
}

// Has reports whether an entry with the given id is registered
func (r *Registry) Has(cheatID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.index(cheatID) >= 0
}

// Len returns the number of registered entries
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
