// Package cheat describes memory patches: what to write, where, and as which type.
package cheat

import (
	"errors"
	"fmt"

	"modworks/process"
)

// ErrMissingID is returned when an entry has no cheat_id
var ErrMissingID = errors.New("missing cheat id")

// Entry is one configured memory patch
type Entry struct {
	GameID       string   `json:"game_id" yaml:"game_id"`
	CheatID      string   `json:"cheat_id" yaml:"cheat_id"`
	Offsets      []uint64 `json:"offsets" yaml:"offsets"`
	ValueType    string   `json:"value_type" yaml:"value_type"`
	Size         uint32   `json:"size" yaml:"size"`
	IsEnabled    bool     `json:"is_enabled" yaml:"is_enabled"`
	CurrentValue any      `json:"current_value,omitempty" yaml:"current_value,omitempty"`
}

// Type returns the parsed value type
func (e Entry) Type() (ValueType, error) {
	return ParseValueType(e.ValueType)
}

// Validate checks everything that can be checked without a target process
func (e Entry) Validate() error {
	if e.CheatID == "" {
		return ErrMissingID
	}

	t, err := e.Type()
	if err != nil {
		return fmt.Errorf("cheat %q: %w", e.CheatID, err)
	}

	if e.Size != t.Size() {
		return fmt.Errorf("cheat %q: %w: size %d does not match %s (%d bytes)", e.CheatID, ErrInvalidValueType, e.Size, t, t.Size())
	}

	if len(e.Offsets) == 0 {
		return fmt.Errorf("cheat %q: %w", e.CheatID, process.ErrEmptyChain)
	}

	return nil
}

// Payload returns the bytes to write. ok is false when the entry has no value yet.
func (e Entry) Payload() (data []byte, ok bool, err error) {
	t, err := e.Type()
	if err != nil {
		return nil, false, err
	}

	if e.CurrentValue == nil {
		return nil, false, nil
	}

	return Encode(t, e.CurrentValue), true, nil
}

// Path returns the offsets in the form the pointer resolver takes
func (e Entry) Path() []process.ProcessMemorySize {
	path := make([]process.ProcessMemorySize, len(e.Offsets))
	for i, off := range e.Offsets {
		path[i] = process.ProcessMemorySize(off)
	}
	return path
}

// Clone returns a copy that shares no slices with e
func (e Entry) Clone() Entry {
	c := e
	if e.Offsets != nil {
		c.Offsets = make([]uint64, len(e.Offsets))
		copy(c.Offsets, e.Offsets)
	}
	return c
}
