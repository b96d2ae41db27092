package engine

import (
	"fmt"

	"modworks/cheat"
	"modworks/process"
)

// apply resolves entry against base and writes its payload.
// applied is false when the entry has no value to write.
func apply(proc process.Process, base process.ProcessMemoryAddress, entry cheat.Entry) (addr process.ProcessMemoryAddress, applied bool, err error) {
	data, ok, err := entry.Payload()
	if err != nil {
		return 0, false, fmt.Errorf("cheat %q: %w", entry.CheatID, err)
	}
	if !ok {
		return 0, false, nil
	}

	addr, err = process.ResolvePath(proc, base, entry.Path()...)
	if err != nil {
		return 0, false, fmt.Errorf("cheat %q: %w", entry.CheatID, err)
	}

	if err := proc.WriteMemory(addr, data); err != nil {
		return addr, false, fmt.Errorf("%w: cheat %q at %s: %w", ErrWriteFailed, entry.CheatID, addr.ToString(), err)
	}

	return addr, true, nil
}
