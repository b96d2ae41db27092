// Package process provides interfaces and types for process manipulation
package process

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrAddressNotMapped is returned when a memory address is not found within any mapped region of a process.
	ErrAddressNotMapped = errors.New("address not mapped")

	// ErrProcessNotOpen is returned when an operation requiring an open process is attempted
	// before the process has been successfully opened or after it has been closed.
	ErrProcessNotOpen = errors.New("process not open")

	// ErrNotWritable is returned when a write targets a region without write permission.
	ErrNotWritable = errors.New("memory region not writable")

	// ErrModuleNotFound is returned when a module base address cannot be located.
	ErrModuleNotFound = errors.New("module not found")

	// ErrEmptyChain is returned when a pointer path has no offsets.
	ErrEmptyChain = errors.New("empty pointer chain")

	// ErrUnreadableAddress is returned when a pointer along a path cannot be read or is NULL.
	ErrUnreadableAddress = errors.New("unreadable address")
)

// ReadPointer reads a little-endian 64-bit pointer through any MemoryReader.
// Backends use it to implement ReadPOINTER.
func ReadPointer(r MemoryReader, addr ProcessMemoryAddress) (ProcessMemoryAddress, error) {
	if addr == 0 {
		return 0, fmt.Errorf("invalid address: 0x0: %w", ErrAddressNotMapped)
	}

	data, err := r.ReadMemory(addr, PointerSize)
	if err != nil {
		return 0, err
	}

	if len(data) < int(PointerSize) {
		return 0, fmt.Errorf("short pointer read at %s: %d bytes", addr.ToString(), len(data))
	}

	return ProcessMemoryAddress(binary.LittleEndian.Uint64(data)), nil
}
