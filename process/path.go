package process

import (
	"fmt"
)

// ResolvePath walks a pointer path and returns the final address.
// It starts at base, adds the first offset, reads a pointer, adds the next offset, reads a pointer, etc.
// The last offset is added to the final pointer without a further read,
// so N offsets cost N-1 pointer reads.
//
// Example:
//
//	// base -> [ +0x10 ]ptrA -> final at (ptrA + 0x20)
//	addr, err := process.ResolvePath(proc, 0x1000, 0x10, 0x20)
func ResolvePath(r PointerReader, base ProcessMemoryAddress, offsets ...ProcessMemorySize) (ProcessMemoryAddress, error) {
	hops, err := ResolvePathTrace(r, base, offsets...)
	if err != nil {
		return 0, err
	}

	return hops[len(hops)-1], nil
}

// ResolvePathTrace does the same as ResolvePath but also returns the address of every
// pointer it read, followed by the final address.
func ResolvePathTrace(r PointerReader, base ProcessMemoryAddress, offsets ...ProcessMemorySize) ([]ProcessMemoryAddress, error) {
	if len(offsets) == 0 {
		return nil, ErrEmptyChain
	}

	hops := make([]ProcessMemoryAddress, 0, len(offsets))
	current := base

	for i := 0; i < len(offsets)-1; i++ {
		ptrAddr := current + ProcessMemoryAddress(offsets[i])
		hops = append(hops, ptrAddr)

		ptr, err := r.ReadPOINTER(ptrAddr)
		if err != nil {
			return hops, fmt.Errorf("%w: step %d (addr=%#x + off=%#x): %v", ErrUnreadableAddress, i, uint64(current), uint64(offsets[i]), err)
		}
		if ptr == 0 {
			return hops, fmt.Errorf("%w: NULL pointer at step %d (addr=%#x + off=%#x)", ErrUnreadableAddress, i, uint64(current), uint64(offsets[i]))
		}
		current = ptr
	}

	// Last offset is a raw byte offset into `current` (no deref)
	return append(hops, current+ProcessMemoryAddress(offsets[len(offsets)-1])), nil
}
