// Package scan searches a process for pointer paths from a module base to a
// known value, producing offsets in the form cheat entries use.
package scan

import (
	"context"
	"encoding/binary"
	"fmt"

	"modworks/cheat"
	"modworks/process"
	"modworks/process/memory_map"
)

// Scanner holds configuration for the search
type Scanner struct {
	MaxStructSize uint
	MaxDepth      int
	Alignment     uint
	MaxResults    int
	Match         func([]byte) bool
}

// Option is a function that configures a Scanner
type Option func(*Scanner)

func WithMaxStructSize(size uint) Option {
	return func(s *Scanner) {
		s.MaxStructSize = size
	}
}

func WithMaxDepth(depth int) Option {
	return func(s *Scanner) {
		s.MaxDepth = depth
	}
}

func WithAlignment(align uint) Option {
	return func(s *Scanner) {
		s.Alignment = align
	}
}

func WithMaxResults(n int) Option {
	return func(s *Scanner) {
		s.MaxResults = n
	}
}

// WithValue matches the encoded form of v as type t
func WithValue(t cheat.ValueType, v any) Option {
	want := cheat.Encode(t, v)
	return WithBytes(want)
}

// WithBytes matches an exact byte pattern
func WithBytes(want []byte) Option {
	return func(s *Scanner) {
		s.Match = func(data []byte) bool {
			if len(data) < len(want) {
				return false
			}
			for i := range want {
				if data[i] != want[i] {
					return false
				}
			}
			return true
		}
	}
}

const ptrSize = uint(process.PointerSize)

// Result is one path that resolves to a matching address
type Result struct {
	Offsets []uint64                     `json:"offsets"`
	Address process.ProcessMemoryAddress `json:"address"`
}

// Depth returns the number of pointer dereferences the path takes
func (r Result) Depth() int {
	return len(r.Offsets) - 1
}

// Search walks structures reachable from base and returns every path whose
// final address holds a match. Paths are ordered shallowest first per branch.
func Search(ctx context.Context, proc process.Process, base process.ProcessMemoryAddress, options ...Option) ([]Result, error) {
	s := &Scanner{
		MaxStructSize: 256,
		MaxDepth:      3,
		Alignment:     4,
	}

	for _, opt := range options {
		opt(s)
	}

	if s.Match == nil {
		return nil, fmt.Errorf("no search target specified")
	}
	if s.Alignment == 0 {
		s.Alignment = 1
	}

	mm, err := proc.GetMemoryMap()
	if err != nil {
		return nil, fmt.Errorf("failed to get memory map: %w", err)
	}

	var results []Result
	visited := make(map[process.ProcessMemoryAddress]bool)

	full := func() bool {
		return s.MaxResults > 0 && len(results) >= s.MaxResults
	}

	var walk func(addr process.ProcessMemoryAddress, depth int, path []uint64)
	walk = func(addr process.ProcessMemoryAddress, depth int, path []uint64) {
		if depth > s.MaxDepth || visited[addr] || full() || ctx.Err() != nil {
			return
		}
		visited[addr] = true

		region := memory_map.GetMemoryRegionForAddress(uint64(addr), mm)
		if region == nil || !region.IsReadable() {
			return
		}

		// Structures near the end of a region are read short
		size := uint64(s.MaxStructSize)
		if rest := region.End() - uint64(addr); rest < size {
			size = rest
		}

		data, err := proc.ReadMemory(addr, process.ProcessMemorySize(size))
		if err != nil {
			return
		}

		for offset := uint(0); offset < uint(len(data)); offset += s.Alignment {
			if full() {
				return
			}

			if s.Match(data[offset:]) {
				results = append(results, Result{
					Offsets: appendOffset(path, offset),
					Address: addr + process.ProcessMemoryAddress(offset),
				})
			}

			if offset%ptrSize != 0 || depth >= s.MaxDepth || offset+ptrSize > uint(len(data)) {
				continue
			}

			ptr := binary.LittleEndian.Uint64(data[offset:])
			if ptr != 0 && memory_map.IsValidAddress2(ptr, mm) != nil {
				walk(process.ProcessMemoryAddress(ptr), depth+1, appendOffset(path, offset))
			}
		}
	}

	walk(base, 0, nil)

	return results, ctx.Err()
}

func appendOffset(path []uint64, offset uint) []uint64 {
	next := make([]uint64, len(path), len(path)+1)
	copy(next, path)
	return append(next, uint64(offset))
}
