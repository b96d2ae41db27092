package process_blob

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"modworks/process"
	"modworks/process/memory_map"
)

var _ process.Process = (*ProcessDump)(nil)

// WriteRecord is one successful WriteMemory call against a ProcessDump
type WriteRecord struct {
	Address process.ProcessMemoryAddress
	Data    []byte
}

// ProcessDump implements process.Process over memory held in this process.
// It is loaded from a dump directory or built region by region with Map,
// and unlike a live target it records every write.
type ProcessDump struct {
	PID       process.ProcessID
	Name      string
	MemoryMap []memory_map.MemoryMapItem
	Blobs     map[uint64][]byte // Address -> Data

	// WriteHook, when set, runs before every write and can fail it
	WriteHook func(addr process.ProcessMemoryAddress, data []byte) error

	mu     sync.Mutex
	closed bool
	reads  int
	writes []WriteRecord
}

// NewProcessDump creates a new, empty ProcessDump instance
func NewProcessDump() *ProcessDump {
	return &ProcessDump{
		Blobs: make(map[uint64][]byte),
	}
}

// Map adds a region backed by data. The region keeps its own copy of data.
func (p *ProcessDump) Map(addr uint64, data []byte, perms string, path string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	blob := make([]byte, len(data))
	copy(blob, data)

	if p.Blobs == nil {
		p.Blobs = make(map[uint64][]byte)
	}
	p.Blobs[addr] = blob
	p.MemoryMap = append(p.MemoryMap, memory_map.MemoryMapItem{
		Address: addr,
		Size:    uint(len(data)),
		Perms:   perms,
		Path:    path,
	})

	sort.Slice(p.MemoryMap, func(i, j int) bool {
		return p.MemoryMap[i].Address < p.MemoryMap[j].Address
	})
}

// Poke stores data at addr regardless of region permissions and without recording a write
func (p *ProcessDump) Poke(addr process.ProcessMemoryAddress, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	region, blob, err := p.locate(addr, process.ProcessMemorySize(len(data)))
	if err != nil {
		return err
	}

	copy(blob[uint64(addr)-region.Address:], data)
	return nil
}

func (p *ProcessDump) Open(pid process.ProcessID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if pid != 0 {
		p.PID = pid
	}
	p.closed = false
	return nil
}

func (p *ProcessDump) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	return nil
}

// IsClosed reports whether Close was called since the last Open
func (p *ProcessDump) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *ProcessDump) GetPID() process.ProcessID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.PID
}

func (p *ProcessDump) UpdateMemoryMap() error {
	return nil // Memory map is static in a dump
}

func (p *ProcessDump) IsValidAddress(addr process.ProcessMemoryAddress) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return memory_map.IsValidAddress(uint64(addr), p.MemoryMap)
}

func (p *ProcessDump) GetMemoryMap() ([]memory_map.MemoryMapItem, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	result := make([]memory_map.MemoryMapItem, len(p.MemoryMap))
	copy(result, p.MemoryMap)
	return result, nil
}

// ModuleBase returns the lowest region mapped from module.
// A dump without paths treats the dump's own Name as its first region.
func (p *ProcessDump) ModuleBase(module string) (process.ProcessMemoryAddress, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if base, ok := memory_map.ModuleBase(module, p.MemoryMap); ok {
		return process.ProcessMemoryAddress(base), nil
	}

	if module != "" && module == p.Name && len(p.MemoryMap) > 0 && p.MemoryMap[0].Path == "" {
		return process.ProcessMemoryAddress(p.MemoryMap[0].Address), nil
	}

	return 0, fmt.Errorf("%w: %q in dump", process.ErrModuleNotFound, module)
}

// locate assumes the mutex is held
func (p *ProcessDump) locate(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) (*memory_map.MemoryMapItem, []byte, error) {
	if p.closed {
		return nil, nil, process.ErrProcessNotOpen
	}

	region := memory_map.GetMemoryRegionForAddress(uint64(addr), p.MemoryMap)
	if region == nil {
		return nil, nil, fmt.Errorf("%w: %s", process.ErrAddressNotMapped, addr.ToString())
	}

	data, ok := p.Blobs[region.Address]
	if !ok {
		return nil, nil, fmt.Errorf("no data for region 0x%x", region.Address)
	}

	offset := uint64(addr) - region.Address
	if offset+uint64(size) > uint64(len(data)) {
		return nil, nil, fmt.Errorf("%w: %d bytes at %s exceed region data bounds", process.ErrAddressNotMapped, size, addr.ToString())
	}

	return region, data, nil
}

func (p *ProcessDump) ReadMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	region, data, err := p.locate(addr, size)
	if err != nil {
		return nil, err
	}
	p.reads++

	offset := uint64(addr) - region.Address
	result := make([]byte, size)
	copy(result, data[offset:offset+uint64(size)])
	return result, nil
}

func (p *ProcessDump) ReadPOINTER(addr process.ProcessMemoryAddress) (process.ProcessMemoryAddress, error) {
	return process.ReadPointer(p, addr)
}

func (p *ProcessDump) WriteMemory(addr process.ProcessMemoryAddress, data []byte) error {
	p.mu.Lock()
	hook := p.WriteHook
	p.mu.Unlock()

	if hook != nil {
		if err := hook(addr, data); err != nil {
			return err
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	region, blob, err := p.locate(addr, process.ProcessMemorySize(len(data)))
	if err != nil {
		return err
	}

	if !region.IsWritable() {
		return fmt.Errorf("%w: %s (%s)", process.ErrNotWritable, addr.ToString(), region.Perms)
	}

	copy(blob[uint64(addr)-region.Address:], data)

	record := WriteRecord{Address: addr, Data: make([]byte, len(data))}
	copy(record.Data, data)
	p.writes = append(p.writes, record)

	return nil
}

// Reads returns how many ReadMemory calls succeeded
func (p *ProcessDump) Reads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reads
}

// Writes returns a copy of the write log
func (p *ProcessDump) Writes() []WriteRecord {
	p.mu.Lock()
	defer p.mu.Unlock()

	result := make([]WriteRecord, len(p.writes))
	copy(result, p.writes)
	return result
}

// ResetWrites clears the write log
func (p *ProcessDump) ResetWrites() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writes = nil
}

type dumpMetadata struct {
	PID  process.ProcessID `json:"pid"`
	Name string            `json:"name"`
}

func blobFilename(dirname string, region memory_map.MemoryMapItem) string {
	return filepath.Join(dirname, fmt.Sprintf("blob_0x%x_%d.bin", region.Address, region.Size))
}

// Save writes metadata.json, process_memory_map.json and one blob file per region
func (p *ProcessDump) Save(dirname string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := os.MkdirAll(dirname, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	metadataJSON, err := json.MarshalIndent(dumpMetadata{PID: p.PID, Name: p.Name}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dirname, "metadata.json"), metadataJSON, 0644); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}

	mmJSON, err := json.MarshalIndent(p.MemoryMap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal memory map: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dirname, "process_memory_map.json"), mmJSON, 0644); err != nil {
		return fmt.Errorf("failed to write memory map file: %w", err)
	}

	for _, region := range p.MemoryMap {
		data, ok := p.Blobs[region.Address]
		if !ok {
			continue
		}
		if err := os.WriteFile(blobFilename(dirname, region), data, 0644); err != nil {
			return fmt.Errorf("failed to write blob for region 0x%x: %w", region.Address, err)
		}
	}

	return nil
}

// Load reads a dump directory written by Save
func (p *ProcessDump) Load(dirname string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	metadataBytes, err := os.ReadFile(filepath.Join(dirname, "metadata.json"))
	if err != nil {
		return fmt.Errorf("failed to read metadata: %w", err)
	}

	var metadata dumpMetadata
	if err := json.Unmarshal(metadataBytes, &metadata); err != nil {
		return fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	p.PID = metadata.PID
	p.Name = metadata.Name

	mmBytes, err := os.ReadFile(filepath.Join(dirname, "process_memory_map.json"))
	if err != nil {
		return fmt.Errorf("failed to read memory map: %w", err)
	}

	var mm []memory_map.MemoryMapItem
	if err := json.Unmarshal(mmBytes, &mm); err != nil {
		return fmt.Errorf("failed to unmarshal memory map: %w", err)
	}

	sort.Slice(mm, func(i, j int) bool {
		return mm[i].Address < mm[j].Address
	})

	blobs := make(map[uint64][]byte)
	var kept []memory_map.MemoryMapItem
	for _, region := range mm {
		filename := blobFilename(dirname, region)
		if _, err := os.Stat(filename); os.IsNotExist(err) {
			continue // Blob not saved (e.g. too large or not readable)
		}

		data, err := os.ReadFile(filename)
		if err != nil {
			return fmt.Errorf("failed to read blob %s: %w", filename, err)
		}

		blobs[region.Address] = data
		kept = append(kept, region)
	}

	p.MemoryMap = kept
	p.Blobs = blobs
	p.closed = false
	return nil
}

// LoadProcessDump is NewProcessDump followed by Load
func LoadProcessDump(dirname string) (*ProcessDump, error) {
	dump := NewProcessDump()
	if err := dump.Load(dirname); err != nil {
		return nil, err
	}
	return dump, nil
}
