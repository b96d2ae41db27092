package process_blob

import (
	"fmt"

	"modworks/process"
	"modworks/process/memory_map"
)

// SnapshotOptions selects which regions Snapshot copies
type SnapshotOptions struct {
	// MaxRegionSize skips larger regions, 0 means no limit
	MaxRegionSize uint

	// WritableOnly keeps only regions cheats can target, plus the module images pointer paths start from
	WritableOnly bool
}

// DefaultSnapshotOptions skips regions over 100 MB
func DefaultSnapshotOptions() SnapshotOptions {
	return SnapshotOptions{MaxRegionSize: 100 * 1024 * 1024}
}

// SnapshotStats counts what Snapshot did with each region
type SnapshotStats struct {
	Saved       int
	NotReadable int
	TooLarge    int
	Filtered    int
	ReadErrors  int
}

func (s SnapshotStats) String() string {
	return fmt.Sprintf("%d saved, %d not readable, %d too large, %d filtered, %d read errors",
		s.Saved, s.NotReadable, s.TooLarge, s.Filtered, s.ReadErrors)
}

// Snapshot copies the readable memory of proc into a new ProcessDump.
// Regions that fail to read are left out rather than failing the snapshot.
func Snapshot(proc process.Process, name string, options SnapshotOptions) (*ProcessDump, SnapshotStats, error) {
	var stats SnapshotStats

	if err := proc.UpdateMemoryMap(); err != nil {
		return nil, stats, fmt.Errorf("failed to update memory map: %w", err)
	}

	mm, err := proc.GetMemoryMap()
	if err != nil {
		return nil, stats, fmt.Errorf("failed to get memory map: %w", err)
	}

	dump := NewProcessDump()
	dump.PID = proc.GetPID()
	dump.Name = name

	for _, region := range mm {
		if !region.IsReadable() {
			stats.NotReadable++
			continue
		}
		if options.MaxRegionSize > 0 && region.Size > options.MaxRegionSize {
			stats.TooLarge++
			continue
		}
		if options.WritableOnly && !region.IsWritable() && !isImage(region) {
			stats.Filtered++
			continue
		}

		data, err := proc.ReadMemory(process.ProcessMemoryAddress(region.Address), process.ProcessMemorySize(region.Size))
		if err != nil {
			stats.ReadErrors++
			continue
		}

		dump.Map(region.Address, data, region.Perms, region.Path)
		stats.Saved++
	}

	return dump, stats, nil
}

// isImage reports whether a region is file backed, which includes module images
func isImage(region memory_map.MemoryMapItem) bool {
	return region.Path != "" && region.Path[0] != '['
}
