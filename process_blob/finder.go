package process_blob

import (
	"fmt"

	"modworks/process"
	"modworks/process_find"
)

var (
	_ process.ProcessFinder = (*ProcessDump)(nil)
	_ process.ProcessOpener = (*ProcessDump)(nil)
)

// Info describes the dump as the process it was taken from
func (p *ProcessDump) Info() process.ProcessInfo {
	p.mu.Lock()
	defer p.mu.Unlock()

	info := process.ProcessInfo{PID: p.PID, Name: p.Name}
	for _, region := range p.MemoryMap {
		if isImage(region) {
			info.Exe = region.Path
			break
		}
	}
	return info
}

// FindProcessByPID finds the dump itself
func (p *ProcessDump) FindProcessByPID(pid process.ProcessID) (*process.ProcessInfo, error) {
	info := p.Info()
	if pid != info.PID {
		return nil, fmt.Errorf("process with PID %d is not in the dump (pid %d)", pid, info.PID)
	}
	return &info, nil
}

// FindProcessByName returns the dump when name matches the process it was taken from
func (p *ProcessDump) FindProcessByName(name string) ([]process.ProcessInfo, error) {
	info := p.Info()
	if !process_find.MatchName(name, info) {
		return nil, nil
	}
	return []process.ProcessInfo{info}, nil
}

// NewWithPID reopens the dump, so a dump can stand in for a live process opener
func (p *ProcessDump) NewWithPID(pid process.ProcessID) (process.Process, error) {
	if err := p.Open(pid); err != nil {
		return nil, err
	}
	return p, nil
}
