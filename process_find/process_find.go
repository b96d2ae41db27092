// Package process_find locates running processes by name or PID using gopsutil,
// so attaching works the same way on every platform.
package process_find

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"modworks/process"

	ps "github.com/shirou/gopsutil/v3/process"
	"golang.org/x/text/unicode/norm"
)

var _ process.ProcessFinder = (*Finder)(nil)

// Finder implements process.ProcessFinder over the live process table
type Finder struct{}

// NewProcessFinder creates a new Finder
func NewProcessFinder() process.ProcessFinder {
	return &Finder{}
}

// FindProcessByPID finds a process by its PID
func (f *Finder) FindProcessByPID(pid process.ProcessID) (*process.ProcessInfo, error) {
	p, err := ps.NewProcess(int32(pid))
	if err != nil {
		return nil, fmt.Errorf("process with PID %d does not exist: %w", pid, err)
	}

	info := describe(p)
	return &info, nil
}

// FindProcessByName finds processes whose name or executable base name matches name.
// Matching is case-insensitive and ignores a trailing ".exe". Results are ordered by PID.
func (f *Finder) FindProcessByName(name string) ([]process.ProcessInfo, error) {
	if name == "" {
		return nil, fmt.Errorf("empty process name")
	}

	procs, err := ps.Processes()
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}

	var results []process.ProcessInfo
	for _, p := range procs {
		info := describe(p)
		if MatchName(name, info) {
			results = append(results, info)
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].PID < results[j].PID
	})

	return results, nil
}

// describe collects what it can, processes may exit or deny access while we look
func describe(p *ps.Process) process.ProcessInfo {
	info := process.ProcessInfo{PID: process.ProcessID(p.Pid)}
	if name, err := p.Name(); err == nil {
		info.Name = name
	}
	if exe, err := p.Exe(); err == nil {
		info.Exe = exe
	}
	return info
}

// commMaxLen is the Linux TASK_COMM_LEN without the terminator
const commMaxLen = 15

// MatchName reports whether want names the process described by info.
// Names are compared in NFC so composed and decomposed spellings match.
func MatchName(want string, info process.ProcessInfo) bool {
	want = trimExe(norm.NFC.String(want))

	candidates := []string{info.Name}
	if info.Exe != "" {
		candidates = append(candidates, filepath.Base(info.Exe))
	}

	for _, c := range candidates {
		if c == "" {
			continue
		}
		c = trimExe(norm.NFC.String(c))
		if strings.EqualFold(c, want) {
			return true
		}
		// Linux truncates comm, a long name still matches its prefix
		if len(c) == commMaxLen && len(want) > commMaxLen && strings.EqualFold(c, want[:commMaxLen]) {
			return true
		}
	}

	return false
}

func trimExe(name string) string {
	if len(name) > 4 && strings.EqualFold(name[len(name)-4:], ".exe") {
		return name[:len(name)-4]
	}
	return name
}
