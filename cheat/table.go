package cheat

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Table is a cheat table file: the target it was written for and its entries.
// JSON tables load as well, JSON being a subset of YAML.
type Table struct {
	Game     string        `yaml:"game"`
	Process  string        `yaml:"process"`
	Module   string        `yaml:"module,omitempty"`
	Interval time.Duration `yaml:"interval,omitempty"`
	Cheats   []Entry       `yaml:"cheats"`
}

// ParseTable decodes and validates a table
func ParseTable(data []byte) (*Table, error) {
	var table Table
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to parse cheat table: %w", err)
	}

	seen := make(map[string]bool, len(table.Cheats))
	for i := range table.Cheats {
		entry := &table.Cheats[i]
		if entry.GameID == "" {
			entry.GameID = table.Game
		}
		if err := entry.Validate(); err != nil {
			return nil, fmt.Errorf("cheat table entry %d: %w", i, err)
		}
		if seen[entry.CheatID] {
			return nil, fmt.Errorf("cheat table entry %d: duplicate cheat id %q", i, entry.CheatID)
		}
		seen[entry.CheatID] = true
	}

	return &table, nil
}

// LoadTable reads a table from disk
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cheat table: %w", err)
	}

	return ParseTable(data)
}

// Find returns the entry with the given id
func (t *Table) Find(cheatID string) (Entry, bool) {
	for _, e := range t.Cheats {
		if e.CheatID == cheatID {
			return e, true
		}
	}
	return Entry{}, false
}
