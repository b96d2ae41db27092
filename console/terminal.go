// Package console is an interactive shell over the control commands, with
// line editing, history and command completion.
package console

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"modworks/control"

	"github.com/derekparker/trie"
	"github.com/go-delve/liner"
)

const (
	prompt      = "(modworks) "
	historyFile = ".modworks_history"
)

// Term is an interactive console session
type Term struct {
	cmds        *Commands
	line        *liner.State
	prompt      string
	historyPath string
	stdout      io.Writer
	stderr      io.Writer
}

// New creates a console driving d. The caller runs it with Run.
func New(d *control.Dispatcher, stdout, stderr io.Writer) *Term {
	return &Term{
		cmds:        NewCommands(d),
		prompt:      prompt,
		historyPath: historyPath(),
		stdout:      stdout,
		stderr:      stderr,
	}
}

// Commands returns the command table the console runs
func (t *Term) Commands() *Commands {
	return t.cmds
}

// Run reads and runs commands until exit or end of input
func (t *Term) Run() error {
	t.line = liner.NewLiner()
	defer t.line.Close()

	t.line.SetCtrlCAborts(true)

	names := trie.New()
	for _, alias := range t.cmds.Aliases() {
		names.Add(alias, nil)
	}
	t.line.SetCompleter(func(line string) []string {
		if strings.Contains(line, " ") {
			return nil
		}
		return names.PrefixSearch(line)
	})

	t.readHistory()
	defer t.writeHistory()

	fmt.Fprintln(t.stdout, "Type 'help' for list of commands.")

	for {
		input, err := t.line.Prompt(t.prompt)
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				continue
			}
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(t.stdout, "exit")
				return nil
			}
			return fmt.Errorf("prompt for input failed: %w", err)
		}

		if strings.TrimSpace(input) == "" {
			continue
		}
		t.line.AppendHistory(input)

		if err := t.cmds.Call(input, t.stdout); err != nil {
			var exit ExitRequestError
			if errors.As(err, &exit) {
				return nil
			}
			fmt.Fprintf(t.stderr, "Command failed: %s\n", err)
		}
	}
}

func (t *Term) readHistory() {
	f, err := os.Open(t.historyPath)
	if err != nil {
		return
	}
	defer f.Close()

	if _, err := t.line.ReadHistory(f); err != nil {
		fmt.Fprintf(t.stderr, "Unable to read history file %s: %v\n", t.historyPath, err)
	}
}

func (t *Term) writeHistory() {
	f, err := os.OpenFile(t.historyPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		fmt.Fprintf(t.stderr, "Unable to open history file: %v. History will not be saved for this session.\n", err)
		return
	}
	defer f.Close()

	if _, err := t.line.WriteHistory(f); err != nil {
		fmt.Fprintln(t.stderr, "readline history error:", err)
	}
}

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, historyFile)
}
