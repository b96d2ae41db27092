package cli

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"modworks/process_blob"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixtureTable = `
game: test
process: game
cheats:
  - cheat_id: hp
    offsets: [0x10, 0x20]
    value_type: int32
    size: 4
    is_enabled: true
    current_value: 999
  - cheat_id: god_mode
    offsets: [0x10, 0x40]
    value_type: bool
    size: 1
    is_enabled: false
    current_value: true
`

const brokenTable = `
process: game
cheats:
  - cheat_id: broken
    offsets: [0x50, 0x0]
    value_type: int32
    size: 4
    is_enabled: true
    current_value: 1
`

// writeFixture saves a dump of a small game and a table for it
func writeFixture(t *testing.T, tableYAML string) (dumpDir, tablePath string) {
	t.Helper()
	dir := t.TempDir()

	dump := process_blob.NewProcessDump()
	dump.PID = 4242
	dump.Name = "game"

	image := make([]byte, 0x100)
	binary.LittleEndian.PutUint64(image[0x10:], 0x2000)
	dump.Map(0x1000, image, "r--p", "/opt/game/game")

	heap := make([]byte, 0x100)
	binary.LittleEndian.PutUint32(heap[0x20:], 500)
	dump.Map(0x2000, heap, "rw-p", "")

	dumpDir = filepath.Join(dir, "dump")
	require.NoError(t, dump.Save(dumpDir))

	tablePath = filepath.Join(dir, "table.yaml")
	require.NoError(t, os.WriteFile(tablePath, []byte(tableYAML), 0644))

	return dumpDir, tablePath
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

func decodeData(t *testing.T, out string, v any) {
	t.Helper()

	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(t, "ok", resp.Status)
	require.NoError(t, json.Unmarshal(resp.Data, v))
}

func TestApplyCommand(t *testing.T) {
	dumpDir, tablePath := writeFixture(t, fixtureTable)

	out, err := execute(t, "", "apply", "--table", tablePath, "--dump", dumpDir, "--format", "json")
	require.NoError(t, err)

	var report struct {
		Applied int `json:"applied"`
		Skipped int `json:"skipped"`
	}
	decodeData(t, out, &report)
	assert.Equal(t, 1, report.Applied)
	assert.Equal(t, 1, report.Skipped)
}

func TestApplyCommand_SingleCheat(t *testing.T) {
	dumpDir, tablePath := writeFixture(t, fixtureTable)

	out, err := execute(t, "", "apply", "--table", tablePath, "--dump", dumpDir, "--cheat", "god_mode")
	require.NoError(t, err)
	assert.Contains(t, out, "1 applied, 0 skipped, 0 failed")

	_, err = execute(t, "", "apply", "--table", tablePath, "--dump", dumpDir, "--cheat", "nope")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestApplyCommand_Failure(t *testing.T) {
	dumpDir, tablePath := writeFixture(t, brokenTable)

	out, err := execute(t, "", "apply", "--table", tablePath, "--dump", dumpDir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "broken:")
}

func TestApplyCommand_AttachFailure(t *testing.T) {
	dumpDir, tablePath := writeFixture(t, fixtureTable)

	_, err := execute(t, "", "apply", "--table", tablePath, "--dump", dumpDir, "--process", "other")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestResolveCommand(t *testing.T) {
	dumpDir, tablePath := writeFixture(t, fixtureTable)

	out, err := execute(t, "", "resolve", "--table", tablePath, "--dump", dumpDir, "--format", "json")
	require.NoError(t, err)

	var results []struct {
		CheatID string   `json:"cheat_id"`
		Hops    []uint64 `json:"hops"`
		Address uint64   `json:"address"`
		Value   any      `json:"value"`
	}
	decodeData(t, out, &results)
	require.Len(t, results, 2)
	assert.Equal(t, "hp", results[0].CheatID)
	assert.Equal(t, []uint64{0x1010, 0x2020}, results[0].Hops)
	assert.Equal(t, uint64(0x2020), results[0].Address)
	assert.Equal(t, float64(500), results[0].Value)
	assert.Equal(t, false, results[1].Value)
}

func TestResolveCommand_Text(t *testing.T) {
	dumpDir, tablePath := writeFixture(t, fixtureTable)

	out, err := execute(t, "", "resolve", "--table", tablePath, "--dump", dumpDir, "--cheat", "hp", "--no-color")
	require.NoError(t, err)
	assert.Contains(t, out, "hp [0x10, 0x20] int32")
	assert.Contains(t, out, "path:  0x1010 -> 0x2020")
	assert.Contains(t, out, "value: 500")
	assert.Contains(t, out, "f4 01 00 00")
}

func TestResolveCommand_Broken(t *testing.T) {
	dumpDir, tablePath := writeFixture(t, brokenTable)

	out, err := execute(t, "", "resolve", "--table", tablePath, "--dump", dumpDir)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "error:")
}

func TestScanCommand(t *testing.T) {
	dumpDir, _ := writeFixture(t, fixtureTable)

	out, err := execute(t, "", "scan", "--dump", dumpDir, "--type", "int32", "500", "--format", "json")
	require.NoError(t, err)

	var results []struct {
		Offsets []uint64 `json:"offsets"`
	}
	decodeData(t, out, &results)
	require.Len(t, results, 1)
	assert.Equal(t, []uint64{0x10, 0x20}, results[0].Offsets)

	_, err = execute(t, "", "scan", "--dump", dumpDir, "--type", "currency", "500")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestDumpCommand(t *testing.T) {
	dumpDir, _ := writeFixture(t, fixtureTable)
	output := filepath.Join(t.TempDir(), "copy")

	_, err := execute(t, "", "dump", "--dump", dumpDir, "--output", output)
	require.NoError(t, err)

	dump, err := process_blob.LoadProcessDump(output)
	require.NoError(t, err)
	assert.Equal(t, "game", dump.Name)
	assert.Len(t, dump.MemoryMap, 2)
}

func TestServeCommand(t *testing.T) {
	dumpDir, _ := writeFixture(t, fixtureTable)

	stdin := strings.Join([]string{
		`{"id": "a", "command": "attach_to_game", "args": {"processName": "game"}}`,
		`{"id": "b", "command": "read_cheat", "args": {"cheatId": "hp"}}`,
	}, "\n")

	out, err := execute(t, stdin, "serve", "--dump", dumpDir)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"ok":true`)
	assert.Contains(t, lines[1], `"code":"cheat_not_found"`)
}

func TestRunCommand_StopsWithContext(t *testing.T) {
	dumpDir, tablePath := writeFixture(t, fixtureTable)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"run", "--table", tablePath, "--dump", dumpDir, "--format", "json"})

	require.NoError(t, cmd.ExecuteContext(ctx))

	var status struct {
		Attached bool   `json:"attached"`
		State    string `json:"state"`
	}
	decodeData(t, out.String(), &status)
	assert.True(t, status.Attached)
	assert.Equal(t, "idle", status.State)
}
