package control

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"modworks/cheat"
	"modworks/engine"
	"modworks/process"
	"modworks/process_blob"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGame() *process_blob.ProcessDump {
	dump := process_blob.NewProcessDump()
	dump.PID = 4242
	dump.Name = "game"

	image := make([]byte, 0x100)
	binary.LittleEndian.PutUint64(image[0x10:], 0x2000)
	dump.Map(0x1000, image, "r--p", "/opt/game/game")
	dump.Map(0x2000, make([]byte, 0x100), "rw-p", "")
	return dump
}

func newDispatcher(t *testing.T) (*Dispatcher, *process_blob.ProcessDump) {
	t.Helper()

	dump := newGame()
	e := engine.New(engine.Config{
		Interval: time.Hour,
		Finder:   dump,
		Opener:   dump,
	})
	t.Cleanup(func() { e.Close() })

	return New(e), dump
}

const hpConfig = `{"cheatConfig": {
	"game_id": "g1", "cheat_id": "hp", "offsets": [16, 32],
	"value_type": "int32", "size": 4, "is_enabled": true, "current_value": 999
}}`

func TestDispatch_Scenario(t *testing.T) {
	d, dump := newDispatcher(t)

	res := d.Dispatch("add_cheat", json.RawMessage(hpConfig))
	assert.False(t, res.OK)
	assert.Equal(t, "not_attached", res.Code)

	res = d.Dispatch("attach_to_game", json.RawMessage(`{"processName": "game"}`))
	require.True(t, res.OK, res.Error)
	target, ok := res.Data.(engine.Target)
	require.True(t, ok)
	assert.Equal(t, process.ProcessMemoryAddress(0x1000), target.Base)

	res = d.Dispatch("add_cheat", json.RawMessage(hpConfig))
	require.True(t, res.OK, res.Error)

	res = d.Dispatch("start_cheat_loop", nil)
	require.True(t, res.OK, res.Error)
	require.Eventually(t, func() bool { return len(dump.Writes()) == 1 }, time.Second, time.Millisecond)

	res = d.Dispatch("stop_cheat_loop", nil)
	require.True(t, res.OK, res.Error)

	writes := dump.Writes()
	assert.Equal(t, process.ProcessMemoryAddress(0x2020), writes[0].Address)
	assert.Equal(t, []byte{0xE7, 0x03, 0, 0}, writes[0].Data)

	res = d.Dispatch("read_cheat", json.RawMessage(`{"cheatId": "hp"}`))
	require.True(t, res.OK, res.Error)
	assert.Equal(t, int32(999), res.Data.(ReadResult).Value)

	res = d.Dispatch("list_cheats", nil)
	require.True(t, res.OK)
	cheats := res.Data.([]cheat.Entry)
	require.Len(t, cheats, 1)
	assert.Equal(t, "hp", cheats[0].CheatID)

	res = d.Dispatch("remove_cheat", json.RawMessage(`{"cheatId": "hp"}`))
	require.True(t, res.OK)
	res = d.Dispatch("remove_cheat", json.RawMessage(`{"cheatId": "hp"}`))
	require.True(t, res.OK)

	res = d.Dispatch("detach", nil)
	require.True(t, res.OK)
	assert.True(t, dump.IsClosed())
}

func TestDispatch_Errors(t *testing.T) {
	d, _ := newDispatcher(t)
	require.True(t, d.Dispatch("attach_to_game", json.RawMessage(`{"processName": "game"}`)).OK)

	cases := []struct {
		command string
		args    string
		code    string
	}{
		{"no_such_command", ``, "unknown_command"},
		{"attach_to_game", `{}`, "bad_request"},
		{"attach_to_game", `{"processName": "other"}`, "attach_failed"},
		{"add_cheat", `{}`, "bad_request"},
		{"add_cheat", `not json`, "bad_request"},
		{"add_cheat", `{"cheatConfig": {"cheat_id": "x", "offsets": [1], "value_type": "currency", "size": 4}}`, "invalid_value_type"},
		{"add_cheat", `{"cheatConfig": {"cheat_id": "x", "offsets": [], "value_type": "bool", "size": 1}}`, "empty_chain"},
		{"apply_cheat", `{"cheatConfig": {"cheat_id": "x", "offsets": [80, 0], "value_type": "bool", "size": 1, "current_value": true}}`, "unreadable_address"},
		{"apply_cheat", `{"cheatConfig": {"cheat_id": "x", "offsets": [48], "value_type": "bool", "size": 1, "current_value": true}}`, "write_failed"},
		{"remove_cheat", `{}`, "bad_request"},
		{"set_cheat_enabled", `{"cheatId": "hp"}`, "bad_request"},
		{"set_cheat_enabled", `{"cheatId": "hp", "enabled": true}`, "cheat_not_found"},
		{"update_cheat_value", `{"cheatId": "hp", "value": 1}`, "cheat_not_found"},
	}

	for _, tc := range cases {
		t.Run(tc.command+" "+tc.code, func(t *testing.T) {
			res := d.Dispatch(tc.command, json.RawMessage(tc.args))
			assert.False(t, res.OK)
			assert.NotEmpty(t, res.Error)
			assert.Equal(t, tc.code, res.Code)
		})
	}
}

func TestDispatch_UpdateValueKeepsIntegers(t *testing.T) {
	d, _ := newDispatcher(t)
	require.True(t, d.Dispatch("attach_to_game", json.RawMessage(`{"processName": "game"}`)).OK)
	require.True(t, d.Dispatch("add_cheat", json.RawMessage(hpConfig)).OK)

	res := d.Dispatch("update_cheat_value", json.RawMessage(`{"cheatId": "hp", "value": 2147483647}`))
	require.True(t, res.OK, res.Error)
	res = d.Dispatch("set_cheat_enabled", json.RawMessage(`{"cheatId": "hp", "enabled": false}`))
	require.True(t, res.OK, res.Error)

	cheats := d.Dispatch("list_cheats", nil).Data.([]cheat.Entry)
	require.Len(t, cheats, 1)
	assert.Equal(t, json.Number("2147483647"), cheats[0].CurrentValue)
	assert.False(t, cheats[0].IsEnabled)
}

func TestDispatch_Status(t *testing.T) {
	d, _ := newDispatcher(t)

	res := d.Dispatch("cheat_status", nil)
	require.True(t, res.OK)
	status := res.Data.(engine.Status)
	assert.False(t, status.Attached)
	assert.Equal(t, engine.LoopIdle, status.State)
}

func TestCommands(t *testing.T) {
	d, _ := newDispatcher(t)

	assert.Subset(t, d.Commands(), []string{
		"attach_to_game", "add_cheat", "remove_cheat", "apply_cheat",
		"start_cheat_loop", "stop_cheat_loop", "list_cheats", "cheat_status",
	})
}

func TestServe(t *testing.T) {
	d, dump := newDispatcher(t)

	input := strings.Join([]string{
		`{"id": "1", "command": "attach_to_game", "args": {"processName": "game"}}`,
		``,
		"  \t ",
		`{"id": "2", "command": "apply_cheat", "args": ` + hpConfig + `}`,
		`garbage`,
		`{"id": "3", "command": "nope"}`,
	}, "\n")

	var out bytes.Buffer
	require.NoError(t, d.Serve(context.Background(), strings.NewReader(input), &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)

	var resp []map[string]any
	for _, line := range lines {
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		resp = append(resp, m)
	}

	assert.Equal(t, "1", resp[0]["id"])
	assert.Equal(t, true, resp[0]["ok"])
	assert.Equal(t, "2", resp[1]["id"])
	assert.Equal(t, true, resp[1]["ok"])
	assert.Equal(t, "bad_request", resp[2]["code"])
	assert.Equal(t, "3", resp[3]["id"])
	assert.Equal(t, "unknown_command", resp[3]["code"])

	require.Len(t, dump.Writes(), 1)
	assert.Equal(t, process.ProcessMemoryAddress(0x2020), dump.Writes()[0].Address)
}

func TestServe_Canceled(t *testing.T) {
	d, _ := newDispatcher(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	err := d.Serve(ctx, strings.NewReader(`{"command": "cheat_status"}`), &out)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, out.String())
}
