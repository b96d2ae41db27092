package engine

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"modworks/cheat"
	"modworks/process"
	"modworks/process_blob"
	"modworks/registry"
	"modworks/scan"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFinder struct {
	procs []process.ProcessInfo
}

func (f *fakeFinder) FindProcessByPID(pid process.ProcessID) (*process.ProcessInfo, error) {
	for _, p := range f.procs {
		if p.PID == pid {
			info := p
			return &info, nil
		}
	}
	return nil, fmt.Errorf("process %d not found", pid)
}

func (f *fakeFinder) FindProcessByName(name string) ([]process.ProcessInfo, error) {
	var found []process.ProcessInfo
	for _, p := range f.procs {
		if p.Name == name {
			found = append(found, p)
		}
	}
	return found, nil
}

// newGame maps a module at 0x1000 holding a pointer to a heap page at 0x2000
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

func newTestEngine(t *testing.T, dump *process_blob.ProcessDump, interval time.Duration) *Engine {
	t.Helper()

	e := New(Config{
		Interval: interval,
		Finder: &fakeFinder{procs: []process.ProcessInfo{
			{PID: 4242, Name: "game"},
		}},
		Opener: process.OpenerFunc(func(pid process.ProcessID) (process.Process, error) {
			if err := dump.Open(pid); err != nil {
				return nil, err
			}
			return dump, nil
		}),
	})
	t.Cleanup(func() { e.Close() })
	return e
}

func hp(value any) cheat.Entry {
	return cheat.Entry{
		GameID:       "g1",
		CheatID:      "hp",
		Offsets:      []uint64{0x10, 0x20},
		ValueType:    "int32",
		Size:         4,
		IsEnabled:    true,
		CurrentValue: value,
	}
}

func le32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func TestEngine_AttachResolvesModuleBase(t *testing.T) {
	e := newTestEngine(t, newGame(), time.Hour)

	require.NoError(t, e.Attach("game"))

	target, ok := e.Target()
	require.True(t, ok)
	assert.Equal(t, process.ProcessID(4242), target.PID)
	assert.Equal(t, "game", target.Module)
	assert.Equal(t, process.ProcessMemoryAddress(0x1000), target.Base)
}

func TestEngine_AttachUnknownProcess(t *testing.T) {
	e := newTestEngine(t, newGame(), time.Hour)

	err := e.Attach("nope")
	assert.ErrorIs(t, err, ErrAttachFailed)
	assert.False(t, e.IsAttached())
}

func TestEngine_FailedAttachKeepsTarget(t *testing.T) {
	dump := newGame()
	e := newTestEngine(t, dump, time.Hour)
	require.NoError(t, e.Attach("game"))

	assert.ErrorIs(t, e.AttachTarget(TargetSpec{PID: 1}), ErrAttachFailed)
	assert.ErrorIs(t, e.AttachTarget(TargetSpec{Process: "game", Module: "missing.so"}), ErrAttachFailed)

	target, ok := e.Target()
	require.True(t, ok)
	assert.Equal(t, process.ProcessMemoryAddress(0x1000), target.Base)
	assert.False(t, dump.IsClosed())
}

func TestEngine_ApplyOnceScenario(t *testing.T) {
	dump := newGame()
	e := newTestEngine(t, dump, time.Hour)
	require.NoError(t, e.Attach("game"))

	require.NoError(t, e.ApplyOnce(hp(999)))

	writes := dump.Writes()
	require.Len(t, writes, 1)
	assert.Equal(t, process.ProcessMemoryAddress(0x2020), writes[0].Address)
	assert.Equal(t, le32(999), writes[0].Data)
	assert.Empty(t, e.ListCheats())
}

func TestEngine_ApplyOnceWithoutValue(t *testing.T) {
	dump := newGame()
	e := newTestEngine(t, dump, time.Hour)
	require.NoError(t, e.Attach("game"))

	require.NoError(t, e.ApplyOnce(hp(nil)))
	assert.Empty(t, dump.Writes())
}

func TestEngine_ApplyOnceErrors(t *testing.T) {
	dump := newGame()
	e := newTestEngine(t, dump, time.Hour)

	assert.ErrorIs(t, e.ApplyOnce(hp(1)), ErrNotAttached)
	require.NoError(t, e.Attach("game"))

	bad := hp(1)
	bad.ValueType = "currency"
	assert.ErrorIs(t, e.ApplyOnce(bad), cheat.ErrInvalidValueType)

	null := hp(1)
	null.Offsets = []uint64{0x50, 0x0}
	assert.ErrorIs(t, e.ApplyOnce(null), process.ErrUnreadableAddress)

	readonly := hp(1)
	readonly.Offsets = []uint64{0x30}
	err := e.ApplyOnce(readonly)
	assert.ErrorIs(t, err, ErrWriteFailed)
	assert.ErrorIs(t, err, process.ErrNotWritable)

	dump.WriteHook = func(addr process.ProcessMemoryAddress, data []byte) error {
		return errors.New("target exited")
	}
	assert.ErrorIs(t, e.ApplyOnce(hp(1)), ErrWriteFailed)
	assert.Empty(t, dump.Writes())
}

func TestEngine_AddCheatWhileDetached(t *testing.T) {
	e := newTestEngine(t, newGame(), time.Hour)

	assert.ErrorIs(t, e.AddCheat(hp(999)), ErrNotAttached)
	assert.Empty(t, e.ListCheats())
}

func TestEngine_AddCheatValidation(t *testing.T) {
	e := newTestEngine(t, newGame(), time.Hour)
	require.NoError(t, e.Attach("game"))

	bad := hp(1)
	bad.ValueType = "currency"
	assert.ErrorIs(t, e.AddCheat(bad), cheat.ErrInvalidValueType)

	empty := hp(1)
	empty.Offsets = nil
	assert.ErrorIs(t, e.AddCheat(empty), process.ErrEmptyChain)

	assert.Empty(t, e.ListCheats())
}

func TestEngine_CheatLifecycle(t *testing.T) {
	e := newTestEngine(t, newGame(), time.Hour)
	require.NoError(t, e.Attach("game"))

	require.NoError(t, e.AddCheat(hp(999)))
	require.NoError(t, e.SetCheatEnabled("hp", false))
	require.NoError(t, e.UpdateCheatValue("hp", 50))

	cheats := e.ListCheats()
	require.Len(t, cheats, 1)
	assert.False(t, cheats[0].IsEnabled)
	assert.Equal(t, 50, cheats[0].CurrentValue)

	assert.ErrorIs(t, e.SetCheatEnabled("mana", true), registry.ErrCheatNotFound)

	require.NoError(t, e.RemoveCheat("hp"))
	require.NoError(t, e.RemoveCheat("hp"))
	assert.Empty(t, e.ListCheats())
}

func TestEngine_ApplyAllSkipsDisabled(t *testing.T) {
	dump := newGame()
	e := newTestEngine(t, dump, time.Hour)
	require.NoError(t, e.Attach("game"))

	require.NoError(t, e.AddCheat(hp(999)))
	mana := hp(float32(1.5))
	mana.CheatID = "mana"
	mana.ValueType = "float32"
	mana.Offsets = []uint64{0x10, 0x40}
	mana.IsEnabled = false
	require.NoError(t, e.AddCheat(mana))

	report, err := e.ApplyAll()
	require.NoError(t, err)
	assert.Equal(t, 1, report.Applied)
	assert.Equal(t, 1, report.Skipped)
	assert.Zero(t, report.Tick)
	assert.Zero(t, e.Status().Ticks)

	writes := dump.Writes()
	require.Len(t, writes, 1)
	assert.Equal(t, process.ProcessMemoryAddress(0x2020), writes[0].Address)
}

func TestEngine_FailureDoesNotStopSiblings(t *testing.T) {
	dump := newGame()
	e := newTestEngine(t, dump, time.Hour)
	require.NoError(t, e.Attach("game"))

	broken := hp(1)
	broken.CheatID = "broken"
	broken.Offsets = []uint64{0x50, 0x0}
	require.NoError(t, e.AddCheat(broken))
	require.NoError(t, e.AddCheat(hp(999)))

	for i := 0; i < 2; i++ {
		report, err := e.ApplyAll()
		require.NoError(t, err)
		assert.Equal(t, 1, report.Applied)
		require.Len(t, report.Failed, 1)
		assert.Equal(t, "broken", report.Failed[0].CheatID)
		assert.ErrorIs(t, report.Failed[0].Err, process.ErrUnreadableAddress)
	}

	status := e.Status()
	require.Len(t, status.Entries, 2)
	assert.Equal(t, "broken", status.Entries[0].CheatID)
	assert.Equal(t, uint64(2), status.Entries[0].Failures)
	assert.NotEmpty(t, status.Entries[0].LastError)
	assert.Equal(t, "hp", status.Entries[1].CheatID)
	assert.Equal(t, uint64(2), status.Entries[1].Applied)
	assert.Equal(t, process.ProcessMemoryAddress(0x2020), status.Entries[1].LastAddress)

	// fixing the chain resets the consecutive counter
	broken.Offsets = []uint64{0x10, 0x60}
	require.NoError(t, e.AddCheat(broken))
	_, err := e.ApplyAll()
	require.NoError(t, err)
	for _, s := range e.Status().Entries {
		assert.Zero(t, s.Failures, s.CheatID)
	}
}

func TestEngine_StartLoopDetached(t *testing.T) {
	e := newTestEngine(t, newGame(), time.Hour)

	assert.ErrorIs(t, e.StartLoop(), ErrNotAttached)
	assert.Equal(t, LoopIdle, e.LoopState())
	require.NoError(t, e.StopLoop())
}

func TestEngine_StartLoopTwiceKeepsOneWorker(t *testing.T) {
	dump := newGame()
	e := newTestEngine(t, dump, time.Hour)
	require.NoError(t, e.Attach("game"))
	require.NoError(t, e.AddCheat(hp(999)))

	require.NoError(t, e.StartLoop())
	require.Eventually(t, func() bool { return len(dump.Writes()) == 1 }, time.Second, time.Millisecond)
	first := e.Status().RunID

	require.NoError(t, e.StartLoop())
	require.Eventually(t, func() bool { return len(dump.Writes()) == 2 }, time.Second, time.Millisecond)

	assert.Equal(t, 1, e.Workers())
	assert.Equal(t, LoopRunning, e.LoopState())
	assert.NotEqual(t, first, e.Status().RunID)

	require.NoError(t, e.StopLoop())
	assert.Equal(t, 0, e.Workers())
	assert.Len(t, dump.Writes(), 2)
}

func TestEngine_NoWritesAfterStopLoop(t *testing.T) {
	dump := newGame()
	e := newTestEngine(t, dump, time.Millisecond)
	require.NoError(t, e.Attach("game"))
	require.NoError(t, e.AddCheat(hp(999)))

	require.NoError(t, e.StartLoop())
	require.Eventually(t, func() bool { return len(dump.Writes()) >= 3 }, time.Second, time.Millisecond)

	require.NoError(t, e.StopLoop())
	assert.Equal(t, LoopIdle, e.LoopState())
	n := len(dump.Writes())

	time.Sleep(20 * time.Millisecond)
	assert.Len(t, dump.Writes(), n)
}

func TestEngine_LoopPicksUpChanges(t *testing.T) {
	dump := newGame()
	e := newTestEngine(t, dump, time.Millisecond)
	require.NoError(t, e.Attach("game"))
	require.NoError(t, e.AddCheat(hp(999)))
	require.NoError(t, e.StartLoop())

	require.NoError(t, e.UpdateCheatValue("hp", 7))
	require.Eventually(t, func() bool {
		writes := dump.Writes()
		return len(writes) > 0 && binary.LittleEndian.Uint32(writes[len(writes)-1].Data) == 7
	}, time.Second, time.Millisecond)

	require.NoError(t, e.SetCheatEnabled("hp", false))
	// a tick already holding the old snapshot may still finish
	time.Sleep(10 * time.Millisecond)
	n := len(dump.Writes())
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, dump.Writes(), n)
}

func TestEngine_Observer(t *testing.T) {
	var (
		mu      sync.Mutex
		reports []TickReport
	)

	dump := newGame()
	e := newTestEngine(t, dump, time.Millisecond)
	e.cfg.Observer = func(r TickReport) {
		mu.Lock()
		defer mu.Unlock()
		reports = append(reports, r)
	}
	require.NoError(t, e.Attach("game"))
	require.NoError(t, e.AddCheat(hp(999)))
	require.NoError(t, e.StartLoop())

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(reports) >= 2
	}, time.Second, time.Millisecond)
	runID := e.Status().RunID
	require.NoError(t, e.StopLoop())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, uint64(1), reports[0].Tick)
	assert.Equal(t, runID, reports[0].RunID)
	assert.Equal(t, 1, reports[0].Applied)
}

func TestEngine_ObserverMayQueryEngine(t *testing.T) {
	var calls atomic.Int32

	dump := newGame()
	e := newTestEngine(t, dump, time.Millisecond)
	e.cfg.Observer = func(TickReport) {
		_ = e.Status()
		_ = e.IsAttached()
		calls.Add(1)
	}
	require.NoError(t, e.Attach("game"))
	require.NoError(t, e.AddCheat(hp(999)))

	joined := func(name string, op func() error) {
		t.Helper()
		done := make(chan error, 1)
		go func() { done <- op() }()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatalf("%s did not return while the observer queried the engine", name)
		}
	}

	for i := 0; i < 20; i++ {
		before := calls.Load()
		require.NoError(t, e.StartLoop())
		require.Eventually(t, func() bool { return calls.Load() > before }, time.Second, time.Millisecond)
		joined("StopLoop", e.StopLoop)
		assert.Equal(t, LoopIdle, e.LoopState())
		assert.Equal(t, 0, e.Workers())
	}

	before := calls.Load()
	require.NoError(t, e.StartLoop())
	require.Eventually(t, func() bool { return calls.Load() > before }, time.Second, time.Millisecond)
	joined("Detach", e.Detach)
	assert.Equal(t, 0, e.Workers())
	assert.False(t, e.IsAttached())
}

func TestEngine_RemoveDuringTickLeavesNoStatus(t *testing.T) {
	dump := newGame()
	e := newTestEngine(t, dump, time.Hour)
	require.NoError(t, e.Attach("game"))
	require.NoError(t, e.AddCheat(hp(999)))

	removed := make(chan error, 1)
	var once sync.Once
	dump.WriteHook = func(process.ProcessMemoryAddress, []byte) error {
		once.Do(func() { removed <- e.RemoveCheat("hp") })
		return nil
	}

	require.NoError(t, e.StartLoop())
	select {
	case err := <-removed:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("loop never wrote")
	}
	require.NoError(t, e.StopLoop())

	require.Len(t, dump.Writes(), 1)
	assert.Empty(t, e.ListCheats())
	assert.Empty(t, e.Status().Entries)
}

func TestEngine_ReadCheat(t *testing.T) {
	e := newTestEngine(t, newGame(), time.Hour)
	require.NoError(t, e.Attach("game"))
	require.NoError(t, e.AddCheat(hp(999)))

	_, _, err := e.ReadCheat("mana")
	assert.ErrorIs(t, err, registry.ErrCheatNotFound)

	value, addr, err := e.ReadCheat("hp")
	require.NoError(t, err)
	assert.Equal(t, process.ProcessMemoryAddress(0x2020), addr)
	assert.Equal(t, int32(0), value)

	_, err = e.ApplyAll()
	require.NoError(t, err)

	value, _, err = e.ReadCheat("hp")
	require.NoError(t, err)
	assert.Equal(t, int32(999), value)
}

func TestEngine_DetachStopsLoopAndKeepsCheats(t *testing.T) {
	dump := newGame()
	e := newTestEngine(t, dump, time.Millisecond)
	require.NoError(t, e.Attach("game"))
	require.NoError(t, e.AddCheat(hp(999)))
	require.NoError(t, e.StartLoop())

	require.NoError(t, e.Detach())
	assert.True(t, dump.IsClosed())
	assert.Equal(t, LoopIdle, e.LoopState())
	assert.Equal(t, 0, e.Workers())
	assert.False(t, e.Status().Attached)
	assert.Len(t, e.ListCheats(), 1)

	require.NoError(t, e.Detach())
	require.NoError(t, e.Close())

	assert.ErrorIs(t, e.StartLoop(), ErrNotAttached)
}

func TestEngine_ReattachStopsLoop(t *testing.T) {
	dump := newGame()
	e := newTestEngine(t, dump, time.Millisecond)
	require.NoError(t, e.Attach("game"))
	require.NoError(t, e.AddCheat(hp(999)))
	require.NoError(t, e.StartLoop())

	require.NoError(t, e.AttachTarget(TargetSpec{PID: 4242}))
	assert.Equal(t, LoopIdle, e.LoopState())
	assert.False(t, dump.IsClosed())
	assert.True(t, e.IsAttached())
}

func TestEngine_Inspect(t *testing.T) {
	dump := newGame()
	e := newTestEngine(t, dump, time.Hour)

	_, err := e.Inspect(hp(999), 32)
	assert.ErrorIs(t, err, ErrNotAttached)

	require.NoError(t, e.Attach("game"))
	require.NoError(t, e.ApplyOnce(hp(999)))

	in, err := e.Inspect(hp(nil), 32)
	require.NoError(t, err)
	assert.Equal(t, []process.ProcessMemoryAddress{0x1010, 0x2020}, in.Hops)
	assert.Equal(t, process.ProcessMemoryAddress(0x2020), in.Address)
	assert.Equal(t, int32(999), in.Value)
	assert.Equal(t, process.ProcessMemoryAddress(0x2010), in.WindowStart)
	require.Len(t, in.Window, 32)
	assert.Equal(t, le32(999), in.Window[0x10:0x14])
	assert.Len(t, in.MemoryMap, 2)

	broken := hp(nil)
	broken.Offsets = []uint64{0x50, 0x0}
	in, err = e.Inspect(broken, 0)
	assert.ErrorIs(t, err, process.ErrUnreadableAddress)
	assert.Equal(t, []process.ProcessMemoryAddress{0x1050}, in.Hops)
}

func TestEngine_ScanAndSnapshot(t *testing.T) {
	dump := newGame()
	e := newTestEngine(t, dump, time.Hour)
	require.NoError(t, e.Attach("game"))
	require.NoError(t, e.ApplyOnce(hp(999)))

	results, err := e.Scan(context.Background(), scan.WithValue(cheat.TypeInt32, 999))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, []uint64{0x10, 0x20}, results[0].Offsets)

	snap, stats, err := e.Snapshot(process_blob.DefaultSnapshotOptions())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Saved)
	assert.Equal(t, "game", snap.Name)

	data, err := snap.ReadMemory(0x2020, 4)
	require.NoError(t, err)
	assert.Equal(t, le32(999), data)
}
