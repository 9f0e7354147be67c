package listener

import (
	"sync"
	"testing"
)

func TestAggregator_Snapshot(t *testing.T) {
	a := NewAggregator()
	a.setRunning(true)
	a.register("dev-1", "Lobby", "10.0.0.5:4370")
	a.setTaskRunning("dev-1", true)

	snap := a.Snapshot()
	if !snap.Running {
		t.Error("expected running flag set")
	}
	entry, ok := snap.Devices["dev-1"]
	if !ok {
		t.Fatal("expected dev-1 entry")
	}
	if !entry.Running || entry.Name != "Lobby" || entry.Address != "10.0.0.5:4370" {
		t.Errorf("unexpected entry: %+v", entry)
	}
}

func TestAggregator_SnapshotIsDetached(t *testing.T) {
	a := NewAggregator()
	a.register("dev-1", "Lobby", "10.0.0.5:4370")

	snap := a.Snapshot()
	a.setTaskError("dev-1", "boom")

	if snap.Devices["dev-1"].LastError != "" {
		t.Error("mutation after snapshot leaked into the snapshot")
	}
}

func TestAggregator_RunningClearsError(t *testing.T) {
	a := NewAggregator()
	a.register("dev-1", "Lobby", "10.0.0.5:4370")
	a.setTaskError("dev-1", "connect refused")
	a.setTaskRunning("dev-1", true)

	if got := a.Snapshot().Devices["dev-1"]; got.LastError != "" {
		t.Errorf("expected error cleared on running, got %q", got.LastError)
	}
}

func TestAggregator_StoppedTaskKeepsLastError(t *testing.T) {
	a := NewAggregator()
	a.register("dev-1", "Lobby", "10.0.0.5:4370")
	a.setTaskRunning("dev-1", true)
	a.setTaskError("dev-1", "connection lost")
	a.setTaskRunning("dev-1", false)

	got := a.Snapshot().Devices["dev-1"]
	if got.Running {
		t.Error("expected running cleared")
	}
	if got.LastError != "connection lost" {
		t.Errorf("expected last error retained, got %q", got.LastError)
	}
}

func TestAggregator_Reset(t *testing.T) {
	a := NewAggregator()
	a.setRunning(true)
	a.setGlobalError("boom")
	a.register("dev-1", "Lobby", "10.0.0.5:4370")

	a.reset()

	snap := a.Snapshot()
	if snap.Running || snap.LastError != "" || len(snap.Devices) != 0 {
		t.Errorf("expected empty status after reset, got %+v", snap)
	}
}

func TestAggregator_UnknownIDIgnored(t *testing.T) {
	a := NewAggregator()
	a.setTaskRunning("missing", true)
	a.setTaskError("missing", "boom")

	if len(a.Snapshot().Devices) != 0 {
		t.Error("writes to unknown IDs must not create entries")
	}
}

func TestAggregator_ConcurrentReadersAndWriters(t *testing.T) {
	a := NewAggregator()
	a.register("dev-1", "Lobby", "10.0.0.5:4370")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			a.setTaskError("dev-1", "transient")
			a.setTaskRunning("dev-1", true)
		}()
		go func() {
			defer wg.Done()
			_ = a.Snapshot()
		}()
	}
	wg.Wait()
}
