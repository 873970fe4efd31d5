package registry

import (
	"testing"
	"time"

	"github.com/athulya-anil/distributed-lxc/pkg/models"
)

func TestUpsertCreatesThenUpdatesInPlace(t *testing.T) {
	r := New()

	if err := r.Upsert("w1", "host-a", "10.0.0.1", 9001); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", r.Len())
	}

	if err := r.Upsert("w1", "host-a-renamed", "10.0.0.2", 9002); err != nil {
		t.Fatalf("Upsert (update): %v", err)
	}
	if r.Len() != 1 {
		t.Fatalf("Len() after update = %d, want 1 (update, not insert)", r.Len())
	}

	w, ok := r.Find("w1")
	if !ok {
		t.Fatal("Find: worker not found")
	}
	if w.Hostname != "host-a-renamed" || w.IP != "10.0.0.2" || w.Port != 9002 {
		t.Fatalf("got %+v after update", w)
	}
}

func TestUpsertRejectsAtCapacity(t *testing.T) {
	r := New()
	for i := 0; i < Capacity; i++ {
		id := string(rune('a' + i%26)) + string(rune(i))
		if err := r.Upsert(id, "h", "10.0.0.1", 9000); err != nil {
			t.Fatalf("Upsert #%d: %v", i, err)
		}
	}
	if r.Len() != Capacity {
		t.Fatalf("Len() = %d, want %d", r.Len(), Capacity)
	}

	if err := r.Upsert("one-too-many", "h", "10.0.0.1", 9000); err != ErrCapacity {
		t.Fatalf("expected ErrCapacity at the %dth registration, got %v", Capacity+1, err)
	}
}

func TestUpsertAtCapacityStillAllowsUpdatingExisting(t *testing.T) {
	r := New()
	for i := 0; i < Capacity; i++ {
		id := string(rune('a'+i%26)) + string(rune(i))
		_ = r.Upsert(id, "h", "10.0.0.1", 9000)
	}

	firstID := string(rune('a')) + string(rune(0))
	if err := r.Upsert(firstID, "renamed", "10.0.0.9", 9999); err != nil {
		t.Fatalf("update at capacity should succeed: %v", err)
	}
}

func TestTouchUpdatesHeartbeatAndState(t *testing.T) {
	r := New()
	_ = r.Upsert("w1", "h", "10.0.0.1", 9000)
	r.CloseConnection("w1")

	sample := models.ResourceSample{CPUPercent: 12.3, ContainerCount: 2, Capacity: 10}
	if !r.Touch("w1", sample) {
		t.Fatal("Touch returned false for known worker")
	}

	w, _ := r.Find("w1")
	if w.State != models.WorkerConnected {
		t.Fatalf("state = %v, want Connected", w.State)
	}
	if w.Resources != sample {
		t.Fatalf("resources = %+v, want %+v", w.Resources, sample)
	}
	if time.Since(w.LastHeartbeat) > time.Second {
		t.Fatalf("last heartbeat not refreshed: %v", w.LastHeartbeat)
	}
}

func TestTouchUnknownWorkerReturnsFalse(t *testing.T) {
	r := New()
	if r.Touch("ghost", models.ResourceSample{}) {
		t.Fatal("Touch should return false for an unregistered worker")
	}
}

func TestCloseConnectionRetainsRecord(t *testing.T) {
	r := New()
	_ = r.Upsert("w1", "h", "10.0.0.1", 9000)
	r.CloseConnection("w1")

	w, ok := r.Find("w1")
	if !ok {
		t.Fatal("worker record removed on disconnect; should be retained")
	}
	if w.State != models.WorkerDisconnected {
		t.Fatalf("state = %v, want Disconnected", w.State)
	}
}

func TestSnapshotPreservesRegistrationOrder(t *testing.T) {
	r := New()
	ids := []string{"w3", "w1", "w2"}
	for _, id := range ids {
		_ = r.Upsert(id, "h", "10.0.0.1", 9000)
	}

	snap := r.Snapshot()
	if len(snap) != len(ids) {
		t.Fatalf("snapshot len = %d, want %d", len(snap), len(ids))
	}
	for i, id := range ids {
		if snap[i].ID != id {
			t.Fatalf("snapshot[%d].ID = %s, want %s", i, snap[i].ID, id)
		}
	}
}

func TestSnapshotIsByValue(t *testing.T) {
	r := New()
	_ = r.Upsert("w1", "h", "10.0.0.1", 9000)

	snap := r.Snapshot()
	snap[0].Hostname = "mutated"

	w, _ := r.Find("w1")
	if w.Hostname == "mutated" {
		t.Fatal("mutating a snapshot entry affected the registry's internal record")
	}
}

func TestAddRemoveContainerTracksWorkerView(t *testing.T) {
	r := New()
	_ = r.Upsert("w1", "h", "10.0.0.1", 9000)

	r.AddContainer("w1", "w1_app")
	w, _ := r.Find("w1")
	if len(w.Containers) != 1 || w.Containers[0] != "w1_app" {
		t.Fatalf("containers = %v", w.Containers)
	}

	r.RemoveContainer("w1", "w1_app")
	w, _ = r.Find("w1")
	if len(w.Containers) != 0 {
		t.Fatalf("containers = %v, want empty", w.Containers)
	}
}
