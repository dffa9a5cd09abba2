package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nicktill/galileo-metrics/pkg/logstream"
	"github.com/nicktill/galileo-metrics/pkg/storage"
)

func snapshotAt(project, logStream string, ts time.Time, sessionID string) *storage.Snapshot {
	return &storage.Snapshot{
		Project:   project,
		LogStream: logStream,
		FetchedAt: ts,
		Sessions:  []logstream.SessionNode{{ID: sessionID}},
	}
}

func TestMemoryStore_PutAndLatest(t *testing.T) {
	store := New()
	ctx := context.Background()
	now := time.Now()

	store.Put(ctx, snapshotAt("p", "l", now.Add(-time.Hour), "old"))
	store.Put(ctx, snapshotAt("p", "l", now, "new"))
	store.Put(ctx, snapshotAt("p", "other", now.Add(time.Hour), "other"))

	latest, err := store.Latest(ctx, "p", "l")
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if latest.Sessions[0].ID != "new" {
		t.Errorf("Expected newest snapshot, got %s", latest.Sessions[0].ID)
	}
	if latest.ID == "" {
		t.Error("Expected an assigned ID")
	}

	_, err = store.Latest(ctx, "p", "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_PutStoresCopy(t *testing.T) {
	store := New()
	ctx := context.Background()

	snap := snapshotAt("p", "l", time.Now(), "s1")
	store.Put(ctx, snap)
	snap.Project = "changed"

	if _, err := store.Latest(ctx, "p", "l"); err != nil {
		t.Errorf("Expected stored snapshot to be unaffected by caller changes: %v", err)
	}
}

func TestMemoryStore_SameSlotReplaces(t *testing.T) {
	store := New()
	ctx := context.Background()
	now := time.Now()

	store.Put(ctx, snapshotAt("p", "l", now, "first"))
	store.Put(ctx, snapshotAt("p", "l", now, "second"))

	all, _ := store.List(ctx, storage.ListRequest{})
	if len(all) != 1 || all[0].Sessions[0].ID != "second" {
		t.Errorf("Expected one replaced snapshot, got %d", len(all))
	}
}

func TestMemoryStore_List(t *testing.T) {
	store := New()
	ctx := context.Background()
	now := time.Now()

	store.Put(ctx, snapshotAt("a", "prod", now.Add(-2*time.Hour), "a-2"))
	store.Put(ctx, snapshotAt("a", "prod", now, "a-0"))
	store.Put(ctx, snapshotAt("b", "prod", now.Add(-1*time.Hour), "b-1"))

	all, err := store.List(ctx, storage.ListRequest{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	want := []string{"a-0", "b-1", "a-2"}
	for i, snap := range all {
		if snap.Sessions[0].ID != want[i] {
			t.Errorf("Position %d: expected %s, got %s", i, want[i], snap.Sessions[0].ID)
		}
	}

	limited, _ := store.List(ctx, storage.ListRequest{Project: "a", Limit: 1})
	if len(limited) != 1 || limited[0].Sessions[0].ID != "a-0" {
		t.Errorf("Expected newest snapshot of project a, got %d results", len(limited))
	}

	ranged, _ := store.List(ctx, storage.ListRequest{Since: now.Add(-90 * time.Minute)})
	if len(ranged) != 2 {
		t.Errorf("Expected 2 snapshots since cutoff, got %d", len(ranged))
	}
}

func TestMemoryStore_Delete(t *testing.T) {
	store := New()
	ctx := context.Background()
	now := time.Now()

	store.Put(ctx, snapshotAt("p", "l", now.Add(-3*time.Hour), "old1"))
	store.Put(ctx, snapshotAt("p", "l", now.Add(-2*time.Hour), "old2"))
	store.Put(ctx, snapshotAt("p", "l", now, "recent"))

	deleted, err := store.Delete(ctx, now.Add(-1*time.Hour))
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("Expected 2 deleted, got %d", deleted)
	}

	stats, _ := store.Stats(ctx)
	if stats.TotalSnapshots != 1 {
		t.Errorf("Expected 1 snapshot left, got %d", stats.TotalSnapshots)
	}
}

func TestMemoryStore_Stats(t *testing.T) {
	store := New()
	ctx := context.Background()

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalSnapshots != 0 || !stats.OldestSnapshot.IsZero() {
		t.Errorf("Expected empty stats, got %+v", stats)
	}

	now := time.Now()
	store.Put(ctx, snapshotAt("p", "prod", now.Add(-time.Hour), "s"))
	store.Put(ctx, snapshotAt("p", "prod", now, "s"))
	store.Put(ctx, snapshotAt("p", "stage", now, "s"))

	stats, _ = store.Stats(ctx)
	if stats.TotalSnapshots != 3 || stats.TotalStreams != 2 {
		t.Errorf("Expected 3 snapshots in 2 streams, got %+v", stats)
	}
	if !stats.OldestSnapshot.Equal(now.Add(-time.Hour)) || !stats.NewestSnapshot.Equal(now) {
		t.Errorf("Unexpected time range: %v - %v", stats.OldestSnapshot, stats.NewestSnapshot)
	}
}

func TestMemoryStore_ConcurrentPuts(t *testing.T) {
	store := New()
	ctx := context.Background()
	base := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			store.Put(ctx, snapshotAt("p", "l", base.Add(time.Duration(i)*time.Second), "s"))
		}(i)
	}
	wg.Wait()

	all, _ := store.List(ctx, storage.ListRequest{})
	if len(all) != 50 {
		t.Errorf("Expected 50 snapshots, got %d", len(all))
	}
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	store := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := store.Put(ctx, snapshotAt("p", "l", time.Now(), "s")); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
