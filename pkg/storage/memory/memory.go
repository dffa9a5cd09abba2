package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nicktill/galileo-metrics/pkg/storage"
)

var _ storage.Store = (*Store)(nil)

// Store keeps snapshots in memory. Data is lost on restart.
// Useful for testing and for runs without a store directory.
type Store struct {
	snapshots []*storage.Snapshot
	mu        sync.RWMutex
}

// New creates an in-memory snapshot store
func New() *Store {
	return &Store{
		snapshots: make([]*storage.Snapshot, 0, 16),
	}
}

// Put stores a copy of snap. A snapshot with the same project, log stream
// and fetch time is replaced.
func (s *Store) Put(ctx context.Context, snap *storage.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	storage.Prepare(snap)
	stored := *snap

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.snapshots {
		if sameSlot(existing, &stored) {
			s.snapshots[i] = &stored
			return nil
		}
	}
	s.snapshots = append(s.snapshots, &stored)
	return nil
}

// Latest returns the newest snapshot of a log stream
func (s *Store) Latest(ctx context.Context, project, logStream string) (*storage.Snapshot, error) {
	snaps, err := s.List(ctx, storage.ListRequest{Project: project, LogStream: logStream, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, fmt.Errorf("%w: %s/%s", storage.ErrNotFound, project, logStream)
	}
	return snaps[0], nil
}

// List returns snapshots matching the request, newest first
func (s *Store) List(ctx context.Context, req storage.ListRequest) ([]*storage.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	results := make([]*storage.Snapshot, 0)
	for _, snap := range s.snapshots {
		if req.Matches(snap) {
			cp := *snap
			results = append(results, &cp)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].FetchedAt.After(results[j].FetchedAt)
	})
	if req.Limit > 0 && len(results) > req.Limit {
		results = results[:req.Limit]
	}
	return results, nil
}

// Delete removes snapshots fetched before the given time
func (s *Store) Delete(ctx context.Context, before time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := make([]*storage.Snapshot, 0, len(s.snapshots))
	for _, snap := range s.snapshots {
		if !snap.FetchedAt.Before(before) {
			kept = append(kept, snap)
		}
	}
	deleted := len(s.snapshots) - len(kept)
	s.snapshots = kept
	return deleted, nil
}

// Stats returns storage statistics
func (s *Store) Stats(ctx context.Context) (*storage.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &storage.Stats{
		TotalSnapshots: uint64(len(s.snapshots)),
	}
	if len(s.snapshots) == 0 {
		return stats, nil
	}

	streams := make(map[string]struct{})
	stats.OldestSnapshot = s.snapshots[0].FetchedAt
	stats.NewestSnapshot = s.snapshots[0].FetchedAt
	for _, snap := range s.snapshots {
		streams[snap.Project+"\x00"+snap.LogStream] = struct{}{}
		if snap.FetchedAt.Before(stats.OldestSnapshot) {
			stats.OldestSnapshot = snap.FetchedAt
		}
		if snap.FetchedAt.After(stats.NewestSnapshot) {
			stats.NewestSnapshot = snap.FetchedAt
		}
	}
	stats.TotalStreams = uint64(len(streams))

	return stats, nil
}

// Close is a no-op for memory storage
func (s *Store) Close() error {
	return nil
}

func sameSlot(a, b *storage.Snapshot) bool {
	return a.Project == b.Project && a.LogStream == b.LogStream && a.FetchedAt.Equal(b.FetchedAt)
}
