package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/nicktill/galileo-metrics/pkg/logstream"
)

// ErrNotFound is returned when no snapshot matches a lookup.
var ErrNotFound = errors.New("snapshot not found")

// Store defines the interface for snapshot storage backends.
// Implementations: memory (testing), badger (on disk)
type Store interface {
	// Put stores a snapshot. A missing ID or FetchedAt is filled in.
	Put(ctx context.Context, snap *Snapshot) error

	// Latest returns the newest snapshot of a log stream
	Latest(ctx context.Context, project, logStream string) (*Snapshot, error)

	// List returns snapshots matching the request, newest first
	List(ctx context.Context, req ListRequest) ([]*Snapshot, error)

	// Delete removes snapshots fetched before the given time and reports
	// how many were removed
	Delete(ctx context.Context, before time.Time) (int, error)

	// Stats returns storage statistics
	Stats(ctx context.Context) (*Stats, error)

	// Close cleanly shuts down the storage
	Close() error
}

// Snapshot is one stored fetch of a log stream.
type Snapshot struct {
	ID          string                  `json:"id"`
	Project     string                  `json:"project"`
	LogStream   string                  `json:"log_stream"`
	ProjectID   string                  `json:"project_id"`
	LogStreamID string                  `json:"log_stream_id"`
	FetchedAt   time.Time               `json:"fetched_at"`
	Stats       logstream.Stats         `json:"stats"`
	Sessions    []logstream.SessionNode `json:"sessions"`
}

// NewSnapshot wraps a fetch result in a snapshot with a fresh ID.
func NewSnapshot(res *logstream.Result) *Snapshot {
	return &Snapshot{
		ID:          uuid.NewString(),
		Project:     res.Project,
		LogStream:   res.LogStream,
		ProjectID:   res.ProjectID,
		LogStreamID: res.LogStreamID,
		FetchedAt:   res.FetchedAt,
		Stats:       res.Stats,
		Sessions:    res.Sessions,
	}
}

// Result turns a snapshot back into the fetch result it was made from.
func (s *Snapshot) Result() *logstream.Result {
	return &logstream.Result{
		Project:     s.Project,
		LogStream:   s.LogStream,
		ProjectID:   s.ProjectID,
		LogStreamID: s.LogStreamID,
		FetchedAt:   s.FetchedAt,
		Stats:       s.Stats,
		Sessions:    s.Sessions,
	}
}

// Prepare fills in a missing ID and FetchedAt. Backends call it from Put.
func Prepare(snap *Snapshot) {
	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}
	if snap.FetchedAt.IsZero() {
		snap.FetchedAt = time.Now().UTC()
	}
	if snap.Sessions == nil {
		snap.Sessions = []logstream.SessionNode{}
	}
}

// ListRequest specifies which snapshots to return
type ListRequest struct {
	// Filter by project and log stream name (optional, exact match)
	Project   string
	LogStream string

	// Time range on FetchedAt (zero = unbounded)
	Since time.Time
	Until time.Time

	// Limit number of results (0 = no limit)
	Limit int
}

// Matches reports whether snap passes the request filters.
func (r ListRequest) Matches(snap *Snapshot) bool {
	if r.Project != "" && snap.Project != r.Project {
		return false
	}
	if r.LogStream != "" && snap.LogStream != r.LogStream {
		return false
	}
	if !r.Since.IsZero() && snap.FetchedAt.Before(r.Since) {
		return false
	}
	if !r.Until.IsZero() && snap.FetchedAt.After(r.Until) {
		return false
	}
	return true
}

// Stats provides storage usage info
type Stats struct {
	// Total snapshots stored
	TotalSnapshots uint64

	// Unique project/log stream pairs
	TotalStreams uint64

	// Storage size in bytes
	SizeBytes uint64

	// Oldest and newest FetchedAt
	OldestSnapshot time.Time
	NewestSnapshot time.Time
}
