package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/nicktill/galileo-metrics/pkg/storage"
)

// Importer loads snapshots from a JSON export into a store
type Importer struct {
	store storage.Store
}

// NewImporter creates a new importer
func NewImporter(store storage.Store) *Importer {
	return &Importer{store: store}
}

// ImportResult contains stats about the import operation
type ImportResult struct {
	SnapshotsImported int       `json:"snapshots_imported"`
	ImportedAt        time.Time `json:"imported_at"`
	Errors            []string  `json:"errors,omitempty"`
}

// ImportFromJSON reads an ExportData document and stores every valid
// snapshot. Invalid snapshots are skipped and reported in Errors; a store
// failure aborts the import.
func (im *Importer) ImportFromJSON(ctx context.Context, r io.Reader) (*ImportResult, error) {
	var data ExportData
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode JSON: %w", err)
	}

	result := &ImportResult{ImportedAt: time.Now().UTC()}
	for i, snap := range data.Snapshots {
		if err := validateSnapshot(snap); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("snapshot %d: %v", i, err))
			continue
		}
		if err := im.store.Put(ctx, snap); err != nil {
			return nil, fmt.Errorf("failed to store snapshot %d: %w", i, err)
		}
		result.SnapshotsImported++
	}

	return result, nil
}

// validateSnapshot validates a snapshot before import
func validateSnapshot(snap *storage.Snapshot) error {
	if snap == nil {
		return fmt.Errorf("snapshot cannot be null")
	}
	if snap.Project == "" || snap.LogStream == "" {
		return fmt.Errorf("project and log stream are required")
	}
	if snap.FetchedAt.IsZero() {
		return fmt.Errorf("fetched_at cannot be zero")
	}
	if snap.FetchedAt.After(time.Now().Add(24 * time.Hour)) {
		return fmt.Errorf("fetched_at too far in future: %s", snap.FetchedAt)
	}
	return nil
}
