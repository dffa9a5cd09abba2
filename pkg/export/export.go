package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/nicktill/galileo-metrics/pkg/storage"
)

// FormatVersion is written into the metadata of JSON exports.
const FormatVersion = "1.0"

// Exporter handles exporting stored snapshots to various formats
type Exporter struct {
	store storage.Store
}

// NewExporter creates a new exporter
func NewExporter(store storage.Store) *Exporter {
	return &Exporter{store: store}
}

// ExportOptions configures the export operation
type ExportOptions struct {
	// Filter by project and log stream (empty = all)
	Project   string
	LogStream string

	// Time range on FetchedAt (zero = unbounded)
	Since time.Time
	Until time.Time

	// Limit number of snapshots (0 = no limit)
	Limit int
}

func (o ExportOptions) listRequest() storage.ListRequest {
	return storage.ListRequest{
		Project:   o.Project,
		LogStream: o.LogStream,
		Since:     o.Since,
		Until:     o.Until,
		Limit:     o.Limit,
	}
}

// ExportResult contains stats about the export
type ExportResult struct {
	SnapshotsExported int       `json:"snapshots_exported"`
	RowsWritten       int       `json:"rows_written,omitempty"`
	Format            string    `json:"format"`
	ExportedAt        time.Time `json:"exported_at"`
}

// Metadata heads a JSON export.
type Metadata struct {
	ExportedAt    time.Time `json:"exported_at"`
	SnapshotCount int       `json:"snapshot_count"`
	Format        string    `json:"format"`
	Version       string    `json:"version"`
}

// ExportData is the document written by ExportToJSON and read by
// ImportFromJSON.
type ExportData struct {
	Metadata  Metadata            `json:"metadata"`
	Snapshots []*storage.Snapshot `json:"snapshots"`
}

// ExportToJSON exports snapshots as JSON to the given writer
func (e *Exporter) ExportToJSON(ctx context.Context, w io.Writer, opts ExportOptions) (*ExportResult, error) {
	snapshots, err := e.store.List(ctx, opts.listRequest())
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	data := ExportData{
		Metadata: Metadata{
			ExportedAt:    time.Now().UTC(),
			SnapshotCount: len(snapshots),
			Format:        "json",
			Version:       FormatVersion,
		},
		Snapshots: snapshots,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return nil, fmt.Errorf("failed to encode JSON: %w", err)
	}

	return &ExportResult{
		SnapshotsExported: len(snapshots),
		Format:            "json",
		ExportedAt:        data.Metadata.ExportedAt,
	}, nil
}

// ExportToCSV exports snapshots as CSV, one row per metric value, each
// prefixed with the snapshot it came from.
func (e *Exporter) ExportToCSV(ctx context.Context, w io.Writer, opts ExportOptions) (*ExportResult, error) {
	snapshots, err := e.store.List(ctx, opts.listRequest())
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	writer := csv.NewWriter(w)

	header := append([]string{"snapshot_id", "project", "log_stream", "fetched_at"}, TreeHeader...)
	if err := writer.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	rows := 0
	for _, snap := range snapshots {
		prefix := []string{snap.ID, snap.Project, snap.LogStream, snap.FetchedAt.Format(time.RFC3339Nano)}
		for _, row := range Rows(snap.Sessions) {
			if err := writer.Write(append(append([]string{}, prefix...), row...)); err != nil {
				return nil, fmt.Errorf("failed to write CSV row: %w", err)
			}
			rows++
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush CSV: %w", err)
	}

	return &ExportResult{
		SnapshotsExported: len(snapshots),
		RowsWritten:       rows,
		Format:            "csv",
		ExportedAt:        time.Now().UTC(),
	}, nil
}
