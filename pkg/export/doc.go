// Package export writes aggregated log stream trees and stored snapshots
// to JSON or CSV, and restores snapshots from a JSON export.
//
// # Supported Formats
//
// JSON Format:
//   - WriteJSON emits {"sessions": [...]} for a single fetch
//   - ExportToJSON wraps stored snapshots with export metadata
//   - Can be re-imported with ImportFromJSON
//
// CSV Format:
//   - One row per metric value: level,session_id,trace_id,span_id,metric,value
//   - Rows follow tree order; metric names are sorted within a node
//   - ExportToCSV prefixes each row with the snapshot it came from
//   - Cannot be re-imported (export-only)
//
// # Usage
//
//	exporter := export.NewExporter(store)
//	result, err := exporter.ExportToJSON(ctx, file, export.ExportOptions{
//	    Project:   "Legal Assistant",
//	    LogStream: "production",
//	})
//
//	importer := export.NewImporter(otherStore)
//	result, err := importer.ImportFromJSON(ctx, file)
package export
