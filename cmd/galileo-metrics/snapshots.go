package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/nicktill/galileo-metrics/pkg/config"
	"github.com/nicktill/galileo-metrics/pkg/export"
	"github.com/nicktill/galileo-metrics/pkg/report"
	"github.com/nicktill/galileo-metrics/pkg/storage"
	"github.com/nicktill/galileo-metrics/pkg/storage/badger"
)

func openStore(dir string) (*badger.Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory %s: %w", dir, err)
	}
	store, err := badger.New(badger.Config{Path: dir})
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot store: %w", err)
	}
	return store, nil
}

func (a *app) requireStore(dir string) (*badger.Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: -store (or %s) is required", errUsage, config.EnvStoreDir)
	}
	return openStore(dir)
}

// cmdSnapshots lists stored snapshots, or exports them as JSON or CSV. With
// -latest it prints the newest snapshot of one log stream instead.
func (a *app) cmdSnapshots(ctx context.Context, args []string) error {
	a.loadSettings()

	fs := a.newFlagSet("snapshots", "[flags]")
	storeDir := fs.String("store", a.settings.StoreDir, "Badger directory holding snapshots")
	project := fs.String("project", "", "Filter by project name")
	logStream := fs.String("log-stream", "", "Filter by log stream name")
	since := fs.Duration("since", 0, "Only snapshots fetched within this duration (0 = all)")
	limit := fs.Int("limit", config.DefaultSnapshotListLimit, "Maximum snapshots (0 = no limit)")
	format := fs.String("format", "table", "Output format: table, json, csv")
	latest := fs.Bool("latest", false, "Print the newest snapshot of -project and -log-stream")
	args, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(args) != 0 {
		return fmt.Errorf("%w: unexpected arguments %v", errUsage, args)
	}
	if *latest && (*project == "" || *logStream == "") {
		return fmt.Errorf("%w: -latest needs -project and -log-stream", errUsage)
	}

	store, err := a.requireStore(*storeDir)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(ctx, config.StoreTimeout)
	defer cancel()

	if *latest {
		return a.printLatest(ctx, store, *project, *logStream, *format)
	}

	opts := export.ExportOptions{Project: *project, LogStream: *logStream, Limit: *limit}
	if *since > 0 {
		opts.Since = time.Now().Add(-*since)
	}

	switch *format {
	case "json":
		_, err = export.NewExporter(store).ExportToJSON(ctx, a.stdout, opts)
		return err
	case "csv":
		_, err = export.NewExporter(store).ExportToCSV(ctx, a.stdout, opts)
		return err
	case "table":
	default:
		return fmt.Errorf("%w: unknown format %q", errUsage, *format)
	}

	snaps, err := store.List(ctx, storage.ListRequest{
		Project:   opts.Project,
		LogStream: opts.LogStream,
		Since:     opts.Since,
		Limit:     opts.Limit,
	})
	if err != nil {
		return fmt.Errorf("failed to list snapshots: %w", err)
	}
	stats, err := store.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to read store stats: %w", err)
	}

	fmt.Fprintf(a.stdout, "%-25s  %-20s  %-15s  %8s  %8s  %8s  %s\n",
		"FETCHED AT", "PROJECT", "LOG STREAM", "SESSIONS", "TRACES", "SPANS", "ID")
	for _, s := range snaps {
		fmt.Fprintf(a.stdout, "%-25s  %-20s  %-15s  %8d  %8d  %8d  %s\n",
			s.FetchedAt.Format(time.RFC3339), s.Project, s.LogStream,
			len(s.Sessions), s.Stats.Traces, s.Stats.Spans, s.ID)
	}
	fmt.Fprintf(a.stdout, "\n%d of %d snapshots across %d log streams (%d bytes)\n",
		len(snaps), stats.TotalSnapshots, stats.TotalStreams, stats.SizeBytes)
	return nil
}

func (a *app) printLatest(ctx context.Context, store storage.Store, project, logStream, format string) error {
	snap, err := store.Latest(ctx, project, logStream)
	if err != nil {
		return fmt.Errorf("failed to load latest snapshot: %w", err)
	}

	switch format {
	case "json":
		return a.writeJSON(snap)
	case "csv":
		return export.WriteCSV(a.stdout, snap.Sessions)
	case "table":
		return report.WriteLogStreamSummary(a.stdout, snap.Result())
	default:
		return fmt.Errorf("%w: unknown format %q", errUsage, format)
	}
}

// cmdImportSnapshots loads a JSON export into a store.
func (a *app) cmdImportSnapshots(ctx context.Context, args []string) error {
	a.loadSettings()

	fs := a.newFlagSet("import-snapshots", "[flags] <file>")
	storeDir := fs.String("store", a.settings.StoreDir, "Badger directory to import into")
	args, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(args) != 1 {
		return fmt.Errorf("%w: expected exactly one file, got %d arguments", errUsage, len(args))
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", args[0], err)
	}
	defer f.Close()

	store, err := a.requireStore(*storeDir)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(ctx, config.StoreTimeout)
	defer cancel()

	result, err := export.NewImporter(store).ImportFromJSON(ctx, f)
	if err != nil {
		return fmt.Errorf("failed to import snapshots: %w", err)
	}
	for _, msg := range result.Errors {
		a.logger.Printf("⚠️  Skipped %s", msg)
	}
	a.logger.Printf("📦 Imported %d snapshots into %s", result.SnapshotsImported, *storeDir)
	return nil
}

// cmdPrune deletes snapshots older than a retention window and reclaims
// value log space.
func (a *app) cmdPrune(ctx context.Context, args []string) error {
	a.loadSettings()

	fs := a.newFlagSet("prune", "[flags]")
	storeDir := fs.String("store", a.settings.StoreDir, "Badger directory holding snapshots")
	olderThan := fs.Duration("older-than", config.DefaultSnapshotRetention, "Delete snapshots fetched before now minus this duration")
	args, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(args) != 0 {
		return fmt.Errorf("%w: unexpected arguments %v", errUsage, args)
	}
	if *olderThan <= 0 {
		return fmt.Errorf("%w: -older-than must be positive", errUsage)
	}

	store, err := a.requireStore(*storeDir)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(ctx, config.StoreTimeout)
	defer cancel()

	deleted, err := store.Delete(ctx, time.Now().Add(-*olderThan))
	if err != nil {
		return fmt.Errorf("failed to delete snapshots: %w", err)
	}
	if err := store.RunGC(config.StoreGCDiscardRatio); err != nil {
		a.logger.Printf("⚠️  Value log GC failed: %v", err)
	}
	a.logger.Printf("🧹 Deleted %d snapshots older than %v", deleted, *olderThan)
	return nil
}
