package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/nicktill/galileo-metrics/pkg/config"
	"github.com/nicktill/galileo-metrics/pkg/export"
	"github.com/nicktill/galileo-metrics/pkg/galileo"
	"github.com/nicktill/galileo-metrics/pkg/logstream"
	"github.com/nicktill/galileo-metrics/pkg/report"
	"github.com/nicktill/galileo-metrics/pkg/storage"
)

// cmdFetchLogStream fetches every session, trace and span of a log stream
// and prints the aggregated tree.
func (a *app) cmdFetchLogStream(ctx context.Context, args []string) error {
	a.loadSettings()

	fs := a.newFlagSet("fetch-logstream-metrics", "[flags] [project logstream]")
	pageSize := fs.Int("page-size", a.settings.PageSize, "Records per search request")
	format := fs.String("format", "json", "Output format: json, csv, summary")
	storeDir := fs.String("store", a.settings.StoreDir, "Save a snapshot to this badger directory (optional)")
	promFile := fs.String("prom-textfile", "", "Write client metrics to this file (optional)")
	args, err := parseArgs(fs, args)
	if err != nil {
		return err
	}

	project, logStream := a.settings.Project, a.settings.LogStream
	switch len(args) {
	case 0:
	case 2:
		project, logStream = args[0], args[1]
	default:
		return fmt.Errorf("%w: expected 0 or 2 arguments (project logstream), got %d", errUsage, len(args))
	}
	if *pageSize <= 0 {
		return fmt.Errorf("%w: -page-size must be positive", errUsage)
	}
	switch *format {
	case "json", "csv", "summary":
	default:
		return fmt.Errorf("%w: unknown format %q", errUsage, *format)
	}

	reg, inst, err := newMetrics()
	if err != nil {
		return err
	}
	defer a.writeTextfile(*promFile, reg)

	client, err := a.newClient(inst)
	if err != nil {
		return err
	}

	fetcher := logstream.NewFetcher(client,
		logstream.WithPageSize(*pageSize),
		logstream.WithLogger(a.logger),
	)
	res, err := fetcher.Fetch(ctx, project, logStream)
	if err != nil {
		return fmt.Errorf("failed to fetch log stream metrics: %w", err)
	}

	if *storeDir != "" {
		if err := a.saveSnapshot(ctx, *storeDir, res); err != nil {
			return err
		}
	}

	switch *format {
	case "csv":
		return export.WriteCSV(a.stdout, res.Sessions)
	case "summary":
		return report.WriteLogStreamSummary(a.stdout, res)
	default:
		return export.WriteJSON(a.stdout, res.Sessions)
	}
}

func (a *app) saveSnapshot(ctx context.Context, dir string, res *logstream.Result) error {
	store, err := openStore(dir)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(ctx, config.StoreTimeout)
	defer cancel()

	snap := storage.NewSnapshot(res)
	if err := store.Put(ctx, snap); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	a.logger.Printf("💾 Saved snapshot %s to %s", snap.ID, dir)
	return nil
}

// cmdFetchSession shows the metrics of one session at every level.
func (a *app) cmdFetchSession(ctx context.Context, args []string) error {
	a.loadSettings()

	fs := a.newFlagSet("fetch-session-metrics", "[flags] <session_id>")
	projectID := fs.String("project-id", a.settings.ProjectID, "Project ID (default $"+config.EnvProjectID+")")
	format := fs.String("format", "summary", "Output format: summary, json")
	args, err := parseArgs(fs, args)
	if err != nil {
		return err
	}

	if len(args) != 1 {
		return fmt.Errorf("%w: expected exactly one session id, got %d arguments", errUsage, len(args))
	}
	if *projectID == "" {
		return fmt.Errorf("%w: %s is required", galileo.ErrConfig, config.EnvProjectID)
	}
	if *format != "summary" && *format != "json" {
		return fmt.Errorf("%w: unknown format %q", errUsage, *format)
	}

	client, err := a.newClient(nil)
	if err != nil {
		return err
	}

	detail, err := client.Session(ctx, *projectID, args[0])
	if err != nil {
		return err
	}
	metrics := report.ExtractSessionMetrics(detail)

	if *format == "json" {
		return a.writeJSON(metrics)
	}
	return report.WriteSessionSummary(a.stdout, metrics)
}

// cmdFetchExperiment shows the newest traces of an experiment with their
// headline metrics.
func (a *app) cmdFetchExperiment(ctx context.Context, args []string) error {
	a.loadSettings()

	fs := a.newFlagSet("fetch-experiment", "[flags] <experiment_id> [limit]")
	projectID := fs.String("project-id", a.settings.ProjectID, "Project ID (default $"+config.EnvProjectID+")")
	format := fs.String("format", "summary", "Output format: summary, json")
	args, err := parseArgs(fs, args)
	if err != nil {
		return err
	}

	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("%w: expected <experiment_id> [limit], got %d arguments", errUsage, len(args))
	}
	limit := config.DefaultExperimentSize
	if len(args) == 2 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n <= 0 {
			return fmt.Errorf("%w: limit must be a positive integer, got %q", errUsage, args[1])
		}
		limit = n
	}
	if *projectID == "" {
		return fmt.Errorf("%w: %s is required", galileo.ErrConfig, config.EnvProjectID)
	}
	if *format != "summary" && *format != "json" {
		return fmt.Errorf("%w: unknown format %q", errUsage, *format)
	}

	client, err := a.newClient(nil)
	if err != nil {
		return err
	}

	page, err := client.ExperimentTraces(ctx, *projectID, args[0], limit)
	if err != nil {
		return err
	}

	if *format == "json" {
		return a.writeJSON(page)
	}
	return report.WriteExperimentSummary(a.stdout, page)
}

func (a *app) writeJSON(v any) error {
	encoder := json.NewEncoder(a.stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}
