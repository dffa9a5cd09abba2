package logstream

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nicktill/galileo-metrics/pkg/config"
	"github.com/nicktill/galileo-metrics/pkg/galileo"
)

// Result is one aggregated fetch of a log stream.
type Result struct {
	Project     string        `json:"project"`
	LogStream   string        `json:"log_stream"`
	ProjectID   string        `json:"project_id"`
	LogStreamID string        `json:"log_stream_id"`
	FetchedAt   time.Time     `json:"fetched_at"`
	Stats       Stats         `json:"stats"`
	Sessions    []SessionNode `json:"sessions"`
}

// Fetcher resolves a project and log stream by name and pulls every session,
// trace and span of the stream.
type Fetcher struct {
	client   *galileo.Client
	pageSize int
	logger   *log.Logger
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithPageSize sets the page size of the paginated searches.
func WithPageSize(n int) FetcherOption {
	return func(f *Fetcher) {
		f.pageSize = n
	}
}

// WithLogger sends progress lines to l.
func WithLogger(l *log.Logger) FetcherOption {
	return func(f *Fetcher) {
		f.logger = l
	}
}

// NewFetcher creates a fetcher that uses client.
func NewFetcher(client *galileo.Client, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client:   client,
		pageSize: config.DefaultPageSize,
		logger:   log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch resolves projectName and logStreamName, then fetches sessions,
// traces and spans concurrently and aggregates them. The first failure
// cancels the other fetches and is returned; no partial result is produced.
func (f *Fetcher) Fetch(ctx context.Context, projectName, logStreamName string) (*Result, error) {
	if projectName == "" {
		return nil, fmt.Errorf("%w: %s is required", galileo.ErrConfig, config.EnvProject)
	}
	if logStreamName == "" {
		return nil, fmt.Errorf("%w: %s is required", galileo.ErrConfig, config.EnvLogStream)
	}

	projectID, err := f.client.ProjectID(ctx, projectName)
	if err != nil {
		return nil, err
	}
	logStreamID, err := f.client.LogStreamID(ctx, projectID, logStreamName)
	if err != nil {
		return nil, err
	}
	f.logger.Printf("🔍 Resolved %q/%q to %s/%s", projectName, logStreamName, projectID, logStreamID)

	result, err := f.FetchIDs(ctx, projectID, logStreamID)
	if err != nil {
		return nil, err
	}
	result.Project = projectName
	result.LogStream = logStreamName
	return result, nil
}

// FetchIDs is Fetch for already-resolved ids.
func (f *Fetcher) FetchIDs(ctx context.Context, projectID, logStreamID string) (*Result, error) {
	start := time.Now()

	var (
		sessions []galileo.Session
		traces   []galileo.Trace
		spans    []galileo.Span
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sessions, err = galileo.FetchAll[galileo.Session](gctx, f.client, galileo.SessionsSearch(projectID), logStreamID, f.pageSize)
		return err
	})
	g.Go(func() error {
		var err error
		traces, err = galileo.FetchAll[galileo.Trace](gctx, f.client, galileo.TracesSearch(projectID), logStreamID, f.pageSize)
		return err
	})
	g.Go(func() error {
		var err error
		spans, err = galileo.FetchAll[galileo.Span](gctx, f.client, galileo.SpansSearch(projectID), logStreamID, f.pageSize)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	nodes, stats := AggregateWithStats(sessions, traces, spans)
	f.logger.Printf("📥 Fetched %d sessions, %d traces, %d spans in %v",
		stats.Sessions, stats.Traces, stats.Spans, time.Since(start).Round(time.Millisecond))
	if stats.DroppedSpans > 0 {
		f.logger.Printf("⚠️  Dropped %d spans with no matching trace", stats.DroppedSpans)
	}

	return &Result{
		ProjectID:   projectID,
		LogStreamID: logStreamID,
		FetchedAt:   time.Now().UTC(),
		Stats:       stats,
		Sessions:    nodes,
	}, nil
}
