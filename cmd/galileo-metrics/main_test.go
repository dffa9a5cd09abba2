package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicktill/galileo-metrics/pkg/config"
	"github.com/nicktill/galileo-metrics/pkg/galileo"
	"github.com/nicktill/galileo-metrics/pkg/galileo/galileotest"
)

const testKey = "cli-key"

// newEnv starts a fake API with one populated log stream and points the
// environment at it.
func newEnv(t *testing.T) *galileotest.Server {
	t.Helper()

	srv := galileotest.NewServer(t, testKey)
	srv.AddProject("p1", "Legal Assistant")
	srv.AddLogStream("p1", "ls1", "production")
	srv.SetSessions("ls1",
		galileo.Session{ID: "A", Metrics: galileo.Metrics{"turns": 2.0}},
		galileo.Session{ID: "B"},
	)
	srv.SetTraces("ls1",
		galileo.Trace{ID: "t1", SessionID: "A", Metrics: galileo.Metrics{"correctness": 1.0}},
		galileo.Trace{ID: "t2", SessionID: "A"},
		galileo.Trace{ID: "t3", SessionID: "B"},
	)
	srv.SetSpans("ls1",
		galileo.Span{ID: "s1", SessionID: "A", TraceID: "t1"},
		galileo.Span{ID: "s2", SessionID: "A", TraceID: "t1"},
		galileo.Span{ID: "s3", SessionID: "A", TraceID: "t2"},
		galileo.Span{ID: "s4", SessionID: "B", TraceID: "missing"},
	)

	for key, val := range map[string]string{
		config.EnvAPIKey:    testKey,
		config.EnvAPIURL:    srv.URL,
		config.EnvProject:   "Legal Assistant",
		config.EnvLogStream: "production",
		config.EnvProjectID: "p1",
		config.EnvPageSize:  "",
		config.EnvStoreDir:  "",
	} {
		t.Setenv(key, val)
	}
	return srv
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

type treeDoc struct {
	Sessions []struct {
		ID     string `json:"id"`
		Traces []struct {
			ID    string `json:"id"`
			Spans []struct {
				ID string `json:"id"`
			} `json:"spans"`
		} `json:"traces"`
	} `json:"sessions"`
}

func TestRun_Usage(t *testing.T) {
	code, _, stderr := runCLI(t)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Usage:")

	code, _, stderr = runCLI(t, "bogus")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Unknown command: bogus")

	code, stdout, _ := runCLI(t, "help")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "fetch-logstream-metrics")

	code, stdout, _ = runCLI(t, "version")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "galileo-metrics v"+Version)
}

func TestFetchLogStream_FromEnvironment(t *testing.T) {
	newEnv(t)

	code, stdout, stderr := runCLI(t, "fetch-logstream-metrics")
	require.Equal(t, 0, code, stderr)

	var doc treeDoc
	require.NoError(t, json.Unmarshal([]byte(stdout), &doc))
	require.Len(t, doc.Sessions, 2)
	assert.Equal(t, "A", doc.Sessions[0].ID)
	assert.Len(t, doc.Sessions[0].Traces, 2)
	assert.Len(t, doc.Sessions[0].Traces[0].Spans, 2)
	assert.Len(t, doc.Sessions[0].Traces[1].Spans, 1)
	assert.Equal(t, "B", doc.Sessions[1].ID)
	assert.Empty(t, doc.Sessions[1].Traces[0].Spans)

	assert.Contains(t, stderr, "Dropped 1 spans")
}

func TestFetchLogStream_ArgumentsOverrideEnvironment(t *testing.T) {
	srv := newEnv(t)
	srv.AddProject("p2", "Retail Bot")
	srv.AddLogStream("p2", "ls2", "staging")
	srv.SetSessions("ls2", galileo.Session{ID: "R"})

	code, stdout, stderr := runCLI(t, "fetch-logstream-metrics", "retail bot", "staging")
	require.Equal(t, 0, code, stderr)

	var doc treeDoc
	require.NoError(t, json.Unmarshal([]byte(stdout), &doc))
	require.Len(t, doc.Sessions, 1)
	assert.Equal(t, "R", doc.Sessions[0].ID)
}

func TestFetchLogStream_Errors(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		args    []string
		wantErr string
	}{
		{
			name:    "one positional argument",
			args:    []string{"Legal Assistant"},
			wantErr: "expected 0 or 2 arguments",
		},
		{
			name:    "missing project",
			env:     map[string]string{config.EnvProject: ""},
			wantErr: config.EnvProject,
		},
		{
			name:    "missing log stream",
			env:     map[string]string{config.EnvLogStream: ""},
			wantErr: config.EnvLogStream,
		},
		{
			name:    "missing api key",
			env:     map[string]string{config.EnvAPIKey: ""},
			wantErr: config.EnvAPIKey,
		},
		{
			name:    "unknown project",
			args:    []string{"Nope", "production"},
			wantErr: "project 'Nope' not found",
		},
		{
			name:    "unknown log stream",
			args:    []string{"Legal Assistant", "nope"},
			wantErr: "log stream 'nope' not found",
		},
		{
			name:    "bad format",
			args:    []string{"-format", "xml"},
			wantErr: "unknown format",
		},
		{
			name:    "bad page size",
			args:    []string{"-page-size", "0"},
			wantErr: "-page-size must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			newEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			code, stdout, stderr := runCLI(t, append([]string{"fetch-logstream-metrics"}, tt.args...)...)
			assert.Equal(t, 1, code)
			assert.Empty(t, stdout)
			assert.Contains(t, stderr, "❌")
			assert.Contains(t, stderr, tt.wantErr)
		})
	}
}

func TestFetchLogStream_TransportFailure(t *testing.T) {
	srv := newEnv(t)
	srv.Fail("traces", http.StatusBadGateway)

	code, stdout, stderr := runCLI(t, "fetch-logstream-metrics")
	assert.Equal(t, 1, code)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "request failed with status 502")
}

func TestFetchLogStream_CSV(t *testing.T) {
	newEnv(t)

	code, stdout, stderr := runCLI(t, "fetch-logstream-metrics", "-format", "csv")
	require.Equal(t, 0, code, stderr)

	records, err := csv.NewReader(strings.NewReader(stdout)).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"level", "session_id", "trace_id", "span_id", "metric", "value"},
		{"session", "A", "", "", "turns", "2"},
		{"trace", "A", "t1", "", "correctness", "1"},
	}, records)
}

func TestFetchLogStream_Summary(t *testing.T) {
	newEnv(t)

	code, stdout, stderr := runCLI(t, "fetch-logstream-metrics", "-format", "summary")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Project: Legal Assistant (p1)")
	assert.Contains(t, stdout, "Session A (2 traces)")
}

func TestFetchLogStream_PageSizeFlag(t *testing.T) {
	srv := newEnv(t)

	code, _, stderr := runCLI(t, "fetch-logstream-metrics", "-page-size", "1")
	require.Equal(t, 0, code, stderr)

	reqs := srv.Requests("spans")
	require.NotEmpty(t, reqs)
	assert.Equal(t, 1, reqs[0].Limit)
	assert.Len(t, reqs, 4)
}

func TestFetchLogStream_StoreAndSnapshots(t *testing.T) {
	newEnv(t)
	dir := filepath.Join(t.TempDir(), "snapshots")
	promFile := filepath.Join(t.TempDir(), "galileo.prom")

	code, _, stderr := runCLI(t, "fetch-logstream-metrics", "-store", dir, "-prom-textfile", promFile)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stderr, "Saved snapshot")

	prom, err := os.ReadFile(promFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `galileo_client_requests_total{endpoint="sessions_search",status="ok"} 1`)
	assert.Contains(t, string(prom), `galileo_client_records_total{endpoint="spans_search"} 4`)

	code, stdout, stderr := runCLI(t, "snapshots", "-store", dir)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "FETCHED AT")
	assert.Contains(t, stdout, "Legal Assistant")
	assert.Contains(t, stdout, "1 of 1 snapshots across 1 log streams")

	exportFile := filepath.Join(t.TempDir(), "export.json")
	code, stdout, stderr = runCLI(t, "snapshots", "-store", dir, "-format", "json")
	require.Equal(t, 0, code, stderr)
	require.NoError(t, os.WriteFile(exportFile, []byte(stdout), 0644))

	otherDir := filepath.Join(t.TempDir(), "other")
	code, _, stderr = runCLI(t, "import-snapshots", "-store", otherDir, exportFile)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stderr, "Imported 1 snapshots")

	code, _, stderr = runCLI(t, "prune", "-store", otherDir, "-older-than", "1ns")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stderr, "Deleted 1 snapshots")
}

func TestSnapshots_Latest(t *testing.T) {
	newEnv(t)
	dir := filepath.Join(t.TempDir(), "snapshots")

	code, _, stderr := runCLI(t, "snapshots", "-store", dir, "-latest", "-project", "Legal Assistant", "-log-stream", "production")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "snapshot not found")

	code, _, stderr = runCLI(t, "fetch-logstream-metrics", "-store", dir)
	require.Equal(t, 0, code, stderr)

	code, stdout, stderr := runCLI(t, "snapshots", "-store", dir, "-latest", "-project", "Legal Assistant", "-log-stream", "production")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Project: Legal Assistant (p1)")
	assert.Contains(t, stdout, "Session A (2 traces)")

	code, stdout, stderr = runCLI(t, "snapshots", "-store", dir, "-latest", "-project", "Legal Assistant", "-log-stream", "production", "-format", "csv")
	require.Equal(t, 0, code, stderr)
	records, err := csv.NewReader(strings.NewReader(stdout)).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 3)

	code, _, stderr = runCLI(t, "snapshots", "-store", dir, "-latest", "-project", "Legal Assistant")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "-latest needs -project and -log-stream")
}

func TestFetchLogStream_FlagsAfterArguments(t *testing.T) {
	newEnv(t)

	code, stdout, stderr := runCLI(t, "fetch-logstream-metrics", "Legal Assistant", "production", "-format", "csv")
	require.Equal(t, 0, code, stderr)
	assert.True(t, strings.HasPrefix(stdout, "level,session_id,trace_id,span_id,metric,value"))

	code, _, stderr = runCLI(t, "fetch-logstream-metrics", "Legal Assistant", "-format", "csv", "production", "extra")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "expected 0 or 2 arguments")
}

func TestSnapshots_RequiresStore(t *testing.T) {
	newEnv(t)

	code, _, stderr := runCLI(t, "snapshots")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, config.EnvStoreDir)
}

func TestFetchSession(t *testing.T) {
	srv := newEnv(t)
	srv.SetSessionDetail("p1", galileo.SessionDetail{
		ID:      "sess-9",
		Metrics: galileo.Metrics{"action_completion": 1.0},
		Traces: []galileo.TraceDetail{{
			ID:    "t1",
			Spans: []galileo.SpanDetail{{ID: "s1", Type: "llm", Metrics: galileo.Metrics{"latency": 30.0}}},
		}},
	})

	code, stdout, stderr := runCLI(t, "fetch-session-metrics", "sess-9")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "GALILEO SESSION METRICS")
	assert.Contains(t, stdout, "action_completion: 1")
	assert.Contains(t, stdout, "LLM Span:")

	code, stdout, stderr = runCLI(t, "fetch-session-metrics", "-format", "json", "sess-9")
	require.Equal(t, 0, code, stderr)
	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &doc))
	assert.Equal(t, "sess-9", doc["session_id"])

	code, _, stderr = runCLI(t, "fetch-session-metrics", "unknown")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "status 404")

	code, _, stderr = runCLI(t, "fetch-session-metrics")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "expected exactly one session id")

	t.Setenv(config.EnvProjectID, "")
	code, _, stderr = runCLI(t, "fetch-session-metrics", "sess-9")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, config.EnvProjectID)
}

func TestFetchExperiment(t *testing.T) {
	srv := newEnv(t)
	srv.SetExperimentTraces("exp-1",
		galileo.Trace{ID: "e1", Metrics: galileo.Metrics{"correctness": 0.5, "correctness_rationale": "meh"}},
		galileo.Trace{ID: "e2"},
		galileo.Trace{ID: "e3"},
	)

	code, stdout, stderr := runCLI(t, "fetch-experiment", "exp-1", "2")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Total Traces Found: 3")
	assert.Contains(t, stdout, "Records Returned: 2")
	assert.Contains(t, stdout, "correctness: 0.5")
	assert.NotContains(t, stdout, "meh")

	reqs := srv.Requests("traces")
	require.Len(t, reqs, 1)
	assert.Equal(t, "experiment_id", reqs[0].ParentField)
	assert.Equal(t, 2, reqs[0].Limit)

	code, _, stderr = runCLI(t, "fetch-experiment", "exp-1", "zero")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "limit must be a positive integer")

	code, _, _ = runCLI(t, "fetch-experiment", "-project-id", "p1", "exp-1", "1", "extra")
	assert.Equal(t, 1, code)
}

func TestRun_HelpFlag(t *testing.T) {
	newEnv(t)

	code, _, stderr := runCLI(t, "fetch-logstream-metrics", "-h")
	assert.Equal(t, 0, code)
	assert.Contains(t, stderr, "-page-size")
}
