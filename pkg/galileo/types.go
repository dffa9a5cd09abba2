package galileo

// Metrics is a flat bag of evaluation scores. Values are numbers or strings.
type Metrics map[string]any

// Session is one session record from sessions/search.
type Session struct {
	ID        string  `json:"id"`
	Name      string  `json:"name,omitempty"`
	CreatedAt string  `json:"created_at,omitempty"`
	Metrics   Metrics `json:"metrics,omitempty"`
}

// Trace is one trace record from traces/search.
type Trace struct {
	ID         string  `json:"id"`
	SessionID  string  `json:"session_id,omitempty"`
	Name       string  `json:"name,omitempty"`
	CreatedAt  string  `json:"created_at,omitempty"`
	IsComplete *bool   `json:"is_complete,omitempty"`
	Input      any     `json:"input,omitempty"`
	Output     any     `json:"output,omitempty"`
	Metrics    Metrics `json:"metrics,omitempty"`
}

// Span is one span record from spans/search.
type Span struct {
	ID        string  `json:"id"`
	TraceID   string  `json:"trace_id,omitempty"`
	SessionID string  `json:"session_id,omitempty"`
	ParentID  string  `json:"parent_id,omitempty"`
	Type      string  `json:"type,omitempty"`
	Name      string  `json:"name,omitempty"`
	Metrics   Metrics `json:"metrics,omitempty"`
}

// Project is an entry of the paginated project listing.
type Project struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// LogStream is an entry of a project's log stream listing.
type LogStream struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ProjectID string `json:"project_id,omitempty"`
}

// SessionDetail is the full session document returned by
// GET /v2/projects/{project}/sessions/{session}.
type SessionDetail struct {
	ID         string         `json:"id"`
	Name       string         `json:"name,omitempty"`
	Metrics    Metrics        `json:"metrics,omitempty"`
	MetricInfo map[string]any `json:"metric_info,omitempty"`
	Traces     []TraceDetail  `json:"traces,omitempty"`
}

// TraceDetail is a trace nested in a SessionDetail.
type TraceDetail struct {
	ID      string       `json:"id"`
	Type    string       `json:"type,omitempty"`
	Name    string       `json:"name,omitempty"`
	Metrics Metrics      `json:"metrics,omitempty"`
	Spans   []SpanDetail `json:"spans,omitempty"`
}

// SpanDetail is a span nested in a TraceDetail.
type SpanDetail struct {
	ID      string  `json:"id"`
	Type    string  `json:"type,omitempty"`
	Name    string  `json:"name,omitempty"`
	Metrics Metrics `json:"metrics,omitempty"`
}
