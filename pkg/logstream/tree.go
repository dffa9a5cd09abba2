package logstream

import (
	"github.com/nicktill/galileo-metrics/pkg/galileo"
)

// SessionNode is a session with its traces. It only exists as the result of
// Aggregate; sessions that were referenced by a trace or span but not
// fetched themselves carry empty metrics.
type SessionNode struct {
	ID      string          `json:"id"`
	Metrics galileo.Metrics `json:"metrics"`
	Traces  []TraceNode     `json:"traces"`
}

// TraceNode is a trace with its spans.
type TraceNode struct {
	ID         string          `json:"id"`
	Parameters Parameters      `json:"parameters"`
	Metrics    galileo.Metrics `json:"metrics"`
	Spans      []SpanNode      `json:"spans"`
}

// Parameters holds the trace input and output. Missing values are "".
type Parameters struct {
	Input  any `json:"input"`
	Output any `json:"output"`
}

// SpanNode is a span leaf.
type SpanNode struct {
	ID      string          `json:"id"`
	Metrics galileo.Metrics `json:"metrics"`
}

// Stats counts what went into and came out of an aggregation.
type Stats struct {
	Sessions      int `json:"sessions"`
	Traces        int `json:"traces"`
	Spans         int `json:"spans"`
	AttachedSpans int `json:"attached_spans"`
	DroppedSpans  int `json:"dropped_spans"`
}

// Aggregate groups traces under their session and spans under their trace.
//
// Session nodes come out in order of first appearance: sessions first, then
// session ids first seen on a trace, then on a span. Traces keep their
// input order within a session, as do spans within a trace. A span is
// attached to the trace with its trace_id inside its own session; if no
// such trace exists the span is dropped. When a session repeats a trace id,
// each span goes to the first trace with that id only, so it is never
// counted twice; the later duplicates keep an empty span list.
func Aggregate(sessions []galileo.Session, traces []galileo.Trace, spans []galileo.Span) []SessionNode {
	nodes, _ := aggregate(sessions, traces, spans)
	return nodes
}

// AggregateWithStats is Aggregate plus counts of attached and dropped spans.
func AggregateWithStats(sessions []galileo.Session, traces []galileo.Trace, spans []galileo.Span) ([]SessionNode, Stats) {
	return aggregate(sessions, traces, spans)
}

func aggregate(sessions []galileo.Session, traces []galileo.Trace, spans []galileo.Span) ([]SessionNode, Stats) {
	stats := Stats{
		Sessions: len(sessions),
		Traces:   len(traces),
		Spans:    len(spans),
	}

	nodes := make([]SessionNode, 0, len(sessions))
	bySession := make(map[string]int)

	// traceIndex[session][trace] is the position of the first trace with that
	// id inside the session's node.
	traceIndex := make(map[string]map[string]int)

	bucket := func(sessionID string) int {
		if i, ok := bySession[sessionID]; ok {
			return i
		}
		nodes = append(nodes, SessionNode{
			ID:      sessionID,
			Metrics: galileo.Metrics{},
			Traces:  []TraceNode{},
		})
		bySession[sessionID] = len(nodes) - 1
		return len(nodes) - 1
	}

	for _, s := range sessions {
		i := bucket(s.ID)
		nodes[i].Metrics = orEmpty(s.Metrics)
	}

	for _, tr := range traces {
		i := bucket(tr.SessionID)
		nodes[i].Traces = append(nodes[i].Traces, TraceNode{
			ID: tr.ID,
			Parameters: Parameters{
				Input:  orBlank(tr.Input),
				Output: orBlank(tr.Output),
			},
			Metrics: orEmpty(tr.Metrics),
			Spans:   []SpanNode{},
		})

		idx := traceIndex[tr.SessionID]
		if idx == nil {
			idx = make(map[string]int)
			traceIndex[tr.SessionID] = idx
		}
		if _, seen := idx[tr.ID]; !seen {
			idx[tr.ID] = len(nodes[i].Traces) - 1
		}
	}

	for _, sp := range spans {
		i := bucket(sp.SessionID)
		j, ok := traceIndex[sp.SessionID][sp.TraceID]
		if !ok {
			stats.DroppedSpans++
			continue
		}
		nodes[i].Traces[j].Spans = append(nodes[i].Traces[j].Spans, SpanNode{
			ID:      sp.ID,
			Metrics: orEmpty(sp.Metrics),
		})
		stats.AttachedSpans++
	}

	return nodes, stats
}

func orEmpty(m galileo.Metrics) galileo.Metrics {
	if m == nil {
		return galileo.Metrics{}
	}
	return m
}

func orBlank(v any) any {
	if v == nil {
		return ""
	}
	return v
}
