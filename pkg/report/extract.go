package report

import "github.com/nicktill/galileo-metrics/pkg/galileo"

// TraceMetrics are the metrics of one trace inside a session document.
type TraceMetrics struct {
	TraceIndex int             `json:"trace_index"`
	TraceID    string          `json:"trace_id"`
	TraceType  string          `json:"trace_type"`
	Metrics    galileo.Metrics `json:"metrics"`
}

// SpanMetrics are the metrics of one span inside a session document.
type SpanMetrics struct {
	TraceIndex int             `json:"trace_index"`
	SpanIndex  int             `json:"span_index"`
	SpanID     string          `json:"span_id"`
	SpanType   string          `json:"span_type"`
	Metrics    galileo.Metrics `json:"metrics"`
}

// SessionMetrics collects the metrics of a session at every level.
type SessionMetrics struct {
	SessionID      string          `json:"session_id"`
	SessionMetrics galileo.Metrics `json:"session_metrics"`
	MetricInfo     map[string]any  `json:"metric_info"`
	TraceMetrics   []TraceMetrics  `json:"trace_metrics"`
	SpanMetrics    []SpanMetrics   `json:"span_metrics"`
}

// ExtractSessionMetrics flattens a session document into per-level metric
// entries. Traces and spans without metrics are skipped; indexes refer to
// positions in the original document.
func ExtractSessionMetrics(detail *galileo.SessionDetail) SessionMetrics {
	out := SessionMetrics{
		SessionMetrics: galileo.Metrics{},
		MetricInfo:     map[string]any{},
		TraceMetrics:   []TraceMetrics{},
		SpanMetrics:    []SpanMetrics{},
	}
	if detail == nil {
		return out
	}

	out.SessionID = detail.ID
	if len(detail.Metrics) > 0 {
		out.SessionMetrics = detail.Metrics
	}
	if len(detail.MetricInfo) > 0 {
		out.MetricInfo = detail.MetricInfo
	}

	for i, trace := range detail.Traces {
		if len(trace.Metrics) > 0 {
			out.TraceMetrics = append(out.TraceMetrics, TraceMetrics{
				TraceIndex: i,
				TraceID:    trace.ID,
				TraceType:  trace.Type,
				Metrics:    trace.Metrics,
			})
		}
		for j, span := range trace.Spans {
			if len(span.Metrics) == 0 {
				continue
			}
			out.SpanMetrics = append(out.SpanMetrics, SpanMetrics{
				TraceIndex: i,
				SpanIndex:  j,
				SpanID:     span.ID,
				SpanType:   span.Type,
				Metrics:    span.Metrics,
			})
		}
	}
	return out
}
