package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nicktill/galileo-metrics/pkg/galileo"
	"github.com/nicktill/galileo-metrics/pkg/logstream"
)

var (
	colorBlue   = lipgloss.Color("#58a6ff")
	colorGreen  = lipgloss.Color("#3fb950")
	colorYellow = lipgloss.Color("#d29922")
	colorPurple = lipgloss.Color("#bc8cff")
	colorDim    = lipgloss.Color("#8b949e")
)

type styles struct {
	title   lipgloss.Style
	section lipgloss.Style
	heading lipgloss.Style
	key     lipgloss.Style
	dim     lipgloss.Style
}

// newStyles binds the palette to r so that colors are dropped when the
// destination is not a terminal.
func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		title:   r.NewStyle().Bold(true).Foreground(colorBlue),
		section: r.NewStyle().Bold(true).Foreground(colorPurple),
		heading: r.NewStyle().Bold(true).Foreground(colorGreen),
		key:     r.NewStyle().Foreground(colorYellow),
		dim:     r.NewStyle().Foreground(colorDim),
	}
}

// summary accumulates rendered lines for one writer.
type summary struct {
	b  strings.Builder
	st styles
}

func newSummary(w io.Writer) *summary {
	return &summary{st: newStyles(lipgloss.NewRenderer(w))}
}

func (s *summary) line(format string, args ...any) {
	fmt.Fprintf(&s.b, format, args...)
	s.b.WriteByte('\n')
}

func (s *summary) banner(title string, width int) {
	rule := s.st.dim.Render(strings.Repeat("=", width))
	s.line("")
	s.line("%s", rule)
	s.line("%s", s.st.title.Render(title))
	s.line("%s", rule)
}

func (s *summary) metrics(indent string, m galileo.Metrics) {
	for _, k := range SortedKeys(m) {
		s.line("%s%s %s", indent, s.st.key.Render(k+":"), FormatValue(m[k]))
	}
}

func (s *summary) flush(w io.Writer) error {
	if _, err := io.WriteString(w, s.b.String()); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}

// WriteSessionSummary prints the metrics of a session at every level.
func WriteSessionSummary(w io.Writer, m SessionMetrics) error {
	s := newSummary(w)
	s.banner("GALILEO SESSION METRICS", 50)
	if m.SessionID != "" {
		s.line("%s", s.st.dim.Render("Session "+m.SessionID))
	}

	if len(m.SessionMetrics) > 0 {
		s.line("")
		s.line("%s", s.st.section.Render("📊 SESSION METRICS:"))
		s.metrics("  ", m.SessionMetrics)
	}

	if len(m.TraceMetrics) > 0 {
		s.line("")
		s.line("%s", s.st.section.Render(fmt.Sprintf("🔍 TRACE METRICS (%d traces):", len(m.TraceMetrics))))
		for _, t := range m.TraceMetrics {
			s.line("  %s", s.st.heading.Render(fmt.Sprintf("Trace %d:", t.TraceIndex+1)))
			s.metrics("    ", t.Metrics)
		}
	}

	if len(m.SpanMetrics) > 0 {
		s.line("")
		s.line("%s", s.st.section.Render(fmt.Sprintf("⚡ SPAN METRICS (%d spans):", len(m.SpanMetrics))))
		for i, sp := range m.SpanMetrics {
			if i > 0 {
				s.line("")
			}
			s.line("  %s", s.st.heading.Render(spanLabel(sp.SpanType)+" Span:"))
			s.metrics("    ", sp.Metrics)
		}
	}

	return s.flush(w)
}

// WriteExperimentSummary prints one page of experiment traces with their
// headline metrics.
func WriteExperimentSummary(w io.Writer, page *galileo.Page[galileo.Trace]) error {
	s := newSummary(w)
	s.banner("EXPERIMENT TRACES WITH METRIC INFO", 60)

	var records []galileo.Trace
	total := 0
	if page != nil {
		records = page.Records
		total = page.NumRecords
	}
	s.line("")
	s.line("Total Traces Found: %d", total)
	s.line("Records Returned: %d", len(records))

	if len(records) == 0 {
		s.line("")
		s.line("%s", s.st.dim.Render("No traces found for this experiment."))
		return s.flush(w)
	}

	for i, tr := range records {
		if tr.ID == "" {
			continue
		}
		rule := s.st.dim.Render(strings.Repeat("=", 50))
		s.line("")
		s.line("%s", rule)
		s.line("%s", s.st.heading.Render(fmt.Sprintf("TRACE %d: %s", i+1, tr.ID)))
		s.line("%s", rule)

		s.line("  Created: %s", orNA(tr.CreatedAt))
		s.line("  Name: %s", orNA(tr.Name))
		complete := "N/A"
		if tr.IsComplete != nil {
			complete = strconv.FormatBool(*tr.IsComplete)
		}
		s.line("  Complete: %s", complete)
		if in := FormatValue(tr.Input); in != "" {
			s.line("  Input: %s", in)
		}
		if out := FormatValue(tr.Output); out != "" {
			s.line("  Output: %s", out)
		}

		if headline := Headline(tr.Metrics); len(headline) > 0 {
			s.line("")
			s.line("%s", s.st.section.Render("Metric Data:"))
			s.metrics("  ", headline)
		}
	}

	return s.flush(w)
}

// WriteLogStreamSummary prints the aggregated tree of a log stream with
// headline metrics at each level.
func WriteLogStreamSummary(w io.Writer, res *logstream.Result) error {
	s := newSummary(w)
	s.banner("GALILEO LOG STREAM METRICS", 50)
	if res == nil {
		return s.flush(w)
	}

	s.line("Project: %s %s", res.Project, s.st.dim.Render("("+res.ProjectID+")"))
	s.line("Log stream: %s %s", res.LogStream, s.st.dim.Render("("+res.LogStreamID+")"))
	s.line("Fetched: %d sessions, %d traces, %d spans (%d dropped)",
		res.Stats.Sessions, res.Stats.Traces, res.Stats.Spans, res.Stats.DroppedSpans)

	for _, sess := range res.Sessions {
		s.line("")
		s.line("%s", s.st.section.Render(fmt.Sprintf("📊 Session %s (%d traces)", sess.ID, len(sess.Traces))))
		s.metrics("  ", Headline(sess.Metrics))
		for _, tr := range sess.Traces {
			s.line("  %s", s.st.heading.Render(fmt.Sprintf("🔍 Trace %s (%d spans)", tr.ID, len(tr.Spans))))
			s.metrics("    ", Headline(tr.Metrics))
			for _, sp := range tr.Spans {
				headline := Headline(sp.Metrics)
				if len(headline) == 0 {
					continue
				}
				s.line("    %s", s.st.dim.Render("⚡ Span "+sp.ID))
				s.metrics("      ", headline)
			}
		}
	}

	return s.flush(w)
}

func spanLabel(spanType string) string {
	if spanType == "" {
		return "UNKNOWN"
	}
	return strings.ToUpper(spanType)
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// FormatValue renders a metric or parameter value on one line. Whole
// numbers print without a decimal point; composite values print as JSON.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	}
}
