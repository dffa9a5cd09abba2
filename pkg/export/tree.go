package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"

	"github.com/nicktill/galileo-metrics/pkg/galileo"
	"github.com/nicktill/galileo-metrics/pkg/logstream"
	"github.com/nicktill/galileo-metrics/pkg/report"
)

// Levels of a flattened metric row
const (
	LevelSession = "session"
	LevelTrace   = "trace"
	LevelSpan    = "span"
)

// TreeHeader is the column layout of WriteCSV.
var TreeHeader = []string{"level", "session_id", "trace_id", "span_id", "metric", "value"}

// WriteJSON writes sessions as {"sessions": [...]}, indented.
func WriteJSON(w io.Writer, sessions []logstream.SessionNode) error {
	if sessions == nil {
		sessions = []logstream.SessionNode{}
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(struct {
		Sessions []logstream.SessionNode `json:"sessions"`
	}{sessions}); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// WriteCSV writes one row per metric value. Rows follow tree order
// (session, its traces, each trace's spans) and metric names are sorted
// within a node.
func WriteCSV(w io.Writer, sessions []logstream.SessionNode) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(TreeHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, row := range Rows(sessions) {
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return nil
}

// Rows flattens sessions into TreeHeader rows.
func Rows(sessions []logstream.SessionNode) [][]string {
	var rows [][]string
	for _, sess := range sessions {
		rows = appendMetricRows(rows, []string{LevelSession, sess.ID, "", ""}, sess.Metrics)
		for _, tr := range sess.Traces {
			rows = appendMetricRows(rows, []string{LevelTrace, sess.ID, tr.ID, ""}, tr.Metrics)
			for _, sp := range tr.Spans {
				rows = appendMetricRows(rows, []string{LevelSpan, sess.ID, tr.ID, sp.ID}, sp.Metrics)
			}
		}
	}
	return rows
}

func appendMetricRows(rows [][]string, prefix []string, m galileo.Metrics) [][]string {
	for _, k := range report.SortedKeys(m) {
		row := make([]string, 0, len(prefix)+2)
		row = append(row, prefix...)
		row = append(row, k, report.FormatValue(m[k]))
		rows = append(rows, row)
	}
	return rows
}
