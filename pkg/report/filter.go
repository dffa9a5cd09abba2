package report

import (
	"sort"
	"strings"

	"github.com/nicktill/galileo-metrics/pkg/galileo"
)

// detailSuffixes mark the bookkeeping fields Galileo stores next to each
// metric score.
var detailSuffixes = []string{
	"_num_judges",
	"_metric_cost",
	"_explanation",
	"_status",
	"_rationale",
	"_model_alias",
}

// IsDetailKey reports whether key is a per-metric detail field rather than
// a score.
func IsDetailKey(key string) bool {
	for _, suffix := range detailSuffixes {
		if strings.HasSuffix(key, suffix) {
			return true
		}
	}
	return false
}

// Headline returns the metric scores of m without their detail fields.
// The input is not modified.
func Headline(m galileo.Metrics) galileo.Metrics {
	out := make(galileo.Metrics, len(m))
	for k, v := range m {
		if !IsDetailKey(k) {
			out[k] = v
		}
	}
	return out
}

// SortedKeys returns the keys of m in lexical order.
func SortedKeys(m galileo.Metrics) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
