package galileo

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Instrumentation records client-side request metrics. A nil
// *Instrumentation is valid and records nothing.
type Instrumentation struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	records  *prometheus.CounterVec
}

// NewInstrumentation creates the collectors and registers them with reg.
func NewInstrumentation(reg prometheus.Registerer) (*Instrumentation, error) {
	in := &Instrumentation{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "galileo_client_requests_total",
			Help: "API requests by endpoint and outcome",
		}, []string{"endpoint", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "galileo_client_request_duration_seconds",
			Help:    "API request latency",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"endpoint"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "galileo_client_records_total",
			Help: "Records received from paginated endpoints",
		}, []string{"endpoint"}),
	}

	for _, c := range []prometheus.Collector{in.requests, in.duration, in.records} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return in, nil
}

func (in *Instrumentation) observeRequest(endpoint string, elapsed time.Duration, err error) {
	if in == nil {
		return
	}
	in.requests.WithLabelValues(endpoint, statusLabel(err)).Inc()
	in.duration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

func (in *Instrumentation) observeRecords(endpoint string, n int) {
	if in == nil {
		return
	}
	in.records.WithLabelValues(endpoint).Add(float64(n))
}

// statusLabel maps a request outcome to "ok", the HTTP status code, or "error".
func statusLabel(err error) string {
	if err == nil {
		return "ok"
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return strconv.Itoa(statusErr.StatusCode)
	}
	return "error"
}
