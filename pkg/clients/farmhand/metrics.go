package farmhand

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/corvidaelabs/farmhand/pkg/monitoring"
)

// Metrics counts upstream calls per operation and outcome.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers the upstream metrics on the service's collector.
func NewMetrics(mc *monitoring.MetricsCollector) *Metrics {
	return &Metrics{
		requests: mc.NewCounter("upstream_requests_total", "Farmhand API calls by operation and outcome", []string{"operation", "outcome"}),
		duration: mc.NewHistogram("upstream_request_duration_seconds", "Farmhand API call latency", []string{"operation"}, nil),
	}
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	if KindOf(err) == KindInvalidToken {
		return "invalid_token"
	}
	return "unknown"
}

// observe is deferred by every operation; a nil receiver records nothing.
func (m *Metrics) observe(op string, start time.Time, errp *error) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(op, outcome(*errp)).Inc()
	m.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
