package dashboard

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/splax/lumia/pkg/metrics"
)

var pollBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 15, 30}

type pollMetrics struct {
	pollTotal    *prometheus.CounterVec
	pollDuration *prometheus.HistogramVec
	staleTotal   *prometheus.CounterVec
	refreshTotal *prometheus.CounterVec
}

func newMetrics() *pollMetrics {
	return &pollMetrics{
		pollTotal: metrics.Register(prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lumia",
			Subsystem: "dashboard",
			Name:      "polls_total",
			Help:      "Count of upstream polls by source and outcome",
		}, []string{"source", "outcome"})),
		pollDuration: metrics.Register(prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lumia",
			Subsystem: "dashboard",
			Name:      "poll_duration_seconds",
			Help:      "Latency distribution of upstream polls",
			Buckets:   pollBuckets,
		}, []string{"source"})),
		staleTotal: metrics.Register(prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lumia",
			Subsystem: "dashboard",
			Name:      "stale_responses_total",
			Help:      "Number of poll responses discarded as stale",
		}, []string{"source"})),
		refreshTotal: metrics.Register(prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lumia",
			Subsystem: "dashboard",
			Name:      "refreshes_total",
			Help:      "Number of manual refreshes by outcome",
		}, []string{"outcome"})),
	}
}

func (m *pollMetrics) observePoll(src Source, outcome string, elapsed time.Duration) {
	m.pollTotal.With(prometheus.Labels{"source": string(src), "outcome": outcome}).Inc()
	m.pollDuration.With(prometheus.Labels{"source": string(src)}).Observe(elapsed.Seconds())
}

func (m *pollMetrics) observeStale(src Source) {
	m.staleTotal.With(prometheus.Labels{"source": string(src)}).Inc()
}

func (m *pollMetrics) observeRefresh(ok bool) {
	outcome := "success"
	if !ok {
		outcome = "partial"
	}
	m.refreshTotal.With(prometheus.Labels{"outcome": outcome}).Inc()
}
