package httpx

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/splax/lumia/pkg/metrics"
)

var histogramBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}

func (r *Router) initMetrics() {
	r.metricsOnce.Do(func() {
		r.requestTotal = metrics.Register(prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lumia",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Count of processed HTTP requests",
		}, []string{"method", "route", "status"}))

		r.requestLatency = metrics.Register(prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lumia",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency distribution of HTTP handlers",
			Buckets:   histogramBuckets,
		}, []string{"method", "route", "status"}))

		r.rateLimitHits = metrics.Register(prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lumia",
			Subsystem: "http",
			Name:      "rate_limit_hits_total",
			Help:      "Number of rate-limited responses",
		}, []string{"route", "key"}))

		r.streamClients = metrics.Register(prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "lumia",
			Subsystem: "http",
			Name:      "toast_stream_clients",
			Help:      "Connected toast stream clients by transport",
		}, []string{"transport"}))

		r.metricsInitialized = true
	})
}

func (r *Router) recordRequestMetrics(method, route string, status int, duration time.Duration) {
	if !r.metricsInitialized {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"route":  route,
		"status": strconv.Itoa(status),
	}
	r.requestTotal.With(labels).Inc()
	r.requestLatency.With(labels).Observe(duration.Seconds())
}

func (r *Router) recordRateLimitHit(route, key string) {
	if !r.metricsInitialized {
		return
	}
	r.rateLimitHits.With(prometheus.Labels{"route": route, "key": key}).Inc()
}

func (r *Router) trackStream(transport string, delta float64) {
	if !r.metricsInitialized {
		return
	}
	r.streamClients.With(prometheus.Labels{"transport": transport}).Add(delta)
}
