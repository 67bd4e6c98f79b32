package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func newCounter() *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lumia",
		Subsystem: "test",
		Name:      "register_total",
		Help:      "Registration test counter",
	}, []string{"kind"})
}

func TestRegisterReturnsExistingCollector(t *testing.T) {
	first := Register(newCounter())
	second := Register(newCounter())
	if first != second {
		t.Fatal("expected second registration to return the existing collector")
	}
}

func TestRegisterKeepsConflictingCollector(t *testing.T) {
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "lumia",
		Subsystem: "test",
		Name:      "register_total",
		Help:      "Registration test counter",
	})
	if got := Register(gauge); got != gauge {
		t.Fatal("expected collector returned unchanged when registration conflicts")
	}
}
