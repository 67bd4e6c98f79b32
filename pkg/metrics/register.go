// Package metrics holds Prometheus registration helpers shared by services.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Register adds c to the default registry. When an equivalent collector is
// already registered, the existing one is returned so repeated construction
// (tests, multiple routers) keeps counting into the same series.
func Register[T prometheus.Collector](c T) T {
	if err := prometheus.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
	}
	return c
}
