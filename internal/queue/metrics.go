package queue

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts processed tasks by type and outcome.
type Metrics struct {
	Processed *prometheus.CounterVec
}

// NewMetrics registers the task collectors on reg, reusing collectors that
// are already registered under the same name.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	processed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "queue_processed_total",
		Help:      "Total tasks processed grouped by status",
	}, []string{"kind", "status"})
	if err := reg.Register(processed); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			panic(err)
		}
		processed = are.ExistingCollector.(*prometheus.CounterVec)
	}
	return &Metrics{Processed: processed}
}

func (m *Metrics) observe(kind, status string) {
	if m == nil {
		return
	}
	m.Processed.WithLabelValues(kind, status).Inc()
}
