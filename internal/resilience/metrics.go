package resilience

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// BreakerMetrics holds the collectors describing breaker state.
type BreakerMetrics struct {
	State       *prometheus.GaugeVec
	Transitions *prometheus.CounterVec
	Opened      *prometheus.CounterVec
}

// NewBreakerMetrics creates and registers breaker collectors on reg.
func NewBreakerMetrics(namespace string, reg prometheus.Registerer) (*BreakerMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &BreakerMetrics{
		State: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "breaker_state",
			Help:      "Current breaker state: 0=closed,1=open,2=half-open",
		}, []string{"target"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "breaker_transition_total",
			Help:      "Count of breaker state transitions",
		}, []string{"target", "from", "to"}),
		Opened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "breaker_open_total",
			Help:      "Number of times a breaker transitioned into open state",
		}, []string{"target"}),
	}
	for _, c := range []prometheus.Collector{m.State, m.Transitions, m.Opened} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register breaker metrics: %w", err)
		}
	}
	return m, nil
}

func (m *BreakerMetrics) setState(target string, s State) {
	if m == nil {
		return
	}
	m.State.WithLabelValues(target).Set(float64(s))
}

func (m *BreakerMetrics) transition(target string, from, to State) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(target, from.String(), to.String()).Inc()
	if to == Open {
		m.Opened.WithLabelValues(target).Inc()
	}
}
