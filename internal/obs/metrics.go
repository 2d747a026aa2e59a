package obs

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// GraphQLMetrics groups Prometheus collectors for outbound Admin API calls.
type GraphQLMetrics struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// NewGraphQLMetrics registers and returns the outbound call collectors.
func NewGraphQLMetrics(namespace string, buckets []float64, reg prometheus.Registerer) *GraphQLMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if len(buckets) == 0 {
		buckets = []float64{25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}
	} else {
		sort.Float64s(buckets)
	}
	m := &GraphQLMetrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "graphql_requests_total",
			Help:      "Total number of Admin API GraphQL requests by operation and outcome.",
		}, []string{"operation", "result"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "graphql_request_duration_ms",
			Help:      "Admin API GraphQL request latency in milliseconds.",
			Buckets:   buckets,
		}, []string{"operation"}),
	}
	m.Requests = register(reg, m.Requests)
	m.Duration = register(reg, m.Duration)
	return m
}

// Observe records one request outcome. It is safe on a nil receiver.
func (m *GraphQLMetrics) Observe(operation, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(operation, result).Inc()
	m.Duration.WithLabelValues(operation).Observe(DurationMillis(d))
}

// ParseBucketsCSV converts a comma-separated list of bucket boundaries (milliseconds) into floats.
func ParseBucketsCSV(csv string) []float64 {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]float64, 0, len(parts))
	for _, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil || v <= 0 {
			continue
		}
		out = append(out, v)
	}
	return out
}

// DurationMillis converts a duration to milliseconds for metric observation.
func DurationMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// PushMetrics sends everything gathered by g to a Prometheus Pushgateway.
// An empty url is a no-op.
func PushMetrics(ctx context.Context, url, job string, g prometheus.Gatherer) error {
	if strings.TrimSpace(url) == "" {
		return nil
	}
	if err := push.New(url, job).Gatherer(g).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}

// register adds c to reg, reusing the existing collector when one with the
// same descriptor is already registered.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
		panic(fmt.Errorf("register collector: %w", err))
	}
	return c
}
