package obs

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/noah-isme/toko-sales-stats/internal/sales"
)

// JobMetrics records aggregation run outcomes. It implements sales.Recorder.
type JobMetrics struct {
	// Runs counts finished runs by result.
	Runs *prometheus.CounterVec
	// RunDuration observes wall time per run.
	RunDuration prometheus.Histogram
	// LastSuccess holds the unix time of the last successful run.
	LastSuccess prometheus.Gauge
	// Orders is the number of orders folded by the last run.
	Orders prometheus.Gauge
	// Products is the number of products seen in orders by the last run.
	Products prometheus.Gauge
	// SkippedLineItems counts line items without a product reference in the last run.
	SkippedLineItems prometheus.Gauge
	// UnattributedRefund is the refund amount (minor units) no product received.
	UnattributedRefund prometheus.Gauge
	// Projected is the number of catalog products given a snapshot.
	Projected prometheus.Gauge
	// NegativeNet is the number of projected products with refunds above sales.
	NegativeNet prometheus.Gauge
	// Annotations counts metafield writes by result.
	Annotations *prometheus.CounterVec
	// Batches counts metafield write batches sent.
	Batches prometheus.Counter
}

var _ sales.Recorder = (*JobMetrics)(nil)

// NewJobMetrics initialises and registers the run collectors.
func NewJobMetrics(namespace string, reg prometheus.Registerer) *JobMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gauge := func(name, help string) prometheus.Gauge {
		return register(reg, prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help}))
	}
	m := &JobMetrics{
		Runs: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Count of aggregation runs by result.",
		}, []string{"result"})),
		RunDuration: register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of aggregation runs in seconds.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		})),
		LastSuccess:        gauge("last_success_timestamp_seconds", "Unix time of the last successful run."),
		Orders:             gauge("orders_folded", "Paid orders folded by the last run."),
		Products:           gauge("products_tracked", "Products seen in order line items by the last run."),
		SkippedLineItems:   gauge("line_items_skipped", "Line items without a product reference in the last run."),
		UnattributedRefund: gauge("unattributed_refund_minor", "Refund minor units not attributed to any product in the last run."),
		Projected:          gauge("products_projected", "Catalog products given a net sales snapshot by the last run."),
		NegativeNet:        gauge("products_negative_net", "Projected products whose refunds exceed sales."),
		Annotations: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "metafield_writes_total",
			Help:      "Count of metafield writes by result.",
		}, []string{"result"})),
		Batches: register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "metafield_batches_total",
			Help:      "Count of metafieldsSet batches sent.",
		})),
	}
	return m
}

// ObserveFold records the fold counters of a run.
func (m *JobMetrics) ObserveFold(stats sales.FoldStats, products int) {
	m.Orders.Set(float64(stats.Orders))
	m.Products.Set(float64(products))
	m.SkippedLineItems.Set(float64(stats.SkippedLineItems))
	m.UnattributedRefund.Set(float64(stats.UnattributedRefund))
}

// ObserveProjection records the projection counts of a run.
func (m *JobMetrics) ObserveProjection(projected, negative int) {
	m.Projected.Set(float64(projected))
	m.NegativeNet.Set(float64(negative))
}

// ObserveWrite records the outcome of the metafield write step.
func (m *JobMetrics) ObserveWrite(result sales.WriteResult) {
	m.Batches.Add(float64(result.Batches))
	m.Annotations.WithLabelValues("applied").Add(float64(result.Applied))
	m.Annotations.WithLabelValues("error").Add(float64(result.Errors))
}

// ObserveRun records the final result and duration of a run.
func (m *JobMetrics) ObserveRun(result string, elapsed time.Duration) {
	m.Runs.WithLabelValues(result).Inc()
	m.RunDuration.Observe(elapsed.Seconds())
	if result == "success" {
		m.LastSuccess.SetToCurrentTime()
	}
}
