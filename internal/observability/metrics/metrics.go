package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics exposes counters/histograms for conversation processing and
// dispatch flows. It satisfies the pipeline's Metrics interface.
type PipelineMetrics struct {
	processedTotal   *prometheus.CounterVec
	stageLatency     *prometheus.HistogramVec
	cacheLookups     *prometheus.CounterVec
	activationsTotal *prometheus.CounterVec
	selectionsTotal  *prometheus.CounterVec
	transitionsTotal *prometheus.CounterVec
}

func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	m := &PipelineMetrics{
		processedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dispatch",
			Subsystem: "pipeline",
			Name:      "processed_total",
			Help:      "Total conversations processed by outcome",
		}, []string{"status"}),
		stageLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dispatch",
			Subsystem: "pipeline",
			Name:      "stage_latency_seconds",
			Help:      "Latency of individual pipeline stages",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dispatch",
			Subsystem: "pipeline",
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by result",
		}, []string{"result"}),
		activationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dispatch",
			Subsystem: "trigger",
			Name:      "activations_total",
			Help:      "Trigger rule firings by rule type",
		}, []string{"rule_type"}),
		selectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dispatch",
			Subsystem: "vendors",
			Name:      "selections_total",
			Help:      "Vendor selection runs by outcome",
		}, []string{"outcome"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dispatch",
			Subsystem: "orders",
			Name:      "transitions_total",
			Help:      "Order status transitions",
		}, []string{"from", "to"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.processedTotal, m.stageLatency, m.cacheLookups,
		m.activationsTotal, m.selectionsTotal, m.transitionsTotal)
	return m
}

// StageObserved records one pipeline stage's wall time.
func (m *PipelineMetrics) StageObserved(stage string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.stageLatency.WithLabelValues(stage).Observe(elapsed.Seconds())
}

// RunCompleted records one finished process call.
func (m *PipelineMetrics) RunCompleted(status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.processedTotal.WithLabelValues(status).Inc()
	m.stageLatency.WithLabelValues("total").Observe(elapsed.Seconds())
}

// CacheLookup records a cache hit or miss.
func (m *PipelineMetrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// RuleFired records a trigger activation.
func (m *PipelineMetrics) RuleFired(ruleType string) {
	if m == nil {
		return
	}
	m.activationsTotal.WithLabelValues(ruleType).Inc()
}

// SelectionCompleted records a vendor selection run.
func (m *PipelineMetrics) SelectionCompleted(primaryCount int) {
	if m == nil {
		return
	}
	outcome := "selected"
	if primaryCount == 0 {
		outcome = "empty"
	}
	m.selectionsTotal.WithLabelValues(outcome).Inc()
}

// OrderTransition records an order status change.
func (m *PipelineMetrics) OrderTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(from, to).Inc()
}
