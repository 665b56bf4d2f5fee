package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	memorySearchDuration   prometheus.Histogram
	memoryWriteDuration    prometheus.Histogram
	memoryDeleteDuration   prometheus.Histogram
	memoryEntriesTotal     prometheus.Gauge
	embeddingFailuresTotal *prometheus.CounterVec

	toolCallsTotal   *prometheus.CounterVec
	toolCallDuration *prometheus.HistogramVec
	maintenanceTotal *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			memorySearchDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "memory_search_duration_seconds",
					Help:    "Hybrid memory retrieval duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			memoryWriteDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "memory_write_duration_seconds",
					Help:    "Memory ingestion duration in seconds, embedding included.",
					Buckets: prometheus.DefBuckets,
				},
			),
			memoryDeleteDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "memory_delete_duration_seconds",
					Help:    "Memory delete duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			memoryEntriesTotal: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "memory_entries_total",
					Help: "Total memory records stored.",
				},
			),
			embeddingFailuresTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "memory_embedding_failures_total",
					Help: "Embedding failures absorbed by stage (ingest, retrieve).",
				},
				[]string{"stage"},
			),
			toolCallsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "memory_tool_calls_total",
					Help: "Total memory tool calls by tool and status.",
				},
				[]string{"tool", "status"},
			),
			toolCallDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "memory_tool_call_duration_seconds",
					Help:    "Memory tool call duration in seconds by tool.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"tool"},
			),
			maintenanceTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "memory_maintenance_runs_total",
					Help: "Scheduled store maintenance runs by status.",
				},
				[]string{"status"},
			),
		}

		prometheus.MustRegister(
			m.memorySearchDuration,
			m.memoryWriteDuration,
			m.memoryDeleteDuration,
			m.memoryEntriesTotal,
			m.embeddingFailuresTotal,
			m.toolCallsTotal,
			m.toolCallDuration,
			m.maintenanceTotal,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func RecordMemorySearch(duration time.Duration) {
	m := getMetrics()
	m.memorySearchDuration.Observe(duration.Seconds())
}

func RecordMemoryWrite(duration time.Duration) {
	m := getMetrics()
	m.memoryWriteDuration.Observe(duration.Seconds())
}

func RecordMemoryDelete(duration time.Duration) {
	m := getMetrics()
	m.memoryDeleteDuration.Observe(duration.Seconds())
}

func SetMemoryEntries(total int) {
	m := getMetrics()
	m.memoryEntriesTotal.Set(float64(total))
}

func RecordEmbeddingFailure(stage string) {
	m := getMetrics()
	m.embeddingFailuresTotal.WithLabelValues(stage).Inc()
}

func RecordToolCall(tool string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.toolCallsTotal.WithLabelValues(tool, status).Inc()
	m.toolCallDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

func RecordMaintenance(success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.maintenanceTotal.WithLabelValues(status).Inc()
}
