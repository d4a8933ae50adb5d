package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

// ContractMetrics tracks signed call execution inside the node.
type ContractMetrics struct {
	calls    *prometheus.CounterVec
	failures *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	events   *prometheus.CounterVec
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	contractMetricsOnce sync.Once
	contractRegistry    *ContractMetrics
)

// ModuleMetrics returns the lazily-initialised registry used to record RPC
// request activity.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "paylink",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by method and outcome.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "paylink",
				Subsystem: "rpc",
				Name:      "errors_total",
				Help:      "Total JSON-RPC errors segmented by method and status code.",
			}, []string{"module", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "paylink",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "paylink",
				Subsystem: "rpc",
				Name:      "throttles_total",
				Help:      "Count of requests rejected due to throttling policies.",
			}, []string{"module", "reason"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
			moduleRegistry.throttles,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of a request. The status code should be the
// HTTP status that was ultimately written to the response writer.
func (m *moduleMetrics) Observe(module, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	if status >= 400 {
		m.errors.WithLabelValues(module, method, strconv.Itoa(status)).Inc()
	}
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter for the supplied module and
// reason. Reasons should be stable strings such as "rate_limit" so dashboards
// and alerts remain consistent.
func (m *moduleMetrics) RecordThrottle(module, reason string) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(module, reason).Inc()
}

// Contract returns the singleton registry for call execution.
func Contract() *ContractMetrics {
	contractMetricsOnce.Do(func() {
		contractRegistry = &ContractMetrics{
			calls: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "paylink",
				Subsystem: "contract",
				Name:      "calls_total",
				Help:      "Signed calls executed, segmented by method and outcome.",
			}, []string{"method", "outcome"}),
			failures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "paylink",
				Subsystem: "contract",
				Name:      "errors_total",
				Help:      "Rejected calls segmented by method and contract error code.",
			}, []string{"method", "code"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "paylink",
				Subsystem: "contract",
				Name:      "call_duration_seconds",
				Help:      "Execution latency including commit.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method"}),
			events: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "paylink",
				Subsystem: "contract",
				Name:      "events_total",
				Help:      "Committed events segmented by type (escrow lifecycle, privacy, admin).",
			}, []string{"type"}),
		}
		prometheus.MustRegister(
			contractRegistry.calls,
			contractRegistry.failures,
			contractRegistry.latency,
			contractRegistry.events,
		)
	})
	return contractRegistry
}

// ObserveCall records one execution. code is zero on success.
func (m *ContractMetrics) ObserveCall(method string, code uint32, duration time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if code != 0 {
		outcome = "error"
		m.failures.WithLabelValues(method, strconv.FormatUint(uint64(code), 10)).Inc()
	}
	m.calls.WithLabelValues(method, outcome).Inc()
	m.latency.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordEvent counts a committed event.
func (m *ContractMetrics) RecordEvent(eventType string) {
	if m == nil || eventType == "" {
		return
	}
	m.events.WithLabelValues(eventType).Inc()
}
