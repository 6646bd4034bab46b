package observability

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics records daemon API traffic per route.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	inflight *prometheus.GaugeVec
}

var (
	httpMetricsOnce sync.Once
	httpRegistry    *HTTPMetrics

	runtimeMetricsOnce sync.Once
	runtimeRegistry    *RuntimeMetrics
)

// HTTP returns the lazily registered API collectors.
func HTTP() *HTTPMetrics {
	httpMetricsOnce.Do(func() {
		httpRegistry = &HTTPMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "faucet",
				Subsystem: "api",
				Name:      "requests_total",
				Help:      "API requests by service, route and status class.",
			}, []string{"service", "route", "code"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "faucet",
				Subsystem: "api",
				Name:      "request_duration_seconds",
				Help:      "API handler latency by service and route.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"service", "route"}),
			inflight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "faucet",
				Subsystem: "api",
				Name:      "in_flight_requests",
				Help:      "Requests currently being served.",
			}, []string{"service"}),
		}
		prometheus.MustRegister(httpRegistry.requests, httpRegistry.latency, httpRegistry.inflight)
	})
	return httpRegistry
}

// Start marks a request as in flight and returns the matching done func.
func (m *HTTPMetrics) Start(service string) func() {
	if m == nil {
		return func() {}
	}
	g := m.inflight.WithLabelValues(orUnknown(service))
	g.Inc()
	return g.Dec
}

// Observe records a finished request. route should be the router pattern,
// not the raw path, to keep label cardinality bounded.
func (m *HTTPMetrics) Observe(service, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	service, route = orUnknown(service), orUnknown(route)
	m.requests.WithLabelValues(service, route, statusClass(status)).Inc()
	m.latency.WithLabelValues(service, route).Observe(duration.Seconds())
}

// statusClass maps 404 to "4xx".
func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return fmt.Sprintf("%dxx", status/100)
}

func orUnknown(v string) string {
	if v = strings.TrimSpace(v); v == "" {
		return "unknown"
	}
	return v
}

// RuntimeMetrics tracks transaction execution in the host.
type RuntimeMetrics struct {
	transactions *prometheus.CounterVec
	latency      prometheus.Histogram
	instructions *prometheus.CounterVec
	flushHeight  prometheus.Gauge
}

// Runtime returns the singleton registry for transaction execution.
func Runtime() *RuntimeMetrics {
	runtimeMetricsOnce.Do(func() {
		runtimeRegistry = &RuntimeMetrics{
			transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "faucet",
				Subsystem: "runtime",
				Name:      "transactions_total",
				Help:      "Count of executed transactions segmented by outcome.",
			}, []string{"outcome"}),
			latency: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "faucet",
				Subsystem: "runtime",
				Name:      "transaction_duration_seconds",
				Help:      "Latency distribution for transaction execution.",
				Buckets:   prometheus.DefBuckets,
			}),
			instructions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "faucet",
				Subsystem: "runtime",
				Name:      "instructions_total",
				Help:      "Count of processed instructions segmented by program.",
			}, []string{"program"}),
			flushHeight: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "faucet",
				Subsystem: "runtime",
				Name:      "flush_height",
				Help:      "Number of state roots persisted to disk.",
			}),
		}
		prometheus.MustRegister(
			runtimeRegistry.transactions,
			runtimeRegistry.latency,
			runtimeRegistry.instructions,
			runtimeRegistry.flushHeight,
		)
	})
	return runtimeRegistry
}

// ObserveTransaction records the result of one transaction.
func (m *RuntimeMetrics) ObserveTransaction(duration time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "committed"
	if err != nil {
		outcome = "aborted"
	}
	m.transactions.WithLabelValues(outcome).Inc()
	m.latency.Observe(duration.Seconds())
}

// RecordInstruction increments the per-program instruction counter.
func (m *RuntimeMetrics) RecordInstruction(program string) {
	if m == nil {
		return
	}
	m.instructions.WithLabelValues(orUnknown(program)).Inc()
}

// SetFlushHeight updates the persisted height gauge.
func (m *RuntimeMetrics) SetFlushHeight(height uint64) {
	if m == nil {
		return
	}
	m.flushHeight.Set(float64(height))
}
