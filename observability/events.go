package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"burnfaucet/core/types"
)

// EventMetrics counts events released by committed transactions.
type EventMetrics struct {
	released *prometheus.CounterVec
	perTx    prometheus.Histogram
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *EventMetrics
)

// Events returns the process-wide event collectors.
func Events() *EventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &EventMetrics{
			released: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "faucet",
				Subsystem: "events",
				Name:      "released_total",
				Help:      "Events released on commit, by emitting module and event name.",
			}, []string{"module", "name"}),
			perTx: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "faucet",
				Subsystem: "events",
				Name:      "per_transaction",
				Help:      "Number of events released by each committed transaction.",
				Buckets:   []float64{0, 1, 2, 4, 8, 16},
			}),
		}
		prometheus.MustRegister(eventRegistry.released, eventRegistry.perTx)
	})
	return eventRegistry
}

// RecordCommitted counts the events of one committed transaction.
func (m *EventMetrics) RecordCommitted(evts []types.Event) {
	if m == nil {
		return
	}
	m.perTx.Observe(float64(len(evts)))
	for _, evt := range evts {
		module, name := splitEventType(evt.Type)
		m.released.WithLabelValues(module, name).Inc()
	}
}

// splitEventType maps "faucet.reward_paid" to ("faucet", "reward_paid").
func splitEventType(eventType string) (string, string) {
	normalized := strings.ToLower(strings.TrimSpace(eventType))
	if normalized == "" {
		return "unknown", "unknown"
	}
	module, name, found := strings.Cut(normalized, ".")
	if !found || name == "" {
		return "unknown", module
	}
	return module, name
}
