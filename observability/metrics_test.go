package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestStatusClass(t *testing.T) {
	require.Equal(t, "2xx", statusClass(200))
	require.Equal(t, "4xx", statusClass(429))
	require.Equal(t, "5xx", statusClass(503))
	require.Equal(t, "unknown", statusClass(0))
}

func TestHTTPObserveAndInFlight(t *testing.T) {
	m := HTTP()
	counter := m.requests.WithLabelValues("metrics-test", "GET /v1/treasury", "2xx")
	before := testutil.ToFloat64(counter)
	m.Observe("metrics-test", "GET /v1/treasury", 200, time.Millisecond)
	require.Equal(t, before+1, testutil.ToFloat64(counter))

	gauge := m.inflight.WithLabelValues("metrics-test")
	done := m.Start("metrics-test")
	require.Equal(t, float64(1), testutil.ToFloat64(gauge))
	done()
	require.Equal(t, float64(0), testutil.ToFloat64(gauge))
}
