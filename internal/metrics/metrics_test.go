package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.StreamOpened()
		m.StreamClosed()
		m.StreamOpenFailed()
		m.ConsumerAdded()
		m.ConsumerRemoved()
		m.Tick("1m")
		m.Resubscribed(3)
		m.Placement("BUY", "ok")
		m.Fill("SELL", 4)
		m.CheckOrdersRun("busy")
		m.TickDropped()
		m.SetEnabledRobots(2)
		m.Sync("ok")
		m.ObserveBroker("place", 0.1)
	})
}

func TestMetricsRecord(t *testing.T) {
	m := New()

	m.StreamOpened()
	m.StreamOpened()
	m.StreamClosed()
	assert.Equal(t, float64(1), testutil.ToFloat64(m.UpstreamStreams))

	m.Fill("BUY", 3)
	m.Fill("BUY", 2)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.FillsTotal.WithLabelValues("BUY")))
	assert.Equal(t, float64(5), testutil.ToFloat64(m.FilledLots.WithLabelValues("BUY")))

	m.Resubscribed(4)
	assert.Equal(t, float64(4), testutil.ToFloat64(m.Resubscribes))
}

func TestMetricsHandler(t *testing.T) {
	m := New()
	m.Placement("SELL", "error")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `robots_engine_placements_total{result="error",side="SELL"} 1`))
}
