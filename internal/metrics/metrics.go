// Package metrics holds the Prometheus collectors for the hub, the robot
// engine and the order ledger. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics of the robot service.
type Metrics struct {
	registry *prometheus.Registry

	// Subscription hub
	UpstreamStreams prometheus.Gauge
	Consumers       prometheus.Gauge
	TicksTotal      *prometheus.CounterVec // labels: resolution
	StreamOpenFails prometheus.Counter
	Resubscribes    prometheus.Counter

	// Robot engine
	PlacementsTotal *prometheus.CounterVec // labels: side, result
	FillsTotal      *prometheus.CounterVec // labels: side
	FilledLots      *prometheus.CounterVec // labels: side
	CheckOrders     *prometheus.CounterVec // labels: result
	DroppedTicks    prometheus.Counter
	EnabledRobots   prometheus.Gauge

	// Order ledger
	SyncsTotal    *prometheus.CounterVec   // labels: result
	BrokerLatency *prometheus.HistogramVec // labels: call
}

// New creates and registers all metrics on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		UpstreamStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "robots_hub_upstream_streams",
			Help: "Open upstream price streams",
		}),
		Consumers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "robots_hub_consumers",
			Help: "Registered hub consumers across all keys",
		}),
		TicksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "robots_hub_ticks_total",
			Help: "Ticks received from upstream streams",
		}, []string{"resolution"}),
		StreamOpenFails: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "robots_hub_stream_open_failures_total",
			Help: "Upstream stream open failures",
		}),
		Resubscribes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "robots_hub_resubscribes_total",
			Help: "Upstream streams cycled by resubscribe",
		}),

		PlacementsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "robots_engine_placements_total",
			Help: "Limit order placements by side and result",
		}, []string{"side", "result"}),
		FillsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "robots_engine_fills_total",
			Help: "Fills applied to robots",
		}, []string{"side"}),
		FilledLots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "robots_engine_filled_lots_total",
			Help: "Lots applied to robot inventories",
		}, []string{"side"}),
		CheckOrders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "robots_engine_check_orders_total",
			Help: "Order reconciliation runs by result",
		}, []string{"result"}),
		DroppedTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "robots_engine_dropped_ticks_total",
			Help: "Ticks dropped because a robot worker was busy",
		}),
		EnabledRobots: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "robots_engine_enabled_robots",
			Help: "Robots currently enabled",
		}),

		SyncsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "robots_ledger_syncs_total",
			Help: "Order syncs against broker history by result",
		}, []string{"result"}),
		BrokerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "robots_broker_call_duration_seconds",
			Help:    "Broker call latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"call"}),
	}

	m.registry.MustRegister(
		m.UpstreamStreams,
		m.Consumers,
		m.TicksTotal,
		m.StreamOpenFails,
		m.Resubscribes,
		m.PlacementsTotal,
		m.FillsTotal,
		m.FilledLots,
		m.CheckOrders,
		m.DroppedTicks,
		m.EnabledRobots,
		m.SyncsTotal,
		m.BrokerLatency,
	)

	return m
}

// Handler returns the /metrics handler for this registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}

	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) StreamOpened() {
	if m == nil {
		return
	}

	m.UpstreamStreams.Inc()
}

func (m *Metrics) StreamClosed() {
	if m == nil {
		return
	}

	m.UpstreamStreams.Dec()
}

func (m *Metrics) StreamOpenFailed() {
	if m == nil {
		return
	}

	m.StreamOpenFails.Inc()
}

func (m *Metrics) ConsumerAdded() {
	if m == nil {
		return
	}

	m.Consumers.Inc()
}

func (m *Metrics) ConsumerRemoved() {
	if m == nil {
		return
	}

	m.Consumers.Dec()
}

func (m *Metrics) Tick(resolution string) {
	if m == nil {
		return
	}

	m.TicksTotal.WithLabelValues(resolution).Inc()
}

func (m *Metrics) Resubscribed(n int) {
	if m == nil {
		return
	}

	m.Resubscribes.Add(float64(n))
}

// Placement records one placement attempt. result is "ok" or "error".
func (m *Metrics) Placement(side, result string) {
	if m == nil {
		return
	}

	m.PlacementsTotal.WithLabelValues(side, result).Inc()
}

func (m *Metrics) Fill(side string, lots int64) {
	if m == nil {
		return
	}

	m.FillsTotal.WithLabelValues(side).Inc()
	m.FilledLots.WithLabelValues(side).Add(float64(lots))
}

// CheckOrdersRun records a reconciliation run. result is "ok", "busy", "idle" or "error".
func (m *Metrics) CheckOrdersRun(result string) {
	if m == nil {
		return
	}

	m.CheckOrders.WithLabelValues(result).Inc()
}

func (m *Metrics) TickDropped() {
	if m == nil {
		return
	}

	m.DroppedTicks.Inc()
}

func (m *Metrics) SetEnabledRobots(n int) {
	if m == nil {
		return
	}

	m.EnabledRobots.Set(float64(n))
}

func (m *Metrics) Sync(result string) {
	if m == nil {
		return
	}

	m.SyncsTotal.WithLabelValues(result).Inc()
}

// ObserveBroker records the duration of a broker call in seconds.
func (m *Metrics) ObserveBroker(call string, seconds float64) {
	if m == nil {
		return
	}

	m.BrokerLatency.WithLabelValues(call).Observe(seconds)
}
