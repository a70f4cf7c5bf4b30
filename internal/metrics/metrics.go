package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the session engine.
//
// All recording methods are safe to call on a nil *Metrics, so components
// can be built without a registry in tests.
type Metrics struct {
	registry *prometheus.Registry

	// Session metrics
	SessionsActive    *prometheus.GaugeVec
	SessionsCreated   *prometheus.CounterVec
	SessionsDestroyed *prometheus.CounterVec

	// Input metrics
	LinesAccepted    *prometheus.CounterVec
	UnitsDispatched  *prometheus.CounterVec
	DispatchDuration prometheus.Histogram
	Interrupts       prometheus.Counter

	// Transport metrics
	TransportErrors *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		SessionsActive: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sockrepl_sessions_active",
				Help: "Number of currently registered sessions by kind",
			},
			[]string{"kind"},
		),
		SessionsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sockrepl_sessions_created_total",
				Help: "Total number of sessions created by kind",
			},
			[]string{"kind"},
		),
		SessionsDestroyed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sockrepl_sessions_destroyed_total",
				Help: "Total number of sessions destroyed by kind",
			},
			[]string{"kind"},
		),

		LinesAccepted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sockrepl_lines_accepted_total",
				Help: "Total number of input lines accepted by session kind",
			},
			[]string{"kind"},
		),
		UnitsDispatched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sockrepl_units_dispatched_total",
				Help: "Total number of complete input units handed to the engine",
			},
			[]string{"kind"},
		),
		DispatchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sockrepl_unit_dispatch_duration_seconds",
				Help:    "Time spent evaluating a complete input unit",
				Buckets: prometheus.DefBuckets,
			},
		),
		Interrupts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sockrepl_interrupts_total",
				Help: "Total number of interrupts delivered to the local session",
			},
		),

		TransportErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sockrepl_transport_errors_total",
				Help: "Total number of non-fatal transport errors",
			},
			[]string{"transport"},
		),
	}

	m.registerMetrics()

	return m
}

// registerMetrics registers all metrics with the registry
func (m *Metrics) registerMetrics() {
	m.registry.MustRegister(m.SessionsActive)
	m.registry.MustRegister(m.SessionsCreated)
	m.registry.MustRegister(m.SessionsDestroyed)

	m.registry.MustRegister(m.LinesAccepted)
	m.registry.MustRegister(m.UnitsDispatched)
	m.registry.MustRegister(m.DispatchDuration)
	m.registry.MustRegister(m.Interrupts)

	m.registry.MustRegister(m.TransportErrors)
}

// SessionCreated records a new session of the given kind
func (m *Metrics) SessionCreated(kind string) {
	if m == nil {
		return
	}
	m.SessionsCreated.WithLabelValues(kind).Inc()
	m.SessionsActive.WithLabelValues(kind).Inc()
}

// SessionDestroyed records a destroyed session of the given kind
func (m *Metrics) SessionDestroyed(kind string) {
	if m == nil {
		return
	}
	m.SessionsDestroyed.WithLabelValues(kind).Inc()
	m.SessionsActive.WithLabelValues(kind).Dec()
}

// LineAccepted records one input line
func (m *Metrics) LineAccepted(kind string) {
	if m == nil {
		return
	}
	m.LinesAccepted.WithLabelValues(kind).Inc()
}

// UnitDispatched records one evaluated unit and its duration
func (m *Metrics) UnitDispatched(kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.UnitsDispatched.WithLabelValues(kind).Inc()
	m.DispatchDuration.Observe(d.Seconds())
}

// Interrupted records an interrupt
func (m *Metrics) Interrupted() {
	if m == nil {
		return
	}
	m.Interrupts.Inc()
}

// TransportError records a non-fatal transport error
func (m *Metrics) TransportError(transport string) {
	if m == nil {
		return
	}
	m.TransportErrors.WithLabelValues(transport).Inc()
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
