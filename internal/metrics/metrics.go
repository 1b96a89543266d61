package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes counters/histograms for the scheduling engine and call records.
// All methods are safe on a nil receiver.
type Metrics struct {
	operationsTotal   *prometheus.CounterVec
	operationLatency  *prometheus.HistogramVec
	identityTotal     *prometheus.CounterVec
	finalizationTotal *prometheus.CounterVec
	sinkWritesTotal   *prometheus.CounterVec
	providerLatency   *prometheus.HistogramVec
	activeSessions    prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "appointments",
			Subsystem: "engine",
			Name:      "operations_total",
			Help:      "Engine operations by name and outcome",
		}, []string{"operation", "outcome"}),
		operationLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "appointments",
			Subsystem: "engine",
			Name:      "operation_latency_seconds",
			Help:      "Latency of engine operations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		identityTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "appointments",
			Subsystem: "identity",
			Name:      "resolutions_total",
			Help:      "Caller identity resolutions by customer type",
		}, []string{"customer_type"}),
		finalizationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "appointments",
			Subsystem: "calls",
			Name:      "finalized_total",
			Help:      "Finalized call records by end reason and status",
		}, []string{"reason", "status"}),
		sinkWritesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "appointments",
			Subsystem: "calls",
			Name:      "sink_writes_total",
			Help:      "Call record sink writes by sink and outcome",
		}, []string{"sink", "outcome"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "appointments",
			Subsystem: "provider",
			Name:      "call_latency_seconds",
			Help:      "Latency of calendar and directory calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider", "call"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "appointments",
			Subsystem: "calls",
			Name:      "active_sessions",
			Help:      "In-flight call sessions",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.operationsTotal, m.operationLatency, m.identityTotal,
		m.finalizationTotal, m.sinkWritesTotal, m.providerLatency, m.activeSessions)
	return m
}

// ObserveOperation records one engine call. outcome is an error kind or "ok".
func (m *Metrics) ObserveOperation(operation, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.operationsTotal.WithLabelValues(operation, outcome).Inc()
	m.operationLatency.WithLabelValues(operation).Observe(seconds)
}

func (m *Metrics) ObserveIdentity(customerType string) {
	if m == nil {
		return
	}
	m.identityTotal.WithLabelValues(customerType).Inc()
}

func (m *Metrics) ObserveFinalize(reason, status string) {
	if m == nil {
		return
	}
	m.finalizationTotal.WithLabelValues(reason, status).Inc()
}

func (m *Metrics) ObserveSinkWrite(sink string, ok bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	m.sinkWritesTotal.WithLabelValues(sink, outcome).Inc()
}

func (m *Metrics) ObserveProvider(provider, call string, seconds float64) {
	if m == nil {
		return
	}
	m.providerLatency.WithLabelValues(provider, call).Observe(seconds)
}

func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}
