package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "attendance_desk"

// Outcome labels
const (
	OutcomeOK       = "ok"
	OutcomeConflict = "conflict"
	OutcomeError    = "error"
)

// Metrics holds the collectors exported on /metrics.
type Metrics struct {
	registry *prometheus.Registry

	GatewayRequests *prometheus.CounterVec
	GatewayLatency  *prometheus.HistogramVec
	Saves           *prometheus.CounterVec
	GuardianRecords *prometheus.CounterVec
	ActiveSessions  prometheus.Gauge
	EvictedSessions prometheus.Counter
}

// New registers every collector on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		GatewayRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_requests_total",
			Help:      "Calls to the attendance backend by operation and outcome.",
		}, []string{"operation", "outcome"}),
		GatewayLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gateway_request_duration_seconds",
			Help:      "Latency of calls to the attendance backend.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		Saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_saves_total",
			Help:      "Batch attendance saves by outcome.",
		}, []string{"outcome"}),
		GuardianRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guardian_records_total",
			Help:      "Guardian record submissions by outcome.",
		}, []string{"outcome"}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "editor_sessions",
			Help:      "Open attendance editor sessions.",
		}),
		EvictedSessions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "editor_sessions_evicted_total",
			Help:      "Editor sessions dropped after idling.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.GatewayRequests,
		m.GatewayLatency,
		m.Saves,
		m.GuardianRecords,
		m.ActiveSessions,
		m.EvictedSessions,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveGateway records one backend call. conflict is the sentinel that
// classifies an error as a conflict rather than a failure.
func (m *Metrics) ObserveGateway(operation string, start time.Time, err, conflict error) {
	m.GatewayLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	m.GatewayRequests.WithLabelValues(operation, Classify(err, conflict)).Inc()
}

// Classify maps an error to an outcome label.
func Classify(err, conflict error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case conflict != nil && errors.Is(err, conflict):
		return OutcomeConflict
	default:
		return OutcomeError
	}
}
