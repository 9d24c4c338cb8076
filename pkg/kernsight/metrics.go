package kernsight

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the single explicit counter/gauge struct threaded through the
// pipeline (§5 "no global mutable state outside the store and an explicit
// Metrics struct with atomic counters"). Every field is backed by a
// prometheus.Collector registered against a private Registry — never the
// global default registry — so tests can build fresh, isolated Metrics.
type Metrics struct {
	registry *prometheus.Registry

	EventsTotal    *prometheus.CounterVec // label: event_type
	ParseErrors    prometheus.Counter
	InsertErrors   prometheus.Counter
	UnknownType    prometheus.Counter
	Dropped        *prometheus.CounterVec // label: stream
	ErrorsByKind   *prometheus.CounterVec // label: kind

	CyclesTotal       prometheus.Counter
	ActionsExecuted   prometheus.Counter
	ActionsRejected   prometheus.Counter
	GateDenied        prometheus.Counter
	LastConfidence    prometheus.Gauge
	PredictionAccurate prometheus.Counter

	BatchFlushSeconds prometheus.Histogram
}

// NewMetrics constructs a Metrics bound to a fresh, private registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		EventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kernelsight_events_total",
			Help: "Events successfully parsed and classified, by event type.",
		}, []string{"event_type"}),
		ParseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kernelsight_parse_errors_total",
			Help: "Lines that failed to parse as a recognized event.",
		}),
		InsertErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kernelsight_insert_errors_total",
			Help: "Batch commits that failed against the store.",
		}),
		UnknownType: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kernelsight_unknown_type_total",
			Help: "Well-formed lines with an unrecognized type discriminator.",
		}),
		Dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kernelsight_dropped_total",
			Help: "Events dropped due to back-pressure, by source stream.",
		}, []string{"stream"}),
		ErrorsByKind: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kernelsight_errors_total",
			Help: "Handled errors by taxonomy kind.",
		}, []string{"kind"}),
		CyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kernelsight_decision_cycles_total",
			Help: "Decision loop cycles completed.",
		}),
		ActionsExecuted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kernelsight_actions_executed_total",
			Help: "Remediation actions that reached EXECUTE.",
		}),
		ActionsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kernelsight_actions_rejected_total",
			Help: "Decisions rejected by validation, gate, or approval.",
		}),
		GateDenied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kernelsight_gate_denied_total",
			Help: "Decisions denied by the confidence gate.",
		}),
		LastConfidence: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kernelsight_last_confidence",
			Help: "Confidence of the most recent decision.",
		}),
		PredictionAccurate: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kernelsight_prediction_accurate_total",
			Help: "Verified cycles whose outcome matched the simulator projection within tolerance.",
		}),
		BatchFlushSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "kernelsight_batch_flush_seconds",
			Help:    "Wall-clock duration of one ingestion batch commit.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		m.EventsTotal, m.ParseErrors, m.InsertErrors, m.UnknownType, m.Dropped,
		m.ErrorsByKind, m.CyclesTotal, m.ActionsExecuted, m.ActionsRejected,
		m.GateDenied, m.LastConfidence, m.PredictionAccurate, m.BatchFlushSeconds,
	)
	return m
}

// RecordError increments the named-kind counter for a handled error,
// implementing §7's "every handled error increments a named counter".
func (m *Metrics) RecordError(kind Kind) {
	m.ErrorsByKind.WithLabelValues(kind.String()).Inc()
}

// Handler exposes the registry in the Prometheus text exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
