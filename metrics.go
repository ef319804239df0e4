package flagkit

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is an optional Prometheus collector that counts config
// changes, flag evaluations, and reported errors. It's wired in by registering its hooks against a
// Client's Hooks and registering Collectors() with a prometheus
// registry; a Client never requires one.
type Metrics struct {
	fetches     *prometheus.CounterVec
	evaluations *prometheus.CounterVec
	errors      prometheus.Counter
}

// NewMetrics builds a Metrics collector. namespace/subsystem follow the
// usual Prometheus naming convention, e.g. ("myapp", "flagkit").
func NewMetrics(namespace, subsystem string) *Metrics {
	return &Metrics{
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "config_changed_total",
			Help:      "Number of times the cached config document changed.",
		}, nil),
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "evaluations_total",
			Help:      "Number of flag evaluations performed, labeled by flag key.",
		}, []string{"key"}),
		errors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "errors_total",
			Help:      "Number of errors reported through OnError.",
		}),
	}
}

// Collectors returns the Prometheus collectors to register, e.g. via
// registry.MustRegister(m.Collectors()...).
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.fetches, m.evaluations, m.errors}
}

// Attach subscribes the collector's counters to hooks' events.
func (m *Metrics) Attach(hooks *Hooks) {
	hooks.OnConfigChanged(func(map[string]interface{}) {
		m.fetches.WithLabelValues().Inc()
	})
	hooks.OnFlagEvaluated(func(details EvaluationDetails) {
		m.evaluations.WithLabelValues(details.Key).Inc()
	})
	hooks.OnError(func(error) {
		m.errors.Inc()
	})
}
