package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics provides Prometheus metrics for suite runs.
// A nil or disabled Metrics accepts every call and records nothing.
type Metrics struct {
	config MetricsConfig

	runsStarted   prometheus.Counter
	runsCompleted *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec

	unitsExecuted *prometheus.CounterVec
	unitDuration  *prometheus.HistogramVec

	probeAttempts *prometheus.CounterVec

	errorsByClass *prometheus.CounterVec

	activeRuns prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		runsStarted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_started_total",
				Help:      "Total number of suite runs started",
			},
		),
		runsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_completed_total",
				Help:      "Total number of suite runs completed",
			},
			[]string{"status"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of suite runs in seconds",
				Buckets:   buckets,
			},
			[]string{"status"},
		),
		unitsExecuted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "units_total",
				Help:      "Total number of units processed by status",
			},
			[]string{"status"},
		),
		unitDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "unit_duration_seconds",
				Help:      "Duration of remote unit execution in seconds",
				Buckets:   buckets,
			},
			[]string{"status"},
		),
		probeAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "probe_attempts_total",
				Help:      "Total number of reachability probes by result",
			},
			[]string{"result"},
		),
		errorsByClass: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_class_total",
				Help:      "Total number of errors by error class",
			},
			[]string{"class"},
		),
		activeRuns: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_runs",
				Help:      "Current number of active suite runs",
			},
		),
	}

	registry.MustRegister(
		m.runsStarted,
		m.runsCompleted,
		m.runDuration,
		m.unitsExecuted,
		m.unitDuration,
		m.probeAttempts,
		m.errorsByClass,
		m.activeRuns,
	)

	return m, nil
}

func (m *Metrics) enabled() bool {
	return m != nil && m.registry != nil
}

// Registry returns the private registry, or nil when disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordRunStarted increments the counter for started runs.
func (m *Metrics) RecordRunStarted() {
	if !m.enabled() {
		return
	}
	m.runsStarted.Inc()
	m.activeRuns.Inc()
}

// RecordRunCompleted records a completed run with its status and duration.
func (m *Metrics) RecordRunCompleted(status string, duration time.Duration) {
	if !m.enabled() {
		return
	}
	m.runsCompleted.WithLabelValues(status).Inc()
	m.runDuration.WithLabelValues(status).Observe(duration.Seconds())
	m.activeRuns.Dec()
}

// RecordUnit records a processed unit. Units that never executed pass a
// zero duration and are not observed in the histogram.
func (m *Metrics) RecordUnit(status string, duration time.Duration) {
	if !m.enabled() {
		return
	}
	m.unitsExecuted.WithLabelValues(status).Inc()
	if duration > 0 {
		m.unitDuration.WithLabelValues(status).Observe(duration.Seconds())
	}
}

// RecordProbe records one reachability probe.
func (m *Metrics) RecordProbe(reachable bool) {
	if !m.enabled() {
		return
	}
	result := "refused"
	if reachable {
		result = "open"
	}
	m.probeAttempts.WithLabelValues(result).Inc()
}

// RecordError records an error by class.
func (m *Metrics) RecordError(errorClass string) {
	if !m.enabled() || errorClass == "" {
		return
	}
	m.errorsByClass.WithLabelValues(errorClass).Inc()
}

// WriteTextfile writes the registry in text exposition format, for the
// node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if !m.enabled() || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
