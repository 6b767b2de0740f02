package metrics

import (
	"context"

	"herwigbench/internal/model"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics represents the collection of Prometheus metrics kept for an experiment.
type Metrics struct {
	PhaseDuration  *prometheus.HistogramVec
	PhaseEnergy    *prometheus.CounterVec
	PhaseEmissions *prometheus.CounterVec
	PhaseFailures  *prometheus.CounterVec
	Iterations     *prometheus.CounterVec
}

// NewMetrics creates all collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{}

	m.PhaseDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "herwig_bench_phase_duration_seconds",
			Help:    "Wall-clock duration of a measured Herwig phase",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14),
		},
		[]string{"phase"},
	)

	m.PhaseEnergy = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "herwig_bench_phase_energy_kwh_total",
			Help: "Energy consumed by measured phases in kWh",
		},
		[]string{"phase", "component"},
	)

	m.PhaseEmissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "herwig_bench_phase_emissions_kg_total",
			Help: "Estimated emissions of measured phases in kg CO2eq",
		},
		[]string{"phase"},
	)

	m.PhaseFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "herwig_bench_phase_failures_total",
			Help: "Number of phase invocations that exited unsuccessfully",
		},
		[]string{"phase"},
	)

	m.Iterations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "herwig_bench_iterations_total",
			Help: "Completed read+run iterations",
		},
		[]string{"kind"},
	)

	reg.MustRegister(
		m.PhaseDuration,
		m.PhaseEnergy,
		m.PhaseEmissions,
		m.PhaseFailures,
		m.Iterations,
	)

	return m
}

// ObserveMeasurement records a kept phase measurement.
func (m *Metrics) ObserveMeasurement(_ context.Context, _ *model.Experiment, pm model.PhaseMeasurement) error {
	phase := string(pm.Phase)
	m.PhaseDuration.WithLabelValues(phase).Observe(pm.Duration)
	m.PhaseEnergy.WithLabelValues(phase, "cpu").Add(pm.CPUEnergy)
	m.PhaseEnergy.WithLabelValues(phase, "ram").Add(pm.RAMEnergy)
	m.PhaseEmissions.WithLabelValues(phase).Add(pm.Emissions)
	return nil
}

// ObservePhaseFailure counts a failed phase, kept or not.
func (m *Metrics) ObservePhaseFailure(_ context.Context, _ *model.Experiment, pm model.PhaseMeasurement) error {
	m.PhaseFailures.WithLabelValues(string(pm.Phase)).Inc()
	return nil
}

// ObserveIteration counts a finished iteration.
func (m *Metrics) ObserveIteration(warmup bool) {
	kind := "measured"
	if warmup {
		kind = "warmup"
	}
	m.Iterations.WithLabelValues(kind).Inc()
}
