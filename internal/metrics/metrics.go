// Package metrics exposes prometheus collectors for the survey pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the pipeline collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	ComputationsTotal *prometheus.CounterVec
	ClosureFraction   prometheus.Histogram
	TopologyFindings  *prometheus.CounterVec
	SealsTotal        *prometheus.CounterVec
	UnitsGenerated    prometheus.Counter
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ComputationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "survey_computations_total",
			Help: "Outside-figure computations by outcome",
		}, []string{"outcome"}),
		ClosureFraction: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "survey_closure_fractional_error",
			Help:    "Fractional closure error of computed traverses",
			Buckets: []float64{0.00001, 0.00002, 0.00005, 0.0001, 0.0002, 0.0005, 0.001, 0.01},
		}),
		TopologyFindings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "survey_topology_findings_total",
			Help: "Topology findings by type and severity",
		}, []string{"type", "severity"}),
		SealsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "survey_seals_total",
			Help: "Seal operations by outcome",
		}, []string{"outcome"}),
		UnitsGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "survey_units_generated_total",
			Help: "Sectional unit geometries generated",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.ComputationsTotal, m.ClosureFraction, m.TopologyFindings, m.SealsTotal, m.UnitsGenerated)
	}
	return m
}

// ObserveComputation records a computation outcome and its fractional closure error.
func (m *Metrics) ObserveComputation(success bool, fractionalError float64) {
	if m == nil {
		return
	}
	m.ComputationsTotal.WithLabelValues(outcome(success)).Inc()
	m.ClosureFraction.Observe(fractionalError)
}

// ObserveTopologyFinding counts one topology finding.
func (m *Metrics) ObserveTopologyFinding(kind, severity string) {
	if m == nil {
		return
	}
	m.TopologyFindings.WithLabelValues(kind, severity).Inc()
}

// ObserveSeal counts a seal or verification outcome ("sealed", "verified", "mismatch", "blocked").
func (m *Metrics) ObserveSeal(result string) {
	if m == nil {
		return
	}
	m.SealsTotal.WithLabelValues(result).Inc()
}

// AddUnits counts generated unit geometries.
func (m *Metrics) AddUnits(n int) {
	if m == nil {
		return
	}
	m.UnitsGenerated.Add(float64(n))
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
