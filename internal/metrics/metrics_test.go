package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveComputation(true, 0.00004)
	m.ObserveComputation(false, 0.002)
	m.ObserveTopologyFinding("overlap", "error")
	m.ObserveSeal("sealed")
	m.AddUnits(3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ComputationsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ComputationsTotal.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TopologyFindings.WithLabelValues("overlap", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SealsTotal.WithLabelValues("sealed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.UnitsGenerated))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 5)
}

func TestNilMetrics_NoPanic(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveComputation(true, 0)
		m.ObserveTopologyFinding("gap", "warning")
		m.ObserveSeal("mismatch")
		m.AddUnits(1)
	})
}
