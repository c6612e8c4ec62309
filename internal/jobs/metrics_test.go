package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	require.NoError(t, m.Track("scan").End(nil))
	err := m.Track("scan").End(errors.New("boom"))
	require.EqualError(t, err, "boom")

	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("scan", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("scan", "failure")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("scan")))
}

func TestLowStockGaugeAndPurgeCounter(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.SetLowStock(7, 3)
	m.SetLowStock(7, 1)
	m.SetLowStock(0, 9)
	m.AddPurged(4)
	m.AddPurged(-1)

	require.Equal(t, 1.0, testutil.ToFloat64(m.lowStock.WithLabelValues("7")))
	require.Equal(t, 4.0, testutil.ToFloat64(m.purged))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.SetLowStock(1, 1)
	m.AddPurged(1)
	require.NoError(t, m.Track("noop").End(nil))
}
