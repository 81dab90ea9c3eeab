package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.IngestMessages.WithLabelValues("stored").Inc()
	m.IngestMessages.WithLabelValues("stored").Inc()
	m.PredictedPower.WithLabelValues("dev-1").Set(812.5)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.IngestMessages.WithLabelValues("stored")))
	assert.Equal(t, 812.5, testutil.ToFloat64(m.PredictedPower.WithLabelValues("dev-1")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "wattara_ingest_messages_total")
	assert.Contains(t, names, "wattara_forecast_predicted_power_watts")
}

func TestRegisterIngestState(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	state := 1.0
	require.NoError(t, m.RegisterIngestState(func() float64 { return state }))
	state = 2

	n, err := testutil.GatherAndCount(reg, "wattara_ingest_connection_state")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Error(t, m.RegisterIngestState(func() float64 { return 0 }), "duplicate registration")
}
