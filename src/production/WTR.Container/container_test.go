package container

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	forecast "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Forecast"
	ingestor "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Ingestor"
	wtrmodels "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Models"
	auth_models "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Models/auth"
)

func TestNewApiContainerWithLocalBackends(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("REGISTRY_BACKEND", "static")
	t.Setenv("STATIC_DEVICES", "dev-1:alice:Kitchen")
	t.Setenv("LOG_LEVEL", "error")

	c, err := NewApiContainer()
	require.NoError(t, err)
	defer c.Shutdown(context.Background())

	ctx := context.Background()
	require.NoError(t, c.GetStore().Insert(ctx, wtrmodels.TelemetryPoint{DeviceID: "dev-1", Power: wtrmodels.Float(10)}))

	latest, err := c.GetQueryEngine().GetLatest(ctx, "dev-1", auth_models.Principal{UserID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, "Kitchen", latest.DeviceName)

	status, healthy := c.HealthCheck(ctx)
	assert.True(t, healthy)
	assert.Contains(t, status["checks"], "store")
	assert.Contains(t, status["checks"], "registry")

	assert.NotNil(t, c.GetForecastPool())
	_, err = c.GetForecastPool().Submit(forecast.Request{DeviceID: "dev-1"})
	assert.ErrorIs(t, err, forecast.ErrPoolStopped, "the pool is started by the caller")
}

func TestNewApiContainerRejectsBadStaticDevices(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("REGISTRY_BACKEND", "static")
	t.Setenv("STATIC_DEVICES", ":nobody")
	t.Setenv("LOG_LEVEL", "error")

	_, err := NewApiContainer()
	assert.Error(t, err)
}

func TestNewIngestorContainerExportsTransportState(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("TRANSPORT", "kafka")
	t.Setenv("LOG_LEVEL", "error")

	c, err := NewIngestorContainer()
	require.NoError(t, err)
	defer c.Shutdown(context.Background())

	assert.Equal(t, ingestor.StateDisconnected, c.GetGateway().State())

	_, healthy := c.HealthCheck(context.Background())
	assert.False(t, healthy, "not ready until the transport is subscribed")

	families, err := c.GetGatherer().Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "wattara_ingest_connection_state")
}
