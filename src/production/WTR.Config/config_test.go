package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadApiConfigDefaults(t *testing.T) {
	t.Setenv("REGISTRY_BACKEND", "static")
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("JWT_SECRET_KEY", "test-secret")

	cfg, err := LoadApiConfig()
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, "iot_db", cfg.Store.Database)
	assert.Equal(t, "pzem_data1", cfg.Store.Collection)
	assert.Equal(t, 2, cfg.Forecast.Workers)
	assert.Equal(t, 15*time.Minute, cfg.Forecast.JobTTL)
	assert.Equal(t, "rf", cfg.Forecast.DefaultAlgorithm)
	assert.Equal(t, "900VA", cfg.Forecast.DefaultMeterType)
	assert.Equal(t, 30*time.Second, cfg.Registry.CacheTTL)
}

func TestLoadApiConfigOverrides(t *testing.T) {
	t.Setenv("REGISTRY_BACKEND", "static")
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("STATIC_DEVICES", "dev-1:alice:Panel, dev-2:bob:Lab ,")
	t.Setenv("FORECAST_SCHEDULE", "@every 15m")
	t.Setenv("FORECAST_DEVICES", "dev-1,dev-2")
	t.Setenv("FORECAST_RATE_LIMIT", "0.5")

	cfg, err := LoadApiConfig()
	require.NoError(t, err)

	assert.Equal(t, []string{"dev-1:alice:Panel", "dev-2:bob:Lab"}, cfg.Registry.StaticDevices)
	assert.Equal(t, []string{"dev-1", "dev-2"}, cfg.Forecast.ScheduledDevices)
	assert.Equal(t, 0.5, cfg.Forecast.RateLimit)
}

func TestLoadApiConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{
			name: "postgres registry without credentials",
			env:  map[string]string{"REGISTRY_BACKEND": "postgres", "STORE_BACKEND": "memory"},
		},
		{
			name: "unknown store backend",
			env:  map[string]string{"REGISTRY_BACKEND": "static", "STORE_BACKEND": "cassandra"},
		},
		{
			name: "schedule without devices",
			env:  map[string]string{"REGISTRY_BACKEND": "static", "STORE_BACKEND": "memory", "FORECAST_SCHEDULE": "@hourly"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := LoadApiConfig()
			assert.Error(t, err)
			assert.Nil(t, cfg)
		})
	}
}

func TestLoadIngestorConfig(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("BROKER_HOST", "broker.local")
	t.Setenv("BROKER_TLS", "true")

	cfg, err := LoadIngestorConfig()
	require.NoError(t, err)

	assert.Equal(t, "mqtt", cfg.Transport)
	assert.Equal(t, "iot/lab/pzem004t", cfg.MQTT.Topic)
	assert.Equal(t, "tcps://broker.local:1883", cfg.GetMQTTBrokerURL())
}

func TestLoadIngestorConfigKafka(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("TRANSPORT", "KAFKA")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := LoadIngestorConfig()
	require.NoError(t, err)

	assert.Equal(t, "kafka", cfg.Transport)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestLoadIngestorConfigRejectsUnknownTransport(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("TRANSPORT", "amqp")

	_, err := LoadIngestorConfig()
	assert.Error(t, err)
}
