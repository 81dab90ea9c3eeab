package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	container "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Container"
)

func TestHealthMux(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("TRANSPORT", "mqtt")
	t.Setenv("LOG_LEVEL", "error")

	ctr, err := container.NewIngestorContainer()
	require.NoError(t, err)
	defer ctr.Shutdown(context.Background())

	h := healthMux(ctr)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "disconnected", body["transport"])
	assert.Equal(t, "degraded", body["status"])

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "wattara_ingest_connection_state 0")
}

func TestWaitForGateway(t *testing.T) {
	done := make(chan error, 1)
	assert.False(t, waitForGateway(done, 10*time.Millisecond), "still running")

	go func() {
		time.Sleep(5 * time.Millisecond)
		done <- nil
	}()
	assert.True(t, waitForGateway(done, time.Second))
}
