package ingestor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	logger "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Logger"
	metrics "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Metrics"
	wtrmodels "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Models"
	implementation "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Repository/Implementation"
)

type stubSource struct {
	msgs    []Message
	stopped chan struct{}
}

func (s *stubSource) Name() string     { return "stub" }
func (s *stubSource) State() ConnState { return StateSubscribed }
func (s *stubSource) Stop()            { close(s.stopped) }

func (s *stubSource) Start(ctx context.Context, out chan<- Message) error {
	go func() {
		for _, m := range s.msgs {
			select {
			case out <- m:
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

type failingStore struct {
	*implementation.MemoryTelemetryRepository
}

func (failingStore) Insert(context.Context, wtrmodels.TelemetryPoint) error {
	return errors.New("store unavailable")
}

func newTestGateway(store *implementation.MemoryTelemetryRepository) (*Gateway, *metrics.Metrics) {
	m := metrics.NewNop()
	g := NewGateway(&stubSource{stopped: make(chan struct{})}, store, logger.NewNop(), m, 16)
	g.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 123456789, time.UTC) }
	return g, m
}

func TestHandleStoresWithGatewayTimestamp(t *testing.T) {
	store := implementation.NewMemoryTelemetryRepository()
	g, m := newTestGateway(store)

	out := g.Handle(context.Background(), Message{
		Topic:   "iot/lab/pzem004t",
		Payload: []byte(`{"device_id":"dev-1","timestamp":"2001-01-01T00:00:00Z","voltage":229.8,"pf":0.95,"rssi":-60}`),
	})
	require.Equal(t, OutcomeStored, out)

	p, err := store.Latest(context.Background(), "dev-1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, time.Date(2025, 6, 1, 12, 0, 0, 123000000, time.UTC), p.Timestamp)
	assert.Equal(t, 229.8, *p.Voltage)
	assert.Equal(t, -60.0, p.Extra["rssi"])
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IngestMessages.WithLabelValues("stored")))
}

func TestHandleMissingDeviceIDStoresNothing(t *testing.T) {
	store := implementation.NewMemoryTelemetryRepository()
	g, m := newTestGateway(store)

	out := g.Handle(context.Background(), Message{Payload: []byte(`{"voltage":220}`)})

	assert.Equal(t, OutcomeMissingDeviceID, out)
	assert.Equal(t, 0, store.Count())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IngestMessages.WithLabelValues("missing_device_id")))
}

func TestHandleStoresNumericDeviceID(t *testing.T) {
	store := implementation.NewMemoryTelemetryRepository()
	g, m := newTestGateway(store)

	out := g.Handle(context.Background(), Message{Payload: []byte(`{"device_id":17,"power":120}`)})

	assert.Equal(t, OutcomeStored, out)
	latest, err := store.Latest(context.Background(), "17")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 120.0, *latest.Power)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IngestMessages.WithLabelValues("stored")))
}

func TestHandleRejectsNonObjects(t *testing.T) {
	store := implementation.NewMemoryTelemetryRepository()
	g, _ := newTestGateway(store)

	for _, payload := range []string{`not json`, `null`, `[1,2]`, `"dev-1"`, ``} {
		assert.Equal(t, OutcomeInvalidPayload, g.Handle(context.Background(), Message{Payload: []byte(payload)}), payload)
	}
	assert.Equal(t, 0, store.Count())
}

func TestHandleStoreErrorIsNotFatal(t *testing.T) {
	g, m := newTestGateway(nil)
	g.store = failingStore{}

	out := g.Handle(context.Background(), Message{Payload: []byte(`{"device_id":"dev-1"}`)})

	assert.Equal(t, OutcomeStoreError, out)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IngestMessages.WithLabelValues("store_error")))
}

func TestRunDrainsSequentiallyAndSurvivesBadMessages(t *testing.T) {
	store := implementation.NewMemoryTelemetryRepository()
	src := &stubSource{
		stopped: make(chan struct{}),
		msgs: []Message{
			{Payload: []byte(`{"device_id":"dev-1","power":1}`)},
			{Payload: []byte(`{broken`)},
			{Payload: []byte(`{"power":5}`)},
			{Payload: []byte(`{"device_id":"dev-1","power":2}`)},
			{Payload: []byte(`{"device_id":"dev-1","power":3}`)},
		},
	}
	g := NewGateway(src, store, logger.NewNop(), metrics.NewNop(), 16)
	tick := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	g.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.Run(ctx) }()

	require.Eventually(t, func() bool { return store.Count() == 3 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	select {
	case <-src.stopped:
	default:
		t.Fatal("source was not stopped")
	}

	points, err := store.Range(context.Background(), "dev-1", time.Time{}, nil)
	require.NoError(t, err)
	require.Len(t, points, 3)
	for i, p := range points {
		assert.Equal(t, float64(i+1), *p.Power, "arrival order is kept")
	}
}

func TestConnStateString(t *testing.T) {
	assert.Equal(t, "disconnected", StateDisconnected.String())
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "subscribed", StateSubscribed.String())
}
