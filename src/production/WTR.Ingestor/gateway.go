// Package ingestor is the only write path into the telemetry store. A Source
// (MQTT or Kafka) feeds raw messages into one queue that a single loop drains
// in arrival order.
//
// Delivery is at-most-once: there is no acknowledgement back to publishers,
// so a message that fails to parse or store is logged, counted and lost.
package ingestor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	logger "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Logger"
	metrics "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Metrics"
	wtrmodels "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Models"
	interfaces "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Repository/Interfaces"
)

// Message is one raw payload as received from the transport.
type Message struct {
	Topic   string
	Payload []byte
}

// ConnState is the transport connection state.
type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateSubscribed
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	default:
		return "disconnected"
	}
}

// Source delivers raw messages into out until Stop is called or ctx ends.
type Source interface {
	Name() string
	Start(ctx context.Context, out chan<- Message) error
	Stop()
	State() ConnState
}

// Outcome classifies what happened to one message.
type Outcome string

const (
	OutcomeStored          Outcome = "stored"
	OutcomeInvalidPayload  Outcome = "invalid_payload"
	OutcomeMissingDeviceID Outcome = "missing_device_id"
	OutcomeStoreError      Outcome = "store_error"
)

type Gateway struct {
	source        Source
	store         interfaces.TelemetryRepository
	logger        *logger.Logger
	metrics       *metrics.Metrics
	queue         chan Message
	insertTimeout time.Duration
	now           func() time.Time
}

func NewGateway(source Source, store interfaces.TelemetryRepository, log *logger.Logger, m *metrics.Metrics, queueSize int) *Gateway {
	return &Gateway{
		source:        source,
		store:         store,
		logger:        log.WithComponent("ingestor"),
		metrics:       m,
		queue:         make(chan Message, queueSize),
		insertTimeout: 5 * time.Second,
		now:           time.Now,
	}
}

// Run starts the source and handles messages one at a time until ctx is
// cancelled. A bad or unstorable message never ends the loop.
func (g *Gateway) Run(ctx context.Context) error {
	if err := g.source.Start(ctx, g.queue); err != nil {
		return fmt.Errorf("failed to start %s source: %w", g.source.Name(), err)
	}
	defer g.source.Stop()

	g.logger.Info("ingestion loop running on " + g.source.Name())
	for {
		select {
		case <-ctx.Done():
			g.logger.Info("ingestion loop stopped")
			return nil
		case msg := <-g.queue:
			g.Handle(ctx, msg)
		}
	}
}

// State reports the source connection state.
func (g *Gateway) State() ConnState {
	return g.source.State()
}

// Handle validates, stamps and stores one message.
func (g *Gateway) Handle(ctx context.Context, msg Message) Outcome {
	outcome := g.handle(ctx, msg)
	g.metrics.IngestMessages.WithLabelValues(string(outcome)).Inc()
	return outcome
}

func (g *Gateway) handle(ctx context.Context, msg Message) Outcome {
	var payload map[string]interface{}
	if err := json.Unmarshal(msg.Payload, &payload); err != nil || payload == nil {
		event := g.logger.Logger.Warn().Str("topic", msg.Topic).Int("bytes", len(msg.Payload))
		if err != nil {
			event = event.Err(err)
		}
		event.Msg("discarding payload that is not a JSON object")
		return OutcomeInvalidPayload
	}

	// the device clock is never trusted
	point := wtrmodels.PointFromPayload(payload, g.now().UTC().Truncate(time.Millisecond))
	if point.DeviceID == "" {
		g.logger.Logger.Warn().Str("topic", msg.Topic).Msg("discarding telemetry without device_id")
		return OutcomeMissingDeviceID
	}

	insertCtx, cancel := context.WithTimeout(ctx, g.insertTimeout)
	defer cancel()
	if err := g.store.Insert(insertCtx, point); err != nil {
		g.logger.Logger.Error().Err(err).Str("device_id", point.DeviceID).Msg("failed to store telemetry point")
		return OutcomeStoreError
	}

	g.logger.Logger.Debug().Str("device_id", point.DeviceID).Time("timestamp", point.Timestamp).Msg("stored telemetry point")
	return OutcomeStored
}
