package ingestor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	config "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Config"
	logger "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Logger"
)

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// KafkaSource consumes the telemetry topic as part of a consumer group.
// Offsets are committed on read, matching the at-most-once MQTT path.
type KafkaSource struct {
	cfg       config.KafkaConfig
	logger    *logger.Logger
	newReader func(config.KafkaConfig) messageReader

	minBackoff time.Duration
	maxBackoff time.Duration

	state  atomic.Int32
	cancel context.CancelFunc
	wg     sync.WaitGroup
	reader messageReader
}

func NewKafkaSource(cfg config.KafkaConfig, log *logger.Logger) *KafkaSource {
	return &KafkaSource{
		cfg:        cfg,
		logger:     log.WithComponent("kafka"),
		newReader:  newKafkaReader,
		minBackoff: 500 * time.Millisecond,
		maxBackoff: 30 * time.Second,
	}
}

func newKafkaReader(cfg config.KafkaConfig) messageReader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  time.Second,
	})
}

func (s *KafkaSource) Name() string { return "kafka" }

func (s *KafkaSource) State() ConnState { return ConnState(s.state.Load()) }

func (s *KafkaSource) setState(st ConnState) {
	if ConnState(s.state.Swap(int32(st))) != st {
		s.logger.Logger.Info().Str("state", st.String()).Msg("kafka state changed")
	}
}

func (s *KafkaSource) Start(ctx context.Context, out chan<- Message) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.reader = s.newReader(s.cfg)
	// reads block on a quiet topic; only read errors mark the source connecting
	s.setState(StateSubscribed)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.consume(ctx, out)
	}()
	return nil
}

func (s *KafkaSource) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	if s.reader != nil {
		if err := s.reader.Close(); err != nil {
			s.logger.ErrorWithError(err, "failed to close kafka reader")
		}
	}
	s.setState(StateDisconnected)
}

func (s *KafkaSource) consume(ctx context.Context, out chan<- Message) {
	backoff := s.minBackoff
	for {
		m, err := s.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Logger.Warn().Err(err).Dur("retry_in", backoff).Msg("kafka read failed")
			s.setState(StateConnecting)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}
			backoff *= 2
			if backoff > s.maxBackoff {
				backoff = s.maxBackoff
			}
			continue
		}

		backoff = s.minBackoff
		s.setState(StateSubscribed)
		select {
		case out <- Message{Topic: m.Topic, Payload: m.Value}:
		case <-ctx.Done():
			return
		}
	}
}
