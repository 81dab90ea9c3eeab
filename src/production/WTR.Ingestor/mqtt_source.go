package ingestor

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	config "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Config"
	logger "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Logger"
)

// MQTTSource subscribes to one fixed topic. The subscription is renewed from
// OnConnect, so it survives every automatic reconnect.
type MQTTSource struct {
	cfg       config.MQTTConfig
	brokerURL string
	logger    *logger.Logger
	newClient func(*mqtt.ClientOptions) mqtt.Client

	state  atomic.Int32
	mu     sync.Mutex
	client mqtt.Client
	ctx    context.Context
	out    chan<- Message
}

func NewMQTTSource(cfg config.MQTTConfig, brokerURL string, log *logger.Logger) *MQTTSource {
	return &MQTTSource{
		cfg:       cfg,
		brokerURL: brokerURL,
		logger:    log.WithComponent("mqtt"),
		newClient: mqtt.NewClient,
	}
}

func (s *MQTTSource) Name() string { return "mqtt" }

func (s *MQTTSource) State() ConnState { return ConnState(s.state.Load()) }

func (s *MQTTSource) setState(st ConnState) {
	if ConnState(s.state.Swap(int32(st))) != st {
		s.logger.Logger.Info().Str("state", st.String()).Msg("mqtt state changed")
	}
}

func (s *MQTTSource) Start(ctx context.Context, out chan<- Message) error {
	opts, err := s.clientOptions()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.ctx = ctx
	s.out = out
	s.client = s.newClient(opts)
	client := s.client
	s.mu.Unlock()

	s.setState(StateConnecting)
	token := client.Connect()
	// with ConnectRetry the token only completes once connected, or on a
	// configuration error
	go func() {
		<-token.Done()
		if err := token.Error(); err != nil {
			s.logger.ErrorWithError(err, "mqtt connect failed")
			s.setState(StateDisconnected)
		}
	}()
	return nil
}

func (s *MQTTSource) Stop() {
	s.mu.Lock()
	client := s.client
	s.mu.Unlock()
	if client != nil && client.IsConnectionOpen() {
		client.Disconnect(500)
	}
	s.setState(StateDisconnected)
}

func (s *MQTTSource) clientOptions() (*mqtt.ClientOptions, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(s.brokerURL).
		SetClientID(s.cfg.ClientID).
		SetOrderMatters(true).
		SetKeepAlive(s.cfg.KeepAlive).
		SetPingTimeout(s.cfg.PingTimeout).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetCleanSession(true)

	if s.cfg.BrokerUser != "" {
		opts.SetUsername(s.cfg.BrokerUser)
		opts.SetPassword(s.cfg.BrokerPass)
	}

	if s.cfg.UseTLS {
		tlsCfg, err := tlsConfig(s.cfg.CACertPath)
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}

	opts.SetOnConnectHandler(s.onConnect)
	opts.SetConnectionLostHandler(s.onConnectionLost)
	opts.SetReconnectingHandler(func(mqtt.Client, *mqtt.ClientOptions) {
		s.setState(StateConnecting)
	})
	return opts, nil
}

func (s *MQTTSource) topic() string {
	if s.cfg.SharedGroup != "" {
		return fmt.Sprintf("$share/%s/%s", s.cfg.SharedGroup, s.cfg.Topic)
	}
	return s.cfg.Topic
}

func (s *MQTTSource) onConnect(c mqtt.Client) {
	topic := s.topic()
	s.logger.Info("mqtt connected, subscribing to " + topic)

	token := c.Subscribe(topic, byte(s.cfg.QoS), s.onMessage)
	if token.Wait() && token.Error() != nil {
		s.logger.ErrorWithError(token.Error(), "mqtt subscribe failed")
		s.setState(StateConnecting)
		return
	}
	s.setState(StateSubscribed)
}

func (s *MQTTSource) onConnectionLost(_ mqtt.Client, err error) {
	s.logger.Logger.Warn().Err(err).Msg("mqtt connection lost")
	s.setState(StateConnecting)
}

// onMessage runs on paho's router goroutine; with OrderMatters set it is
// called for one message at a time in arrival order.
func (s *MQTTSource) onMessage(_ mqtt.Client, m mqtt.Message) {
	s.mu.Lock()
	ctx, out := s.ctx, s.out
	s.mu.Unlock()

	payload := make([]byte, len(m.Payload()))
	copy(payload, m.Payload())

	select {
	case out <- Message{Topic: m.Topic(), Payload: payload}:
	case <-ctx.Done():
	}
}

func tlsConfig(caFile string) (*tls.Config, error) {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if caFile == "" {
		return cfg, nil
	}
	ca, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA file: %w", err)
	}
	cp := x509.NewCertPool()
	if !cp.AppendCertsFromPEM(ca) {
		return nil, fmt.Errorf("bad CA file %s", caFile)
	}
	cfg.RootCAs = cp
	return cfg, nil
}
