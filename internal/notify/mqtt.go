package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/timmy/immiframe/internal/config"
	"github.com/timmy/immiframe/internal/logger"
)

// MQTTSink publishes a JSON notification to a topic, retained by default so
// late subscribers see the current theme.
type MQTTSink struct {
	mu        sync.Mutex
	opts      *mqtt.ClientOptions
	client    mqtt.Client
	newClient func(o *mqtt.ClientOptions) mqtt.Client
	topic     string
	qos       byte
	retain    bool
	timeout   time.Duration
}

// NewMQTTSink creates the sink. The broker connection is opened on first use.
func NewMQTTSink(cfg config.MQTTConfig) *MQTTSink {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(cfg.Timeout)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("MQTT connection lost: %v", err)
	})

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &MQTTSink{
		opts:      opts,
		newClient: mqtt.NewClient,
		topic:     cfg.Topic,
		qos:       cfg.QoS,
		retain:    cfg.Retain,
		timeout:   timeout,
	}
}

func (s *MQTTSink) Name() string { return "mqtt" }

func (s *MQTTSink) Notify(ctx context.Context, n *Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to encode mqtt payload: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.connect(ctx); err != nil {
		return err
	}

	token := s.client.Publish(s.topic, s.qos, s.retain, payload)
	if !token.WaitTimeout(s.timeout) {
		return fmt.Errorf("publish to %s timed out", s.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", s.topic, err)
	}
	return nil
}

func (s *MQTTSink) connect(ctx context.Context) error {
	if s.client != nil && s.client.IsConnected() {
		return nil
	}
	if s.client == nil {
		s.client = s.newClient(s.opts)
	}

	token := s.client.Connect()
	wait := s.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d < wait {
			wait = d
		}
	}
	if !token.WaitTimeout(wait) {
		return fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection error: %w", err)
	}
	return nil
}

// Close disconnects from the broker.
func (s *MQTTSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil && s.client.IsConnected() {
		s.client.Disconnect(250)
	}
}
