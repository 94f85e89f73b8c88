package receiver

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/rulboard/rulboard/server/internal/config"
)

const (
	mqttQoS            = 1
	mqttConnectTimeout = 10 * time.Second
	mqttDisconnectMs   = 250
)

// Subscriber feeds batches published on <prefix>/{id}/predictions into a
// Receiver.
type Subscriber struct {
	recv   *Receiver
	cfg    config.MQTTConfig
	client mqtt.Client
}

// NewSubscriber creates a Subscriber for the given broker settings.
// Call Run to connect.
func NewSubscriber(recv *Receiver, cfg config.MQTTConfig) *Subscriber {
	return &Subscriber{recv: recv, cfg: cfg}
}

// Run connects to the broker, subscribes, and blocks until ctx is cancelled.
// The subscription is re-established by the connect handler after every
// automatic reconnect.
func (s *Subscriber) Run(ctx context.Context) error {
	topic := s.cfg.Topic()

	opts := mqtt.NewClientOptions()
	opts.AddBroker(s.cfg.Broker)
	opts.SetClientID(s.cfg.ClientID)
	opts.SetUsername(s.cfg.Username)
	opts.SetPassword(s.cfg.Password())
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		tok := c.Subscribe(topic, mqttQoS, s.onMessage)
		if tok.Wait() && tok.Error() != nil {
			slog.Error("receiver: mqtt subscribe failed", "topic", topic, "err", tok.Error())
			return
		}
		slog.Info("receiver: mqtt subscribed", "broker", s.cfg.Broker, "topic", topic)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		slog.Warn("receiver: mqtt connection lost", "err", err)
	})

	s.client = mqtt.NewClient(opts)
	tok := s.client.Connect()
	if !tok.WaitTimeout(mqttConnectTimeout) {
		return fmt.Errorf("mqtt connect %s: timed out", s.cfg.Broker)
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("mqtt connect %s: %w", s.cfg.Broker, err)
	}

	<-ctx.Done()
	s.client.Disconnect(mqttDisconnectMs)
	slog.Info("receiver: mqtt disconnected")
	return nil
}

func (s *Subscriber) onMessage(_ mqtt.Client, msg mqtt.Message) {
	if _, err := s.HandleMessage(msg.Topic(), msg.Payload()); err != nil {
		slog.Warn("receiver: mqtt message dropped", "topic", msg.Topic(), "err", err)
	}
}

// HandleMessage ingests one MQTT payload published on topic.
func (s *Subscriber) HandleMessage(topic string, payload []byte) (Result, error) {
	id, ok := sourceFromTopic(s.cfg.TopicPrefix, topic)
	if !ok {
		return Result{}, fmt.Errorf("unexpected topic %q", topic)
	}
	return s.recv.Ingest(TransportMQTT, id, bytes.NewReader(payload))
}

// sourceFromTopic extracts {id} from <prefix>/{id}/predictions.
func sourceFromTopic(prefix, topic string) (string, bool) {
	return between(topic, strings.TrimSuffix(prefix, "/")+"/", ingestSuffix)
}
