package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/afroash/flaura/internal/models"
)

// TransportMQTT labels readings that arrived through the broker
const TransportMQTT = "mqtt"

// SubscriberConfig configures the broker subscription
type SubscriberConfig struct {
	Broker         string
	ClientID       string
	Topic          string
	QoS            byte
	Username       string
	Password       string
	ConnectTimeout time.Duration
}

// Subscriber receives readings published by devices to an MQTT topic
type Subscriber struct {
	cfg    SubscriberConfig
	sink   Sink
	logger zerolog.Logger
	client mqtt.Client
	now    func() time.Time
}

// mqttReading is the published payload. collected_at may be any common
// timestamp format and defaults to the arrival time.
type mqttReading struct {
	SensorID    string   `json:"sensor_id"`
	Temperature *float64 `json:"temperature"`
	Humidity    *int     `json:"humidity"`
	Brightness  *int     `json:"brightness"`
	CollectedAt string   `json:"collected_at"`
}

// NewSubscriber creates a subscriber; call Start to connect
func NewSubscriber(cfg SubscriberConfig, sink Sink, logger zerolog.Logger) *Subscriber {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "flaura-server"
	}
	return &Subscriber{
		cfg:    cfg,
		sink:   sink,
		logger: logger.With().Str("component", "mqtt").Logger(),
		now:    time.Now,
	}
}

// Start connects to the broker and subscribes. The subscription is renewed
// on every reconnect.
func (s *Subscriber) Start(ctx context.Context) error {
	opts := mqtt.NewClientOptions().
		AddBroker(s.cfg.Broker).
		SetClientID(s.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(s.cfg.ConnectTimeout).
		SetOnConnectHandler(s.onConnect).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			s.logger.Warn().Err(err).Msg("Broker connection lost")
		})
	if s.cfg.Username != "" {
		opts.SetUsername(s.cfg.Username).SetPassword(s.cfg.Password)
	}

	s.client = mqtt.NewClient(opts)
	token := s.client.Connect()

	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to connect to broker: %w", err)
	}

	s.logger.Info().Str("broker", s.cfg.Broker).Str("topic", s.cfg.Topic).Msg("MQTT subscriber started")
	return nil
}

func (s *Subscriber) onConnect(client mqtt.Client) {
	token := client.Subscribe(s.cfg.Topic, s.cfg.QoS, func(_ mqtt.Client, msg mqtt.Message) {
		if err := s.HandleMessage(msg.Topic(), msg.Payload()); err != nil {
			s.logger.Warn().Err(err).Str("topic", msg.Topic()).Msg("Dropped MQTT message")
		}
	})
	if token.WaitTimeout(s.cfg.ConnectTimeout) && token.Error() != nil {
		s.logger.Error().Err(token.Error()).Str("topic", s.cfg.Topic).Msg("Failed to subscribe")
	}
}

// HandleMessage decodes one published reading and passes it to the sink.
// When the payload has no sensor_id the last topic segment is used.
func (s *Subscriber) HandleMessage(topic string, payload []byte) error {
	var msg mqttReading
	if err := json.Unmarshal(payload, &msg); err != nil {
		s.sink.Reject(TransportMQTT)
		return fmt.Errorf("failed to decode payload: %w", err)
	}
	if msg.Temperature == nil || msg.Humidity == nil || msg.Brightness == nil {
		s.sink.Reject(TransportMQTT)
		return errors.New("payload is missing a measurement")
	}

	sensorID := msg.SensorID
	if sensorID == "" {
		sensorID = topic[strings.LastIndex(topic, "/")+1:]
	}

	collectedAt := s.now().UTC()
	if msg.CollectedAt != "" {
		t, err := dateparse.ParseIn(msg.CollectedAt, time.UTC)
		if err != nil {
			s.sink.Reject(TransportMQTT)
			return fmt.Errorf("failed to parse collected_at: %w", err)
		}
		collectedAt = t.UTC()
	}

	reading := &models.Reading{
		SensorID:    sensorID,
		Temperature: *msg.Temperature,
		Humidity:    *msg.Humidity,
		Brightness:  *msg.Brightness,
		CollectedAt: collectedAt,
	}
	return s.sink.Accept(reading, TransportMQTT)
}

// Stop disconnects from the broker
func (s *Subscriber) Stop() {
	if s.client == nil || !s.client.IsConnected() {
		return
	}
	s.client.Disconnect(250)
	s.logger.Info().Msg("MQTT subscriber stopped")
}
