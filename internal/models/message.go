package models

import (
	"encoding/json"
	"time"
)

// MessageType represents the type of a device stream message
type MessageType string

const (
	MessageTypeReading   MessageType = "reading"
	MessageTypeBatch     MessageType = "batch"
	MessageTypeHeartbeat MessageType = "heartbeat"
	MessageTypeAck       MessageType = "ack"
	MessageTypeError     MessageType = "error"
	MessageTypeConfig    MessageType = "config"
)

// Message is the envelope for everything sent over the sensor stream
type Message struct {
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage wraps payload in an envelope of the given type
func NewMessage(msgType MessageType, payload interface{}) (*Message, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{
		Type:      msgType,
		Payload:   payloadJSON,
		Timestamp: time.Now(),
	}, nil
}

// ReadingMessage is the payload for MessageTypeReading. The MQTT ingest
// path uses the same shape.
type ReadingMessage struct {
	SensorID    string    `json:"sensor_id"`
	Temperature float64   `json:"temperature"`
	Humidity    int       `json:"humidity"`
	Brightness  int       `json:"brightness"`
	CollectedAt time.Time `json:"collected_at"`
}

// Reading converts the payload into a Reading
func (m ReadingMessage) Reading() *Reading {
	return &Reading{
		SensorID:    m.SensorID,
		Temperature: m.Temperature,
		Humidity:    m.Humidity,
		Brightness:  m.Brightness,
		CollectedAt: m.CollectedAt.UTC(),
	}
}

// BatchMessage is the payload for MessageTypeBatch
type BatchMessage struct {
	Readings []Reading `json:"readings"`
	Count    int       `json:"count"`
}

// HeartbeatMessage is the payload for MessageTypeHeartbeat
type HeartbeatMessage struct {
	SensorID   string `json:"sensor_id"`
	Uptime     int64  `json:"uptime"`
	BufferSize int    `json:"buffer_size"`
}

// AckMessage is the payload for MessageTypeAck. Dropped readings were
// valid but could not be queued for storage.
type AckMessage struct {
	Status   string `json:"status"`
	Accepted int    `json:"accepted"`
	Rejected int    `json:"rejected"`
	Dropped  int    `json:"dropped,omitempty"`
}

// ErrorMessage is the payload for MessageTypeError
type ErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ConfigMessage is the payload for MessageTypeConfig
type ConfigMessage struct {
	ReadInterval int    `json:"read_interval"`
	BufferSize   int    `json:"buffer_size"`
	SensorID     string `json:"sensor_id"`
}

// UnmarshalPayload decodes the message payload into v
func (m *Message) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(m.Payload, v)
}
