package server

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/afroash/flaura/internal/ingest"
	"github.com/afroash/flaura/internal/models"
)

// TransportWebsocket labels readings that arrived on the sensor stream
const TransportWebsocket = "websocket"

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
)

// ConnTracker is told when sensor connections open and close
type ConnTracker interface {
	SensorConnected(delta int)
}

// StreamHandler accepts websocket connections from sensor devices
type StreamHandler struct {
	upgrader       websocket.Upgrader
	deviceToken    string
	sink           ingest.Sink
	tracker        ConnTracker
	logger         zerolog.Logger
	allowedOrigins []string

	mu     sync.RWMutex
	active map[string]*SensorConnection
}

// SensorConnection is an open device stream
type SensorConnection struct {
	SensorID    string    `json:"sensor_id"`
	RemoteAddr  string    `json:"remote_addr"`
	ConnectedAt time.Time `json:"connected_at"`
	LastSeen    time.Time `json:"last_seen"`
	Uptime      int64     `json:"uptime"`
	BufferSize  int       `json:"buffer_size"`
}

// NewStreamHandler creates the handler. tracker may be nil.
func NewStreamHandler(deviceToken string, sink ingest.Sink, tracker ConnTracker, logger zerolog.Logger, allowedOrigins ...string) *StreamHandler {
	h := &StreamHandler{
		deviceToken:    deviceToken,
		sink:           sink,
		tracker:        tracker,
		logger:         logger.With().Str("component", "sensor_stream").Logger(),
		allowedOrigins: allowedOrigins,
		active:         make(map[string]*SensorConnection),
	}

	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}

	return h
}

// checkOrigin allows requests without an Origin header and those on the allowlist
func (h *StreamHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.allowedOrigins {
		if origin == allowed {
			return true
		}
	}

	h.logger.Warn().Str("origin", origin).Msg("Rejected sensor connection: origin not allowed")
	return false
}

// ServeHTTP authenticates the device and upgrades the connection
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.validToken(r.Header.Get("Authorization")) {
		writeError(w, h.logger, errUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}

	h.handleConnection(conn)
}

func (h *StreamHandler) validToken(header string) bool {
	const prefix = "Bearer "
	if h.deviceToken == "" || !strings.HasPrefix(header, prefix) {
		return false
	}
	token := strings.TrimPrefix(header, prefix)
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.deviceToken)) == 1
}

func (h *StreamHandler) handleConnection(conn *websocket.Conn) {
	key := conn.RemoteAddr().String()
	now := time.Now()

	h.mu.Lock()
	h.active[key] = &SensorConnection{SensorID: key, RemoteAddr: key, ConnectedAt: now, LastSeen: now}
	h.mu.Unlock()
	if h.tracker != nil {
		h.tracker.SensorConnected(1)
	}

	defer conn.Close()
	defer h.remove(key)

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg models.Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn().Err(err).Str("remote", key).Msg("Sensor stream error")
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))
		h.touch(key)

		reply := h.handleMessage(key, &msg)
		if reply == nil {
			continue
		}
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(reply); err != nil {
			h.logger.Warn().Err(err).Str("remote", key).Msg("Failed to reply")
			return
		}
	}
}

// handleMessage processes one envelope and returns the reply to send
func (h *StreamHandler) handleMessage(key string, msg *models.Message) *models.Message {
	h.logger.Debug().Str("type", string(msg.Type)).Str("remote", key).Msg("Received message")

	switch msg.Type {
	case models.MessageTypeReading:
		var payload models.ReadingMessage
		if err := msg.UnmarshalPayload(&payload); err != nil {
			h.sink.Reject(TransportWebsocket)
			return h.errorReply("bad_payload", "reading payload could not be decoded")
		}
		return h.ack(h.accept([]*models.Reading{payload.Reading()}))

	case models.MessageTypeBatch:
		var batch models.BatchMessage
		if err := msg.UnmarshalPayload(&batch); err != nil {
			h.sink.Reject(TransportWebsocket)
			return h.errorReply("bad_payload", "batch payload could not be decoded")
		}
		readings := make([]*models.Reading, len(batch.Readings))
		for i := range batch.Readings {
			r := batch.Readings[i]
			r.CollectedAt = r.CollectedAt.UTC()
			readings[i] = &r
		}
		accepted, rejected, dropped := h.accept(readings)
		h.logger.Info().Int("accepted", accepted).Int("rejected", rejected).Int("dropped", dropped).Msg("Batch received")
		return h.ack(accepted, rejected, dropped)

	case models.MessageTypeHeartbeat:
		var hb models.HeartbeatMessage
		if err := msg.UnmarshalPayload(&hb); err != nil {
			return h.errorReply("bad_payload", "heartbeat payload could not be decoded")
		}
		h.recordHeartbeat(key, hb)
		return h.ack(0, 0, 0)

	default:
		h.logger.Warn().Str("type", string(msg.Type)).Msg("Unknown message type")
		return h.errorReply("unknown_type", "unsupported message type "+string(msg.Type))
	}
}

// accept hands readings to the sink. A reading the write queue could not
// take counts as dropped, not accepted.
func (h *StreamHandler) accept(readings []*models.Reading) (accepted, rejected, dropped int) {
	for _, r := range readings {
		err := h.sink.Accept(r, TransportWebsocket)
		switch {
		case err == nil:
			accepted++
		case errors.Is(err, ingest.ErrQueueFull):
			dropped++
		default:
			rejected++
		}
	}
	return accepted, rejected, dropped
}

func (h *StreamHandler) ack(accepted, rejected, dropped int) *models.Message {
	msg, err := models.NewMessage(models.MessageTypeAck, models.AckMessage{
		Status:   "ok",
		Accepted: accepted,
		Rejected: rejected,
		Dropped:  dropped,
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to create ack message")
		return nil
	}
	return msg
}

func (h *StreamHandler) errorReply(code, text string) *models.Message {
	msg, err := models.NewMessage(models.MessageTypeError, models.ErrorMessage{Code: code, Message: text})
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to create error message")
		return nil
	}
	return msg
}

func (h *StreamHandler) recordHeartbeat(key string, hb models.HeartbeatMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c, ok := h.active[key]; ok {
		if hb.SensorID != "" {
			c.SensorID = hb.SensorID
		}
		c.Uptime = hb.Uptime
		c.BufferSize = hb.BufferSize
	}
	h.logger.Debug().Str("sensor_id", hb.SensorID).Int64("uptime", hb.Uptime).Msg("Heartbeat received")
}

func (h *StreamHandler) touch(key string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.active[key]; ok {
		c.LastSeen = time.Now()
	}
}

func (h *StreamHandler) remove(key string) {
	h.mu.Lock()
	c := h.active[key]
	delete(h.active, key)
	h.mu.Unlock()

	if h.tracker != nil {
		h.tracker.SensorConnected(-1)
	}
	if c != nil {
		h.logger.Info().Str("sensor_id", c.SensorID).Msg("Sensor disconnected")
	}
}

// ActiveSensors returns the open sensor connections
func (h *StreamHandler) ActiveSensors() []SensorConnection {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sensors := make([]SensorConnection, 0, len(h.active))
	for _, c := range h.active {
		sensors = append(sensors, *c)
	}
	return sensors
}
