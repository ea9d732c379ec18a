package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/afroash/flaura/internal/models"
)

// ErrNotConnected is returned by sends while the stream is down
var ErrNotConnected = errors.New("not connected")

// ConnectionState represents the current state of the connection
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
)

func (cs ConnectionState) String() string {
	switch cs {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// ConnectionConfig holds configuration for the sensor stream
type ConnectionConfig struct {
	URL                  string
	DeviceToken          string
	ReconnectInterval    time.Duration
	MaxReconnectInterval time.Duration
	PingInterval         time.Duration
	PongTimeout          time.Duration
	HandshakeTimeout     time.Duration
}

// ConnectionStats counts traffic on the stream
type ConnectionStats struct {
	State       string    `json:"state"`
	Connects    int64     `json:"connects"`
	BatchesSent int64     `json:"batches_sent"`
	Accepted    int64     `json:"accepted"`
	Rejected    int64     `json:"rejected"`
	Dropped     int64     `json:"dropped"`
	LastAck     time.Time `json:"last_ack"`
}

// Connection keeps a websocket open to the server's /sensor-stream,
// reconnecting with exponential backoff
type Connection struct {
	cfg     ConnectionConfig
	info    *models.SensorInfo
	logger  zerolog.Logger
	pending func() int

	mu    sync.RWMutex
	conn  *websocket.Conn
	state ConnectionState

	writeMu sync.Mutex
	backoff time.Duration

	lastAck  atomic.Int64
	connects atomic.Int64
	batches  atomic.Int64
	accepted atomic.Int64
	rejected atomic.Int64
	dropped  atomic.Int64
}

// NewConnection creates a connection manager. pending reports how many
// readings are waiting on the device and may be nil.
func NewConnection(cfg ConnectionConfig, info *models.SensorInfo, pending func() int, logger zerolog.Logger) *Connection {
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = time.Second
	}
	if cfg.MaxReconnectInterval < cfg.ReconnectInterval {
		cfg.MaxReconnectInterval = cfg.ReconnectInterval
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if pending == nil {
		pending = func() int { return 0 }
	}
	return &Connection{
		cfg:     cfg,
		info:    info,
		pending: pending,
		logger:  logger.With().Str("component", "connection").Logger(),
		backoff: cfg.ReconnectInterval,
	}
}

func (c *Connection) setState(state ConnectionState) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
	c.logger.Debug().Str("state", state.String()).Msg("Connection state updated")
}

// State returns the current connection state
func (c *Connection) State() ConnectionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// IsConnected returns true if currently connected
func (c *Connection) IsConnected() bool {
	return c.State() == StateConnected
}

// Connect dials the server and announces the device with a heartbeat
func (c *Connection) Connect(ctx context.Context) error {
	c.setState(StateConnecting)
	c.logger.Info().Str("url", c.cfg.URL).Msg("Connecting to server")

	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.cfg.DeviceToken)

	conn, resp, err := dialer.DialContext(ctx, c.cfg.URL, header)
	if err != nil {
		c.setState(StateDisconnected)
		if resp != nil {
			return fmt.Errorf("dial failed with status %d: %w", resp.StatusCode, err)
		}
		return fmt.Errorf("dial failed: %w", err)
	}
	resp.Body.Close()

	c.mu.Lock()
	c.conn = conn
	c.state = StateConnected
	c.mu.Unlock()

	c.backoff = c.cfg.ReconnectInterval
	c.connects.Add(1)
	c.lastAck.Store(time.Now().UnixNano())
	c.logger.Info().Msg("Connected to server")

	if err := c.sendHeartbeat(); err != nil {
		c.disconnect()
		return fmt.Errorf("failed to send registration: %w", err)
	}
	return nil
}

// Run keeps the stream connected until ctx is cancelled
func (c *Connection) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := c.Connect(ctx); err != nil {
			c.logger.Warn().Err(err).Msg("Connection failed")
			c.waitBeforeReconnect(ctx)
			continue
		}

		c.runSession(ctx)
		if ctx.Err() == nil {
			c.logger.Info().Msg("Connection lost, will reconnect")
			c.waitBeforeReconnect(ctx)
		}
	}
}

func (c *Connection) waitBeforeReconnect(ctx context.Context) {
	c.logger.Info().Dur("delay", c.backoff).Msg("Waiting before reconnect")
	select {
	case <-time.After(c.backoff):
	case <-ctx.Done():
		return
	}
	c.backoff = nextBackoff(c.backoff, c.cfg.MaxReconnectInterval)
}

// nextBackoff doubles d up to max
func nextBackoff(d, max time.Duration) time.Duration {
	d *= 2
	if d > max {
		return max
	}
	return d
}

// runSession reads and heartbeats until either loop fails or ctx ends
func (c *Connection) runSession(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer cancel()
		c.readLoop()
	}()
	go func() {
		defer wg.Done()
		defer cancel()
		c.heartbeatLoop(ctx)
	}()

	<-ctx.Done()
	c.disconnect()
	wg.Wait()
}

func (c *Connection) disconnect() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.state = StateDisconnected
	c.mu.Unlock()

	if conn != nil {
		c.writeMu.Lock()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		conn.Close()
		c.logger.Info().Msg("Connection closed")
	}
}

// Send sends a single reading
func (c *Connection) Send(r *models.Reading) error {
	msg, err := models.NewMessage(models.MessageTypeReading, models.ReadingMessage{
		SensorID:    r.SensorID,
		Temperature: r.Temperature,
		Humidity:    r.Humidity,
		Brightness:  r.Brightness,
		CollectedAt: r.CollectedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return c.sendMessage(msg)
}

// SendBatch sends readings in one message
func (c *Connection) SendBatch(readings []*models.Reading) error {
	if len(readings) == 0 {
		return nil
	}

	batch := models.BatchMessage{Readings: make([]models.Reading, len(readings)), Count: len(readings)}
	for i, r := range readings {
		batch.Readings[i] = *r
	}
	msg, err := models.NewMessage(models.MessageTypeBatch, batch)
	if err != nil {
		return fmt.Errorf("failed to create batch message: %w", err)
	}
	if err := c.sendMessage(msg); err != nil {
		return err
	}

	c.batches.Add(1)
	c.logger.Debug().Int("count", len(readings)).Msg("Sent batch of readings")
	return nil
}

func (c *Connection) sendMessage(msg *models.Message) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteJSON(msg)
}

func (c *Connection) readLoop() {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return
	}

	for {
		var msg models.Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn().Err(err).Msg("Read error")
			}
			return
		}
		c.handleMessage(&msg)
	}
}

func (c *Connection) handleMessage(msg *models.Message) {
	switch msg.Type {
	case models.MessageTypeAck:
		c.lastAck.Store(time.Now().UnixNano())
		var ack models.AckMessage
		if err := msg.UnmarshalPayload(&ack); err == nil {
			c.accepted.Add(int64(ack.Accepted))
			c.rejected.Add(int64(ack.Rejected))
			c.dropped.Add(int64(ack.Dropped))
			if ack.Rejected > 0 || ack.Dropped > 0 {
				c.logger.Warn().Int("rejected", ack.Rejected).Int("dropped", ack.Dropped).Msg("Server did not store readings")
			}
		}
	case models.MessageTypeError:
		var errMsg models.ErrorMessage
		if err := msg.UnmarshalPayload(&errMsg); err == nil {
			c.logger.Warn().Str("code", errMsg.Code).Str("msg", errMsg.Message).Msg("Server error")
		}
	case models.MessageTypeConfig:
		c.logger.Info().Msg("Received config update")
	default:
		c.logger.Debug().Str("type", string(msg.Type)).Msg("Unknown message type")
	}
}

// heartbeatLoop sends heartbeats and gives up when acks stop arriving
func (c *Connection) heartbeatLoop(ctx context.Context) {
	if c.cfg.PingInterval <= 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.sendHeartbeat(); err != nil {
				c.logger.Warn().Err(err).Msg("Failed to send heartbeat")
				return
			}
			if c.cfg.PongTimeout > 0 && time.Since(c.LastAck()) > c.cfg.PongTimeout {
				c.logger.Warn().Msg("No ack received, connection appears dead")
				return
			}
		}
	}
}

func (c *Connection) sendHeartbeat() error {
	msg, err := models.NewMessage(models.MessageTypeHeartbeat, models.HeartbeatMessage{
		SensorID:   c.info.ID,
		Uptime:     int64(c.info.Uptime().Seconds()),
		BufferSize: c.pending(),
	})
	if err != nil {
		return err
	}
	return c.sendMessage(msg)
}

// LastAck returns when the server last acknowledged a message
func (c *Connection) LastAck() time.Time {
	return time.Unix(0, c.lastAck.Load())
}

// Stats returns a snapshot of the counters
func (c *Connection) Stats() ConnectionStats {
	return ConnectionStats{
		State:       c.State().String(),
		Connects:    c.connects.Load(),
		BatchesSent: c.batches.Load(),
		Accepted:    c.accepted.Load(),
		Rejected:    c.rejected.Load(),
		Dropped:     c.dropped.Load(),
		LastAck:     c.LastAck(),
	}
}

// Close shuts the current connection. Run reconnects unless its context
// is cancelled as well.
func (c *Connection) Close() error {
	c.disconnect()
	return nil
}
