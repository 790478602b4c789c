package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/devicehub/internal/device"
	"github.com/nerrad567/devicehub/internal/infrastructure/config"
	"github.com/nerrad567/devicehub/internal/infrastructure/logging"
	"github.com/nerrad567/devicehub/internal/infrastructure/metrics"
)

// WebSocket message types.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"
)

const (
	wsSendBuffer        = 256
	defaultPingInterval = 30 * time.Second
	defaultPongTimeout  = 10 * time.Second
)

// ChannelDeviceData carries every stored data point. A single device's
// points are also sent on "device_data.{device_id}".
const ChannelDeviceData = "device_data"

// DeviceDataChannel returns the per-device channel name.
func DeviceDataChannel(deviceID string) string {
	return ChannelDeviceData + "." + deviceID
}

// canonicalChannel returns ch in the form the hub publishes on, or false
// when ch names no known channel.
func canonicalChannel(ch string) (string, bool) {
	if ch == ChannelDeviceData {
		return ch, true
	}
	raw, ok := strings.CutPrefix(ch, ChannelDeviceData+".")
	if !ok {
		return "", false
	}
	id, err := device.NormalizeID(raw)
	if err != nil {
		return "", false
	}
	return DeviceDataChannel(id), true
}

// WSMessage is the envelope of every frame sent to a client.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload is the payload of subscribe and unsubscribe requests.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// wsRequest is a frame received from a client.
type wsRequest struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

func encodeMessage(msg WSMessage) ([]byte, error) {
	msg.Timestamp = time.Now().UTC().Format(time.RFC3339)
	return json.Marshal(msg)
}

// Hub fans stored data points out to subscribed websocket clients.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger

	mu      sync.RWMutex
	clients map[*WSClient]struct{}
}

// WSClient is one websocket connection. Outbound frames are queued on send
// and written by writePump; done closes exactly once when the client goes.
type WSClient struct {
	hub     *Hub
	conn    *websocket.Conn
	subject string // token subject, empty when auth is off

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	mu       sync.RWMutex
	channels map[string]struct{}
}

// Origins are enforced by the CORS middleware.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// NewHub creates an empty hub. A nil logger discards output.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
	}
}

func newWSClient(hub *Hub, conn *websocket.Conn) *WSClient {
	return &WSClient{
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, wsSendBuffer),
		done:     make(chan struct{}),
		channels: make(map[string]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	for c := range h.clients {
		c.close()
		delete(h.clients, c)
	}
	h.mu.Unlock()
	metrics.SetWebSocketClients(0)
}

// Register adds a client to the hub.
func (h *Hub) Register(c *WSClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	metrics.SetWebSocketClients(n)
	h.logger.Debug("websocket client connected", "clients", n, "subject", c.subject)
}

// Unregister removes a client and stops its writer.
func (h *Hub) Unregister(c *WSClient) {
	h.mu.Lock()
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	c.close()
	metrics.SetWebSocketClients(n)
	h.logger.Debug("websocket client disconnected", "clients", n)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// PublishDeviceData pushes a stored point to "device_data" and to the
// device's own channel. It has the shape of a device.DataService listener.
func (h *Hub) PublishDeviceData(d device.DeviceData) {
	h.Broadcast(ChannelDeviceData, d)
	h.Broadcast(DeviceDataChannel(d.DeviceID), d)
}

// Broadcast sends an event to every client subscribed to channel. Clients
// whose buffer is full miss the event.
func (h *Hub) Broadcast(channel string, payload any) {
	frame, err := encodeMessage(WSMessage{Type: WSTypeEvent, EventType: channel, Payload: payload})
	if err != nil {
		h.logger.Error("encoding websocket event", "channel", channel, "error", err)
		return
	}

	h.mu.RLock()
	var targets []*WSClient
	for c := range h.clients {
		if c.subscribed(channel) {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if !c.enqueue(frame) {
			h.logger.Warn("websocket client too slow, event dropped", "channel", channel, "subject", c.subject)
		}
	}
}

// handleWebSocket upgrades the connection. Authentication, when enabled,
// has already run in requirePermission.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := newWSClient(s.hub, conn)
	if claims := claimsFromContext(r.Context()); claims != nil {
		c.subject = claims.Subject
	}
	s.hub.Register(c)

	ping, pong := wsTimings(s.wsCfg)
	go c.writePump(ping, pong)
	go c.readPump(int64(s.wsCfg.MaxMessageSize), ping+pong)
}

func wsTimings(cfg config.WebSocketConfig) (ping, pong time.Duration) {
	ping = time.Duration(cfg.PingInterval) * time.Second
	if ping <= 0 {
		ping = defaultPingInterval
	}
	pong = time.Duration(cfg.PongTimeout) * time.Second
	if pong <= 0 {
		pong = defaultPongTimeout
	}
	return ping, pong
}

func (c *WSClient) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// enqueue queues a frame without blocking. It reports false when the
// client is gone or its buffer is full.
func (c *WSClient) enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *WSClient) subscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.channels[channel]
	return ok
}

// readPump handles client requests until the connection fails or the
// peer stops answering pings within idle.
func (c *WSClient) readPump(limit int64, idle time.Duration) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	if limit > 0 {
		c.conn.SetReadLimit(limit)
	}
	extend := func() error { return c.conn.SetReadDeadline(time.Now().Add(idle)) }
	extend() //nolint:errcheck // a failed deadline surfaces as a read error
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		extend() //nolint:errcheck // as above
		c.handle(data)
	}
}

// writePump is the only writer on conn. It sends queued frames and pings
// every interval.
func (c *WSClient) writePump(interval, writeWait time.Duration) {
	ticker := time.NewTicker(interval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	write := func(kind int, data []byte) error {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck // surfaces on write
		return c.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case <-c.done:
			write(websocket.CloseMessage, nil) //nolint:errcheck // best effort
			return
		case frame := <-c.send:
			if write(websocket.TextMessage, frame) != nil {
				return
			}
		case <-ticker.C:
			if write(websocket.PingMessage, nil) != nil {
				return
			}
		}
	}
}

func (c *WSClient) handle(data []byte) {
	var req wsRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.reply("", WSTypeError, errorPayload("invalid JSON message"))
		return
	}

	switch req.Type {
	case WSTypeSubscribe:
		c.subscribe(req)
	case WSTypeUnsubscribe:
		c.unsubscribe(req)
	case WSTypePing:
		c.reply(req.ID, WSTypePong, nil)
	default:
		c.reply(req.ID, WSTypeError, errorPayload("unknown message type: "+req.Type))
	}
}

func channelsOf(req wsRequest) ([]string, bool) {
	var p WSSubscribePayload
	if err := json.Unmarshal(req.Payload, &p); err != nil || len(p.Channels) == 0 {
		return nil, false
	}
	return p.Channels, true
}

// subscribe is all or nothing: one unknown channel rejects the request.
func (c *WSClient) subscribe(req wsRequest) {
	channels, ok := channelsOf(req)
	if !ok {
		c.reply(req.ID, WSTypeError, errorPayload("invalid subscribe payload"))
		return
	}
	canonical := make([]string, 0, len(channels))
	for _, ch := range channels {
		name, ok := canonicalChannel(ch)
		if !ok {
			c.reply(req.ID, WSTypeError, errorPayload("unknown channel: "+ch))
			return
		}
		canonical = append(canonical, name)
	}

	c.mu.Lock()
	for _, ch := range canonical {
		c.channels[ch] = struct{}{}
	}
	c.mu.Unlock()

	c.reply(req.ID, WSTypeResponse, map[string]any{"subscribed": canonical})
}

func (c *WSClient) unsubscribe(req wsRequest) {
	channels, ok := channelsOf(req)
	if !ok {
		c.reply(req.ID, WSTypeError, errorPayload("invalid unsubscribe payload"))
		return
	}

	c.mu.Lock()
	for _, ch := range channels {
		if name, ok := canonicalChannel(ch); ok {
			ch = name
		}
		delete(c.channels, ch)
	}
	c.mu.Unlock()

	c.reply(req.ID, WSTypeResponse, map[string]any{"unsubscribed": channels})
}

func (c *WSClient) reply(id, kind string, payload any) {
	frame, err := encodeMessage(WSMessage{Type: kind, ID: id, Payload: payload})
	if err != nil {
		return
	}
	c.enqueue(frame)
}

func errorPayload(msg string) map[string]string {
	return map[string]string{"message": msg}
}
