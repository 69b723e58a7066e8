package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/GeVanCo/pi4j-v2/config"
	"github.com/GeVanCo/pi4j-v2/internal/logging"
)

// Message types of the WebSocket protocol.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"

	// ChannelStateChanged carries digital state transitions.
	ChannelStateChanged = "io.state_changed"
)

const (
	// sendQueueLen bounds the per-connection outbound queue. Events beyond
	// it are dropped rather than stalling the broadcaster.
	sendQueueLen = 64

	// readLimit caps inbound frames. Clients only send small control
	// messages, so anything larger is a protocol violation.
	readLimit = 4096
)

// WSMessage is the envelope for every frame in both directions.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload names the channels a subscribe or unsubscribe
// message applies to.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// Hub owns all live WebSocket connections and their channel subscriptions.
// A single lock guards both, so broadcasting never touches per-connection
// state.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger

	mu    sync.RWMutex
	conns map[*wsConn]map[string]struct{}
}

// wsConn is one upgraded connection. The reader and writer goroutines
// share it; closing done tells the writer to finish, which in turn closes
// the socket and unblocks the reader.
type wsConn struct {
	id   string
	sock *websocket.Conn
	out  chan []byte
	done chan struct{}
	stop sync.Once

	pingEvery time.Duration
	idleWait  time.Duration
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Access is controlled by the single-use ticket, not the Origin header.
		return true
	},
}

// NewHub creates an empty hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:    cfg,
		logger: logger,
		conns:  make(map[*wsConn]map[string]struct{}),
	}
}

// Run blocks until the context is cancelled, then shuts every connection
// down.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	open := make([]*wsConn, 0, len(h.conns))
	for c := range h.conns {
		open = append(open, c)
		delete(h.conns, c)
	}
	h.mu.Unlock()

	for _, c := range open {
		c.shutdown()
	}
}

// Broadcast delivers an event to every connection subscribed to channel.
// Slow consumers miss events instead of blocking the caller.
func (h *Hub) Broadcast(channel string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error("broadcast encode failed", "channel", channel, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c, channels := range h.conns {
		if _, ok := channels[channel]; ok {
			c.enqueue(data)
		}
	}
}

// attach wraps an upgraded socket, registers it and starts its goroutines.
func (h *Hub) attach(sock *websocket.Conn) *wsConn {
	pingEvery := time.Duration(h.cfg.PingInterval) * time.Second
	if pingEvery <= 0 {
		pingEvery = 30 * time.Second
	}
	idleWait := time.Duration(h.cfg.PongTimeout) * time.Second
	if idleWait <= 0 {
		idleWait = 10 * time.Second
	}

	c := &wsConn{
		id:        uuid.NewString(),
		sock:      sock,
		out:       make(chan []byte, sendQueueLen),
		done:      make(chan struct{}),
		pingEvery: pingEvery,
		idleWait:  idleWait,
	}

	h.mu.Lock()
	h.conns[c] = make(map[string]struct{})
	total := len(h.conns)
	h.mu.Unlock()

	h.logger.Debug("websocket session opened", "client_id", c.id, "sessions", total)

	go c.writeLoop()
	go c.readLoop(h)
	return c
}

// detach removes a connection. Safe to call more than once; only the call
// that finds the connection still registered triggers shutdown.
func (h *Hub) detach(c *wsConn) {
	h.mu.Lock()
	_, active := h.conns[c]
	delete(h.conns, c)
	total := len(h.conns)
	h.mu.Unlock()

	if !active {
		return
	}
	c.shutdown()
	h.logger.Debug("websocket session closed", "client_id", c.id, "sessions", total)
}

// retune adds or removes channel subscriptions for one connection.
func (h *Hub) retune(c *wsConn, channels []string, add bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.conns[c]
	if !ok {
		return
	}
	for _, ch := range channels {
		if add {
			set[ch] = struct{}{}
		} else {
			delete(set, ch)
		}
	}
}

// inbound handles one decoded frame from a client.
func (h *Hub) inbound(c *wsConn, data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.replyError("", "malformed message")
		return
	}

	switch msg.Type {
	case WSTypeSubscribe, WSTypeUnsubscribe:
		var sub WSSubscribePayload
		if err := decodePayload(msg.Payload, &sub); err != nil {
			c.replyError(msg.ID, "channels payload is invalid")
			return
		}
		subscribing := msg.Type == WSTypeSubscribe
		h.retune(c, sub.Channels, subscribing)

		key := "unsubscribed"
		if subscribing {
			key = "subscribed"
			h.logger.Debug("websocket subscription", "client_id", c.id, "channels", sub.Channels)
		}
		c.reply(WSMessage{
			Type:    WSTypeResponse,
			ID:      msg.ID,
			Payload: map[string]any{key: sub.Channels},
		})
	case WSTypePing:
		c.reply(WSMessage{Type: WSTypePong, ID: msg.ID})
	default:
		c.replyError(msg.ID, "unsupported message type: "+msg.Type)
	}
}

// decodePayload re-marshals an envelope payload into a concrete type.
// Payloads arrive as map[string]any after the envelope decode.
func decodePayload(payload, v any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// handleWebSocket upgrades the HTTP connection and hands it to the hub.
// Callers authenticate with a single-use ticket from POST /auth/ws-ticket.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ticket := r.URL.Query().Get("ticket")
	if ticket == "" {
		writeUnauthorized(w, "connection ticket is required")
		return
	}
	if !s.tickets.validate(ticket) {
		writeUnauthorized(w, "ticket is invalid or expired")
		return
	}

	sock, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	s.hub.attach(sock)
}

// readLoop pulls frames off the socket until it fails or closes, then
// detaches the connection.
func (c *wsConn) readLoop(h *Hub) {
	defer h.detach(c)

	c.sock.SetReadLimit(readLimit)
	c.extendRead()
	c.sock.SetPongHandler(func(string) error {
		c.extendRead()
		return nil
	})

	for {
		_, data, err := c.sock.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read error", "client_id", c.id, "error", err)
			}
			return
		}
		// Any traffic proves the client is alive, pong or not.
		c.extendRead()
		h.inbound(c, data)
	}
}

// writeLoop drains the outbound queue and keeps the connection alive with
// pings. It owns the socket close.
func (c *wsConn) writeLoop() {
	ticker := time.NewTicker(c.pingEvery)
	defer func() {
		ticker.Stop()
		c.sock.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.sock.WriteMessage(websocket.CloseMessage, nil)
			return
		case data := <-c.out:
			_ = c.sock.SetWriteDeadline(time.Now().Add(c.idleWait))
			if err := c.sock.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.sock.SetWriteDeadline(time.Now().Add(c.idleWait))
			if err := c.sock.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *wsConn) extendRead() {
	_ = c.sock.SetReadDeadline(time.Now().Add(c.pingEvery + c.idleWait))
}

// enqueue offers data to the writer without ever blocking. Frames for a
// full queue or a finished connection are dropped.
func (c *wsConn) enqueue(data []byte) {
	select {
	case c.out <- data:
	case <-c.done:
	default:
	}
}

func (c *wsConn) reply(msg WSMessage) {
	if msg.Timestamp == "" {
		msg.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.enqueue(data)
}

func (c *wsConn) replyError(id, reason string) {
	c.reply(WSMessage{
		Type:    WSTypeError,
		ID:      id,
		Payload: map[string]string{"message": reason},
	})
}

// shutdown signals the writer to finish. The writer closes the socket,
// which unblocks the reader.
func (c *wsConn) shutdown() {
	c.stop.Do(func() { close(c.done) })
}
