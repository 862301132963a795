package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/finvault/realtime-backend/internal/core/domain"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

// Client is a middleman between one websocket connection and the hub. Its
// identity is fixed at handshake time; client input can choose rooms only
// through the whitelisted subscribe path.
type Client struct {
	hub     *Hub
	gateway *Gateway

	// The websocket connection.
	socket *websocket.Conn

	// Buffered channel of outbound events.
	send chan domain.Event

	// Authenticated connection identity.
	conn domain.Connection

	// rooms this client is currently a member of, by room name.
	roomNames map[string]bool

	// limiter throttles inbound messages on this connection.
	limiter *rate.Limiter

	// closeOnce ensures the send channel is only closed once
	closeOnce sync.Once

	// mu protects roomNames
	mu sync.RWMutex

	logger *slog.Logger
}

// NewClient creates a client for an upgraded connection.
func NewClient(hub *Hub, gateway *Gateway, socket *websocket.Conn, conn domain.Connection, msgRate float64, msgBurst int, logger *slog.Logger) *Client {
	return &Client{
		hub:       hub,
		gateway:   gateway,
		socket:    socket,
		send:      make(chan domain.Event, 256),
		conn:      conn,
		roomNames: make(map[string]bool),
		limiter:   rate.NewLimiter(rate.Limit(msgRate), msgBurst),
		logger: logger.With(
			"socket_id", conn.SocketID,
			"user_id", conn.UserID.String(),
			"tenant_id", conn.TenantID.String(),
		),
	}
}

// Conn returns the client's immutable connection identity.
func (c *Client) Conn() domain.Connection {
	return c.conn
}

// Enqueue queues an event for this client; a full buffer drops the event and
// schedules the client for unregistration (slow consumer).
func (c *Client) Enqueue(event domain.Event) {
	select {
	case c.send <- event:
	default:
		c.logger.Warn("client send buffer full, unregistering")
		select {
		case c.hub.Unregister <- c:
		default:
		}
	}
}

// CloseSend safely closes the send channel exactly once
func (c *Client) CloseSend() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// AddRoom records room membership on the client side.
func (c *Client) AddRoom(roomName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roomNames[roomName] = true
}

// RemoveRoom drops room membership on the client side.
func (c *Client) RemoveRoom(roomName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.roomNames, roomName)
}

// InRoom reports whether the client is a member of roomName.
func (c *Client) InRoom(roomName string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.roomNames[roomName]
}

// RoomNames returns a copy of the client's room memberships.
func (c *Client) RoomNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.roomNames))
	for name := range c.roomNames {
		names = append(names, name)
	}
	return names
}

// ReadPump pumps messages from the websocket connection to the gateway.
// This method runs in its own goroutine. Abrupt network drops surface as
// read errors here, so every disconnection routes through OnDisconnect.
func (c *Client) ReadPump() {
	defer func() {
		c.gateway.OnDisconnect(c)
		c.hub.Unregister <- c
		_ = c.socket.Close()
	}()

	c.socket.SetReadLimit(maxMessageSize)
	if err := c.socket.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error("failed to set read deadline", "error", err)
		return
	}

	c.socket.SetPongHandler(func(string) error {
		if err := c.socket.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			c.logger.Error("failed to set read deadline in pong handler", "error", err)
		}
		return nil
	})

	for {
		_, message, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read error", "error", err)
			}
			break
		}

		if !c.limiter.Allow() {
			c.sendError(domain.EventRateLimitExceeded, "Message rate limit exceeded")
			continue
		}

		c.handleIncomingMessage(message)
	}
}

// WritePump pumps events from the hub to the websocket connection.
// This method runs in its own goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.socket.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			if err := c.socket.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error("failed to set write deadline", "error", err)
				return
			}

			if !ok {
				// The hub closed the channel. Send close message.
				if err := c.socket.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					c.logger.Debug("failed to send close message", "error", err)
				}
				return
			}

			if err := c.writeJSON(event); err != nil {
				c.logger.Error("failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			if err := c.socket.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error("failed to set write deadline for ping", "error", err)
				return
			}

			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("failed to send ping", "error", err)
				return
			}
		}
	}
}

// writeJSON writes a JSON message to the websocket connection
func (c *Client) writeJSON(event domain.Event) error {
	w, err := c.socket.NextWriter(websocket.TextMessage)
	if err != nil {
		return err
	}

	if err := json.NewEncoder(w).Encode(event); err != nil {
		_ = w.Close()
		return err
	}

	return w.Close()
}

// --- Incoming Message Handling ---

// ClientMessage is the structure for messages sent from the client.
type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// SubscribePayload is the payload for subscribe/unsubscribe messages.
// EntityID empty means a type-level subscription.
type SubscribePayload struct {
	EntityType string `json:"entityType"`
	EntityID   string `json:"entityId,omitempty"`
}

// handleIncomingMessage processes messages received from the client
func (c *Client) handleIncomingMessage(message []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.logger.Warn("failed to unmarshal client message", "error", err)
		return
	}

	switch msg.Type {
	case "subscribe":
		c.handleSubscription(msg.Payload, true)

	case "unsubscribe":
		c.handleSubscription(msg.Payload, false)

	case "heartbeat":
		c.gateway.OnHeartbeat(c)

	case "ping":
		c.gateway.OnPing(c)

	default:
		c.logger.Debug("received unknown message type", "type", msg.Type)
	}
}

func (c *Client) handleSubscription(payload json.RawMessage, subscribe bool) {
	var p SubscribePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		c.sendError(domain.EventError, "Malformed subscription payload")
		return
	}

	if subscribe {
		c.gateway.OnSubscribe(c, p)
	} else {
		c.gateway.OnUnsubscribe(c, p)
	}
}

func (c *Client) sendError(eventType domain.EventType, message string) {
	if event, ok := domain.NewEvent(eventType, c.conn.TenantID, c.conn.UserID, map[string]interface{}{
		"message": message,
	}); ok {
		c.Enqueue(event)
	}
}
