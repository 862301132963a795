package websocket

import (
	"context"
	"log/slog"
	"sync"

	"github.com/finvault/realtime-backend/internal/core/domain"
	"github.com/finvault/realtime-backend/internal/core/ports"
	"github.com/finvault/realtime-backend/internal/infrastructure/metrics"
)

// broadcastJob is one fan-out request: an envelope and the rooms it targets.
type broadcastJob struct {
	roomNames       []string
	event           domain.Event
	excludeSocketID string
}

// Hub maintains the set of active Clients and the transport-level room
// membership. Room membership lives here, in process memory; the distributed
// state (presence) lives in the store behind ports.PresenceStore.
type Hub struct {
	// clients maps socket IDs to their connections
	clients map[string]*Client

	// rooms maps room names to member clients. Names come only from the
	// rooms package factories, never from raw client input.
	rooms map[string]map[*Client]bool

	// broadcast channel for fan-out jobs
	broadcast chan broadcastJob

	// Register requests from clients
	Register chan *Client

	// Unregister requests from clients
	Unregister chan *Client

	// mu protects the clients and rooms maps
	mu sync.RWMutex

	logger *slog.Logger
}

// Ensure Hub implements the EventBroadcaster interface.
var _ ports.EventBroadcaster = (*Hub)(nil)

// NewHub creates a new WebSocket hub
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		rooms:      make(map[string]map[*Client]bool),
		broadcast:  make(chan broadcastJob, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		logger:     logger.With("component", "websocket_hub"),
	}
}

// EmitToRooms queues an event for delivery to every member of the given
// rooms. Within one room, delivery preserves emission order; there is no
// cross-room guarantee. This method implements ports.EventBroadcaster.
func (h *Hub) EmitToRooms(roomNames []string, event domain.Event, excludeSocketID string) {
	select {
	case h.broadcast <- broadcastJob{roomNames: roomNames, event: event, excludeSocketID: excludeSocketID}:
	default:
		h.logger.Warn("broadcast channel full, dropping event",
			"event_type", event.Type,
			"tenant_id", event.TenantID,
		)
	}
}

// Run starts the hub's event loop. This MUST be run as a goroutine; it exits
// when ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.Unregister:
			h.unregisterClient(client)

		case job := <-h.broadcast:
			h.deliver(job)
		}
	}
}

// registerClient adds a client to the hub
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client.Conn().SocketID] = client
	total := len(h.clients)
	h.mu.Unlock()

	metrics.ActiveConnections.Set(float64(total))
	metrics.ConnectionsTotal.Inc()

	h.logger.Info("client registered",
		"socket_id", client.Conn().SocketID,
		"user_id", client.Conn().UserID,
		"tenant_id", client.Conn().TenantID,
		"total_connections", total,
	)
}

// unregisterClient removes a client from the hub and all of its rooms
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	socketID := client.Conn().SocketID
	if _, ok := h.clients[socketID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, socketID)

	for _, roomName := range client.RoomNames() {
		if room, ok := h.rooms[roomName]; ok {
			delete(room, client)
			if len(room) == 0 {
				delete(h.rooms, roomName)
			}
		}
	}
	total := len(h.clients)
	roomCount := len(h.rooms)
	h.mu.Unlock()

	client.CloseSend()

	metrics.ActiveConnections.Set(float64(total))
	metrics.DisconnectsTotal.Inc()
	metrics.ActiveRooms.Set(float64(roomCount))

	h.logger.Info("client unregistered",
		"socket_id", socketID,
		"user_id", client.Conn().UserID,
	)
}

// deliver sends one event to all members of the job's rooms. A client that
// occupies several of the targeted rooms receives the event once.
func (h *Hub) deliver(job broadcastJob) {
	seen := make(map[*Client]bool)

	h.mu.RLock()
	for _, roomName := range job.roomNames {
		for client := range h.rooms[roomName] {
			if client.Conn().SocketID == job.excludeSocketID {
				continue
			}
			seen[client] = true
		}
	}
	clients := make([]*Client, 0, len(seen))
	for client := range seen {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		client.Enqueue(job.event)
	}
}

// JoinRoom adds a client to a room.
func (h *Hub) JoinRoom(client *Client, roomName string) {
	h.mu.Lock()
	if h.rooms[roomName] == nil {
		h.rooms[roomName] = make(map[*Client]bool)
	}
	h.rooms[roomName][client] = true
	roomCount := len(h.rooms)
	h.mu.Unlock()

	client.AddRoom(roomName)
	metrics.ActiveRooms.Set(float64(roomCount))

	h.logger.Debug("client joined room",
		"socket_id", client.Conn().SocketID,
		"room", roomName,
	)
}

// LeaveRoom removes a client from a room.
func (h *Hub) LeaveRoom(client *Client, roomName string) {
	h.mu.Lock()
	if room, ok := h.rooms[roomName]; ok {
		delete(room, client)
		if len(room) == 0 {
			delete(h.rooms, roomName)
		}
	}
	roomCount := len(h.rooms)
	h.mu.Unlock()

	client.RemoveRoom(roomName)
	metrics.ActiveRooms.Set(float64(roomCount))

	h.logger.Debug("client left room",
		"socket_id", client.Conn().SocketID,
		"room", roomName,
	)
}

// SendToClient delivers an event to a single socket, bypassing rooms. Used
// for snapshots and acks addressed to the caller.
func (h *Hub) SendToClient(socketID string, event domain.Event) {
	h.mu.RLock()
	client, ok := h.clients[socketID]
	h.mu.RUnlock()
	if ok {
		client.Enqueue(event)
	}
}

// RoomHasMembers reports whether any connection is currently in roomName.
func (h *Hub) RoomHasMembers(roomName string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomName]) > 0
}

// ClientCount returns the total number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomCount returns the number of rooms with at least one member.
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// ClientsInRoom returns the number of members of roomName.
func (h *Hub) ClientsInRoom(roomName string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomName])
}

// closeAll closes every client's send channel during shutdown.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		client.CloseSend()
	}
	h.clients = make(map[string]*Client)
	h.rooms = make(map[string]map[*Client]bool)
}
