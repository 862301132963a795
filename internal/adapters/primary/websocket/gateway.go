package websocket

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/finvault/realtime-backend/internal/core/domain"
	apperrors "github.com/finvault/realtime-backend/internal/core/errors"
	"github.com/finvault/realtime-backend/internal/core/ports"
	"github.com/finvault/realtime-backend/internal/infrastructure/metrics"
	"github.com/finvault/realtime-backend/internal/realtime/rooms"
)

// Gateway orchestrates the realtime session lifecycle: default room joins,
// presence registration, subscribe/unsubscribe, heartbeats and disconnects.
// Presence-store failures are logged and swallowed - the socket stays alive
// on a degraded store - while validation failures are rejected explicitly.
type Gateway struct {
	hub      *Hub
	presence ports.PresenceStore
	logger   *slog.Logger
}

func NewGateway(hub *Hub, presence ports.PresenceStore, logger *slog.Logger) *Gateway {
	return &Gateway{
		hub:      hub,
		presence: presence,
		logger:   logger.With("component", "socket_gateway"),
	}
}

// OnConnect joins the default rooms, registers presence and announces the
// user to the tenant if this is their first active socket. Subsequent device
// connects are not announced, to avoid duplicate join notifications.
func (g *Gateway) OnConnect(ctx context.Context, c *Client) {
	conn := c.Conn()

	g.hub.JoinRoom(c, rooms.TenantRoom(conn.TenantID).Name())
	g.hub.JoinRoom(c, rooms.UserRoom(conn.TenantID, conn.UserID).Name())

	firstSocket := !g.userIsOnline(ctx, conn)

	if err := g.presence.SetOnline(ctx, conn); err != nil {
		g.presenceFailure("set_online", conn, err)
	}

	if firstSocket {
		if event, ok := domain.NewEvent(domain.EventUserJoined, conn.TenantID, conn.UserID, map[string]interface{}{
			"userId": conn.UserID.String(),
			"email":  conn.Email,
			"role":   conn.Role,
		}); ok {
			g.hub.EmitToRooms([]string{rooms.TenantRoom(conn.TenantID).Name()}, event, conn.SocketID)
		}
	}

	// The caller always gets the current roster, whether or not a join was
	// announced.
	g.sendRoster(ctx, c, domain.EventOnlineUsers)
}

// OnDisconnect removes the socket from presence. Only the loss of the user's
// last socket is announced tenant-wide; losing one of several devices is
// silent because the user is still online.
func (g *Gateway) OnDisconnect(c *Client) {
	// The request context is gone by the time the read pump unwinds, so the
	// presence update gets its own deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := c.Conn()
	stillOnline, err := g.presence.RemoveConnection(ctx, conn.TenantID, conn.UserID, conn.SocketID)
	if err != nil {
		g.presenceFailure("remove_connection", conn, err)
		return
	}

	if !stillOnline {
		if event, ok := domain.NewEvent(domain.EventUserLeft, conn.TenantID, conn.UserID, map[string]interface{}{
			"userId": conn.UserID.String(),
			"email":  conn.Email,
		}); ok {
			g.hub.EmitToRooms([]string{rooms.TenantRoom(conn.TenantID).Name()}, event, conn.SocketID)
		}
	}
}

// OnSubscribe validates the requested entity room and joins it. The room is
// always computed from the caller's authenticated tenant; a client cannot
// name a foreign tenant.
func (g *Gateway) OnSubscribe(c *Client, p SubscribePayload) {
	conn := c.Conn()

	room, err := g.resolveSubscription(conn, p)
	if err != nil {
		g.rejectSubscription(c, p, err)
		return
	}

	g.hub.JoinRoom(c, room.Name())
	g.ack(c, domain.EventSubscriptionConfirmed, p, room)
}

// OnUnsubscribe validates the requested entity room and leaves it.
func (g *Gateway) OnUnsubscribe(c *Client, p SubscribePayload) {
	conn := c.Conn()

	room, err := g.resolveSubscription(conn, p)
	if err != nil {
		g.rejectSubscription(c, p, err)
		return
	}

	g.hub.LeaveRoom(c, room.Name())
	g.ack(c, domain.EventUnsubscriptionConfirmed, p, room)
}

// OnHeartbeat refreshes the caller's presence TTL and acknowledges.
func (g *Gateway) OnHeartbeat(c *Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := c.Conn()
	if err := g.presence.Touch(ctx, conn.TenantID, conn.UserID, conn.SocketID); err != nil {
		g.presenceFailure("touch", conn, err)
	}

	if event, ok := domain.NewEvent(domain.EventHeartbeatAck, conn.TenantID, conn.UserID, map[string]interface{}{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}); ok {
		c.Enqueue(event)
	}
}

// OnPing answers a client-side keep-alive.
func (g *Gateway) OnPing(c *Client) {
	conn := c.Conn()
	if event, ok := domain.NewEvent(domain.EventPong, conn.TenantID, conn.UserID, map[string]interface{}{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}); ok {
		c.Enqueue(event)
	}
}

// RebroadcastRosters republishes the full roster to every tenant room with
// live connections. This is the eventual-consistency fallback: clients
// converge even if a discrete join/leave notification was lost.
func (g *Gateway) RebroadcastRosters(ctx context.Context) {
	tenants, err := g.presence.ActiveTenants(ctx)
	if err != nil {
		g.logger.Warn("roster rebroadcast skipped", "error", err)
		return
	}

	for _, tenantID := range tenants {
		tenantRoom := rooms.TenantRoom(tenantID).Name()
		if !g.hub.RoomHasMembers(tenantRoom) {
			continue
		}

		online, err := g.presence.GetOnlineUsers(ctx, tenantID)
		if err != nil {
			g.logger.Warn("roster read failed", "tenant_id", tenantID, "error", err)
			continue
		}

		roster := make([]domain.RosterEntry, 0, len(online))
		var announcer domain.UserPresence
		for _, record := range online {
			roster = append(roster, domain.NewRosterEntry(record))
			announcer = *record
		}
		if len(roster) == 0 {
			continue
		}

		// The envelope needs a user; attribute the snapshot to any online
		// member of the tenant.
		if event, ok := domain.NewEvent(domain.EventOnlineUsersUpdated, tenantID, announcer.UserID, map[string]interface{}{
			"users": roster,
			"count": len(roster),
		}); ok {
			g.hub.EmitToRooms([]string{tenantRoom}, event, "")
		}
	}
}

// SweepStale runs the safety-net eviction of presence records whose lastSeen
// exceeds maxAge.
func (g *Gateway) SweepStale(ctx context.Context, maxAge time.Duration) {
	evicted, err := g.presence.CleanupStale(ctx, maxAge)
	if err != nil {
		g.logger.Warn("stale presence sweep failed", "error", err)
		return
	}
	if evicted > 0 {
		metrics.StaleRecordsEvicted.Add(float64(evicted))
		g.logger.Info("stale presence records evicted", "count", evicted)
	}
}

// resolveSubscription maps a subscribe/unsubscribe payload onto a canonical
// room scoped to the caller's own tenant.
func (g *Gateway) resolveSubscription(conn domain.Connection, p SubscribePayload) (rooms.Room, error) {
	if !rooms.IsValidEntityType(p.EntityType) {
		return rooms.Room{}, apperrors.NewValidationError(apperrors.ErrUnknownEntityType,
			"Unknown entity type", map[string]interface{}{
				"entityType": p.EntityType,
				"allowed":    rooms.EntityTypes(),
			})
	}

	if p.EntityID == "" {
		return rooms.TypeRoom(conn.TenantID, p.EntityType), nil
	}
	return rooms.EntityRoom(conn.TenantID, p.EntityType, p.EntityID), nil
}

func (g *Gateway) rejectSubscription(c *Client, p SubscribePayload, err error) {
	conn := c.Conn()
	g.logger.Warn("subscription rejected",
		"socket_id", conn.SocketID,
		"entity_type", p.EntityType,
		"error", err,
	)

	payload := map[string]interface{}{
		"message":    err.Error(),
		"entityType": p.EntityType,
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		payload["code"] = appErr.Code
		if appErr.Details != nil {
			payload["details"] = appErr.Details
		}
	}

	if event, ok := domain.NewEvent(domain.EventError, conn.TenantID, conn.UserID, payload); ok {
		c.Enqueue(event)
	}
}

func (g *Gateway) ack(c *Client, eventType domain.EventType, p SubscribePayload, room rooms.Room) {
	conn := c.Conn()
	if event, ok := domain.NewEvent(eventType, conn.TenantID, conn.UserID, map[string]interface{}{
		"entityType": p.EntityType,
		"entityId":   p.EntityID,
		"room":       room.Name(),
	}); ok {
		c.Enqueue(event)
	}
}

// sendRoster delivers the tenant's current online-users snapshot to a single
// caller.
func (g *Gateway) sendRoster(ctx context.Context, c *Client, eventType domain.EventType) {
	conn := c.Conn()
	online, err := g.presence.GetOnlineUsers(ctx, conn.TenantID)
	if err != nil {
		g.presenceFailure("get_online_users", conn, err)
		return
	}

	roster := make([]domain.RosterEntry, 0, len(online))
	for _, record := range online {
		roster = append(roster, domain.NewRosterEntry(record))
	}

	if event, ok := domain.NewEvent(eventType, conn.TenantID, conn.UserID, map[string]interface{}{
		"users": roster,
		"count": len(roster),
	}); ok {
		c.Enqueue(event)
	}
}

// userIsOnline checks whether the user already had presence before this
// socket registered.
func (g *Gateway) userIsOnline(ctx context.Context, conn domain.Connection) bool {
	online, err := g.presence.GetOnlineUsers(ctx, conn.TenantID)
	if err != nil {
		g.presenceFailure("get_online_users", conn, err)
		return false
	}
	for _, record := range online {
		if record.UserID == conn.UserID {
			return true
		}
	}
	return false
}

func (g *Gateway) presenceFailure(op string, conn domain.Connection, err error) {
	metrics.PresenceWriteFailures.Inc()
	g.logger.Error("presence store operation failed",
		"operation", op,
		"socket_id", conn.SocketID,
		"user_id", conn.UserID,
		"tenant_id", conn.TenantID,
		"error", err,
	)
}
