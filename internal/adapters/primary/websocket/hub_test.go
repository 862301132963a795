package websocket

import (
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finvault/realtime-backend/internal/core/domain"
)

func newTestClient(t *testing.T, hub *Hub, gateway *Gateway, tenantID, userID uuid.UUID) *Client {
	t.Helper()
	conn := domain.Connection{
		SocketID:    uuid.NewString(),
		UserID:      userID,
		TenantID:    tenantID,
		Email:       "user@example.com",
		Role:        domain.RoleMember,
		ConnectedAt: time.Now(),
		LastSeen:    time.Now(),
	}
	return NewClient(hub, gateway, nil, conn, 10, 20, slog.Default())
}

// drainOne pops one queued event off the client's send buffer.
func drainOne(t *testing.T, c *Client) domain.Event {
	t.Helper()
	select {
	case event := <-c.send:
		return event
	default:
		t.Fatal("expected a queued event")
		return domain.Event{}
	}
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := NewHub(slog.Default())
	tenantID := uuid.New()

	a := newTestClient(t, hub, nil, tenantID, uuid.New())
	b := newTestClient(t, hub, nil, tenantID, uuid.New())

	hub.registerClient(a)
	hub.registerClient(b)
	assert.Equal(t, 2, hub.ClientCount())

	hub.JoinRoom(a, "tenant:"+tenantID.String())
	hub.JoinRoom(b, "tenant:"+tenantID.String())
	assert.Equal(t, 2, hub.ClientsInRoom("tenant:"+tenantID.String()))

	hub.unregisterClient(a)
	assert.Equal(t, 1, hub.ClientCount())
	assert.Equal(t, 1, hub.ClientsInRoom("tenant:"+tenantID.String()))

	// Unregistering twice is a no-op.
	hub.unregisterClient(a)
	assert.Equal(t, 1, hub.ClientCount())

	// The last member leaving removes the room.
	hub.unregisterClient(b)
	assert.False(t, hub.RoomHasMembers("tenant:"+tenantID.String()))
	assert.Equal(t, 0, hub.RoomCount())
}

func TestHub_JoinLeaveRoom(t *testing.T) {
	hub := NewHub(slog.Default())
	client := newTestClient(t, hub, nil, uuid.New(), uuid.New())
	hub.registerClient(client)

	hub.JoinRoom(client, "type:x:transaction")
	assert.True(t, client.InRoom("type:x:transaction"))
	assert.True(t, hub.RoomHasMembers("type:x:transaction"))

	hub.LeaveRoom(client, "type:x:transaction")
	assert.False(t, client.InRoom("type:x:transaction"))
	assert.False(t, hub.RoomHasMembers("type:x:transaction"))
}

func TestHub_Deliver(t *testing.T) {
	tenantID := uuid.New()
	userID := uuid.New()

	t.Run("delivers to room members only", func(t *testing.T) {
		hub := NewHub(slog.Default())
		member := newTestClient(t, hub, nil, tenantID, userID)
		outsider := newTestClient(t, hub, nil, tenantID, uuid.New())
		hub.registerClient(member)
		hub.registerClient(outsider)
		hub.JoinRoom(member, "tenant:"+tenantID.String())

		event, _ := domain.NewEvent(domain.EventUserJoined, tenantID, userID, nil)
		hub.deliver(broadcastJob{
			roomNames: []string{"tenant:" + tenantID.String()},
			event:     event,
		})

		received := drainOne(t, member)
		assert.Equal(t, domain.EventUserJoined, received.Type)
		assert.Empty(t, outsider.send)
	})

	t.Run("a client in several targeted rooms receives the event once", func(t *testing.T) {
		hub := NewHub(slog.Default())
		client := newTestClient(t, hub, nil, tenantID, userID)
		hub.registerClient(client)
		hub.JoinRoom(client, "tenant:"+tenantID.String())
		hub.JoinRoom(client, "type:"+tenantID.String()+":transaction")

		event, _ := domain.NewEvent(domain.EventTransactionCreated, tenantID, userID, nil)
		hub.deliver(broadcastJob{
			roomNames: []string{
				"tenant:" + tenantID.String(),
				"type:" + tenantID.String() + ":transaction",
			},
			event: event,
		})

		assert.Len(t, client.send, 1)
	})

	t.Run("excluded socket is skipped", func(t *testing.T) {
		hub := NewHub(slog.Default())
		origin := newTestClient(t, hub, nil, tenantID, userID)
		other := newTestClient(t, hub, nil, tenantID, uuid.New())
		hub.registerClient(origin)
		hub.registerClient(other)
		hub.JoinRoom(origin, "tenant:"+tenantID.String())
		hub.JoinRoom(other, "tenant:"+tenantID.String())

		event, _ := domain.NewEvent(domain.EventUserJoined, tenantID, userID, nil)
		hub.deliver(broadcastJob{
			roomNames:       []string{"tenant:" + tenantID.String()},
			event:           event,
			excludeSocketID: origin.Conn().SocketID,
		})

		assert.Empty(t, origin.send)
		assert.Len(t, other.send, 1)
	})
}

func TestHub_EmitToRooms(t *testing.T) {
	hub := NewHub(slog.Default())
	tenantID := uuid.New()
	userID := uuid.New()

	event, _ := domain.NewEvent(domain.EventAccountUpdated, tenantID, userID, nil)
	hub.EmitToRooms([]string{"tenant:" + tenantID.String()}, event, "sock-1")

	select {
	case job := <-hub.broadcast:
		assert.Equal(t, []string{"tenant:" + tenantID.String()}, job.roomNames)
		assert.Equal(t, domain.EventAccountUpdated, job.event.Type)
		assert.Equal(t, "sock-1", job.excludeSocketID)
	default:
		t.Fatal("expected a queued broadcast job")
	}
}

func TestHub_SendToClient(t *testing.T) {
	hub := NewHub(slog.Default())
	tenantID := uuid.New()
	client := newTestClient(t, hub, nil, tenantID, uuid.New())
	hub.registerClient(client)

	event, _ := domain.NewEvent(domain.EventPong, tenantID, client.Conn().UserID, nil)
	hub.SendToClient(client.Conn().SocketID, event)
	require.Len(t, client.send, 1)

	// Unknown socket IDs are ignored.
	hub.SendToClient("no-such-socket", event)
}

func TestHub_CloseAll(t *testing.T) {
	hub := NewHub(slog.Default())
	client := newTestClient(t, hub, nil, uuid.New(), uuid.New())
	hub.registerClient(client)
	hub.JoinRoom(client, "room")

	hub.closeAll()

	assert.Equal(t, 0, hub.ClientCount())
	assert.Equal(t, 0, hub.RoomCount())
	_, open := <-client.send
	assert.False(t, open)
}
