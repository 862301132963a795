// Package ports defines the interfaces between the realtime core and its
// collaborators. Authentication and user persistence are external concerns
// consumed through these contracts; presence and broadcast are the core's own
// surfaces, kept behind interfaces so the gateway can be tested without Redis
// or a live socket.
package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/finvault/realtime-backend/internal/core/domain"
)

// TokenClaims is the identity extracted from a verified access token.
type TokenClaims struct {
	UserID   uuid.UUID
	TenantID uuid.UUID
	Email    string
	Role     string
}

// AuthService is the authentication collaborator. VerifyAccessToken alone is
// not sufficient to admit a connection: GetCurrentUser must be consulted on
// every attempt because revocation is enforced at the user-record level.
type AuthService interface {
	VerifyAccessToken(token string) (*TokenClaims, error)
	GetCurrentUser(ctx context.Context, userID, tenantID uuid.UUID) (*domain.User, error)
}

// UserRepository is the persistence port for the user records the auth
// collaborator reads.
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)

	// TouchLastActive stamps last_active_at; best-effort, callers ignore
	// failures.
	TouchLastActive(ctx context.Context, id uuid.UUID) error
}

// PresenceStore tracks which users are online across possibly-many sockets
// per user. It is an eventually-consistent liveness cache backed by a shared
// store, not a system of record: every operation is an idempotent set/remove
// on a single per-(tenant, user) key.
type PresenceStore interface {
	// SetOnline idempotently adds socketID to the user's presence record,
	// refreshing its TTL and the tenant's active-user index.
	SetOnline(ctx context.Context, conn domain.Connection) error

	// RemoveConnection removes one socket. It reports whether the user is
	// still online through another socket; when the last socket goes, the
	// record is fully evicted.
	RemoveConnection(ctx context.Context, tenantID, userID uuid.UUID, socketID string) (stillOnline bool, err error)

	// SetOffline evicts the presence record, its reverse socket mappings and
	// the tenant index membership. Safe to call when parts have already
	// expired.
	SetOffline(ctx context.Context, tenantID, userID uuid.UUID) error

	// Touch refreshes the TTL and lastSeen for one socket's presence record.
	Touch(ctx context.Context, tenantID, userID uuid.UUID, socketID string) error

	// GetOnlineUsers hydrates the tenant roster, silently skipping entries
	// whose record already expired.
	GetOnlineUsers(ctx context.Context, tenantID uuid.UUID) ([]*domain.UserPresence, error)

	// GetSocketInfo resolves a bare socket ID back to its owner, from any
	// gateway instance.
	GetSocketInfo(ctx context.Context, socketID string) (*domain.SocketInfo, error)

	// CleanupStale evicts records whose lastSeen exceeds maxAge even if the
	// TTL has not fired yet. TTL remains the primary expiry mechanism; this
	// is the backstop against clock skew and missed renewals.
	CleanupStale(ctx context.Context, maxAge time.Duration) (int, error)

	// ActiveTenants lists tenants with at least one online user, for roster
	// rebroadcasts.
	ActiveTenants(ctx context.Context) ([]uuid.UUID, error)
}

// EventBroadcaster delivers an envelope to every connection in a set of
// rooms. ExcludeSocketID suppresses echo to the originating socket.
type EventBroadcaster interface {
	EmitToRooms(roomNames []string, event domain.Event, excludeSocketID string)
}

// BroadcastInput parameterizes the broadcast entry point exposed to domain
// services. Services call it strictly after their transactional writes commit.
type BroadcastInput struct {
	Type       domain.EventType
	TenantID   uuid.UUID
	UserID     uuid.UUID
	EntityType string
	EntityID   string
	UserIDs    []uuid.UUID
	Payload    interface{}
}

// Dispatcher admits events to broadcast: sanitize, validate, resolve rooms,
// emit.
type Dispatcher interface {
	Broadcast(ctx context.Context, input BroadcastInput) error
}
