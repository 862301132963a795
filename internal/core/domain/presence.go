package domain

import (
	"time"

	"github.com/google/uuid"
)

// Connection is the ephemeral record of one transport-level socket. It is
// created when the handshake completes and destroyed at disconnect.
type Connection struct {
	SocketID    string    `json:"socketId"`
	UserID      uuid.UUID `json:"userId"`
	TenantID    uuid.UUID `json:"tenantId"`
	Email       string    `json:"email"`
	Role        string    `json:"role"`
	ConnectedAt time.Time `json:"connectedAt"`
	LastSeen    time.Time `json:"lastSeen"`
}

// UserPresence is the logical online state for a (tenant, user) pair across
// all of that user's devices. It exists iff SocketIDs is non-empty: created on
// the first connect, trimmed on disconnects, deleted when the last socket is
// removed or the TTL elapses without renewal.
type UserPresence struct {
	TenantID    uuid.UUID              `json:"tenantId"`
	UserID      uuid.UUID              `json:"userId"`
	Email       string                 `json:"email"`
	Role        string                 `json:"role"`
	SocketIDs   []string               `json:"socketIds"`
	ConnectedAt time.Time              `json:"connectedAt"`
	LastSeen    time.Time              `json:"lastSeen"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// HasSocket reports whether socketID is among the presence record's sockets.
func (p *UserPresence) HasSocket(socketID string) bool {
	for _, id := range p.SocketIDs {
		if id == socketID {
			return true
		}
	}
	return false
}

// AddSocket adds socketID to the record if it is not already present.
func (p *UserPresence) AddSocket(socketID string) {
	if !p.HasSocket(socketID) {
		p.SocketIDs = append(p.SocketIDs, socketID)
	}
}

// RemoveSocket removes socketID from the record and reports whether any
// sockets remain.
func (p *UserPresence) RemoveSocket(socketID string) bool {
	remaining := p.SocketIDs[:0]
	for _, id := range p.SocketIDs {
		if id != socketID {
			remaining = append(remaining, id)
		}
	}
	p.SocketIDs = remaining
	return len(p.SocketIDs) > 0
}

// SocketInfo is the reverse mapping from a bare socket ID back to its owner.
// It lets any gateway instance resolve identity without a local index.
type SocketInfo struct {
	TenantID uuid.UUID `json:"tenantId"`
	UserID   uuid.UUID `json:"userId"`
}

// RosterEntry is the per-user line in a tenant's online-users snapshot.
type RosterEntry struct {
	UserID          uuid.UUID `json:"userId"`
	Email           string    `json:"email"`
	Role            string    `json:"role"`
	ConnectionCount int       `json:"connectionCount"`
	ConnectedAt     string    `json:"connectedAt"`
	LastSeen        string    `json:"lastSeen"`
}

// NewRosterEntry builds a roster line from a presence record.
func NewRosterEntry(p *UserPresence) RosterEntry {
	return RosterEntry{
		UserID:          p.UserID,
		Email:           p.Email,
		Role:            p.Role,
		ConnectionCount: len(p.SocketIDs),
		ConnectedAt:     p.ConnectedAt.UTC().Format(time.RFC3339),
		LastSeen:        p.LastSeen.UTC().Format(time.RFC3339),
	}
}
