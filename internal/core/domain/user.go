package domain

import (
	"time"

	"github.com/google/uuid"
)

// User roles recognized by the realtime layer. Authorization policy beyond
// tenant-boundary enforcement lives elsewhere; roles are carried as snapshots
// for presence rosters and role-change events.
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
	RoleViewer = "viewer"
)

// User is the slice of the user record the realtime subsystem needs. It is
// looked up on every connection attempt because revocation is enforced at the
// user-record level, not at token-issue time.
type User struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	Email        string
	FullName     string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
	LastActiveAt *time.Time
}
