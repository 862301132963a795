// Package rooms is the single authority for broadcast room naming and for
// tenant-isolation checks on room membership. Rooms are a closed tagged
// union built only through the factory functions here; call sites never
// hand-assemble room names.
package rooms

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Kind identifies one of the four room families.
type Kind string

const (
	KindTenant Kind = "tenant"
	KindUser   Kind = "user"
	KindEntity Kind = "entity"
	KindType   Kind = "type"
)

// Entity types allowed to back entity and type rooms. The whitelist bounds
// room-namespace cardinality and stops clients from minting arbitrary rooms.
var entityTypes = map[string]bool{
	"transaction": true,
	"account":     true,
	"card":        true,
	"category":    true,
	"user":        true,
	"tenant":      true,
}

// IsValidEntityType reports whether t may back an entity or type room.
func IsValidEntityType(t string) bool {
	return entityTypes[t]
}

// EntityTypes returns the whitelist, for diagnostics and error messages.
func EntityTypes() []string {
	types := make([]string, 0, len(entityTypes))
	for t := range entityTypes {
		types = append(types, t)
	}
	return types
}

// Room is one broadcast group. The zero value is not a valid room; use the
// factory functions.
type Room struct {
	kind       Kind
	tenantID   uuid.UUID
	userID     uuid.UUID
	entityType string
	entityID   string
}

// TenantRoom scopes events to every connection in a tenant.
func TenantRoom(tenantID uuid.UUID) Room {
	return Room{kind: KindTenant, tenantID: tenantID}
}

// UserRoom scopes events to every connection of one user in a tenant.
func UserRoom(tenantID, userID uuid.UUID) Room {
	return Room{kind: KindUser, tenantID: tenantID, userID: userID}
}

// EntityRoom scopes events to watchers of one specific entity.
func EntityRoom(tenantID uuid.UUID, entityType, entityID string) Room {
	return Room{kind: KindEntity, tenantID: tenantID, entityType: entityType, entityID: entityID}
}

// TypeRoom scopes events to subscribers of a whole entity type in a tenant.
func TypeRoom(tenantID uuid.UUID, entityType string) Room {
	return Room{kind: KindType, tenantID: tenantID, entityType: entityType}
}

// Kind returns the room family.
func (r Room) Kind() Kind { return r.kind }

// TenantID returns the tenant the room is partitioned under.
func (r Room) TenantID() uuid.UUID { return r.tenantID }

// UserID returns the user for user rooms, uuid.Nil otherwise.
func (r Room) UserID() uuid.UUID { return r.userID }

// EntityType returns the entity type for entity and type rooms.
func (r Room) EntityType() string { return r.entityType }

// EntityID returns the entity ID for entity rooms.
func (r Room) EntityID() string { return r.entityID }

// Name returns the deterministic wire encoding of the room.
func (r Room) Name() string {
	switch r.kind {
	case KindTenant:
		return fmt.Sprintf("tenant:%s", r.tenantID)
	case KindUser:
		return fmt.Sprintf("user:%s:%s", r.tenantID, r.userID)
	case KindEntity:
		return fmt.Sprintf("entity:%s:%s:%s", r.tenantID, r.entityType, r.entityID)
	case KindType:
		return fmt.Sprintf("type:%s:%s", r.tenantID, r.entityType)
	}
	return ""
}

// Parse decodes a room name back into a structured Room. It exists for
// tooling and debugging; trust-boundary checks go through
// ValidateTenantAccess instead.
func Parse(name string) (Room, error) {
	parts := strings.Split(name, ":")
	if len(parts) < 2 {
		return Room{}, fmt.Errorf("malformed room name %q", name)
	}

	tenantID, err := uuid.Parse(parts[1])
	if err != nil {
		return Room{}, fmt.Errorf("malformed tenant ID in room name %q: %w", name, err)
	}

	switch Kind(parts[0]) {
	case KindTenant:
		if len(parts) != 2 {
			return Room{}, fmt.Errorf("malformed tenant room name %q", name)
		}
		return TenantRoom(tenantID), nil

	case KindUser:
		if len(parts) != 3 {
			return Room{}, fmt.Errorf("malformed user room name %q", name)
		}
		userID, err := uuid.Parse(parts[2])
		if err != nil {
			return Room{}, fmt.Errorf("malformed user ID in room name %q: %w", name, err)
		}
		return UserRoom(tenantID, userID), nil

	case KindEntity:
		if len(parts) != 4 || !IsValidEntityType(parts[2]) || parts[3] == "" {
			return Room{}, fmt.Errorf("malformed entity room name %q", name)
		}
		return EntityRoom(tenantID, parts[2], parts[3]), nil

	case KindType:
		if len(parts) != 3 || !IsValidEntityType(parts[2]) {
			return Room{}, fmt.Errorf("malformed type room name %q", name)
		}
		return TypeRoom(tenantID, parts[2]), nil
	}

	return Room{}, fmt.Errorf("unknown room family in %q", name)
}

// ValidateTenantAccess is the security gate applied whenever a room name
// crosses a trust boundary. Instead of trusting delimiters inside the
// untrusted name, it checks the name against prefixes reconstructed from the
// caller's own authenticated tenant ID.
func ValidateTenantAccess(roomName string, tenantID uuid.UUID) bool {
	tenant := tenantID.String()
	switch {
	case roomName == "tenant:"+tenant:
		return true
	case strings.HasPrefix(roomName, "user:"+tenant+":"),
		strings.HasPrefix(roomName, "entity:"+tenant+":"),
		strings.HasPrefix(roomName, "type:"+tenant+":"):
		// Prefix match against the caller's tenant; the remainder is
		// validated structurally.
		_, err := Parse(roomName)
		return err == nil
	}
	return false
}

// BroadcastSet is the fan-out for one entity mutation: tenant-wide listeners,
// type-level subscribers, and entity-specific watchers all receive it.
type BroadcastSet struct {
	Tenant Room
	Type   Room
	Entity Room
}

// Rooms returns the set as a slice, in emission order.
func (s BroadcastSet) Rooms() []Room {
	return []Room{s.Tenant, s.Type, s.Entity}
}

// EntityBroadcastRooms computes the fan-out set for an entity mutation. The
// entity type must be whitelisted and the ID non-empty.
func EntityBroadcastRooms(tenantID uuid.UUID, entityType, entityID string) (BroadcastSet, error) {
	if !IsValidEntityType(entityType) {
		return BroadcastSet{}, fmt.Errorf("invalid entity type %q", entityType)
	}
	if entityID == "" {
		return BroadcastSet{}, fmt.Errorf("entity ID is required")
	}
	return BroadcastSet{
		Tenant: TenantRoom(tenantID),
		Type:   TypeRoom(tenantID, entityType),
		Entity: EntityRoom(tenantID, entityType, entityID),
	}, nil
}
