package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType defines the type of real-time event.
type EventType string

// The catalog is a closed enumeration. Anything outside it fails
// ValidateBaseEvent and is never delivered.
const (
	// Presence
	EventUserJoined          EventType = "user:joined"
	EventUserLeft            EventType = "user:left"
	EventOnlineUsers         EventType = "presence:online_users"
	EventOnlineUsersUpdated  EventType = "presence:online_users_updated"

	// Transactions
	EventTransactionCreated     EventType = "transaction:created"
	EventTransactionUpdated     EventType = "transaction:updated"
	EventTransactionDeleted     EventType = "transaction:deleted"
	EventTransactionBulkUpdated EventType = "transaction:bulk_updated"

	// Accounts
	EventAccountCreated EventType = "account:created"
	EventAccountUpdated EventType = "account:updated"
	EventAccountDeleted EventType = "account:deleted"

	// Cards
	EventCardCreated EventType = "card:created"
	EventCardUpdated EventType = "card:updated"
	EventCardDeleted EventType = "card:deleted"

	// Categories
	EventCategoryCreated EventType = "category:created"
	EventCategoryUpdated EventType = "category:updated"
	EventCategoryDeleted EventType = "category:deleted"

	// Tenant / system
	EventTenantSettingsUpdated EventType = "tenant:settings_updated"
	EventUserRoleChanged       EventType = "user:role_changed"
	EventDataSyncRequired      EventType = "system:data_sync_required"

	// Errors
	EventError             EventType = "error"
	EventRateLimitExceeded EventType = "error:rate_limit_exceeded"

	// Acknowledgements
	EventPong                    EventType = "pong"
	EventHeartbeatAck            EventType = "heartbeat_ack"
	EventSubscriptionConfirmed   EventType = "subscription_confirmed"
	EventUnsubscriptionConfirmed EventType = "unsubscription_confirmed"
)

// Priority ranks events for consumers that process them out of band.
type Priority string

const (
	PriorityLow      Priority = "LOW"
	PriorityNormal   Priority = "NORMAL"
	PriorityHigh     Priority = "HIGH"
	PriorityCritical Priority = "CRITICAL"
)

// EventPriority returns the fixed priority for a catalog event type. The
// second return value is false for types outside the catalog; such events
// must be dropped, not defaulted.
func EventPriority(t EventType) (Priority, bool) {
	switch t {
	case EventOnlineUsers, EventOnlineUsersUpdated,
		EventPong, EventHeartbeatAck,
		EventSubscriptionConfirmed, EventUnsubscriptionConfirmed:
		return PriorityLow, true

	case EventUserJoined, EventUserLeft,
		EventTransactionCreated, EventTransactionUpdated, EventTransactionDeleted,
		EventCategoryCreated, EventCategoryUpdated, EventCategoryDeleted,
		EventError:
		return PriorityNormal, true

	case EventAccountCreated, EventAccountUpdated,
		EventCardCreated, EventCardUpdated, EventCardDeleted,
		EventTenantSettingsUpdated, EventRateLimitExceeded:
		return PriorityHigh, true

	case EventTransactionBulkUpdated, EventAccountDeleted,
		EventUserRoleChanged, EventDataSyncRequired:
		return PriorityCritical, true
	}
	return "", false
}

// IsKnownEventType reports whether t belongs to the closed catalog.
func IsKnownEventType(t EventType) bool {
	_, ok := EventPriority(t)
	return ok
}

// Event is the envelope sent over the socket. It is constructed per broadcast
// call and never persisted.
type Event struct {
	Type      EventType   `json:"type"`
	TenantID  uuid.UUID   `json:"tenantId"`
	UserID    uuid.UUID   `json:"userId"`
	Timestamp time.Time   `json:"timestamp"`
	Priority  Priority    `json:"priority"`
	Payload   interface{} `json:"payload,omitempty"`
}

// NewEvent builds an envelope with the catalog priority for t. The boolean is
// false when t is not in the catalog.
func NewEvent(t EventType, tenantID, userID uuid.UUID, payload interface{}) (Event, bool) {
	priority, ok := EventPriority(t)
	if !ok {
		return Event{}, false
	}
	return Event{
		Type:      t,
		TenantID:  tenantID,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
		Priority:  priority,
		Payload:   payload,
	}, true
}
