package services

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/finvault/realtime-backend/internal/core/domain"
	apperrors "github.com/finvault/realtime-backend/internal/core/errors"
	"github.com/finvault/realtime-backend/internal/core/ports"
	"github.com/finvault/realtime-backend/internal/infrastructure/metrics"
	"github.com/finvault/realtime-backend/internal/realtime/rooms"
)

// EventDispatcher is the broadcast entry point domain services call after
// their transactional writes commit. Every event is sanitized and
// structurally validated before any room resolution happens; events that fail
// the gate are dropped with a logged reason and never delivered.
type EventDispatcher struct {
	broadcaster ports.EventBroadcaster
	logger      *slog.Logger
}

var _ ports.Dispatcher = (*EventDispatcher)(nil)

func NewEventDispatcher(broadcaster ports.EventBroadcaster, logger *slog.Logger) *EventDispatcher {
	return &EventDispatcher{
		broadcaster: broadcaster,
		logger:      logger.With("component", "event_dispatcher"),
	}
}

// Broadcast sanitizes, validates and fans out one event.
func (d *EventDispatcher) Broadcast(ctx context.Context, input ports.BroadcastInput) error {
	event, ok := domain.NewEvent(input.Type, input.TenantID, input.UserID, domain.SanitizeEventData(input.Payload))
	if !ok {
		err := apperrors.NewDispatchError(apperrors.ErrUnknownEventType, "event type is not in the catalog")
		d.dropEvent(string(input.Type), err)
		return err
	}

	if err := domain.ValidateBaseEvent(event); err != nil {
		d.dropEvent(string(event.Type), err)
		return err
	}

	roomNames, err := d.resolveRooms(input)
	if err != nil {
		d.dropEvent(string(event.Type), err)
		return err
	}

	d.broadcaster.EmitToRooms(roomNames, event, "")
	metrics.EventsDispatched.WithLabelValues(string(event.Type), string(event.Priority)).Inc()

	d.logger.Debug("event dispatched",
		"event_type", event.Type,
		"tenant_id", event.TenantID,
		"rooms", len(roomNames),
	)
	return nil
}

// resolveRooms maps the broadcast input onto its target rooms. An explicit
// user-ID list wins; then entity fan-out; tenant-wide is the fallback.
func (d *EventDispatcher) resolveRooms(input ports.BroadcastInput) ([]string, error) {
	if len(input.UserIDs) > 0 {
		names := make([]string, 0, len(input.UserIDs))
		for _, userID := range input.UserIDs {
			if userID == uuid.Nil {
				continue
			}
			names = append(names, rooms.UserRoom(input.TenantID, userID).Name())
		}
		return names, nil
	}

	if input.EntityType != "" {
		if input.EntityID != "" {
			set, err := rooms.EntityBroadcastRooms(input.TenantID, input.EntityType, input.EntityID)
			if err != nil {
				return nil, apperrors.NewDispatchError(err, "could not resolve entity rooms")
			}
			names := make([]string, 0, 3)
			for _, room := range set.Rooms() {
				names = append(names, room.Name())
			}
			return names, nil
		}

		if !rooms.IsValidEntityType(input.EntityType) {
			return nil, apperrors.NewDispatchError(apperrors.ErrUnknownEntityType, "could not resolve type room")
		}
		return []string{
			rooms.TenantRoom(input.TenantID).Name(),
			rooms.TypeRoom(input.TenantID, input.EntityType).Name(),
		}, nil
	}

	return []string{rooms.TenantRoom(input.TenantID).Name()}, nil
}

func (d *EventDispatcher) dropEvent(eventType string, err error) {
	metrics.EventsDropped.WithLabelValues(eventType).Inc()
	d.logger.Warn("event dropped",
		"event_type", eventType,
		"reason", err.Error(),
	)
}
