package domain

import (
	"fmt"

	"github.com/google/uuid"

	apperrors "github.com/finvault/realtime-backend/internal/core/errors"
)

// ValidateBaseEvent is the structural admission gate every event passes
// before dispatch: known catalog type, non-empty tenant and user, and a real
// timestamp. Payload-specific shape is not checked here.
func ValidateBaseEvent(event Event) error {
	if !IsKnownEventType(event.Type) {
		return apperrors.NewDispatchError(apperrors.ErrUnknownEventType,
			fmt.Sprintf("event type %q is not in the catalog", event.Type))
	}
	if event.TenantID == uuid.Nil {
		return apperrors.NewDispatchError(apperrors.ErrInvalidEvent, "event is missing a tenant ID")
	}
	if event.UserID == uuid.Nil {
		return apperrors.NewDispatchError(apperrors.ErrInvalidEvent, "event is missing a user ID")
	}
	if event.Timestamp.IsZero() {
		return apperrors.NewDispatchError(apperrors.ErrInvalidEvent, "event is missing a timestamp")
	}
	return nil
}
