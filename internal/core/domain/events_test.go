package domain_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finvault/realtime-backend/internal/core/domain"
	apperrors "github.com/finvault/realtime-backend/internal/core/errors"
)

func TestEventPriority(t *testing.T) {
	t.Run("assigns fixed priorities", func(t *testing.T) {
		cases := map[domain.EventType]domain.Priority{
			domain.EventPong:                   domain.PriorityLow,
			domain.EventOnlineUsersUpdated:     domain.PriorityLow,
			domain.EventUserJoined:             domain.PriorityNormal,
			domain.EventTransactionCreated:     domain.PriorityNormal,
			domain.EventCardDeleted:            domain.PriorityHigh,
			domain.EventTenantSettingsUpdated:  domain.PriorityHigh,
			domain.EventRateLimitExceeded:      domain.PriorityHigh,
			domain.EventTransactionBulkUpdated: domain.PriorityCritical,
			domain.EventAccountDeleted:         domain.PriorityCritical,
			domain.EventDataSyncRequired:       domain.PriorityCritical,
		}

		for eventType, want := range cases {
			got, ok := domain.EventPriority(eventType)
			require.True(t, ok, string(eventType))
			assert.Equal(t, want, got, string(eventType))
		}
	})

	t.Run("refuses types outside the catalog", func(t *testing.T) {
		for _, eventType := range []domain.EventType{"", "transaction:exploded", "USER:JOINED"} {
			_, ok := domain.EventPriority(eventType)
			assert.False(t, ok, string(eventType))
			assert.False(t, domain.IsKnownEventType(eventType), string(eventType))
		}
	})
}

func TestNewEvent(t *testing.T) {
	tenantID := uuid.New()
	userID := uuid.New()

	t.Run("stamps priority and timestamp", func(t *testing.T) {
		event, ok := domain.NewEvent(domain.EventAccountUpdated, tenantID, userID, map[string]interface{}{"id": "acc-1"})
		require.True(t, ok)

		assert.Equal(t, domain.EventAccountUpdated, event.Type)
		assert.Equal(t, domain.PriorityHigh, event.Priority)
		assert.Equal(t, tenantID, event.TenantID)
		assert.Equal(t, userID, event.UserID)
		assert.WithinDuration(t, time.Now(), event.Timestamp, 2*time.Second)
	})

	t.Run("rejects unknown types", func(t *testing.T) {
		_, ok := domain.NewEvent("made:up", tenantID, userID, nil)
		assert.False(t, ok)
	})
}

func TestValidateBaseEvent(t *testing.T) {
	tenantID := uuid.New()
	userID := uuid.New()

	valid := func() domain.Event {
		event, _ := domain.NewEvent(domain.EventUserJoined, tenantID, userID, nil)
		return event
	}

	t.Run("accepts a well-formed event", func(t *testing.T) {
		assert.NoError(t, domain.ValidateBaseEvent(valid()))
	})

	t.Run("rejects unknown type", func(t *testing.T) {
		event := valid()
		event.Type = "made:up"
		err := domain.ValidateBaseEvent(event)
		assert.ErrorIs(t, err, apperrors.ErrUnknownEventType)
	})

	t.Run("rejects missing tenant", func(t *testing.T) {
		event := valid()
		event.TenantID = uuid.Nil
		assert.ErrorIs(t, domain.ValidateBaseEvent(event), apperrors.ErrInvalidEvent)
	})

	t.Run("rejects missing user", func(t *testing.T) {
		event := valid()
		event.UserID = uuid.Nil
		assert.ErrorIs(t, domain.ValidateBaseEvent(event), apperrors.ErrInvalidEvent)
	})

	t.Run("rejects zero timestamp", func(t *testing.T) {
		event := valid()
		event.Timestamp = time.Time{}
		assert.ErrorIs(t, domain.ValidateBaseEvent(event), apperrors.ErrInvalidEvent)
	})
}
