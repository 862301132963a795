package rooms_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finvault/realtime-backend/internal/realtime/rooms"
)

func TestRoomNames(t *testing.T) {
	tenantID := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	userID := uuid.MustParse("22222222-2222-2222-2222-222222222222")

	t.Run("tenant room", func(t *testing.T) {
		room := rooms.TenantRoom(tenantID)
		assert.Equal(t, "tenant:11111111-1111-1111-1111-111111111111", room.Name())
		assert.Equal(t, rooms.KindTenant, room.Kind())
	})

	t.Run("user room", func(t *testing.T) {
		room := rooms.UserRoom(tenantID, userID)
		assert.Equal(t, "user:11111111-1111-1111-1111-111111111111:22222222-2222-2222-2222-222222222222", room.Name())
	})

	t.Run("entity room", func(t *testing.T) {
		room := rooms.EntityRoom(tenantID, "transaction", "tx-42")
		assert.Equal(t, "entity:11111111-1111-1111-1111-111111111111:transaction:tx-42", room.Name())
	})

	t.Run("type room", func(t *testing.T) {
		room := rooms.TypeRoom(tenantID, "account")
		assert.Equal(t, "type:11111111-1111-1111-1111-111111111111:account", room.Name())
	})
}

func TestParse(t *testing.T) {
	tenantID := uuid.New()
	userID := uuid.New()

	t.Run("round trips every family", func(t *testing.T) {
		originals := []rooms.Room{
			rooms.TenantRoom(tenantID),
			rooms.UserRoom(tenantID, userID),
			rooms.EntityRoom(tenantID, "card", "card-7"),
			rooms.TypeRoom(tenantID, "category"),
		}

		for _, original := range originals {
			parsed, err := rooms.Parse(original.Name())
			require.NoError(t, err, original.Name())
			assert.Equal(t, original, parsed)
		}
	})

	t.Run("rejects malformed names", func(t *testing.T) {
		malformed := []string{
			"",
			"tenant",
			"tenant:not-a-uuid",
			"user:" + tenantID.String(),
			"user:" + tenantID.String() + ":not-a-uuid",
			"entity:" + tenantID.String() + ":transaction",
			"entity:" + tenantID.String() + ":widget:w-1",
			"type:" + tenantID.String() + ":widget",
			"galaxy:" + tenantID.String(),
		}

		for _, name := range malformed {
			_, err := rooms.Parse(name)
			assert.Error(t, err, name)
		}
	})
}

func TestValidateTenantAccess(t *testing.T) {
	tenantID := uuid.New()
	otherTenant := uuid.New()
	userID := uuid.New()

	t.Run("allows rooms under the caller's tenant", func(t *testing.T) {
		allowed := []string{
			rooms.TenantRoom(tenantID).Name(),
			rooms.UserRoom(tenantID, userID).Name(),
			rooms.EntityRoom(tenantID, "transaction", "tx-1").Name(),
			rooms.TypeRoom(tenantID, "account").Name(),
		}
		for _, name := range allowed {
			assert.True(t, rooms.ValidateTenantAccess(name, tenantID), name)
		}
	})

	t.Run("rejects rooms under another tenant", func(t *testing.T) {
		foreign := []string{
			rooms.TenantRoom(otherTenant).Name(),
			rooms.UserRoom(otherTenant, userID).Name(),
			rooms.EntityRoom(otherTenant, "transaction", "tx-1").Name(),
			rooms.TypeRoom(otherTenant, "account").Name(),
		}
		for _, name := range foreign {
			assert.False(t, rooms.ValidateTenantAccess(name, tenantID), name)
		}
	})

	t.Run("rejects structurally invalid names even with the right prefix", func(t *testing.T) {
		names := []string{
			"entity:" + tenantID.String() + ":widget:w-1",
			"type:" + tenantID.String() + ":widget",
			"user:" + tenantID.String() + ":not-a-uuid",
			"entity:" + tenantID.String() + ":transaction:",
		}
		for _, name := range names {
			assert.False(t, rooms.ValidateTenantAccess(name, tenantID), name)
		}
	})

	t.Run("rejects names that merely embed the tenant", func(t *testing.T) {
		assert.False(t, rooms.ValidateTenantAccess("evil:"+tenantID.String(), tenantID))
		assert.False(t, rooms.ValidateTenantAccess(tenantID.String(), tenantID))
	})
}

func TestEntityBroadcastRooms(t *testing.T) {
	tenantID := uuid.New()

	t.Run("fans out to tenant, type and entity rooms", func(t *testing.T) {
		set, err := rooms.EntityBroadcastRooms(tenantID, "transaction", "tx-9")
		require.NoError(t, err)

		names := make([]string, 0, 3)
		for _, room := range set.Rooms() {
			names = append(names, room.Name())
		}
		assert.Equal(t, []string{
			"tenant:" + tenantID.String(),
			"type:" + tenantID.String() + ":transaction",
			"entity:" + tenantID.String() + ":transaction:tx-9",
		}, names)
	})

	t.Run("rejects unknown entity types", func(t *testing.T) {
		_, err := rooms.EntityBroadcastRooms(tenantID, "widget", "w-1")
		assert.Error(t, err)
	})

	t.Run("requires an entity ID", func(t *testing.T) {
		_, err := rooms.EntityBroadcastRooms(tenantID, "transaction", "")
		assert.Error(t, err)
	})
}
