package postgres

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finvault/realtime-backend/internal/core/domain"
	apperrors "github.com/finvault/realtime-backend/internal/core/errors"
)

// seedUser inserts a user row directly. User writes belong to the wider
// platform, so the repository has no Create to exercise here.
func seedUser(t *testing.T, tenantID uuid.UUID, email, role string, active bool) uuid.UUID {
	t.Helper()
	require.NotNil(t, testPool, "testPool is nil. TestMain may not have run.")

	id := uuid.New()
	_, err := testPool.Exec(context.Background(), `
		INSERT INTO users (id, tenant_id, email, full_name, role, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, id, tenantID, email, "Test User", role, active)
	require.NoError(t, err, "failed to seed user")
	return id
}

func TestUserRepository_GetByID(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(testPool)
	tenantID := uuid.New()

	userID := seedUser(t, tenantID, "active.member@example.com", domain.RoleMember, true)

	user, err := repo.GetByID(ctx, userID)
	require.NoError(t, err)

	assert.Equal(t, userID, user.ID)
	assert.Equal(t, tenantID, user.TenantID)
	assert.Equal(t, "active.member@example.com", user.Email)
	assert.Equal(t, domain.RoleMember, user.Role)
	assert.True(t, user.IsActive)
	assert.False(t, user.CreatedAt.IsZero())
	assert.Nil(t, user.LastActiveAt)
}

func TestUserRepository_GetByID_Inactive(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(testPool)

	userID := seedUser(t, uuid.New(), "deactivated@example.com", domain.RoleViewer, false)

	user, err := repo.GetByID(ctx, userID)
	require.NoError(t, err)
	assert.False(t, user.IsActive)
}

func TestUserRepository_GetByID_NotFound(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(testPool)

	_, err := repo.GetByID(ctx, uuid.New())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
}

func TestUserRepository_TouchLastActive(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(testPool)

	userID := seedUser(t, uuid.New(), "toucher@example.com", domain.RoleMember, true)

	require.NoError(t, repo.TouchLastActive(ctx, userID))

	user, err := repo.GetByID(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, user.LastActiveAt)
	assert.False(t, user.LastActiveAt.IsZero())
}
