package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finvault/realtime-backend/internal/auth"
	"github.com/finvault/realtime-backend/internal/core/domain"
	apperrors "github.com/finvault/realtime-backend/internal/core/errors"
	"github.com/finvault/realtime-backend/internal/core/mocks"
	"github.com/finvault/realtime-backend/internal/core/services"
)

func TestAuthService_VerifyAccessToken(t *testing.T) {
	tm := auth.NewTokenManager("test-secret", time.Hour)
	userID := uuid.New()
	tenantID := uuid.New()

	t.Run("success", func(t *testing.T) {
		svc := services.NewAuthService(tm, mocks.NewMockUserRepository())

		token, err := tm.GenerateToken(userID, tenantID, "user@example.com", "member")
		require.NoError(t, err)

		claims, err := svc.VerifyAccessToken(token)
		require.NoError(t, err)
		assert.Equal(t, userID, claims.UserID)
		assert.Equal(t, tenantID, claims.TenantID)
		assert.Equal(t, "user@example.com", claims.Email)
		assert.Equal(t, "member", claims.Role)
	})

	t.Run("missing token", func(t *testing.T) {
		svc := services.NewAuthService(tm, mocks.NewMockUserRepository())

		claims, err := svc.VerifyAccessToken("")

		assert.Nil(t, claims)
		assert.ErrorIs(t, err, apperrors.ErrMissingToken)
		assert.True(t, apperrors.IsAuthenticationError(err))
	})

	t.Run("expired token", func(t *testing.T) {
		expiredTM := auth.NewTokenManager("test-secret", -time.Minute)
		svc := services.NewAuthService(tm, mocks.NewMockUserRepository())

		token, err := expiredTM.GenerateToken(userID, tenantID, "user@example.com", "member")
		require.NoError(t, err)

		claims, err := svc.VerifyAccessToken(token)

		assert.Nil(t, claims)
		assert.ErrorIs(t, err, apperrors.ErrInvalidToken)
	})

	t.Run("tampered token", func(t *testing.T) {
		otherTM := auth.NewTokenManager("different-secret", time.Hour)
		svc := services.NewAuthService(tm, mocks.NewMockUserRepository())

		token, err := otherTM.GenerateToken(userID, tenantID, "user@example.com", "member")
		require.NoError(t, err)

		claims, err := svc.VerifyAccessToken(token)

		assert.Nil(t, claims)
		assert.ErrorIs(t, err, apperrors.ErrInvalidToken)
	})
}

func TestAuthService_GetCurrentUser(t *testing.T) {
	ctx := context.Background()
	tm := auth.NewTokenManager("test-secret", time.Hour)
	userID := uuid.New()
	tenantID := uuid.New()

	activeUser := func() *domain.User {
		return &domain.User{
			ID:       userID,
			TenantID: tenantID,
			Email:    "user@example.com",
			FullName: "Test User",
			Role:     domain.RoleMember,
			IsActive: true,
		}
	}

	t.Run("success", func(t *testing.T) {
		mockRepo := mocks.NewMockUserRepository()
		svc := services.NewAuthService(tm, mockRepo)

		mockRepo.On("GetByID", ctx, userID).Return(activeUser(), nil)
		mockRepo.On("TouchLastActive", ctx, userID).Return(nil)

		user, err := svc.GetCurrentUser(ctx, userID, tenantID)

		require.NoError(t, err)
		assert.Equal(t, userID, user.ID)
		mockRepo.AssertExpectations(t)
	})

	t.Run("user not found", func(t *testing.T) {
		mockRepo := mocks.NewMockUserRepository()
		svc := services.NewAuthService(tm, mockRepo)

		mockRepo.On("GetByID", ctx, userID).Return(nil, apperrors.ErrUserNotFound)

		user, err := svc.GetCurrentUser(ctx, userID, tenantID)

		assert.Nil(t, user)
		assert.True(t, apperrors.IsAuthenticationError(err))
	})

	t.Run("deactivated user is refused", func(t *testing.T) {
		mockRepo := mocks.NewMockUserRepository()
		svc := services.NewAuthService(tm, mockRepo)

		deactivated := activeUser()
		deactivated.IsActive = false
		mockRepo.On("GetByID", ctx, userID).Return(deactivated, nil)

		user, err := svc.GetCurrentUser(ctx, userID, tenantID)

		assert.Nil(t, user)
		assert.ErrorIs(t, err, apperrors.ErrUserInactive)
	})

	t.Run("user moved to another tenant is refused", func(t *testing.T) {
		mockRepo := mocks.NewMockUserRepository()
		svc := services.NewAuthService(tm, mockRepo)

		moved := activeUser()
		moved.TenantID = uuid.New()
		mockRepo.On("GetByID", ctx, userID).Return(moved, nil)

		user, err := svc.GetCurrentUser(ctx, userID, tenantID)

		assert.Nil(t, user)
		assert.ErrorIs(t, err, apperrors.ErrUserInactive)
	})

	t.Run("repository failure is passed through", func(t *testing.T) {
		mockRepo := mocks.NewMockUserRepository()
		svc := services.NewAuthService(tm, mockRepo)

		mockRepo.On("GetByID", ctx, userID).Return(nil, assert.AnError)

		user, err := svc.GetCurrentUser(ctx, userID, tenantID)

		assert.Nil(t, user)
		assert.ErrorIs(t, err, assert.AnError)
		assert.False(t, apperrors.IsAuthenticationError(err))
	})
}
