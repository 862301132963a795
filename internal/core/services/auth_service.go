package services

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/finvault/realtime-backend/internal/auth"
	"github.com/finvault/realtime-backend/internal/core/domain"
	apperrors "github.com/finvault/realtime-backend/internal/core/errors"
	"github.com/finvault/realtime-backend/internal/core/ports"
)

// AuthService implements the authentication contract the gateway consumes:
// token verification plus a user-record re-check, because a structurally
// valid JWT alone says nothing about revocation.
type AuthService struct {
	tm       *auth.TokenManager
	userRepo ports.UserRepository
}

var _ ports.AuthService = (*AuthService)(nil)

func NewAuthService(tm *auth.TokenManager, userRepo ports.UserRepository) *AuthService {
	return &AuthService{tm: tm, userRepo: userRepo}
}

// VerifyAccessToken validates the token signature and expiry and extracts the
// identity claims.
func (s *AuthService) VerifyAccessToken(token string) (*ports.TokenClaims, error) {
	if token == "" {
		return nil, apperrors.NewAuthenticationError(apperrors.ErrMissingToken, "Missing authentication token")
	}

	claims, err := s.tm.ValidateToken(token)
	if err != nil {
		return nil, apperrors.NewAuthenticationError(apperrors.ErrInvalidToken, "Invalid or expired token")
	}

	return &ports.TokenClaims{
		UserID:   claims.UserID,
		TenantID: claims.TenantID,
		Email:    claims.Email,
		Role:     claims.Role,
	}, nil
}

// GetCurrentUser fetches the live user record and confirms the user is still
// active in the claimed tenant. Called on every connection attempt, not only
// at token-issue time.
func (s *AuthService) GetCurrentUser(ctx context.Context, userID, tenantID uuid.UUID) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return nil, apperrors.NewAuthenticationError(apperrors.ErrUserNotFound, "User no longer exists")
		}
		return nil, err
	}

	if user.TenantID != tenantID || !user.IsActive {
		return nil, apperrors.NewAuthenticationError(apperrors.ErrUserInactive, "User is inactive in this tenant")
	}

	// Best effort; a failed stamp must not block the connection.
	_ = s.userRepo.TouchLastActive(ctx, userID)

	return user, nil
}
