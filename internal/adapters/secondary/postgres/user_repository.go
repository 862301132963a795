package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/finvault/realtime-backend/internal/core/domain"
	apperrors "github.com/finvault/realtime-backend/internal/core/errors"
	"github.com/finvault/realtime-backend/internal/core/ports"
)

// UserRepository reads the user records the auth re-check consults. The wider
// platform owns writes to this table; the realtime layer only needs lookups.
type UserRepository struct {
	pool *pgxpool.Pool
}

var _ ports.UserRepository = (*UserRepository)(nil)

// NewUserRepository creates a repository for user lookups.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// GetByID fetches a user by ID, including the active flag revocation checks
// depend on.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := `
		SELECT id, tenant_id, email, full_name, role, is_active, created_at, last_active_at
		FROM users
		WHERE id = $1
	`

	var (
		userID       pgtype.UUID
		tenantID     pgtype.UUID
		user         domain.User
		lastActiveAt pgtype.Timestamptz
	)
	err := r.pool.QueryRow(ctx, query, pgtype.UUID{Bytes: id, Valid: true}).Scan(
		&userID,
		&tenantID,
		&user.Email,
		&user.FullName,
		&user.Role,
		&user.IsActive,
		&user.CreatedAt,
		&lastActiveAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, err
	}

	user.ID = userID.Bytes
	user.TenantID = tenantID.Bytes
	if lastActiveAt.Valid {
		t := lastActiveAt.Time
		user.LastActiveAt = &t
	}
	return &user, nil
}

// TouchLastActive stamps the user's last_active_at. Called best-effort on
// successful connects; failures are logged, not propagated.
func (r *UserRepository) TouchLastActive(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE users SET last_active_at = NOW() WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, pgtype.UUID{Bytes: id, Valid: true})
	return err
}
