package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/certchain/certchain/internal/platform/db"
	"github.com/certchain/certchain/internal/shared"
)

// Repository defines persistence operations for the auth module.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*Account, error)
	CreateAccount(ctx context.Context, account Account, defaultRole string) error
	CreateSession(ctx context.Context, id, principalID string, expiresAt time.Time, ip, ua string) error
	DeleteSession(ctx context.Context, id string) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindByEmail fetches an account by email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*Account, error) {
	const query = `
		SELECT id, email, display_name, password_hash, is_active, created_at, updated_at
		FROM principals
		WHERE lower(email) = lower($1)`

	var account Account
	err := r.pool.QueryRow(ctx, query, email).Scan(
		&account.ID,
		&account.Email,
		&account.DisplayName,
		&account.PasswordHash,
		&account.IsActive,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &account, nil
}

// CreateAccount inserts a principal together with its initial role assignment.
func (r *PGRepository) CreateAccount(ctx context.Context, account Account, defaultRole string) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		const insertPrincipal = `
			INSERT INTO principals (id, email, display_name, password_hash, is_active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, TRUE, NOW(), NOW())`
		if _, err := tx.Exec(ctx, insertPrincipal, account.ID, account.Email, account.DisplayName, account.PasswordHash); err != nil {
			if shared.IsUniqueViolation(err) {
				return shared.ErrDuplicate
			}
			return err
		}

		const insertAssignment = `
			INSERT INTO role_assignments (principal_id, role_name, granted_by, granted_at)
			VALUES ($1, $2, NULL, NOW())`
		_, err := tx.Exec(ctx, insertAssignment, account.ID, defaultRole)
		return err
	})
}

// CreateSession persists a new login session in the database for auditing.
func (r *PGRepository) CreateSession(ctx context.Context, id, principalID string, expiresAt time.Time, ip, ua string) error {
	const query = `
		INSERT INTO sessions (id, principal_id, created_at, expires_at, ip, ua)
		VALUES ($1, $2, NOW(), $3, NULLIF($4, ''), NULLIF($5, ''))`
	_, err := r.pool.Exec(ctx, query, id, principalID, expiresAt.UTC(), ip, ua)
	return err
}

// DeleteSession removes a session record from the database.
func (r *PGRepository) DeleteSession(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

var _ Repository = (*PGRepository)(nil)
