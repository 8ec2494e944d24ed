package identity

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/certchain/certchain/internal/platform/db"
	"github.com/certchain/certchain/internal/shared"
)

// Repository defines persistence operations for principals and their roles.
type Repository interface {
	ListPrincipals(ctx context.Context, page shared.Pagination) ([]Principal, int, error)
	GetPrincipal(ctx context.Context, id string) (*Principal, error)
	ListRoleAssignments(ctx context.Context, principalID string) ([]string, error)
	GrantRole(ctx context.Context, principalID, roleName, grantedBy string) error
	RevokeRole(ctx context.Context, principalID, roleName string) error
	ReplaceRoles(ctx context.Context, principalID string, roleNames []string, grantedBy string) error
	SetActive(ctx context.Context, principalID string, active bool) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// ListPrincipals returns a page of principals with their role names attached.
func (r *PGRepository) ListPrincipals(ctx context.Context, page shared.Pagination) ([]Principal, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM principals`).Scan(&total); err != nil {
		return nil, 0, err
	}

	const query = `
		SELECT p.id, p.email, p.display_name, p.is_active, p.created_at, p.updated_at,
		       COALESCE(array_agg(ra.role_name) FILTER (WHERE ra.role_name IS NOT NULL), '{}')
		FROM principals p
		LEFT JOIN role_assignments ra ON ra.principal_id = p.id
		GROUP BY p.id
		ORDER BY p.created_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, page.PerPage, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	principals := make([]Principal, 0, page.PerPage)
	for rows.Next() {
		var p Principal
		if err := rows.Scan(&p.ID, &p.Email, &p.DisplayName, &p.IsActive, &p.CreatedAt, &p.UpdatedAt, &p.Roles); err != nil {
			return nil, 0, err
		}
		principals = append(principals, p)
	}
	return principals, total, rows.Err()
}

// GetPrincipal fetches a single principal with roles.
func (r *PGRepository) GetPrincipal(ctx context.Context, id string) (*Principal, error) {
	const query = `
		SELECT p.id, p.email, p.display_name, p.is_active, p.created_at, p.updated_at,
		       COALESCE(array_agg(ra.role_name) FILTER (WHERE ra.role_name IS NOT NULL), '{}')
		FROM principals p
		LEFT JOIN role_assignments ra ON ra.principal_id = p.id
		WHERE p.id = $1
		GROUP BY p.id`

	var p Principal
	err := r.pool.QueryRow(ctx, query, id).Scan(&p.ID, &p.Email, &p.DisplayName, &p.IsActive, &p.CreatedAt, &p.UpdatedAt, &p.Roles)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// ListRoleAssignments returns the raw role name strings for a principal. This
// is the store behind the role resolver, so it tolerates principals with no
// rows and returns an empty slice.
func (r *PGRepository) ListRoleAssignments(ctx context.Context, principalID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT role_name FROM role_assignments WHERE principal_id = $1`, principalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// GrantRole adds a role assignment. Granting an already-held role is a no-op.
func (r *PGRepository) GrantRole(ctx context.Context, principalID, roleName, grantedBy string) error {
	const query = `
		INSERT INTO role_assignments (principal_id, role_name, granted_by, granted_at)
		VALUES ($1, $2, NULLIF($3, ''), NOW())
		ON CONFLICT (principal_id, role_name) DO NOTHING`
	_, err := r.pool.Exec(ctx, query, principalID, roleName, grantedBy)
	return err
}

// RevokeRole removes a role assignment.
func (r *PGRepository) RevokeRole(ctx context.Context, principalID, roleName string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM role_assignments WHERE principal_id = $1 AND role_name = $2`, principalID, roleName)
	return err
}

// ReplaceRoles swaps the full assignment set in one transaction.
func (r *PGRepository) ReplaceRoles(ctx context.Context, principalID string, roleNames []string, grantedBy string) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM role_assignments WHERE principal_id = $1`, principalID); err != nil {
			return err
		}
		for _, name := range roleNames {
			const insert = `
				INSERT INTO role_assignments (principal_id, role_name, granted_by, granted_at)
				VALUES ($1, $2, NULLIF($3, ''), NOW())`
			if _, err := tx.Exec(ctx, insert, principalID, name, grantedBy); err != nil {
				return err
			}
		}
		return nil
	})
}

// SetActive toggles whether a principal can sign in.
func (r *PGRepository) SetActive(ctx context.Context, principalID string, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE principals SET is_active = $2, updated_at = NOW() WHERE id = $1`, principalID, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ Repository = (*PGRepository)(nil)
