package institutions

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/certchain/certchain/internal/shared"
)

// Repository defines persistence operations for institutions and staff.
type Repository interface {
	List(ctx context.Context) ([]Institution, error)
	Get(ctx context.Context, id string) (*Institution, error)
	Create(ctx context.Context, inst Institution) error
	Update(ctx context.Context, inst Institution) error
	SetActive(ctx context.Context, id string, active bool) error
	ListStaff(ctx context.Context, institutionID string) ([]StaffMember, error)
	AddStaff(ctx context.Context, member StaffMember) error
	RemoveStaff(ctx context.Context, institutionID, principalID string) error
	InstitutionsFor(ctx context.Context, principalID string) ([]string, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// List returns every institution ordered by name.
func (r *PGRepository) List(ctx context.Context) ([]Institution, error) {
	const query = `
		SELECT id, name, website, description, is_active, created_at, updated_at
		FROM institutions
		ORDER BY name`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []Institution
	for rows.Next() {
		var inst Institution
		if err := rows.Scan(&inst.ID, &inst.Name, &inst.Website, &inst.Description, &inst.IsActive, &inst.CreatedAt, &inst.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, inst)
	}
	return list, rows.Err()
}

// Get fetches one institution by ID.
func (r *PGRepository) Get(ctx context.Context, id string) (*Institution, error) {
	const query = `
		SELECT id, name, website, description, is_active, created_at, updated_at
		FROM institutions
		WHERE id = $1`
	var inst Institution
	err := r.pool.QueryRow(ctx, query, id).Scan(&inst.ID, &inst.Name, &inst.Website, &inst.Description, &inst.IsActive, &inst.CreatedAt, &inst.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &inst, nil
}

// Create inserts a new institution.
func (r *PGRepository) Create(ctx context.Context, inst Institution) error {
	const query = `
		INSERT INTO institutions (id, name, website, description, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, TRUE, NOW(), NOW())`
	_, err := r.pool.Exec(ctx, query, inst.ID, inst.Name, inst.Website, inst.Description)
	if shared.IsUniqueViolation(err) {
		return shared.ErrDuplicate
	}
	return err
}

// Update persists institution profile changes.
func (r *PGRepository) Update(ctx context.Context, inst Institution) error {
	const query = `
		UPDATE institutions
		SET name = $2, website = $3, description = $4, updated_at = NOW()
		WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, inst.ID, inst.Name, inst.Website, inst.Description)
	if err != nil {
		if shared.IsUniqueViolation(err) {
			return shared.ErrDuplicate
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// SetActive archives or restores an institution.
func (r *PGRepository) SetActive(ctx context.Context, id string, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE institutions SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ListStaff returns institution staff joined with principal profiles.
func (r *PGRepository) ListStaff(ctx context.Context, institutionID string) ([]StaffMember, error) {
	const query = `
		SELECT s.institution_id, s.principal_id, p.email, p.display_name, s.title, COALESCE(s.added_by::text, ''), s.added_at
		FROM institution_staff s
		JOIN principals p ON p.id = s.principal_id
		WHERE s.institution_id = $1
		ORDER BY s.added_at`
	rows, err := r.pool.Query(ctx, query, institutionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var staff []StaffMember
	for rows.Next() {
		var member StaffMember
		if err := rows.Scan(&member.InstitutionID, &member.PrincipalID, &member.Email, &member.DisplayName, &member.Title, &member.AddedBy, &member.AddedAt); err != nil {
			return nil, err
		}
		staff = append(staff, member)
	}
	return staff, rows.Err()
}

// AddStaff attaches a principal to an institution.
func (r *PGRepository) AddStaff(ctx context.Context, member StaffMember) error {
	const query = `
		INSERT INTO institution_staff (institution_id, principal_id, title, added_by, added_at)
		VALUES ($1, $2, $3, NULLIF($4, '')::uuid, NOW())`
	_, err := r.pool.Exec(ctx, query, member.InstitutionID, member.PrincipalID, member.Title, member.AddedBy)
	if shared.IsUniqueViolation(err) {
		return shared.ErrDuplicate
	}
	return err
}

// RemoveStaff detaches a principal from an institution.
func (r *PGRepository) RemoveStaff(ctx context.Context, institutionID, principalID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM institution_staff WHERE institution_id = $1 AND principal_id = $2`, institutionID, principalID)
	return err
}

// InstitutionsFor lists institution IDs a principal belongs to. Used to scope
// institution admin actions to their own organisation.
func (r *PGRepository) InstitutionsFor(ctx context.Context, principalID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT institution_id FROM institution_staff WHERE principal_id = $1`, principalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

var _ Repository = (*PGRepository)(nil)
