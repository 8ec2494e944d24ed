package certs

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/certchain/certchain/internal/platform/db"
	"github.com/certchain/certchain/internal/shared"
)

// ErrClaimUnavailable indicates a claim token that is missing, expired, or
// already consumed. The three cases are indistinguishable on purpose.
var ErrClaimUnavailable = errors.New("claim token unavailable")

// Repository defines persistence operations for certificates.
type Repository interface {
	Create(ctx context.Context, cert Certificate, claim ClaimToken) error
	GetByID(ctx context.Context, id string) (*Certificate, error)
	GetBySerial(ctx context.Context, serial string) (*Certificate, error)
	ListByInstitution(ctx context.Context, institutionID string, page shared.Pagination) ([]Certificate, int, error)
	ListByIssuer(ctx context.Context, issuerID string) ([]Certificate, error)
	ListByHolder(ctx context.Context, holderID string) ([]Certificate, error)
	SetMinted(ctx context.Context, id, tokenID, txHash string) error
	ConsumeClaimToken(ctx context.Context, token, holderID string) (*Certificate, error)
	SetRevoked(ctx context.Context, id string) error
	ExpiredClaimCount(ctx context.Context) (int, error)
	DeleteExpiredClaims(ctx context.Context, olderThan time.Duration) (int64, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const certColumns = `
	id, serial, institution_id, issuer_id, COALESCE(holder_id::text, ''),
	recipient_email, recipient_name, title, description,
	COALESCE(token_id, ''), COALESCE(tx_hash, ''), status,
	issued_at, claimed_at, revoked_at, created_at, updated_at`

func scanCertificate(row pgx.Row) (*Certificate, error) {
	var cert Certificate
	err := row.Scan(
		&cert.ID, &cert.Serial, &cert.InstitutionID, &cert.IssuerID, &cert.HolderID,
		&cert.RecipientEmail, &cert.RecipientName, &cert.Title, &cert.Description,
		&cert.TokenID, &cert.TxHash, &cert.Status,
		&cert.IssuedAt, &cert.ClaimedAt, &cert.RevokedAt, &cert.CreatedAt, &cert.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &cert, nil
}

// Create inserts the certificate and its claim token in one transaction.
func (r *PGRepository) Create(ctx context.Context, cert Certificate, claim ClaimToken) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		const insertCert = `
			INSERT INTO certificates
				(id, serial, institution_id, issuer_id, recipient_email, recipient_name,
				 title, description, status, issued_at, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())`
		_, err := tx.Exec(ctx, insertCert,
			cert.ID, cert.Serial, cert.InstitutionID, cert.IssuerID,
			cert.RecipientEmail, cert.RecipientName, cert.Title, cert.Description,
			cert.Status, cert.IssuedAt)
		if err != nil {
			if shared.IsUniqueViolation(err) {
				return shared.ErrDuplicate
			}
			return err
		}

		const insertClaim = `
			INSERT INTO claim_tokens (token, certificate_id, expires_at, created_at)
			VALUES ($1, $2, $3, NOW())`
		_, err = tx.Exec(ctx, insertClaim, claim.Token, claim.CertificateID, claim.ExpiresAt)
		return err
	})
}

// GetByID fetches a certificate.
func (r *PGRepository) GetByID(ctx context.Context, id string) (*Certificate, error) {
	return scanCertificate(r.pool.QueryRow(ctx, `SELECT `+certColumns+` FROM certificates WHERE id = $1`, id))
}

// GetBySerial fetches a certificate by its public serial.
func (r *PGRepository) GetBySerial(ctx context.Context, serial string) (*Certificate, error) {
	return scanCertificate(r.pool.QueryRow(ctx, `SELECT `+certColumns+` FROM certificates WHERE serial = $1`, serial))
}

// ListByInstitution returns a page of an institution's certificates.
func (r *PGRepository) ListByInstitution(ctx context.Context, institutionID string, page shared.Pagination) ([]Certificate, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM certificates WHERE institution_id = $1`, institutionID).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + certColumns + ` FROM certificates WHERE institution_id = $1 ORDER BY issued_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, institutionID, page.PerPage, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	certs, err := collect(rows)
	return certs, total, err
}

// ListByIssuer returns certificates issued by one instructor.
func (r *PGRepository) ListByIssuer(ctx context.Context, issuerID string) ([]Certificate, error) {
	query := `SELECT ` + certColumns + ` FROM certificates WHERE issuer_id = $1 ORDER BY issued_at DESC`
	rows, err := r.pool.Query(ctx, query, issuerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

// ListByHolder returns certificates claimed by one candidate.
func (r *PGRepository) ListByHolder(ctx context.Context, holderID string) ([]Certificate, error) {
	query := `SELECT ` + certColumns + ` FROM certificates WHERE holder_id = $1 ORDER BY claimed_at DESC`
	rows, err := r.pool.Query(ctx, query, holderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

func collect(rows pgx.Rows) ([]Certificate, error) {
	var certs []Certificate
	for rows.Next() {
		cert, err := scanCertificate(rows)
		if err != nil {
			return nil, err
		}
		certs = append(certs, *cert)
	}
	return certs, rows.Err()
}

// SetMinted records the chain anchor and moves the certificate to issued.
func (r *PGRepository) SetMinted(ctx context.Context, id, tokenID, txHash string) error {
	const query = `
		UPDATE certificates
		SET token_id = $2, tx_hash = $3, status = $4, updated_at = NOW()
		WHERE id = $1 AND status = $5`
	tag, err := r.pool.Exec(ctx, query, id, tokenID, txHash, StatusIssued, StatusPendingMint)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ConsumeClaimToken burns the token and binds the certificate to the holder.
// The conditional UPDATE makes the token single use: a second claim matches
// zero rows no matter how close the race.
func (r *PGRepository) ConsumeClaimToken(ctx context.Context, token, holderID string) (*Certificate, error) {
	var cert *Certificate
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		const consume = `
			UPDATE claim_tokens
			SET used_at = NOW()
			WHERE token = $1 AND used_at IS NULL AND expires_at > NOW()
			RETURNING certificate_id`
		var certificateID string
		if err := tx.QueryRow(ctx, consume, token).Scan(&certificateID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrClaimUnavailable
			}
			return err
		}

		const bind = `
			UPDATE certificates
			SET holder_id = $2, status = $3, claimed_at = NOW(), updated_at = NOW()
			WHERE id = $1 AND status = $4`
		tag, err := tx.Exec(ctx, bind, certificateID, holderID, StatusClaimed, StatusIssued)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrClaimUnavailable
		}

		var scanErr error
		cert, scanErr = scanCertificate(tx.QueryRow(ctx, `SELECT `+certColumns+` FROM certificates WHERE id = $1`, certificateID))
		return scanErr
	})
	if err != nil {
		return nil, err
	}
	return cert, nil
}

// SetRevoked marks a certificate revoked.
func (r *PGRepository) SetRevoked(ctx context.Context, id string) error {
	const query = `
		UPDATE certificates
		SET status = $2, revoked_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status <> $2`
	tag, err := r.pool.Exec(ctx, query, id, StatusRevoked)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ExpiredClaimCount reports how many unclaimed tokens have lapsed.
func (r *PGRepository) ExpiredClaimCount(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM claim_tokens WHERE used_at IS NULL AND expires_at <= NOW()`).Scan(&count)
	return count, err
}

// DeleteExpiredClaims removes tokens that lapsed longer than olderThan ago.
func (r *PGRepository) DeleteExpiredClaims(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM claim_tokens WHERE used_at IS NULL AND expires_at < $1`, time.Now().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

var _ Repository = (*PGRepository)(nil)
