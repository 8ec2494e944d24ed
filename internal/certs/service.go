package certs

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/certchain/certchain/internal/ledger"
	"github.com/certchain/certchain/internal/shared"
	"github.com/certchain/certchain/jobs"
)

// Enqueuer submits background tasks. The jobs client satisfies it.
type Enqueuer interface {
	EnqueueSendEmail(ctx context.Context, payload jobs.SendEmailPayload) (*asynq.TaskInfo, error)
	EnqueueCertMint(ctx context.Context, payload jobs.CertMintPayload) (*asynq.TaskInfo, error)
	EnqueueCertTransfer(ctx context.Context, payload jobs.CertTransferPayload) (*asynq.TaskInfo, error)
}

// AuditRecorder persists audit entries for certificate transitions.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyChecker guards against double form submits.
type IdempotencyChecker interface {
	CheckAndInsert(ctx context.Context, key, module string) error
}

// MembershipChecker reports institution membership for scoping issuance.
type MembershipChecker interface {
	InstitutionsFor(ctx context.Context, principalID string) ([]string, error)
}

// Service handles the certificate lifecycle.
type Service struct {
	repo       Repository
	gateway    ledger.Gateway
	enqueuer   Enqueuer
	audit      AuditRecorder
	idem       IdempotencyChecker
	membership MembershipChecker
	logger     *slog.Logger
	claimTTL   time.Duration
	baseURL    string
}

// ServiceConfig collects Service dependencies.
type ServiceConfig struct {
	Repo       Repository
	Gateway    ledger.Gateway
	Enqueuer   Enqueuer
	Audit      AuditRecorder
	Idem       IdempotencyChecker
	Membership MembershipChecker
	Logger     *slog.Logger
	ClaimTTL   time.Duration
	BaseURL    string
}

// NewService builds Service instance.
func NewService(cfg ServiceConfig) *Service {
	claimTTL := cfg.ClaimTTL
	if claimTTL <= 0 {
		claimTTL = 7 * 24 * time.Hour
	}
	return &Service{
		repo:       cfg.Repo,
		gateway:    cfg.Gateway,
		enqueuer:   cfg.Enqueuer,
		audit:      cfg.Audit,
		idem:       cfg.Idem,
		membership: cfg.Membership,
		logger:     cfg.Logger,
		claimTTL:   claimTTL,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
	}
}

// IssueInput collects everything needed to issue one certificate.
type IssueInput struct {
	ActorID        string
	ActorIsSuper   bool
	InstitutionID  string
	RecipientEmail string
	RecipientName  string
	Title          string
	Description    string
	IdempotencyKey string
}

// Issue creates a certificate, queues its chain anchor, and mails the claim
// link to the recipient.
func (s *Service) Issue(ctx context.Context, input IssueInput) (*Certificate, error) {
	input.Title = strings.TrimSpace(input.Title)
	input.RecipientEmail = strings.TrimSpace(strings.ToLower(input.RecipientEmail))
	if input.Title == "" || input.RecipientEmail == "" || input.InstitutionID == "" {
		return nil, fmt.Errorf("%w: title, recipient email, and institution are required", shared.ErrValidation)
	}
	if !input.ActorIsSuper {
		if err := s.requireMembership(ctx, input.ActorID, input.InstitutionID); err != nil {
			return nil, err
		}
	}
	if input.IdempotencyKey != "" && s.idem != nil {
		if err := s.idem.CheckAndInsert(ctx, input.IdempotencyKey, "certs"); err != nil {
			return nil, err
		}
	}

	cert := Certificate{
		ID:             uuid.NewString(),
		Serial:         newSerial(),
		InstitutionID:  input.InstitutionID,
		IssuerID:       input.ActorID,
		RecipientEmail: input.RecipientEmail,
		RecipientName:  strings.TrimSpace(input.RecipientName),
		Title:          input.Title,
		Description:    strings.TrimSpace(input.Description),
		Status:         StatusPendingMint,
		IssuedAt:       time.Now().UTC(),
	}
	claim := ClaimToken{
		Token:         newClaimToken(),
		CertificateID: cert.ID,
		ExpiresAt:     time.Now().Add(s.claimTTL),
	}
	if err := s.repo.Create(ctx, cert, claim); err != nil {
		return nil, err
	}

	if _, err := s.enqueuer.EnqueueCertMint(ctx, jobs.CertMintPayload{CertificateID: cert.ID}); err != nil {
		s.logger.Error("enqueue mint", slog.String("certificate", cert.ID), slog.Any("error", err))
	}
	claimURL := s.baseURL + "/claim/" + claim.Token
	_, err := s.enqueuer.EnqueueSendEmail(ctx, jobs.SendEmailPayload{
		To:      cert.RecipientEmail,
		Subject: "Your certificate from CertChain is ready to claim",
		Body: fmt.Sprintf("Hello %s,\n\nYou have been issued the certificate %q.\nClaim it here: %s\n\nThe link expires on %s.",
			cert.RecipientName, cert.Title, claimURL, claim.ExpiresAt.Format(time.RFC1123)),
	})
	if err != nil {
		s.logger.Error("enqueue claim email", slog.String("certificate", cert.ID), slog.Any("error", err))
	}

	s.record(ctx, input.ActorID, "cert.issue", cert.ID, map[string]any{"serial": cert.Serial, "institution": cert.InstitutionID})
	return &cert, nil
}

// Claim consumes the single-use token and binds the certificate to holderID.
func (s *Service) Claim(ctx context.Context, holderID, token string) (*Certificate, error) {
	if holderID == "" || token == "" {
		return nil, ErrClaimUnavailable
	}
	cert, err := s.repo.ConsumeClaimToken(ctx, token, holderID)
	if err != nil {
		return nil, err
	}
	if _, err := s.enqueuer.EnqueueCertTransfer(ctx, jobs.CertTransferPayload{CertificateID: cert.ID, HolderID: holderID}); err != nil {
		s.logger.Error("enqueue transfer", slog.String("certificate", cert.ID), slog.Any("error", err))
	}
	s.record(ctx, holderID, "cert.claim", cert.ID, map[string]any{"serial": cert.Serial})
	return cert, nil
}

// Verify checks a certificate by public serial against both the database and
// the chain gateway. Gateway outages degrade to "unverifiable", not an error
// page.
func (s *Service) Verify(ctx context.Context, serial string) (*VerificationResult, error) {
	cert, err := s.repo.GetBySerial(ctx, strings.TrimSpace(serial))
	if err != nil {
		return nil, err
	}
	result := &VerificationResult{Certificate: cert}
	switch {
	case cert.Status == StatusRevoked:
		result.Reason = "certificate has been revoked by the issuer"
		return result, nil
	case cert.TokenID == "":
		result.Reason = "certificate is awaiting its chain anchor"
		return result, nil
	}

	info, err := s.gateway.TokenInfo(ctx, cert.TokenID)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("verify token info", slog.String("serial", cert.Serial), slog.Any("error", err))
		}
		result.Reason = "chain verification is temporarily unavailable"
		return result, nil
	}
	result.OnChain = true
	result.ChainOwner = info.Owner
	switch {
	case info.Revoked:
		result.Reason = "token is revoked on chain"
	case info.Serial != cert.Serial:
		result.Reason = "chain record does not match this certificate"
	default:
		result.Valid = true
	}
	return result, nil
}

// Revoke withdraws a certificate. Issuers revoke their own, institution
// admins anything from their institution, super admins anything.
func (s *Service) Revoke(ctx context.Context, actorID string, actorIsSuper bool, certificateID string) error {
	cert, err := s.repo.GetByID(ctx, certificateID)
	if err != nil {
		return err
	}
	if !actorIsSuper && cert.IssuerID != actorID {
		if err := s.requireMembership(ctx, actorID, cert.InstitutionID); err != nil {
			return err
		}
	}
	if cert.TokenID != "" {
		if err := s.gateway.Revoke(ctx, cert.TokenID); err != nil {
			return fmt.Errorf("revoke on chain: %w", err)
		}
	}
	if err := s.repo.SetRevoked(ctx, certificateID); err != nil {
		return err
	}
	s.record(ctx, actorID, "cert.revoke", certificateID, map[string]any{"serial": cert.Serial})
	return nil
}

// FinalizeMint anchors a pending certificate. Safe to retry: an already
// anchored certificate is a no-op.
func (s *Service) FinalizeMint(ctx context.Context, certificateID string) error {
	cert, err := s.repo.GetByID(ctx, certificateID)
	if err != nil {
		return err
	}
	if cert.TokenID != "" || cert.Status != StatusPendingMint {
		return nil
	}
	metadataURI := s.baseURL + "/verify/" + cert.Serial
	info, err := s.gateway.Mint(ctx, cert.Serial, metadataURI)
	if err != nil {
		return err
	}
	return s.repo.SetMinted(ctx, cert.ID, info.TokenID, info.TxHash)
}

// FinalizeTransfer moves the anchored token to the claiming candidate.
func (s *Service) FinalizeTransfer(ctx context.Context, certificateID, holderID string) error {
	cert, err := s.repo.GetByID(ctx, certificateID)
	if err != nil {
		return err
	}
	if cert.TokenID == "" {
		return fmt.Errorf("certificate %s has no chain anchor yet", certificateID)
	}
	// A retried task may find the token already with the holder.
	associated, err := s.gateway.IsAssociated(ctx, holderID, cert.TokenID)
	if err == nil && associated {
		return nil
	}
	_, err = s.gateway.Transfer(ctx, cert.TokenID, holderID)
	return err
}

// SweepExpiredClaims drops lapsed claim tokens. Runs on a cron schedule.
func (s *Service) SweepExpiredClaims(ctx context.Context) error {
	removed, err := s.repo.DeleteExpiredClaims(ctx, 0)
	if err != nil {
		return err
	}
	if removed > 0 && s.logger != nil {
		s.logger.Info("claim sweep", slog.Int64("removed", removed))
	}
	return nil
}

// Get fetches one certificate by ID.
func (s *Service) Get(ctx context.Context, id string) (*Certificate, error) {
	return s.repo.GetByID(ctx, id)
}

// ListForInstitution pages an institution's certificates.
func (s *Service) ListForInstitution(ctx context.Context, institutionID string, page, perPage int) ([]Certificate, shared.Pagination, error) {
	pagination := shared.NewPagination(page, perPage, 0)
	certs, total, err := s.repo.ListByInstitution(ctx, institutionID, pagination)
	if err != nil {
		return nil, pagination, err
	}
	return certs, shared.NewPagination(page, perPage, total), nil
}

// ListIssuedBy returns certificates issued by an instructor.
func (s *Service) ListIssuedBy(ctx context.Context, issuerID string) ([]Certificate, error) {
	return s.repo.ListByIssuer(ctx, issuerID)
}

// ListHeldBy returns certificates a candidate claimed.
func (s *Service) ListHeldBy(ctx context.Context, holderID string) ([]Certificate, error) {
	return s.repo.ListByHolder(ctx, holderID)
}

func (s *Service) requireMembership(ctx context.Context, actorID, institutionID string) error {
	if s.membership == nil {
		return shared.ErrForbidden
	}
	ids, err := s.membership.InstitutionsFor(ctx, actorID)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if id == institutionID {
			return nil
		}
	}
	return shared.ErrForbidden
}

func (s *Service) record(ctx context.Context, actorID, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "certificate",
		EntityID: entityID,
		Meta:     meta,
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}

func newSerial() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "CC-" + time.Now().UTC().Format("20060102150405")
	}
	return fmt.Sprintf("CC-%d-%s", time.Now().UTC().Year(), strings.ToUpper(hex.EncodeToString(b)))
}

func newClaimToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return uuid.NewString() + uuid.NewString()
	}
	return hex.EncodeToString(b)
}
