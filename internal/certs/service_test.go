package certs_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certchain/certchain/internal/certs"
	"github.com/certchain/certchain/internal/ledger"
	"github.com/certchain/certchain/internal/shared"
	"github.com/certchain/certchain/jobs"
)

type stubRepo struct {
	certs      map[string]*certs.Certificate
	bySerial   map[string]string
	claims     map[string]certs.ClaimToken
	minted     []string
	revoked    []string
	sweptCount int64
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		certs:    make(map[string]*certs.Certificate),
		bySerial: make(map[string]string),
		claims:   make(map[string]certs.ClaimToken),
	}
}

func (s *stubRepo) Create(ctx context.Context, cert certs.Certificate, claim certs.ClaimToken) error {
	s.certs[cert.ID] = &cert
	s.bySerial[cert.Serial] = cert.ID
	s.claims[claim.Token] = claim
	return nil
}

func (s *stubRepo) GetByID(ctx context.Context, id string) (*certs.Certificate, error) {
	cert, ok := s.certs[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return cert, nil
}

func (s *stubRepo) GetBySerial(ctx context.Context, serial string) (*certs.Certificate, error) {
	id, ok := s.bySerial[serial]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return s.GetByID(ctx, id)
}

func (s *stubRepo) ListByInstitution(ctx context.Context, institutionID string, page shared.Pagination) ([]certs.Certificate, int, error) {
	return nil, 0, nil
}

func (s *stubRepo) ListByIssuer(ctx context.Context, issuerID string) ([]certs.Certificate, error) {
	return nil, nil
}

func (s *stubRepo) ListByHolder(ctx context.Context, holderID string) ([]certs.Certificate, error) {
	return nil, nil
}

func (s *stubRepo) SetMinted(ctx context.Context, id, tokenID, txHash string) error {
	cert, ok := s.certs[id]
	if !ok {
		return shared.ErrNotFound
	}
	cert.TokenID = tokenID
	cert.TxHash = txHash
	cert.Status = certs.StatusIssued
	s.minted = append(s.minted, id)
	return nil
}

func (s *stubRepo) ConsumeClaimToken(ctx context.Context, token, holderID string) (*certs.Certificate, error) {
	claim, ok := s.claims[token]
	if !ok || claim.UsedAt != nil || claim.ExpiresAt.Before(time.Now()) {
		return nil, certs.ErrClaimUnavailable
	}
	now := time.Now()
	claim.UsedAt = &now
	s.claims[token] = claim
	cert := s.certs[claim.CertificateID]
	cert.HolderID = holderID
	cert.Status = certs.StatusClaimed
	cert.ClaimedAt = &now
	return cert, nil
}

func (s *stubRepo) SetRevoked(ctx context.Context, id string) error {
	cert, ok := s.certs[id]
	if !ok {
		return shared.ErrNotFound
	}
	cert.Status = certs.StatusRevoked
	s.revoked = append(s.revoked, id)
	return nil
}

func (s *stubRepo) ExpiredClaimCount(ctx context.Context) (int, error) {
	return 0, nil
}

func (s *stubRepo) DeleteExpiredClaims(ctx context.Context, olderThan time.Duration) (int64, error) {
	return s.sweptCount, nil
}

type stubGateway struct {
	tokens    map[string]*ledger.TokenInfo
	mintCalls int
	transfers []string
	revoked   []string
	infoErr   error
}

func newStubGateway() *stubGateway {
	return &stubGateway{tokens: make(map[string]*ledger.TokenInfo)}
}

func (g *stubGateway) Ping(ctx context.Context) error { return nil }

func (g *stubGateway) Mint(ctx context.Context, serial, metadataURI string) (*ledger.TokenInfo, error) {
	g.mintCalls++
	info := &ledger.TokenInfo{TokenID: "tok-" + serial, Serial: serial, Owner: "institution", TxHash: "0xfeed"}
	g.tokens[info.TokenID] = info
	return info, nil
}

func (g *stubGateway) Transfer(ctx context.Context, tokenID, newOwner string) (*ledger.TokenInfo, error) {
	g.transfers = append(g.transfers, tokenID+"->"+newOwner)
	if info, ok := g.tokens[tokenID]; ok {
		info.Owner = newOwner
		return info, nil
	}
	return nil, ledger.ErrTokenNotFound
}

func (g *stubGateway) Revoke(ctx context.Context, tokenID string) error {
	g.revoked = append(g.revoked, tokenID)
	if info, ok := g.tokens[tokenID]; ok {
		info.Revoked = true
	}
	return nil
}

func (g *stubGateway) IsAssociated(ctx context.Context, owner, tokenID string) (bool, error) {
	info, ok := g.tokens[tokenID]
	if !ok {
		return false, nil
	}
	return !info.Revoked && info.Owner == owner, nil
}

func (g *stubGateway) TokenInfo(ctx context.Context, tokenID string) (*ledger.TokenInfo, error) {
	if g.infoErr != nil {
		return nil, g.infoErr
	}
	info, ok := g.tokens[tokenID]
	if !ok {
		return nil, ledger.ErrTokenNotFound
	}
	return info, nil
}

type recordingEnqueuer struct {
	emails    []jobs.SendEmailPayload
	mints     []jobs.CertMintPayload
	transfers []jobs.CertTransferPayload
}

func (e *recordingEnqueuer) EnqueueSendEmail(ctx context.Context, payload jobs.SendEmailPayload) (*asynq.TaskInfo, error) {
	e.emails = append(e.emails, payload)
	return nil, nil
}

func (e *recordingEnqueuer) EnqueueCertMint(ctx context.Context, payload jobs.CertMintPayload) (*asynq.TaskInfo, error) {
	e.mints = append(e.mints, payload)
	return nil, nil
}

func (e *recordingEnqueuer) EnqueueCertTransfer(ctx context.Context, payload jobs.CertTransferPayload) (*asynq.TaskInfo, error) {
	e.transfers = append(e.transfers, payload)
	return nil, nil
}

type stubMembership struct {
	memberships map[string][]string
}

func (m *stubMembership) InstitutionsFor(ctx context.Context, principalID string) ([]string, error) {
	return m.memberships[principalID], nil
}

type stubIdem struct {
	seen map[string]bool
}

func (s *stubIdem) CheckAndInsert(ctx context.Context, key, module string) error {
	if s.seen == nil {
		s.seen = make(map[string]bool)
	}
	if s.seen[key] {
		return shared.ErrIdempotencyConflict
	}
	s.seen[key] = true
	return nil
}

type fixture struct {
	repo     *stubRepo
	gateway  *stubGateway
	enqueuer *recordingEnqueuer
	idem     *stubIdem
	svc      *certs.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := newStubRepo()
	gateway := newStubGateway()
	enqueuer := &recordingEnqueuer{}
	idem := &stubIdem{}
	svc := certs.NewService(certs.ServiceConfig{
		Repo:     repo,
		Gateway:  gateway,
		Enqueuer: enqueuer,
		Idem:     idem,
		Membership: &stubMembership{memberships: map[string][]string{
			"teacher-1": {"inst-a"},
		}},
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		ClaimTTL: time.Hour,
		BaseURL:  "https://certchain.test",
	})
	return &fixture{repo: repo, gateway: gateway, enqueuer: enqueuer, idem: idem, svc: svc}
}

func issueInput() certs.IssueInput {
	return certs.IssueInput{
		ActorID:        "teacher-1",
		InstitutionID:  "inst-a",
		RecipientEmail: "Grad@Test.Local",
		RecipientName:  "Grace Graduate",
		Title:          "Distributed Systems",
	}
}

func TestIssueEnqueuesMintAndClaimEmail(t *testing.T) {
	f := newFixture(t)

	cert, err := f.svc.Issue(context.Background(), issueInput())

	require.NoError(t, err)
	assert.Equal(t, certs.StatusPendingMint, cert.Status)
	assert.Equal(t, "grad@test.local", cert.RecipientEmail)
	assert.NotEmpty(t, cert.Serial)

	require.Len(t, f.enqueuer.mints, 1)
	assert.Equal(t, cert.ID, f.enqueuer.mints[0].CertificateID)

	require.Len(t, f.enqueuer.emails, 1)
	assert.Equal(t, "grad@test.local", f.enqueuer.emails[0].To)
	assert.Contains(t, f.enqueuer.emails[0].Body, "https://certchain.test/claim/")
}

func TestIssueRejectsOutsideInstitution(t *testing.T) {
	f := newFixture(t)
	input := issueInput()
	input.InstitutionID = "inst-other"

	_, err := f.svc.Issue(context.Background(), input)

	require.ErrorIs(t, err, shared.ErrForbidden)
	assert.Empty(t, f.enqueuer.mints)
}

func TestIssueSuperAdminBypassesMembership(t *testing.T) {
	f := newFixture(t)
	input := issueInput()
	input.ActorID = "root-1"
	input.ActorIsSuper = true
	input.InstitutionID = "inst-any"

	_, err := f.svc.Issue(context.Background(), input)

	require.NoError(t, err)
}

func TestIssueDoubleSubmitBlocked(t *testing.T) {
	f := newFixture(t)
	input := issueInput()
	input.IdempotencyKey = "form-abc"

	_, err := f.svc.Issue(context.Background(), input)
	require.NoError(t, err)

	_, err = f.svc.Issue(context.Background(), input)
	require.ErrorIs(t, err, shared.ErrIdempotencyConflict)
}

func TestClaimEnqueuesTransfer(t *testing.T) {
	f := newFixture(t)
	cert, err := f.svc.Issue(context.Background(), issueInput())
	require.NoError(t, err)

	var token string
	for tok := range f.repo.claims {
		token = tok
	}
	require.NotEmpty(t, token)

	claimed, err := f.svc.Claim(context.Background(), "candidate-1", token)

	require.NoError(t, err)
	assert.Equal(t, cert.ID, claimed.ID)
	assert.Equal(t, certs.StatusClaimed, claimed.Status)
	assert.Equal(t, "candidate-1", claimed.HolderID)

	require.Len(t, f.enqueuer.transfers, 1)
	assert.Equal(t, "candidate-1", f.enqueuer.transfers[0].HolderID)
}

func TestClaimTokenSingleUse(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Issue(context.Background(), issueInput())
	require.NoError(t, err)

	var token string
	for tok := range f.repo.claims {
		token = tok
	}

	_, err = f.svc.Claim(context.Background(), "candidate-1", token)
	require.NoError(t, err)

	_, err = f.svc.Claim(context.Background(), "candidate-2", token)
	require.ErrorIs(t, err, certs.ErrClaimUnavailable)
}

func TestFinalizeMintAnchorsOnce(t *testing.T) {
	f := newFixture(t)
	cert, err := f.svc.Issue(context.Background(), issueInput())
	require.NoError(t, err)

	require.NoError(t, f.svc.FinalizeMint(context.Background(), cert.ID))
	assert.Equal(t, 1, f.gateway.mintCalls)
	assert.Equal(t, certs.StatusIssued, f.repo.certs[cert.ID].Status)
	assert.NotEmpty(t, f.repo.certs[cert.ID].TokenID)

	// Retried deliveries must not mint a second token.
	require.NoError(t, f.svc.FinalizeMint(context.Background(), cert.ID))
	assert.Equal(t, 1, f.gateway.mintCalls)
}

func TestVerifyValidCertificate(t *testing.T) {
	f := newFixture(t)
	cert, err := f.svc.Issue(context.Background(), issueInput())
	require.NoError(t, err)
	require.NoError(t, f.svc.FinalizeMint(context.Background(), cert.ID))

	result, err := f.svc.Verify(context.Background(), cert.Serial)

	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.True(t, result.OnChain)
}

func TestVerifyRevokedCertificate(t *testing.T) {
	f := newFixture(t)
	cert, err := f.svc.Issue(context.Background(), issueInput())
	require.NoError(t, err)
	require.NoError(t, f.svc.FinalizeMint(context.Background(), cert.ID))
	require.NoError(t, f.svc.Revoke(context.Background(), "teacher-1", false, cert.ID))

	result, err := f.svc.Verify(context.Background(), cert.Serial)

	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Contains(t, result.Reason, "revoked")
}

func TestVerifyPendingAnchor(t *testing.T) {
	f := newFixture(t)
	cert, err := f.svc.Issue(context.Background(), issueInput())
	require.NoError(t, err)

	result, err := f.svc.Verify(context.Background(), cert.Serial)

	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.False(t, result.OnChain)
}

func TestVerifyDegradesWhenGatewayDown(t *testing.T) {
	f := newFixture(t)
	cert, err := f.svc.Issue(context.Background(), issueInput())
	require.NoError(t, err)
	require.NoError(t, f.svc.FinalizeMint(context.Background(), cert.ID))
	f.gateway.infoErr = errors.New("gateway down")

	result, err := f.svc.Verify(context.Background(), cert.Serial)

	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Contains(t, result.Reason, "unavailable")
}

func TestRevokeRejectsUnrelatedActor(t *testing.T) {
	f := newFixture(t)
	cert, err := f.svc.Issue(context.Background(), issueInput())
	require.NoError(t, err)

	err = f.svc.Revoke(context.Background(), "stranger-1", false, cert.ID)

	require.ErrorIs(t, err, shared.ErrForbidden)
	assert.Empty(t, f.repo.revoked)
}

func TestRevokeTouchesChainWhenAnchored(t *testing.T) {
	f := newFixture(t)
	cert, err := f.svc.Issue(context.Background(), issueInput())
	require.NoError(t, err)
	require.NoError(t, f.svc.FinalizeMint(context.Background(), cert.ID))

	require.NoError(t, f.svc.Revoke(context.Background(), "teacher-1", false, cert.ID))

	require.Len(t, f.gateway.revoked, 1)
	assert.True(t, strings.HasPrefix(f.gateway.revoked[0], "tok-"))
	assert.Equal(t, certs.StatusRevoked, f.repo.certs[cert.ID].Status)
}
