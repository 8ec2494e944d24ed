package identity_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certchain/certchain/internal/identity"
	"github.com/certchain/certchain/internal/shared"
)

type stubRepo struct {
	assignments map[string][]string
	granted     []string
	revoked     []string
	replaced    [][]string
}

func newStubRepo() *stubRepo {
	return &stubRepo{assignments: make(map[string][]string)}
}

func (s *stubRepo) ListPrincipals(ctx context.Context, page shared.Pagination) ([]identity.Principal, int, error) {
	return nil, 0, nil
}

func (s *stubRepo) GetPrincipal(ctx context.Context, id string) (*identity.Principal, error) {
	return nil, shared.ErrNotFound
}

func (s *stubRepo) ListRoleAssignments(ctx context.Context, principalID string) ([]string, error) {
	return s.assignments[principalID], nil
}

func (s *stubRepo) GrantRole(ctx context.Context, principalID, roleName, grantedBy string) error {
	s.granted = append(s.granted, roleName)
	s.assignments[principalID] = append(s.assignments[principalID], roleName)
	return nil
}

func (s *stubRepo) RevokeRole(ctx context.Context, principalID, roleName string) error {
	s.revoked = append(s.revoked, roleName)
	return nil
}

func (s *stubRepo) ReplaceRoles(ctx context.Context, principalID string, roleNames []string, grantedBy string) error {
	s.replaced = append(s.replaced, roleNames)
	s.assignments[principalID] = roleNames
	return nil
}

func (s *stubRepo) SetActive(ctx context.Context, principalID string, active bool) error {
	return nil
}

type recordingAudit struct {
	logs []shared.AuditLog
}

func (r *recordingAudit) Record(ctx context.Context, log shared.AuditLog) error {
	r.logs = append(r.logs, log)
	return nil
}

type recordingInvalidator struct {
	invalidated []string
}

func (r *recordingInvalidator) Invalidate(ctx context.Context, principalID string) {
	r.invalidated = append(r.invalidated, principalID)
}

func TestGrantRoleRejectsUnknownRole(t *testing.T) {
	repo := newStubRepo()
	svc := identity.NewService(repo, &recordingAudit{}, &recordingInvalidator{}, nil)

	err := svc.GrantRole(context.Background(), "actor-1", "principal-1", "galactic_overlord")

	require.ErrorIs(t, err, shared.ErrValidation)
	assert.Empty(t, repo.granted)
}

func TestGrantRoleAcceptsLegacyAlias(t *testing.T) {
	repo := newStubRepo()
	audit := &recordingAudit{}
	invalidator := &recordingInvalidator{}
	svc := identity.NewService(repo, audit, invalidator, nil)

	err := svc.GrantRole(context.Background(), "actor-1", "principal-1", "issuer")

	require.NoError(t, err)
	assert.Equal(t, []string{"issuer"}, repo.granted)
	assert.Equal(t, []string{"principal-1"}, invalidator.invalidated)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, "role.grant", audit.logs[0].Action)
	assert.Equal(t, "actor-1", audit.logs[0].ActorID)
}

func TestRevokeRoleInvalidatesCache(t *testing.T) {
	repo := newStubRepo()
	invalidator := &recordingInvalidator{}
	svc := identity.NewService(repo, &recordingAudit{}, invalidator, nil)

	err := svc.RevokeRole(context.Background(), "actor-1", "principal-2", "instructor")

	require.NoError(t, err)
	assert.Equal(t, []string{"instructor"}, repo.revoked)
	assert.Equal(t, []string{"principal-2"}, invalidator.invalidated)
}

func TestReplaceRolesValidatesEveryName(t *testing.T) {
	repo := newStubRepo()
	svc := identity.NewService(repo, &recordingAudit{}, &recordingInvalidator{}, nil)

	err := svc.ReplaceRoles(context.Background(), "actor-1", "principal-3", []string{"candidate", "bogus"})

	require.ErrorIs(t, err, shared.ErrValidation)
	assert.Empty(t, repo.replaced)
}

func TestReplaceRolesRecordsAudit(t *testing.T) {
	repo := newStubRepo()
	audit := &recordingAudit{}
	svc := identity.NewService(repo, audit, &recordingInvalidator{}, nil)

	err := svc.ReplaceRoles(context.Background(), "actor-1", "principal-3", []string{"admin", "candidate"})

	require.NoError(t, err)
	require.Len(t, repo.replaced, 1)
	assert.Equal(t, []string{"admin", "candidate"}, repo.replaced[0])
	require.Len(t, audit.logs, 1)
	assert.Equal(t, "role.replace", audit.logs[0].Action)
}
