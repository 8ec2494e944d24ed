package institutions_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certchain/certchain/internal/institutions"
	"github.com/certchain/certchain/internal/shared"
)

type stubRepo struct {
	institutions map[string]*institutions.Institution
	staff        map[string][]institutions.StaffMember
	memberships  map[string][]string
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		institutions: make(map[string]*institutions.Institution),
		staff:        make(map[string][]institutions.StaffMember),
		memberships:  make(map[string][]string),
	}
}

func (s *stubRepo) List(ctx context.Context) ([]institutions.Institution, error) {
	var list []institutions.Institution
	for _, inst := range s.institutions {
		list = append(list, *inst)
	}
	return list, nil
}

func (s *stubRepo) Get(ctx context.Context, id string) (*institutions.Institution, error) {
	inst, ok := s.institutions[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return inst, nil
}

func (s *stubRepo) Create(ctx context.Context, inst institutions.Institution) error {
	s.institutions[inst.ID] = &inst
	return nil
}

func (s *stubRepo) Update(ctx context.Context, inst institutions.Institution) error {
	if _, ok := s.institutions[inst.ID]; !ok {
		return shared.ErrNotFound
	}
	s.institutions[inst.ID] = &inst
	return nil
}

func (s *stubRepo) SetActive(ctx context.Context, id string, active bool) error {
	inst, ok := s.institutions[id]
	if !ok {
		return shared.ErrNotFound
	}
	inst.IsActive = active
	return nil
}

func (s *stubRepo) ListStaff(ctx context.Context, institutionID string) ([]institutions.StaffMember, error) {
	return s.staff[institutionID], nil
}

func (s *stubRepo) AddStaff(ctx context.Context, member institutions.StaffMember) error {
	s.staff[member.InstitutionID] = append(s.staff[member.InstitutionID], member)
	return nil
}

func (s *stubRepo) RemoveStaff(ctx context.Context, institutionID, principalID string) error {
	kept := s.staff[institutionID][:0]
	for _, member := range s.staff[institutionID] {
		if member.PrincipalID != principalID {
			kept = append(kept, member)
		}
	}
	s.staff[institutionID] = kept
	return nil
}

func (s *stubRepo) InstitutionsFor(ctx context.Context, principalID string) ([]string, error) {
	return s.memberships[principalID], nil
}

func TestCreateRequiresName(t *testing.T) {
	svc := institutions.NewService(newStubRepo(), nil, nil)

	_, err := svc.Create(context.Background(), "actor-1", institutions.Institution{Name: "   "})

	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateAssignsID(t *testing.T) {
	repo := newStubRepo()
	svc := institutions.NewService(repo, nil, nil)

	inst, err := svc.Create(context.Background(), "actor-1", institutions.Institution{Name: "Tech Academy"})

	require.NoError(t, err)
	assert.NotEmpty(t, inst.ID)
	assert.Contains(t, repo.institutions, inst.ID)
}

func TestAddStaffRejectsOutsideAdmin(t *testing.T) {
	repo := newStubRepo()
	repo.memberships["admin-1"] = []string{"inst-a"}
	svc := institutions.NewService(repo, nil, nil)

	err := svc.AddStaff(context.Background(), "admin-1", false, institutions.StaffMember{
		InstitutionID: "inst-b",
		PrincipalID:   "teacher-1",
	})

	require.ErrorIs(t, err, shared.ErrForbidden)
	assert.Empty(t, repo.staff["inst-b"])
}

func TestAddStaffAllowsOwnInstitution(t *testing.T) {
	repo := newStubRepo()
	repo.memberships["admin-1"] = []string{"inst-a"}
	svc := institutions.NewService(repo, nil, nil)

	err := svc.AddStaff(context.Background(), "admin-1", false, institutions.StaffMember{
		InstitutionID: "inst-a",
		PrincipalID:   "teacher-1",
		Title:         "Instructor",
	})

	require.NoError(t, err)
	require.Len(t, repo.staff["inst-a"], 1)
	assert.Equal(t, "admin-1", repo.staff["inst-a"][0].AddedBy)
}

func TestAddStaffSuperAdminBypassesMembership(t *testing.T) {
	repo := newStubRepo()
	svc := institutions.NewService(repo, nil, nil)

	err := svc.AddStaff(context.Background(), "root-1", true, institutions.StaffMember{
		InstitutionID: "inst-z",
		PrincipalID:   "teacher-9",
	})

	require.NoError(t, err)
	require.Len(t, repo.staff["inst-z"], 1)
}

func TestRemoveStaffScoped(t *testing.T) {
	repo := newStubRepo()
	repo.memberships["admin-1"] = []string{"inst-a"}
	repo.staff["inst-a"] = []institutions.StaffMember{{InstitutionID: "inst-a", PrincipalID: "teacher-1"}}
	svc := institutions.NewService(repo, nil, nil)

	require.NoError(t, svc.RemoveStaff(context.Background(), "admin-1", false, "inst-a", "teacher-1"))
	assert.Empty(t, repo.staff["inst-a"])

	err := svc.RemoveStaff(context.Background(), "admin-1", false, "inst-b", "teacher-2")
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestArchiveTogglesActive(t *testing.T) {
	repo := newStubRepo()
	repo.institutions["inst-a"] = &institutions.Institution{ID: "inst-a", Name: "Tech Academy", IsActive: true}
	svc := institutions.NewService(repo, nil, nil)

	require.NoError(t, svc.Archive(context.Background(), "actor-1", "inst-a"))
	assert.False(t, repo.institutions["inst-a"].IsActive)

	require.NoError(t, svc.Restore(context.Background(), "actor-1", "inst-a"))
	assert.True(t, repo.institutions["inst-a"].IsActive)
}
