package access_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/certchain/certchain/internal/access"
)

func TestResolveEffectiveRolePrecedence(t *testing.T) {
	cases := []struct {
		name        string
		assignments []string
		want        access.Role
	}{
		{"empty set defaults to candidate", nil, access.RoleCandidate},
		{"single candidate", []string{"candidate"}, access.RoleCandidate},
		{"super admin wins over everything", []string{"candidate", "instructor", "super_admin"}, access.RoleSuperAdmin},
		{"legacy admin counts as super admin", []string{"instructor", "admin"}, access.RoleSuperAdmin},
		{"institution admin over instructor", []string{"instructor", "institution_admin"}, access.RoleInstitutionAdmin},
		{"legacy issuer resolves to instructor", []string{"issuer"}, access.RoleInstructor},
		{"legacy user resolves to candidate", []string{"user"}, access.RoleCandidate},
		{"unknown strings are ignored", []string{"superhero", "instructor"}, access.RoleInstructor},
		{"only unknown strings fall back to candidate", []string{"superhero", "wizard"}, access.RoleCandidate},
		{"multi-row precedence honored", []string{"super_admin", "candidate"}, access.RoleSuperAdmin},
		{"whitespace and case tolerated", []string{"  Instructor  "}, access.RoleInstructor},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, access.ResolveEffectiveRole(tc.assignments))
		})
	}
}

func TestCanonical(t *testing.T) {
	for alias, want := range map[access.Role]access.Role{
		access.RoleAdmin:  access.RoleSuperAdmin,
		access.RoleIssuer: access.RoleInstructor,
		access.RoleUser:   access.RoleCandidate,
	} {
		got, ok := access.Canonical(alias)
		assert.True(t, ok)
		assert.Equal(t, want, got)
	}

	_, ok := access.Canonical("warlock")
	assert.False(t, ok)

	got, ok := access.Canonical("institution_admin")
	assert.True(t, ok)
	assert.Equal(t, access.RoleInstitutionAdmin, got)
}

func TestResolveEffectiveRoleDeterministic(t *testing.T) {
	set := []string{"candidate", "issuer", "institution_admin", "nonsense"}
	first := access.ResolveEffectiveRole(set)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, access.ResolveEffectiveRole(set))
	}
}
