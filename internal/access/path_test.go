package access_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/certchain/certchain/internal/access"
)

func TestBuildPathRolePrefixed(t *testing.T) {
	assert.Equal(t, "/institution_admin/dashboard", access.BuildPath("dashboard", access.RoleInstitutionAdmin))
	assert.Equal(t, "/super_admin/dashboard", access.BuildPath("dashboard", access.RoleSuperAdmin))
	assert.Equal(t, "/candidate/certificates", access.BuildPath("certificates", access.RoleCandidate))
}

func TestBuildPathAliasesCollapse(t *testing.T) {
	assert.Equal(t, "/super_admin/dashboard", access.BuildPath("dashboard", access.RoleAdmin))
	assert.Equal(t, "/instructor/dashboard", access.BuildPath("dashboard", access.RoleIssuer))
	assert.Equal(t, "/candidate/dashboard", access.BuildPath("dashboard", access.RoleUser))
}

func TestBuildPathUnknownRoleFallsBackToCandidate(t *testing.T) {
	assert.Equal(t, "/candidate/dashboard", access.BuildPath("dashboard", "warlock"))
}

func TestBuildPathSharedNamespaces(t *testing.T) {
	for _, role := range []access.Role{access.RoleSuperAdmin, access.RoleInstitutionAdmin, access.RoleInstructor, access.RoleCandidate, "unknown"} {
		assert.Equal(t, "/settings/account", access.BuildPath("settings/account", role))
		assert.Equal(t, "/profile/avatar", access.BuildPath("profile/avatar", role))
		assert.Equal(t, "/identity/wallet", access.BuildPath("identity/wallet", role))
	}
}

func TestBuildPathStripsLeadingSlash(t *testing.T) {
	assert.Equal(t, "/instructor/certificates/new", access.BuildPath("/certificates/new", access.RoleInstructor))
	assert.Equal(t, "/settings/account", access.BuildPath("/settings/account", access.RoleInstructor))
}

func TestHomePath(t *testing.T) {
	assert.Equal(t, "/instructor/dashboard", access.HomePath(access.RoleInstructor))
	assert.Equal(t, "/candidate/dashboard", access.HomePath(access.RoleCandidate))
}
