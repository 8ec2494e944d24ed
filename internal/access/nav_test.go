package access_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/certchain/certchain/internal/access"
)

func sampleItems() []access.NavItem {
	return []access.NavItem{
		{Title: "Dashboard", Target: "dashboard"},
		{Title: "Issue Certificate", Target: "certificates/new", AllowedRoles: []access.Role{access.RoleInstructor}},
		{Title: "Staff", Target: "staff", AllowedRoles: []access.Role{access.RoleInstitutionAdmin}},
		{Title: "Users", Target: "users", AllowedRoles: []access.Role{access.RoleSuperAdmin}},
	}
}

func titles(items []access.NavItem) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.Title)
	}
	return out
}

func TestFilterVisiblePerRole(t *testing.T) {
	items := sampleItems()

	assert.Equal(t, []string{"Dashboard"}, titles(access.FilterVisible(items, access.RoleCandidate)))
	assert.Equal(t, []string{"Dashboard", "Issue Certificate"}, titles(access.FilterVisible(items, access.RoleInstructor)))
	assert.Equal(t, []string{"Dashboard", "Issue Certificate", "Staff"}, titles(access.FilterVisible(items, access.RoleInstitutionAdmin)))
	assert.Equal(t, []string{"Dashboard", "Issue Certificate", "Staff", "Users"}, titles(access.FilterVisible(items, access.RoleSuperAdmin)))
}

func TestFilterVisibleLateralEquivalence(t *testing.T) {
	items := []access.NavItem{
		{Title: "Issue", AllowedRoles: []access.Role{access.RoleInstructor}},
	}
	assert.Len(t, access.FilterVisible(items, access.RoleIssuer), 1)

	items = []access.NavItem{
		{Title: "Issue", AllowedRoles: []access.Role{access.RoleIssuer}},
	}
	assert.Len(t, access.FilterVisible(items, access.RoleInstructor), 1)
}

func TestFilterVisibleMisconfiguredItemFailsClosed(t *testing.T) {
	items := []access.NavItem{
		{Title: "Mystery", AllowedRoles: []access.Role{"wizard"}},
	}
	for _, role := range []access.Role{access.RoleCandidate, access.RoleInstructor, access.RoleInstitutionAdmin} {
		assert.Empty(t, access.FilterVisible(items, role))
	}
	assert.Len(t, access.FilterVisible(items, access.RoleSuperAdmin), 1)
	assert.Len(t, access.FilterVisible(items, access.RoleAdmin), 1)
}

func TestFilterVisibleIdempotent(t *testing.T) {
	once := access.FilterVisible(sampleItems(), access.RoleInstructor)
	twice := access.FilterVisible(once, access.RoleInstructor)
	assert.Equal(t, once, twice)
}

func TestFilterSectionsHidesEmptySections(t *testing.T) {
	sections := []access.NavSection{
		{Title: "General", Items: []access.NavItem{{Title: "Dashboard", Target: "dashboard"}}},
		{Title: "Admin", Items: []access.NavItem{{Title: "Users", AllowedRoles: []access.Role{access.RoleSuperAdmin}}}},
	}

	candidate := access.FilterSections(sections, access.RoleCandidate)
	assert.Len(t, candidate, 1)
	assert.Equal(t, "General", candidate[0].Title)

	admin := access.FilterSections(sections, access.RoleSuperAdmin)
	assert.Len(t, admin, 2)
}
