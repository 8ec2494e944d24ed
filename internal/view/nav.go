package view

import "github.com/certchain/certchain/internal/access"

// DefaultNav is the full navigation tree before per-role filtering. Targets
// are role relative; access.BuildPath prefixes them at render time. Some
// entries still carry legacy alias names, which resolve through the alias
// table like any stored assignment.
func DefaultNav() []access.NavSection {
	return []access.NavSection{
		{
			Title: "Overview",
			Items: []access.NavItem{
				{Title: "Dashboard", Target: "dashboard", Icon: "home"},
			},
		},
		{
			Title: "Certificates",
			Items: []access.NavItem{
				{Title: "Certificates", Target: "certificates", Icon: "award"},
				{Title: "Issue Certificate", Target: "certificates/new", Icon: "plus", AllowedRoles: []access.Role{access.RoleIssuer, access.RoleInstitutionAdmin}},
			},
		},
		{
			Title: "Institution",
			Items: []access.NavItem{
				{Title: "Staff", Target: "institutions", Icon: "users", AllowedRoles: []access.Role{access.RoleInstitutionAdmin}},
			},
		},
		{
			Title: "Administration",
			Items: []access.NavItem{
				{Title: "Principals", Target: "principals", Icon: "shield", AllowedRoles: []access.Role{access.RoleSuperAdmin}},
				{Title: "Institutions", Target: "institutions", Icon: "building", AllowedRoles: []access.Role{access.RoleAdmin}},
				{Title: "Audit Trail", Target: "audit", Icon: "list", AllowedRoles: []access.Role{access.RoleSuperAdmin}},
			},
		},
		{
			Title: "Account",
			Items: []access.NavItem{
				{Title: "Profile", Target: "profile", Icon: "user"},
				{Title: "Settings", Target: "settings", Icon: "settings"},
			},
		},
	}
}

// NavFor filters the default tree for one effective role.
func NavFor(role access.Role) []access.NavSection {
	return access.FilterSections(DefaultNav(), role)
}
