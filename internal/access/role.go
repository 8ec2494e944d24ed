// Package access implements the role and access model for CertChain:
// effective-role resolution, role-gated access checks, role-prefixed
// path building, navigation filtering, and the route guard.
package access

import "strings"

// Role identifies a principal's capability level.
type Role string

// Canonical roles, highest precedence first.
const (
	RoleSuperAdmin       Role = "super_admin"
	RoleInstitutionAdmin Role = "institution_admin"
	RoleInstructor       Role = "instructor"
	RoleCandidate        Role = "candidate"
)

// Legacy aliases still present in stored assignments. Accepted on input,
// never emitted.
const (
	RoleAdmin  Role = "admin"
	RoleIssuer Role = "issuer"
	RoleUser   Role = "user"
)

// RoleAny marks a route as open to every authenticated principal.
const RoleAny Role = ""

var aliases = map[Role]Role{
	RoleAdmin:  RoleSuperAdmin,
	RoleIssuer: RoleInstructor,
	RoleUser:   RoleCandidate,
}

var precedence = map[Role]int{
	RoleCandidate:        0,
	RoleInstructor:       1,
	RoleInstitutionAdmin: 2,
	RoleSuperAdmin:       3,
}

// Canonical normalises a role string onto the canonical set, mapping legacy
// aliases. The second return is false for unrecognised roles.
func Canonical(r Role) (Role, bool) {
	r = Role(strings.ToLower(strings.TrimSpace(string(r))))
	if canon, ok := aliases[r]; ok {
		return canon, true
	}
	if _, ok := precedence[r]; ok {
		return r, true
	}
	return "", false
}

// Known reports whether the role string names a canonical role or alias.
func Known(r Role) bool {
	_, ok := Canonical(r)
	return ok
}

// ResolveEffectiveRole reduces a principal's full assignment set to a single
// effective role by precedence. Unrecognised strings are ignored; an empty or
// fully unrecognised set yields RoleCandidate. Total and deterministic.
func ResolveEffectiveRole(assignments []string) Role {
	effective := RoleCandidate
	for _, raw := range assignments {
		canon, ok := Canonical(Role(raw))
		if !ok {
			continue
		}
		if precedence[canon] > precedence[effective] {
			effective = canon
		}
	}
	return effective
}
