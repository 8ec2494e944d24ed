package access

import "strings"

// HasAccess reports whether a principal with the given effective role may
// enter a resource gated on required. Total: every pair yields a boolean.
//
// super_admin passes every check. A required role of candidate admits any
// authenticated principal. issuer and instructor are laterally equivalent:
// either satisfies a requirement stated as the other, handled here through
// the shared alias table rather than a linear hierarchy index.
func HasAccess(effective, required Role) bool {
	eff, effKnown := Canonical(effective)
	if effKnown && eff == RoleSuperAdmin {
		return true
	}

	req, reqKnown := Canonical(required)
	if !reqKnown {
		// Unrecognised requirement: only an exact match qualifies.
		return strings.EqualFold(strings.TrimSpace(string(effective)), strings.TrimSpace(string(required)))
	}

	switch req {
	case RoleCandidate:
		return true
	case RoleInstructor:
		return effKnown && (eff == RoleInstructor || eff == RoleInstitutionAdmin)
	case RoleInstitutionAdmin:
		return effKnown && eff == RoleInstitutionAdmin
	default:
		return effKnown && eff == req
	}
}
