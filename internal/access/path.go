package access

import "strings"

// Shared namespaces are served at the root, outside role-prefixed routing.
var sharedNamespaces = []string{"settings/", "profile/", "identity/"}

// RolePrefix returns the URL namespace segment for a role. Aliases collapse
// onto their canonical segment; anything unrecognised falls back to candidate.
func RolePrefix(r Role) string {
	canon, ok := Canonical(r)
	if !ok {
		return string(RoleCandidate)
	}
	return string(canon)
}

// BuildPath maps a role-agnostic navigation target such as "dashboard" or
// "settings/account" to a concrete path. Targets inside a shared namespace
// bypass role prefixing.
func BuildPath(target string, r Role) string {
	target = strings.TrimLeft(target, "/")
	for _, ns := range sharedNamespaces {
		if strings.HasPrefix(target, ns) || target == strings.TrimSuffix(ns, "/") {
			return "/" + target
		}
	}
	return "/" + RolePrefix(r) + "/" + target
}

// HomePath returns the default landing page for a role, used by the route
// guard when bouncing an under-privileged principal.
func HomePath(r Role) string {
	return BuildPath("dashboard", r)
}
