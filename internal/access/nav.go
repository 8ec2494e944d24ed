package access

// NavItem describes one entry in the navigation menu. Target is role-agnostic
// and resolved through BuildPath at render time. An empty AllowedRoles slice
// makes the item visible to every role.
type NavItem struct {
	Title        string
	Target       string
	Icon         string
	AllowedRoles []Role
}

// NavSection groups navigation items under a heading. Sections are filtered
// independently; a section with no surviving items is dropped.
type NavSection struct {
	Title string
	Items []NavItem
}

// Visible reports whether the item should be shown to the effective role.
// Constrained items reuse the HasAccess rules, so a constraint naming
// "instructor" also admits issuer and super_admin passes unconditionally.
// Unrecognised role names in the constraint are dropped, leaving a fully
// misconfigured item visible to super_admin only.
func (i NavItem) Visible(effective Role) bool {
	if len(i.AllowedRoles) == 0 {
		return true
	}
	if eff, ok := Canonical(effective); ok && eff == RoleSuperAdmin {
		return true
	}
	for _, allowed := range i.AllowedRoles {
		if !Known(allowed) {
			continue
		}
		if HasAccess(effective, allowed) {
			return true
		}
	}
	return false
}

// FilterVisible returns the items visible to the effective role, preserving
// order. Idempotent: filtering an already filtered list is a no-op.
func FilterVisible(items []NavItem, effective Role) []NavItem {
	visible := make([]NavItem, 0, len(items))
	for _, item := range items {
		if item.Visible(effective) {
			visible = append(visible, item)
		}
	}
	return visible
}

// FilterSections filters every section independently and hides sections left
// empty for the effective role.
func FilterSections(sections []NavSection, effective Role) []NavSection {
	out := make([]NavSection, 0, len(sections))
	for _, section := range sections {
		items := FilterVisible(section.Items, effective)
		if len(items) == 0 {
			continue
		}
		out = append(out, NavSection{Title: section.Title, Items: items})
	}
	return out
}
