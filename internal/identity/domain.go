package identity

import "time"

// Principal is an account that can hold role assignments.
type Principal struct {
	ID          string
	Email       string
	DisplayName string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Roles       []string
}

// RoleAssignment binds a role name to a principal. Role names are stored as
// written at grant time; legacy aliases stay untouched until resolution.
type RoleAssignment struct {
	PrincipalID string
	RoleName    string
	GrantedBy   string
	GrantedAt   time.Time
}
