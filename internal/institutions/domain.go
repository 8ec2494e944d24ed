package institutions

import "time"

// Institution is an issuing organisation.
type Institution struct {
	ID          string
	Name        string
	Website     string
	Description string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// StaffMember links a principal to an institution.
type StaffMember struct {
	InstitutionID string
	PrincipalID   string
	Email         string
	DisplayName   string
	Title         string
	AddedBy       string
	AddedAt       time.Time
}
