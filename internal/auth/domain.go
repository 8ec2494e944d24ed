package auth

import "time"

// Account represents a login-capable principal account.
type Account struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
