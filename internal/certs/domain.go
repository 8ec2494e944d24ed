package certs

import "time"

// CertificateStatus tracks the lifecycle of an issued certificate.
type CertificateStatus string

const (
	// StatusPendingMint means the record exists but the chain anchor is queued.
	StatusPendingMint CertificateStatus = "pending_mint"
	// StatusIssued means the certificate is anchored and awaiting claim.
	StatusIssued CertificateStatus = "issued"
	// StatusClaimed means a candidate holds the certificate.
	StatusClaimed CertificateStatus = "claimed"
	// StatusRevoked means the issuer withdrew the certificate.
	StatusRevoked CertificateStatus = "revoked"
)

// Certificate is an issued credential.
type Certificate struct {
	ID             string
	Serial         string
	InstitutionID  string
	IssuerID       string
	HolderID       string
	RecipientEmail string
	RecipientName  string
	Title          string
	Description    string
	TokenID        string
	TxHash         string
	Status         CertificateStatus
	IssuedAt       time.Time
	ClaimedAt      *time.Time
	RevokedAt      *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ClaimToken is a single-use secret mailed to the recipient. Consuming it
// binds the certificate to the claiming principal.
type ClaimToken struct {
	Token         string
	CertificateID string
	ExpiresAt     time.Time
	UsedAt        *time.Time
	CreatedAt     time.Time
}

// VerificationResult is what the public verify page renders.
type VerificationResult struct {
	Certificate *Certificate
	OnChain     bool
	ChainOwner  string
	Valid       bool
	Reason      string
}
