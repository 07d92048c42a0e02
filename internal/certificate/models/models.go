// Package models defines the certificate record owned by the lifecycle
// manager. The certificate is the platform's internal view of a room
// access credential minted by the external issuer; the cryptographic
// artifact itself never lands here.
package models

import (
	"time"

	id "staykey/pkg/domain"
)

// Status is the certificate lifecycle state.
type Status string

const (
	StatusPending Status = "pending"
	StatusClaimed Status = "claimed"
	StatusRevoked Status = "revoked"
	StatusExpired Status = "expired"
)

// Terminal reports whether the status admits no further transitions.
// Claimed certificates can still be revoked or expire; revoked and
// expired ones cannot move again.
func (s Status) Terminal() bool {
	return s == StatusRevoked || s == StatusExpired
}

// OccupancyRole distinguishes the reservation holder from an invited
// co-occupant. It decides who may revoke the certificate later.
type OccupancyRole string

const (
	RolePrimary    OccupancyRole = "primary"
	RoleCoOccupant OccupancyRole = "co-occupant"
)

// Certificate is the persisted credential record.
type Certificate struct {
	ID            id.CertificateID
	BookingID     id.BookingID
	UserID        id.UserID
	GrantID       *id.GrantID
	Role          OccupancyRole
	TransactionID string
	// CredentialID is the issuer's identifier for the minted credential.
	// Empty until the first claim observation.
	CredentialID string
	// Nonce is the 4-character disambiguator embedded in the issued
	// artifact. Unique within a booking.
	Nonce     string
	Status    Status
	CreatedAt time.Time
	ClaimedAt *time.Time
	RevokedAt *time.Time
	ExpiresAt *time.Time
}

// ExpiryPassed reports whether the certificate's validity window has
// elapsed at the given instant. Certificates without an expiry never
// expire by time.
func (c Certificate) ExpiryPassed(now time.Time) bool {
	return c.ExpiresAt != nil && now.After(*c.ExpiresAt)
}

// IssueResult carries the one-shot artifact returned to the caller at
// issuance. The QR image and deep link are never persisted.
type IssueResult struct {
	Certificate Certificate
	QRCode      string
	DeepLink    string
}
