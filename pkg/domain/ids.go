// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "staykey/pkg/domain-errors"
)

// Distinct ID types - compiler prevents passing a UserID where a BookingID is expected.
type (
	UserID        uuid.UUID
	PropertyID    uuid.UUID
	BookingID     uuid.UUID
	GrantID       uuid.UUID
	CertificateID uuid.UUID
)

// Parse functions - use at trust boundaries (handlers, API inputs).

func ParseUserID(s string) (UserID, error) {
	id, err := parseUUID(s, "user ID")
	return UserID(id), err
}

func ParsePropertyID(s string) (PropertyID, error) {
	id, err := parseUUID(s, "property ID")
	return PropertyID(id), err
}

func ParseBookingID(s string) (BookingID, error) {
	id, err := parseUUID(s, "booking ID")
	return BookingID(id), err
}

func ParseGrantID(s string) (GrantID, error) {
	id, err := parseUUID(s, "grant ID")
	return GrantID(id), err
}

func ParseCertificateID(s string) (CertificateID, error) {
	id, err := parseUUID(s, "certificate ID")
	return CertificateID(id), err
}

// String methods - for logging and debugging.

func (id UserID) String() string        { return uuid.UUID(id).String() }
func (id PropertyID) String() string    { return uuid.UUID(id).String() }
func (id BookingID) String() string     { return uuid.UUID(id).String() }
func (id GrantID) String() string       { return uuid.UUID(id).String() }
func (id CertificateID) String() string { return uuid.UUID(id).String() }

// IsNil checks - used for service-layer validation.

func (id UserID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id PropertyID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id BookingID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id GrantID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id CertificateID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// ShortForm returns the identifier with separators stripped and truncated to
// max characters. The external issuer only accepts bare alphanumeric field
// values, so this form is what ends up inside issued artifacts and presented
// claims.
func (id BookingID) ShortForm() string { return shortForm(uuid.UUID(id), 30) }
func (id UserID) ShortForm() string    { return shortForm(uuid.UUID(id), 20) }

func shortForm(id uuid.UUID, max int) string {
	s := strings.ReplaceAll(id.String(), "-", "")
	if len(s) > max {
		s = s[:max]
	}
	return s
}

// parseUUID is the shared validation logic.
// Nil UUIDs are allowed here; use IsNil() at the service layer for business
// validation so store lookups can return proper "not found" errors.
func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label+" format")
	}
	return id, nil
}
