// Package booking holds the reservation and co-occupancy records that
// credential issuance and door admission are judged against. This service
// reads them; they are written by the reservation system upstream.
package booking

import (
	"time"

	id "staykey/pkg/domain"
)

// ReservationStatus is the lifecycle state of a stay.
type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "pending"
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationCancelled ReservationStatus = "cancelled"
	ReservationCompleted ReservationStatus = "completed"
)

// Reservation is one booked stay at a property.
type Reservation struct {
	ID         id.BookingID
	GuestID    id.UserID
	PropertyID id.PropertyID
	HostID     id.UserID
	RoomNumber string
	CheckIn    time.Time
	CheckOut   time.Time
	Status     ReservationStatus
	Title      string

	// Primary guest identity as recorded at booking time. Needed to
	// assemble credential claims without a round trip to the user service.
	GuestName       string
	GuestEmail      string
	GuestNationalID string
}

// GrantStatus is the lifecycle state of a co-occupancy invitation.
type GrantStatus string

const (
	GrantPending  GrantStatus = "pending"
	GrantAccepted GrantStatus = "accepted"
	GrantDeclined GrantStatus = "declined"
	GrantRevoked  GrantStatus = "revoked"
)

// CoOccupancyGrant records that the primary guest invited another user
// to share the stay. Only accepted grants entitle the invitee to a
// credential of their own.
type CoOccupancyGrant struct {
	ID           id.GrantID
	BookingID    id.BookingID
	InviterID    id.UserID
	InviteeID    id.UserID
	InviteeEmail string
	InviteeName  string
	Status       GrantStatus
	CreatedAt    time.Time
	RespondedAt  *time.Time
}

// Accepted reports whether the grant currently entitles the invitee.
func (g CoOccupancyGrant) Accepted() bool {
	return g.Status == GrantAccepted
}
