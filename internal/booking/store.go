package booking

import (
	"context"

	id "staykey/pkg/domain"
)

// Store exposes read access to reservations and co-occupancy grants.
//
// Implementations return sentinel.ErrNotFound when a record does not
// exist so callers can map it to their own error taxonomy.
type Store interface {
	// ReservationByID fetches one reservation.
	ReservationByID(ctx context.Context, bookingID id.BookingID) (Reservation, error)
	// ReservationByShortID resolves a reservation from the compacted
	// booking identifier carried inside credential claims.
	ReservationByShortID(ctx context.Context, shortID string) (Reservation, error)
	// GrantByID fetches one co-occupancy grant.
	GrantByID(ctx context.Context, grantID id.GrantID) (CoOccupancyGrant, error)
	// GrantForInvitee finds the grant linking a booking to an invited user,
	// regardless of grant status.
	GrantForInvitee(ctx context.Context, bookingID id.BookingID, inviteeID id.UserID) (CoOccupancyGrant, error)
}
