// Package postgres provides the Postgres-backed booking store.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"staykey/internal/booking"
	id "staykey/pkg/domain"
	"staykey/pkg/sentinel"
)

// Store reads reservations and co-occupancy grants from Postgres.
type Store struct {
	db *sql.DB
}

// NewStore creates a Postgres booking store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const reservationColumns = `
	id, guest_id, property_id, host_id, room_number,
	check_in, check_out, status, title,
	guest_name, guest_email, guest_national_id`

func (s *Store) ReservationByID(ctx context.Context, bookingID id.BookingID) (booking.Reservation, error) {
	query := fmt.Sprintf(`SELECT %s FROM reservations WHERE id = $1`, reservationColumns)
	r, err := scanReservation(s.db.QueryRowContext(ctx, query, uuid.UUID(bookingID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return booking.Reservation{}, sentinel.ErrNotFound
		}
		return booking.Reservation{}, fmt.Errorf("find reservation by id: %w", err)
	}
	return r, nil
}

func (s *Store) ReservationByShortID(ctx context.Context, shortID string) (booking.Reservation, error) {
	// The short form strips dashes from the UUID text and truncates, so
	// stored ids match with a prefix comparison on the compacted text.
	query := fmt.Sprintf(
		`SELECT %s FROM reservations WHERE replace(id::text, '-', '') LIKE $1 || '%%'`,
		reservationColumns,
	)
	r, err := scanReservation(s.db.QueryRowContext(ctx, query, shortID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return booking.Reservation{}, sentinel.ErrNotFound
		}
		return booking.Reservation{}, fmt.Errorf("find reservation by short id: %w", err)
	}
	return r, nil
}

func scanReservation(row *sql.Row) (booking.Reservation, error) {
	var (
		r                                 booking.Reservation
		resID, guestID, propertyID, hostID uuid.UUID
		status                            string
		title, email, nationalID          sql.NullString
	)
	err := row.Scan(
		&resID, &guestID, &propertyID, &hostID, &r.RoomNumber,
		&r.CheckIn, &r.CheckOut, &status, &title,
		&r.GuestName, &email, &nationalID,
	)
	if err != nil {
		return booking.Reservation{}, err
	}
	r.ID = id.BookingID(resID)
	r.GuestID = id.UserID(guestID)
	r.PropertyID = id.PropertyID(propertyID)
	r.HostID = id.UserID(hostID)
	r.Status = booking.ReservationStatus(status)
	r.Title = title.String
	r.GuestEmail = email.String
	r.GuestNationalID = nationalID.String
	return r, nil
}

const grantColumns = `
	id, booking_id, inviter_id, invitee_id, invitee_email, invitee_name,
	status, created_at, responded_at`

func (s *Store) GrantByID(ctx context.Context, grantID id.GrantID) (booking.CoOccupancyGrant, error) {
	query := fmt.Sprintf(`SELECT %s FROM co_occupancy_grants WHERE id = $1`, grantColumns)
	g, err := scanGrant(s.db.QueryRowContext(ctx, query, uuid.UUID(grantID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return booking.CoOccupancyGrant{}, sentinel.ErrNotFound
		}
		return booking.CoOccupancyGrant{}, fmt.Errorf("find grant by id: %w", err)
	}
	return g, nil
}

func (s *Store) GrantForInvitee(ctx context.Context, bookingID id.BookingID, inviteeID id.UserID) (booking.CoOccupancyGrant, error) {
	query := fmt.Sprintf(`SELECT %s FROM co_occupancy_grants WHERE booking_id = $1 AND invitee_id = $2`, grantColumns)
	g, err := scanGrant(s.db.QueryRowContext(ctx, query, uuid.UUID(bookingID), uuid.UUID(inviteeID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return booking.CoOccupancyGrant{}, sentinel.ErrNotFound
		}
		return booking.CoOccupancyGrant{}, fmt.Errorf("find grant for invitee: %w", err)
	}
	return g, nil
}

func scanGrant(row *sql.Row) (booking.CoOccupancyGrant, error) {
	var (
		g                           booking.CoOccupancyGrant
		grantID, bookingID          uuid.UUID
		inviterID, inviteeID        uuid.UUID
		status                      string
		email, name                 sql.NullString
		respondedAt                 sql.NullTime
	)
	err := row.Scan(
		&grantID, &bookingID, &inviterID, &inviteeID, &email, &name,
		&status, &g.CreatedAt, &respondedAt,
	)
	if err != nil {
		return booking.CoOccupancyGrant{}, err
	}
	g.ID = id.GrantID(grantID)
	g.BookingID = id.BookingID(bookingID)
	g.InviterID = id.UserID(inviterID)
	g.InviteeID = id.UserID(inviteeID)
	g.Status = booking.GrantStatus(status)
	g.InviteeEmail = email.String
	g.InviteeName = name.String
	if respondedAt.Valid {
		t := respondedAt.Time
		g.RespondedAt = &t
	}
	return g, nil
}
