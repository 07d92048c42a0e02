// Package memory provides an in-memory booking store used by tests and
// by deployments that run without Postgres.
package memory

import (
	"context"
	"sync"

	"staykey/internal/booking"
	id "staykey/pkg/domain"
	"staykey/pkg/sentinel"
)

// Store is an in-memory, mutex-guarded booking store.
type Store struct {
	mu           sync.RWMutex
	reservations map[id.BookingID]booking.Reservation
	grants       map[id.GrantID]booking.CoOccupancyGrant
}

// NewStore creates an empty in-memory booking store.
func NewStore() *Store {
	return &Store{
		reservations: make(map[id.BookingID]booking.Reservation),
		grants:       make(map[id.GrantID]booking.CoOccupancyGrant),
	}
}

// PutReservation inserts or replaces a reservation. Test seeding helper.
func (s *Store) PutReservation(r booking.Reservation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reservations[r.ID] = r
}

// PutGrant inserts or replaces a grant. Test seeding helper.
func (s *Store) PutGrant(g booking.CoOccupancyGrant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants[g.ID] = g
}

func (s *Store) ReservationByID(_ context.Context, bookingID id.BookingID) (booking.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reservations[bookingID]
	if !ok {
		return booking.Reservation{}, sentinel.ErrNotFound
	}
	return r, nil
}

func (s *Store) ReservationByShortID(_ context.Context, shortID string) (booking.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.reservations {
		if r.ID.ShortForm() == shortID {
			return r, nil
		}
	}
	return booking.Reservation{}, sentinel.ErrNotFound
}

func (s *Store) GrantByID(_ context.Context, grantID id.GrantID) (booking.CoOccupancyGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.grants[grantID]
	if !ok {
		return booking.CoOccupancyGrant{}, sentinel.ErrNotFound
	}
	return g, nil
}

func (s *Store) GrantForInvitee(_ context.Context, bookingID id.BookingID, inviteeID id.UserID) (booking.CoOccupancyGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, g := range s.grants {
		if g.BookingID == bookingID && g.InviteeID == inviteeID {
			return g, nil
		}
	}
	return booking.CoOccupancyGrant{}, sentinel.ErrNotFound
}
