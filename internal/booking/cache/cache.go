// Package cache decorates a booking store with a Redis read-through
// cache. Reservations are immutable from this service's point of view,
// so a short TTL keeps the door path off the database without risking
// stale admission decisions.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"staykey/internal/booking"
	id "staykey/pkg/domain"
)

const defaultTTL = 2 * time.Minute

// Store wraps a booking.Store with Redis caching of reservation reads.
// Grant reads pass through uncached; they gate revocation, where
// staleness is not acceptable.
type Store struct {
	inner  booking.Store
	client *redis.Client
	ttl    time.Duration
	log    *slog.Logger
}

// Option configures the cache store.
type Option func(*Store)

// WithTTL overrides the default cache entry lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// WithLogger sets the logger used for cache faults.
func WithLogger(log *slog.Logger) Option {
	return func(s *Store) { s.log = log }
}

// NewStore wraps inner with a Redis cache.
func NewStore(inner booking.Store, client *redis.Client, opts ...Option) *Store {
	s := &Store{
		inner:  inner,
		client: client,
		ttl:    defaultTTL,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func reservationKey(bookingID id.BookingID) string {
	return "staykey:reservation:" + bookingID.String()
}

func shortIDKey(shortID string) string {
	return "staykey:reservation:short:" + shortID
}

func (s *Store) ReservationByID(ctx context.Context, bookingID id.BookingID) (booking.Reservation, error) {
	if r, ok := s.get(ctx, reservationKey(bookingID)); ok {
		return r, nil
	}
	r, err := s.inner.ReservationByID(ctx, bookingID)
	if err != nil {
		return booking.Reservation{}, err
	}
	s.put(ctx, reservationKey(bookingID), r)
	return r, nil
}

func (s *Store) ReservationByShortID(ctx context.Context, shortID string) (booking.Reservation, error) {
	if r, ok := s.get(ctx, shortIDKey(shortID)); ok {
		return r, nil
	}
	r, err := s.inner.ReservationByShortID(ctx, shortID)
	if err != nil {
		return booking.Reservation{}, err
	}
	s.put(ctx, shortIDKey(shortID), r)
	return r, nil
}

func (s *Store) GrantByID(ctx context.Context, grantID id.GrantID) (booking.CoOccupancyGrant, error) {
	return s.inner.GrantByID(ctx, grantID)
}

func (s *Store) GrantForInvitee(ctx context.Context, bookingID id.BookingID, inviteeID id.UserID) (booking.CoOccupancyGrant, error) {
	return s.inner.GrantForInvitee(ctx, bookingID, inviteeID)
}

// get fetches and decodes a cached reservation. Cache faults degrade to
// a miss so Redis outages never break reads.
func (s *Store) get(ctx context.Context, key string) (booking.Reservation, bool) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.log.WarnContext(ctx, "reservation cache read failed", slog.String("key", key), slog.Any("error", err))
		}
		return booking.Reservation{}, false
	}
	var r booking.Reservation
	if err := json.Unmarshal(raw, &r); err != nil {
		s.log.WarnContext(ctx, "reservation cache entry corrupt", slog.String("key", key), slog.Any("error", err))
		return booking.Reservation{}, false
	}
	return r, true
}

func (s *Store) put(ctx context.Context, key string, r booking.Reservation) {
	raw, err := json.Marshal(r)
	if err != nil {
		return
	}
	if err := s.client.Set(ctx, key, raw, s.ttl).Err(); err != nil {
		s.log.WarnContext(ctx, "reservation cache write failed", slog.String("key", key), slog.Any("error", err))
	}
}
