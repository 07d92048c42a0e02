// Package store persists certificate records. Implementations enforce
// the (booking, nonce) uniqueness that keeps the artifact-embedded
// disambiguator collision-free, and expose an atomic validate-mutate
// primitive for status transitions.
package store

import (
	"context"

	"staykey/internal/certificate/models"
	id "staykey/pkg/domain"
)

// Store is the certificate persistence port. Lookups return
// sentinel.ErrNotFound for missing records; Save returns
// sentinel.ErrConflict when the (booking, nonce) pair or transaction
// identifier already exists.
type Store interface {
	Save(ctx context.Context, cert models.Certificate) error
	FindByID(ctx context.Context, certID id.CertificateID) (models.Certificate, error)
	FindByTransactionID(ctx context.Context, transactionID string) (models.Certificate, error)
	FindByBookingAndNonce(ctx context.Context, bookingID id.BookingID, nonce string) (models.Certificate, error)
	ListByBooking(ctx context.Context, bookingID id.BookingID) ([]models.Certificate, error)

	// Execute atomically loads the certificate, runs validate against the
	// current row, applies mutate and persists the result. Concurrent
	// callers serialize here, which is what makes first-observation-wins
	// transitions safe without read-then-write races.
	Execute(ctx context.Context, certID id.CertificateID, validate func(*models.Certificate) error, mutate func(*models.Certificate)) (models.Certificate, error)
}
