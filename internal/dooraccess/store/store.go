// Package store persists door transactions and access log entries.
package store

import (
	"context"

	"staykey/internal/dooraccess/models"
	id "staykey/pkg/domain"
)

// Store is the door transaction and access log persistence contract.
//
// Implementations return pkg/sentinel errors: ErrNotFound for missing
// transactions, ErrConflict for duplicate transaction ids, and
// ErrInvalidState when a conditional transition finds the transaction
// outside its expected state.
type Store interface {
	// CreateTransaction stores a new active transaction.
	CreateTransaction(ctx context.Context, tx models.DoorTransaction) error

	// FindTransaction loads a transaction by id.
	FindTransaction(ctx context.Context, transactionID string) (models.DoorTransaction, error)

	// Decide flips an active transaction to used with the given outcome
	// and appends the access log entry in the same commit. If the
	// transaction is no longer active the stored transaction is returned
	// alongside ErrInvalidState and no log row is written, so one
	// transaction can only ever produce one decision and one audit
	// record.
	Decide(ctx context.Context, transactionID string, outcome models.Outcome, reason string, entry models.AccessLogEntry) (models.DoorTransaction, error)

	// MarkExpired flips an active transaction whose window elapsed to
	// expired. Returns the stored transaction unchanged (with
	// ErrInvalidState) when it is not active anymore.
	MarkExpired(ctx context.Context, transactionID string) (models.DoorTransaction, error)

	// LogsByBooking lists access log entries for a reservation, newest
	// first.
	LogsByBooking(ctx context.Context, bookingID id.BookingID) ([]models.AccessLogEntry, error)
}
