package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"staykey/internal/dooraccess/models"
	id "staykey/pkg/domain"
	"staykey/pkg/sentinel"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *MemoryStore
	ctx   context.Context
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = NewMemory()
	s.ctx = context.Background()
}

func (s *MemoryStoreSuite) newTransaction() models.DoorTransaction {
	now := time.Now().UTC()
	return models.DoorTransaction{
		TransactionID: uuid.NewString(),
		PropertyID:    id.PropertyID(uuid.New()),
		Room:          "A101",
		Status:        models.AttemptActive,
		CreatedAt:     now,
		ExpiresAt:     now.Add(15 * time.Minute),
	}
}

func (s *MemoryStoreSuite) entryFor(tx models.DoorTransaction, bookingID id.BookingID, outcome models.Outcome) models.AccessLogEntry {
	return models.AccessLogEntry{
		ID:            uuid.New(),
		BookingID:     &bookingID,
		PropertyID:    tx.PropertyID,
		Method:        models.MethodDigitalCertificate,
		Status:        outcome,
		TransactionID: tx.TransactionID,
		AccessTime:    time.Now().UTC(),
	}
}

func (s *MemoryStoreSuite) TestCreateTransaction() {
	s.T().Run("rejects a duplicate transaction id", func(t *testing.T) {
		tx := s.newTransaction()
		require.NoError(t, s.store.CreateTransaction(s.ctx, tx))
		assert.ErrorIs(t, s.store.CreateTransaction(s.ctx, tx), sentinel.ErrConflict)
	})
}

func (s *MemoryStoreSuite) TestDecide() {
	s.T().Run("flips the transaction and appends the log row together", func(t *testing.T) {
		tx := s.newTransaction()
		require.NoError(t, s.store.CreateTransaction(s.ctx, tx))
		bookingID := id.BookingID(uuid.New())

		decided, err := s.store.Decide(s.ctx, tx.TransactionID, models.OutcomeGranted, "", s.entryFor(tx, bookingID, models.OutcomeGranted))
		require.NoError(t, err)
		assert.Equal(t, models.AttemptUsed, decided.Status)
		assert.Equal(t, models.OutcomeGranted, decided.Outcome)

		logs, err := s.store.LogsByBooking(s.ctx, bookingID)
		require.NoError(t, err)
		assert.Len(t, logs, 1)
	})

	// Justification: one transaction may only ever yield one decision
	// and one audit record; the second decide must lose and must not
	// append a second row.
	s.T().Run("second decide returns the stored transaction and writes nothing", func(t *testing.T) {
		tx := s.newTransaction()
		require.NoError(t, s.store.CreateTransaction(s.ctx, tx))
		bookingID := id.BookingID(uuid.New())

		_, err := s.store.Decide(s.ctx, tx.TransactionID, models.OutcomeDenied, "room mismatch", s.entryFor(tx, bookingID, models.OutcomeDenied))
		require.NoError(t, err)

		stored, err := s.store.Decide(s.ctx, tx.TransactionID, models.OutcomeGranted, "", s.entryFor(tx, bookingID, models.OutcomeGranted))
		assert.ErrorIs(t, err, sentinel.ErrInvalidState)
		assert.Equal(t, models.OutcomeDenied, stored.Outcome)

		logs, err := s.store.LogsByBooking(s.ctx, bookingID)
		require.NoError(t, err)
		assert.Len(t, logs, 1)
	})

	s.T().Run("unknown transaction is not found", func(t *testing.T) {
		_, err := s.store.Decide(s.ctx, uuid.NewString(), models.OutcomeDenied, "", models.AccessLogEntry{})
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}

func (s *MemoryStoreSuite) TestMarkExpired() {
	s.T().Run("expires only active transactions", func(t *testing.T) {
		tx := s.newTransaction()
		require.NoError(t, s.store.CreateTransaction(s.ctx, tx))

		expired, err := s.store.MarkExpired(s.ctx, tx.TransactionID)
		require.NoError(t, err)
		assert.Equal(t, models.AttemptExpired, expired.Status)

		_, err = s.store.MarkExpired(s.ctx, tx.TransactionID)
		assert.ErrorIs(t, err, sentinel.ErrInvalidState)
	})
}
