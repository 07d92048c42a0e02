package store

import (
	"context"
	"sort"
	"sync"

	"staykey/internal/dooraccess/models"
	id "staykey/pkg/domain"
	"staykey/pkg/sentinel"
)

// MemoryStore is an in-memory Store for tests and local development.
type MemoryStore struct {
	mu           sync.RWMutex
	transactions map[string]models.DoorTransaction
	logs         []models.AccessLogEntry
}

func NewMemory() *MemoryStore {
	return &MemoryStore{
		transactions: make(map[string]models.DoorTransaction),
	}
}

func (s *MemoryStore) CreateTransaction(_ context.Context, tx models.DoorTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.transactions[tx.TransactionID]; exists {
		return sentinel.ErrConflict
	}
	s.transactions[tx.TransactionID] = tx
	return nil
}

func (s *MemoryStore) FindTransaction(_ context.Context, transactionID string) (models.DoorTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, exists := s.transactions[transactionID]
	if !exists {
		return models.DoorTransaction{}, sentinel.ErrNotFound
	}
	return tx, nil
}

func (s *MemoryStore) Decide(_ context.Context, transactionID string, outcome models.Outcome, reason string, entry models.AccessLogEntry) (models.DoorTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, exists := s.transactions[transactionID]
	if !exists {
		return models.DoorTransaction{}, sentinel.ErrNotFound
	}
	if tx.Status != models.AttemptActive {
		return tx, sentinel.ErrInvalidState
	}

	tx.Status = models.AttemptUsed
	tx.Outcome = outcome
	tx.Reason = reason
	s.transactions[transactionID] = tx
	s.logs = append(s.logs, entry)
	return tx, nil
}

func (s *MemoryStore) MarkExpired(_ context.Context, transactionID string) (models.DoorTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, exists := s.transactions[transactionID]
	if !exists {
		return models.DoorTransaction{}, sentinel.ErrNotFound
	}
	if tx.Status != models.AttemptActive {
		return tx, sentinel.ErrInvalidState
	}

	tx.Status = models.AttemptExpired
	s.transactions[transactionID] = tx
	return tx, nil
}

func (s *MemoryStore) LogsByBooking(_ context.Context, bookingID id.BookingID) ([]models.AccessLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []models.AccessLogEntry
	for _, entry := range s.logs {
		if entry.BookingID != nil && *entry.BookingID == bookingID {
			result = append(result, entry)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].AccessTime.After(result[j].AccessTime)
	})
	return result, nil
}
