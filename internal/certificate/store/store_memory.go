package store

import (
	"context"
	"sort"
	"sync"

	"staykey/internal/certificate/models"
	id "staykey/pkg/domain"
	"staykey/pkg/sentinel"
)

// MemoryStore is the in-memory certificate store used by tests and
// database-less deployments.
type MemoryStore struct {
	mu    sync.RWMutex
	certs map[id.CertificateID]models.Certificate
}

// NewMemory creates an empty in-memory certificate store.
func NewMemory() *MemoryStore {
	return &MemoryStore{certs: make(map[id.CertificateID]models.Certificate)}
}

func (s *MemoryStore) Save(_ context.Context, cert models.Certificate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.certs {
		if existing.ID == cert.ID {
			return sentinel.ErrConflict
		}
		if existing.BookingID == cert.BookingID && existing.Nonce == cert.Nonce {
			return sentinel.ErrConflict
		}
		if existing.TransactionID == cert.TransactionID {
			return sentinel.ErrConflict
		}
	}
	s.certs[cert.ID] = cert
	return nil
}

func (s *MemoryStore) FindByID(_ context.Context, certID id.CertificateID) (models.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cert, ok := s.certs[certID]
	if !ok {
		return models.Certificate{}, sentinel.ErrNotFound
	}
	return cert, nil
}

func (s *MemoryStore) FindByTransactionID(_ context.Context, transactionID string) (models.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, cert := range s.certs {
		if cert.TransactionID == transactionID {
			return cert, nil
		}
	}
	return models.Certificate{}, sentinel.ErrNotFound
}

func (s *MemoryStore) FindByBookingAndNonce(_ context.Context, bookingID id.BookingID, nonce string) (models.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, cert := range s.certs {
		if cert.BookingID == bookingID && cert.Nonce == nonce {
			return cert, nil
		}
	}
	return models.Certificate{}, sentinel.ErrNotFound
}

func (s *MemoryStore) ListByBooking(_ context.Context, bookingID id.BookingID) ([]models.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Certificate
	for _, cert := range s.certs {
		if cert.BookingID == bookingID {
			out = append(out, cert)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) Execute(_ context.Context, certID id.CertificateID, validate func(*models.Certificate) error, mutate func(*models.Certificate)) (models.Certificate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cert, ok := s.certs[certID]
	if !ok {
		return models.Certificate{}, sentinel.ErrNotFound
	}
	if err := validate(&cert); err != nil {
		return cert, err
	}
	mutate(&cert)
	s.certs[certID] = cert
	return cert, nil
}
