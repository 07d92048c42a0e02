package audit

import (
	"context"
	"sync"
	"time"

	id "staykey/pkg/domain"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp time.Time
	ActorID   id.UserID
	Subject   string
	Action    string
	Decision  string
	Reason    string
	RequestID string
}

// Action names emitted by the credential lifecycle and door admission engine.
const (
	ActionCertificateIssued   = "certificate_issued"
	ActionCertificateClaimed  = "certificate_claimed"
	ActionCertificateRevoked  = "certificate_revoked"
	ActionCertificateExpired  = "certificate_expired"
	ActionDoorAttemptStarted  = "door_attempt_started"
	ActionDoorAdmissionJudged = "door_admission_judged"
)

// Store persists audit events. Append-only by contract.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// InMemoryStore collects audit events for tests and unconfigured deployments.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []Event
}

// NewInMemoryStore constructs an empty in-memory audit store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events returns a copy of the captured events.
func (s *InMemoryStore) Events() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}
