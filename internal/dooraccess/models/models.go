// Package models defines the door admission domain objects.
package models

import (
	"time"

	"github.com/google/uuid"

	id "staykey/pkg/domain"
)

// AttemptStatus is the lifecycle state of a door transaction.
type AttemptStatus string

const (
	// AttemptActive means the QR challenge is live and undecided.
	AttemptActive AttemptStatus = "active"
	// AttemptUsed means an admission decision has been recorded. A used
	// transaction never re-evaluates; replays return the stored outcome.
	AttemptUsed AttemptStatus = "used"
	// AttemptExpired means the validity window elapsed before any
	// presentation was observed.
	AttemptExpired AttemptStatus = "expired"
)

// Outcome is the recorded admission decision.
type Outcome string

const (
	OutcomeGranted Outcome = "granted"
	OutcomeDenied  Outcome = "denied"
)

// DoorTransaction is one door admission attempt. The transaction id is
// also the verifier-side challenge identifier.
type DoorTransaction struct {
	TransactionID string
	PropertyID    id.PropertyID
	Room          string
	Status        AttemptStatus
	Outcome       Outcome
	Reason        string
	CreatedAt     time.Time
	ExpiresAt     time.Time
}

// WindowElapsed reports whether the attempt's validity window has
// passed.
func (t DoorTransaction) WindowElapsed(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// AccessLogEntry is the append-only audit record of one admission
// decision. BookingID and UserID stay nil when the presented claims
// could not be resolved to a reservation.
type AccessLogEntry struct {
	ID            uuid.UUID
	BookingID     *id.BookingID
	UserID        *id.UserID
	PropertyID    id.PropertyID
	Method        string
	Status        Outcome
	Reason        string
	DeviceInfo    string
	TransactionID string
	AccessTime    time.Time
}

// MethodDigitalCertificate is the only admission method this engine
// records today.
const MethodDigitalCertificate = "digital_certificate"
