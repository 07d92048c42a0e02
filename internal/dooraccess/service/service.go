// Package service implements the door admission verifier. It owns the
// door transaction state machine and decides, once per transaction,
// whether a presented credential admits its holder.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mssola/useragent"

	"staykey/internal/booking"
	certmodels "staykey/internal/certificate/models"
	certstore "staykey/internal/certificate/store"
	"staykey/internal/dooraccess/metrics"
	"staykey/internal/dooraccess/models"
	"staykey/internal/dooraccess/store"
	"staykey/internal/dooraccess/verifier"
	id "staykey/pkg/domain"
	dErrors "staykey/pkg/domain-errors"
	"staykey/pkg/platform/audit"
	"staykey/pkg/requestcontext"
	"staykey/pkg/sentinel"
)

// DefaultAttemptTTL bounds how long a door challenge stays answerable.
const DefaultAttemptTTL = 15 * time.Minute

// VerifierGateway is the external verifier dependency.
type VerifierGateway interface {
	CreateChallenge(ctx context.Context, transactionID string) (verifier.Challenge, error)
	FetchResult(ctx context.Context, transactionID string) (verifier.Presentation, error)
}

// AuditPublisher emits audit events for door activity.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Result is the caller-facing poll answer.
type Result string

const (
	ResultGranted Result = "granted"
	ResultDenied  Result = "denied"
	ResultPending Result = "pending"
)

// BeginResult is the artifact handed to the door-side client.
type BeginResult struct {
	TransactionID string
	QRCodeImage   string
	AuthURI       string
	ExpiresAt     time.Time
}

// Decision is one checkResult answer. Reason is only set on denials.
type Decision struct {
	Result Result
	Reason string
}

// Option configures the door service.
type Option func(*Service)

// WithAuditor configures an audit publisher.
func WithAuditor(auditor AuditPublisher) Option {
	return func(s *Service) { s.auditor = auditor }
}

// WithLogger configures a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics configures door metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithAttemptTTL overrides the challenge validity window.
func WithAttemptTTL(ttl time.Duration) Option {
	return func(s *Service) { s.attemptTTL = ttl }
}

// Service is the door admission verifier.
type Service struct {
	doors      store.Store
	bookings   booking.Store
	certs      certstore.Store
	gateway    VerifierGateway
	attemptTTL time.Duration
	auditor    AuditPublisher
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewService creates a door admission verifier.
func NewService(doors store.Store, bookings booking.Store, certs certstore.Store, gateway VerifierGateway, opts ...Option) *Service {
	svc := &Service{
		doors:      doors,
		bookings:   bookings,
		certs:      certs,
		gateway:    gateway,
		attemptTTL: DefaultAttemptTTL,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// BeginAttempt registers a fresh door transaction and returns the
// presentable challenge. The verifier is called before anything is
// stored so a gateway failure leaves no local state behind.
func (s *Service) BeginAttempt(ctx context.Context, propertyID id.PropertyID, room string) (BeginResult, error) {
	if uuid.UUID(propertyID) == uuid.Nil {
		return BeginResult{}, dErrors.New(dErrors.CodeBadRequest, "property id required")
	}
	room = strings.TrimSpace(room)
	if room == "" {
		return BeginResult{}, dErrors.New(dErrors.CodeValidation, "room is required")
	}

	transactionID := uuid.NewString()
	start := time.Now()
	challenge, err := s.gateway.CreateChallenge(ctx, transactionID)
	s.observeVerifier("create_challenge", start)
	if err != nil {
		return BeginResult{}, err
	}

	now := requestcontext.Now(ctx)
	tx := models.DoorTransaction{
		TransactionID: transactionID,
		PropertyID:    propertyID,
		Room:          room,
		Status:        models.AttemptActive,
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.attemptTTL),
	}
	if err := s.doors.CreateTransaction(ctx, tx); err != nil {
		return BeginResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "store door transaction")
	}

	if s.metrics != nil {
		s.metrics.RecordAttemptStarted()
	}
	s.emitAudit(ctx, audit.Event{
		Subject: transactionID,
		Action:  audit.ActionDoorAttemptStarted,
		Reason:  fmt.Sprintf("room %s", room),
	})

	return BeginResult{
		TransactionID: transactionID,
		QRCodeImage:   challenge.QRCodeImage,
		AuthURI:       challenge.AuthURI,
		ExpiresAt:     tx.ExpiresAt,
	}, nil
}

// CheckResult reports the admission outcome for a transaction. A used
// transaction answers from its stored decision; an undecided one polls
// the verifier and, on a presentation, evaluates admission and commits
// the decision together with its access log row.
func (s *Service) CheckResult(ctx context.Context, transactionID string) (Decision, error) {
	tx, err := s.doors.FindTransaction(ctx, transactionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Decision{}, dErrors.New(dErrors.CodeNotFound, "door transaction not found")
		}
		return Decision{}, dErrors.Wrap(err, dErrors.CodeInternal, "load door transaction")
	}

	if tx.Status == models.AttemptUsed {
		return storedDecision(tx), nil
	}

	now := requestcontext.Now(ctx)
	if tx.Status == models.AttemptExpired || tx.WindowElapsed(now) {
		return s.expireAttempt(ctx, tx)
	}

	start := time.Now()
	presentation, err := s.gateway.FetchResult(ctx, transactionID)
	s.observeVerifier("fetch_result", start)
	if errors.Is(err, verifier.ErrNotYetPresented) {
		if s.metrics != nil {
			s.metrics.RecordPendingPoll()
		}
		return Decision{Result: ResultPending}, nil
	}
	if err != nil {
		return Decision{}, err
	}

	outcome, reason, res := s.evaluate(ctx, tx, presentation, now)

	entry := models.AccessLogEntry{
		ID:            uuid.New(),
		PropertyID:    tx.PropertyID,
		Method:        models.MethodDigitalCertificate,
		Status:        outcome,
		Reason:        reason,
		DeviceInfo:    deviceInfo(requestcontext.UserAgent(ctx)),
		TransactionID: transactionID,
		AccessTime:    now,
	}
	if res != nil {
		bookingID := res.ID
		guestID := res.GuestID
		entry.BookingID = &bookingID
		entry.UserID = &guestID
	}

	decided, err := s.doors.Decide(ctx, transactionID, outcome, reason, entry)
	if errors.Is(err, sentinel.ErrInvalidState) {
		// A concurrent poll won the decision. The stored outcome is the
		// only answer this transaction will ever give.
		return storedDecision(decided), nil
	}
	if err != nil {
		return Decision{}, dErrors.Wrap(err, dErrors.CodeInternal, "commit admission decision")
	}

	if s.metrics != nil {
		s.metrics.RecordDecision(string(outcome))
	}
	event := audit.Event{
		Subject:  transactionID,
		Action:   audit.ActionDoorAdmissionJudged,
		Decision: string(outcome),
		Reason:   reason,
	}
	if res != nil {
		event.ActorID = res.GuestID
	}
	s.emitAudit(ctx, event)

	return storedDecision(decided), nil
}

// LogsByBooking lists the access log entries of a reservation, visible
// to its primary holder and the property host.
func (s *Service) LogsByBooking(ctx context.Context, bookingID id.BookingID, actor id.UserID) ([]models.AccessLogEntry, error) {
	if actor.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "acting user required")
	}
	res, err := s.bookings.ReservationByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "reservation not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load reservation")
	}
	if actor != res.GuestID && actor != res.HostID {
		return nil, dErrors.New(dErrors.CodeForbidden, "no access to this reservation's access logs")
	}

	entries, err := s.doors.LogsByBooking(ctx, bookingID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list access logs")
	}
	return entries, nil
}

// evaluate runs the admission cross-check against the reservation. It
// returns the resolved reservation when the claims led to one, even on
// denial, so the access log can still be attributed.
func (s *Service) evaluate(ctx context.Context, tx models.DoorTransaction, presentation verifier.Presentation, now time.Time) (models.Outcome, string, *booking.Reservation) {
	if !presentation.Verified {
		return models.OutcomeDenied, "presentation failed verification", nil
	}

	res, err := s.bookings.ReservationByShortID(ctx, presentation.Claims["booking_id"])
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) && s.logger != nil {
			s.logger.ErrorContext(ctx, "reservation lookup failed", "error", err, "transaction_id", tx.TransactionID)
		}
		return models.OutcomeDenied, "reservation not resolved", nil
	}

	cert, err := s.certs.FindByBookingAndNonce(ctx, res.ID, presentation.Claims["nonce"])
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) && s.logger != nil {
			s.logger.ErrorContext(ctx, "certificate lookup failed", "error", err, "transaction_id", tx.TransactionID)
		}
		return models.OutcomeDenied, "certificate not resolved", &res
	}
	// Revocation and expiry gate on local state only; the issuer is
	// never consulted at the door.
	if cert.Status.Terminal() {
		return models.OutcomeDenied, fmt.Sprintf("certificate %s", cert.Status), &res
	}
	if cert.ExpiryPassed(now) {
		s.settleExpired(ctx, cert.ID)
		return models.OutcomeDenied, "certificate expired", &res
	}

	if tx.PropertyID != res.PropertyID {
		return models.OutcomeDenied, "property mismatch", &res
	}
	if tx.Room != res.RoomNumber {
		return models.OutcomeDenied, "room mismatch", &res
	}
	if now.Before(res.CheckIn) || now.After(res.CheckOut) {
		return models.OutcomeDenied, "outside stay window", &res
	}
	if presentation.Claims["member_serial"] != res.GuestID.ShortForm() {
		return models.OutcomeDenied, "holder mismatch", &res
	}

	return models.OutcomeGranted, "", &res
}

// errNoTransition marks an Execute validate that intentionally declines
// to mutate.
var errNoTransition = errors.New("no transition")

// settleExpired flips a certificate whose validity lapsed so the stored
// record agrees with the denial just handed out.
func (s *Service) settleExpired(ctx context.Context, certID id.CertificateID) {
	_, err := s.certs.Execute(ctx, certID,
		func(c *certmodels.Certificate) error {
			if c.Status.Terminal() {
				return errNoTransition
			}
			return nil
		},
		func(c *certmodels.Certificate) { c.Status = certmodels.StatusExpired },
	)
	if err != nil && !errors.Is(err, errNoTransition) && s.logger != nil {
		s.logger.ErrorContext(ctx, "failed to settle expired certificate", "error", err, "certificate_id", certID)
	}
}

// expireAttempt settles an attempt whose window elapsed undecided. No
// access log row is written since no presentation was ever evaluated.
func (s *Service) expireAttempt(ctx context.Context, tx models.DoorTransaction) (Decision, error) {
	if tx.Status == models.AttemptActive {
		expired, err := s.doors.MarkExpired(ctx, tx.TransactionID)
		if errors.Is(err, sentinel.ErrInvalidState) {
			// Raced with a concurrent decision that landed before the
			// window check.
			if expired.Status == models.AttemptUsed {
				return storedDecision(expired), nil
			}
		} else if err != nil {
			return Decision{}, dErrors.Wrap(err, dErrors.CodeInternal, "expire door transaction")
		}
		if s.metrics != nil {
			s.metrics.RecordAttemptExpired()
		}
	}
	return Decision{Result: ResultDenied, Reason: "attempt window elapsed"}, nil
}

func storedDecision(tx models.DoorTransaction) Decision {
	switch tx.Outcome {
	case models.OutcomeGranted:
		return Decision{Result: ResultGranted}
	default:
		return Decision{Result: ResultDenied, Reason: tx.Reason}
	}
}

func (s *Service) observeVerifier(operation string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveVerifierRequest(operation, time.Since(start).Seconds())
	}
}

func (s *Service) emitAudit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Emit(ctx, event); err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "failed to emit audit event",
			"error", err,
			"action", event.Action,
			"subject", event.Subject,
		)
	}
}

// deviceInfo condenses a raw User-Agent into a short human-readable
// browser/platform label for the access log.
func deviceInfo(rawUA string) string {
	if rawUA == "" {
		return "unknown"
	}
	ua := useragent.New(rawUA)
	name, version := ua.Browser()
	if name == "" {
		return "unknown"
	}
	osInfo := ua.OSInfo()
	if osInfo.Name == "" {
		return fmt.Sprintf("%s %s", name, version)
	}
	return fmt.Sprintf("%s %s on %s %s", name, version, osInfo.Name, osInfo.Version)
}
