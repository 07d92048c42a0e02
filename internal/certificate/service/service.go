// Package service implements the certificate lifecycle manager. It owns
// the pending -> claimed -> {revoked | expired} state machine and is the
// only writer of certificate records besides the revocation authority.
package service

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"staykey/internal/booking"
	"staykey/internal/certificate/claims"
	"staykey/internal/certificate/issuer"
	"staykey/internal/certificate/metrics"
	"staykey/internal/certificate/models"
	"staykey/internal/certificate/nonce"
	"staykey/internal/certificate/store"
	id "staykey/pkg/domain"
	dErrors "staykey/pkg/domain-errors"
	"staykey/pkg/platform/audit"
	"staykey/pkg/requestcontext"
	"staykey/pkg/sentinel"
)

const stampLayout = "20060102T1504"
const dateLayout = "20060102"

// IssuerGateway is the external issuer dependency.
type IssuerGateway interface {
	Issue(ctx context.Context, req issuer.IssueRequest) (issuer.IssueResponse, error)
	ClaimStatus(ctx context.Context, transactionID string) (string, error)
	Revoke(ctx context.Context, credentialID string) error
}

// AuditPublisher emits audit events for lifecycle actions.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Option configures the certificate service.
type Option func(*Service)

// WithAuditor configures an audit publisher for the service.
func WithAuditor(auditor AuditPublisher) Option {
	return func(s *Service) { s.auditor = auditor }
}

// WithLogger configures a logger for the service.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics configures lifecycle metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// Service is the certificate lifecycle manager.
type Service struct {
	certs    store.Store
	bookings booking.Store
	gateway  IssuerGateway
	vcUID    string
	auditor  AuditPublisher
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewService creates a lifecycle manager with the required dependencies.
func NewService(certs store.Store, bookings booking.Store, gateway IssuerGateway, vcUID string, opts ...Option) *Service {
	svc := &Service{
		certs:    certs,
		bookings: bookings,
		gateway:  gateway,
		vcUID:    vcUID,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Issue mints a new certificate for the acting user against a
// reservation. The returned QR artifact is one-shot; it is handed to the
// caller and never stored.
func (s *Service) Issue(ctx context.Context, bookingID id.BookingID, actor id.UserID, grantID *id.GrantID) (models.IssueResult, error) {
	if actor.IsNil() {
		return models.IssueResult{}, dErrors.New(dErrors.CodeUnauthorized, "acting user required")
	}

	res, err := s.bookings.ReservationByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.IssueResult{}, dErrors.New(dErrors.CodeNotFound, "reservation not found")
		}
		return models.IssueResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "load reservation")
	}

	role, resolvedGrant, err := s.resolveRole(ctx, res, actor, grantID)
	if err != nil {
		s.recordIssueFailure(err)
		return models.IssueResult{}, err
	}

	if res.RoomNumber == "" {
		s.recordIssueFailure(dErrors.New(dErrors.CodePreconditionFailed, ""))
		return models.IssueResult{}, dErrors.New(dErrors.CodePreconditionFailed, "reservation has no assigned room")
	}

	now := requestcontext.Now(ctx)
	issuedDate := now.Format(dateLayout)
	certNonce := nonce.Generate(bookingID, actor, issuedDate)

	cs := claims.ClaimSet{
		IDNumber:     res.GuestNationalID,
		Name:         sanitizeName(res.GuestName),
		MemberSerial: res.GuestID.ShortForm(),
		CheckinTime:  res.CheckIn.Format(stampLayout),
		CheckoutTime: res.CheckOut.Format(stampLayout),
		BookingID:    res.ID.String(),
		RoomNum:      sanitizeRoom(res.RoomNumber),
		Nonce:        certNonce,
		Email:        res.GuestEmail,
		BookingTitle: sanitizeTitle(res.Title),
		IssuedDate:   issuedDate,
	}
	if err := claims.Validate(cs); err != nil {
		s.recordIssueFailure(err)
		return models.IssueResult{}, err
	}
	cs = claims.Normalize(cs)

	start := time.Now()
	resp, err := s.gateway.Issue(ctx, issuer.IssueRequest{
		VCUID:        s.vcUID,
		IssuanceDate: issuedDate,
		ExpiredDate:  res.CheckOut.Format(dateLayout),
		Claims:       cs,
	})
	s.observeIssuer("issue", start)
	if err != nil {
		s.recordIssueFailure(err)
		return models.IssueResult{}, err
	}

	expiresAt := res.CheckOut
	cert := models.Certificate{
		ID:            id.CertificateID(uuid.New()),
		BookingID:     bookingID,
		UserID:        actor,
		GrantID:       resolvedGrant,
		Role:          role,
		TransactionID: resp.TransactionID,
		Nonce:         certNonce,
		Status:        models.StatusPending,
		CreatedAt:     now,
		ExpiresAt:     &expiresAt,
	}
	if err := s.certs.Save(ctx, cert); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			s.recordIssueFailure(dErrors.New(dErrors.CodeConflict, ""))
			return models.IssueResult{}, dErrors.New(dErrors.CodeConflict, "a certificate with this nonce already exists for the reservation")
		}
		return models.IssueResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "save certificate")
	}

	if s.metrics != nil {
		s.metrics.RecordIssued()
	}
	s.emitAudit(ctx, audit.Event{
		ActorID:  actor,
		Subject:  cert.ID.String(),
		Action:   audit.ActionCertificateIssued,
		Decision: string(models.StatusPending),
		Reason:   string(role),
	})

	return models.IssueResult{
		Certificate: cert,
		QRCode:      resp.QRCode,
		DeepLink:    resp.DeepLink,
	}, nil
}

// resolveRole derives the occupancy role at the moment of issuance.
// Grant status is read live so a revoked invitation stops working
// immediately.
func (s *Service) resolveRole(ctx context.Context, res booking.Reservation, actor id.UserID, grantID *id.GrantID) (models.OccupancyRole, *id.GrantID, error) {
	if actor == res.GuestID {
		return models.RolePrimary, nil, nil
	}

	if grantID == nil || grantID.IsNil() {
		return "", nil, dErrors.New(dErrors.CodeForbidden, "not the reservation holder; a co-occupancy grant is required")
	}
	grant, err := s.bookings.GrantByID(ctx, *grantID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", nil, dErrors.New(dErrors.CodeForbidden, "co-occupancy grant not found")
		}
		return "", nil, dErrors.Wrap(err, dErrors.CodeInternal, "load co-occupancy grant")
	}
	if grant.BookingID != res.ID || grant.InviteeID != actor || !grant.Accepted() {
		return "", nil, dErrors.New(dErrors.CodeForbidden, "no accepted co-occupancy grant for this user")
	}
	return models.RoleCoOccupant, grantID, nil
}

// errNoTransition marks an Execute validate that intentionally declines
// to mutate. Callers translate it back to "no change".
var errNoTransition = errors.New("no transition")

// PollStatus reports the certificate's current status, contacting the
// issuer only while the record is still pending. Terminal and claimed
// records are returned as stored, which keeps repeated polls idempotent.
func (s *Service) PollStatus(ctx context.Context, certID id.CertificateID, actor id.UserID) (models.Certificate, error) {
	cert, err := s.findCert(ctx, certID)
	if err != nil {
		return models.Certificate{}, err
	}
	if !actor.IsNil() && cert.UserID != actor {
		return models.Certificate{}, dErrors.New(dErrors.CodeForbidden, "certificate belongs to another user")
	}

	now := requestcontext.Now(ctx)
	if cert.Status.Terminal() {
		return cert, nil
	}
	if cert.ExpiryPassed(now) {
		return s.expireIfDue(ctx, certID, now)
	}
	if cert.Status == models.StatusClaimed {
		return cert, nil
	}

	start := time.Now()
	rawJWT, err := s.gateway.ClaimStatus(ctx, cert.TransactionID)
	s.observeIssuer("claim_status", start)
	if errors.Is(err, issuer.ErrNotYetClaimed) {
		return cert, nil
	}
	if err != nil {
		return models.Certificate{}, err
	}

	credentialID, claimedExpiry, err := parseCredentialJWT(rawJWT)
	if err != nil {
		return models.Certificate{}, dErrors.Wrap(err, dErrors.CodeExternalUnavailable, "issuer credential payload unparseable")
	}

	updated, err := s.certs.Execute(ctx, certID,
		func(c *models.Certificate) error {
			// First observation wins. A concurrent poll that already
			// recorded the claim leaves nothing to do here.
			if c.Status != models.StatusPending {
				return errNoTransition
			}
			return nil
		},
		func(c *models.Certificate) {
			c.CredentialID = credentialID
			c.ClaimedAt = &now
			if claimedExpiry != nil {
				c.ExpiresAt = claimedExpiry
			}
			if c.ExpiryPassed(now) {
				c.Status = models.StatusExpired
			} else {
				c.Status = models.StatusClaimed
			}
		},
	)
	if errors.Is(err, errNoTransition) {
		return updated, nil
	}
	if err != nil {
		return models.Certificate{}, dErrors.Wrap(err, dErrors.CodeInternal, "record claim observation")
	}

	switch updated.Status {
	case models.StatusClaimed:
		if s.metrics != nil {
			s.metrics.RecordClaimed()
		}
		s.emitAudit(ctx, audit.Event{
			ActorID:  actor,
			Subject:  updated.ID.String(),
			Action:   audit.ActionCertificateClaimed,
			Decision: string(updated.Status),
		})
	case models.StatusExpired:
		if s.metrics != nil {
			s.metrics.RecordExpired()
		}
		s.emitAudit(ctx, audit.Event{
			ActorID:  actor,
			Subject:  updated.ID.String(),
			Action:   audit.ActionCertificateExpired,
			Decision: string(updated.Status),
			Reason:   "expired at claim time",
		})
	}
	return updated, nil
}

// ExpireIfPast flips a pending or claimed certificate whose expiry has
// passed to expired. Advisory housekeeping; read paths also check
// expiry inline, so calling this on any schedule is safe.
func (s *Service) ExpireIfPast(ctx context.Context, certID id.CertificateID) (models.Certificate, error) {
	now := requestcontext.Now(ctx)
	cert, err := s.expireIfDue(ctx, certID, now)
	if err != nil {
		return models.Certificate{}, err
	}
	return cert, nil
}

// ListByBooking returns the certificates of a reservation visible to the
// actor: its primary holder, the property host, or an accepted invitee.
func (s *Service) ListByBooking(ctx context.Context, bookingID id.BookingID, actor id.UserID) ([]models.Certificate, error) {
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
		grant, err := s.bookings.GrantForInvitee(ctx, bookingID, actor)
		if err != nil || !grant.Accepted() {
			return nil, dErrors.New(dErrors.CodeForbidden, "no access to this reservation's certificates")
		}
	}

	certs, err := s.certs.ListByBooking(ctx, bookingID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list certificates")
	}
	return certs, nil
}

func (s *Service) findCert(ctx context.Context, certID id.CertificateID) (models.Certificate, error) {
	cert, err := s.certs.FindByID(ctx, certID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Certificate{}, dErrors.New(dErrors.CodeNotFound, "certificate not found")
		}
		return models.Certificate{}, dErrors.Wrap(err, dErrors.CodeInternal, "load certificate")
	}
	return cert, nil
}

func (s *Service) expireIfDue(ctx context.Context, certID id.CertificateID, now time.Time) (models.Certificate, error) {
	cert, err := s.certs.Execute(ctx, certID,
		func(c *models.Certificate) error {
			if c.Status.Terminal() || !c.ExpiryPassed(now) {
				return errNoTransition
			}
			return nil
		},
		func(c *models.Certificate) {
			c.Status = models.StatusExpired
		},
	)
	if errors.Is(err, errNoTransition) {
		return cert, nil
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return models.Certificate{}, dErrors.New(dErrors.CodeNotFound, "certificate not found")
	}
	if err != nil {
		return models.Certificate{}, dErrors.Wrap(err, dErrors.CodeInternal, "expire certificate")
	}

	if s.metrics != nil {
		s.metrics.RecordExpired()
	}
	s.emitAudit(ctx, audit.Event{
		Subject:  cert.ID.String(),
		Action:   audit.ActionCertificateExpired,
		Decision: string(models.StatusExpired),
		Reason:   "validity window elapsed",
	})
	return cert, nil
}

func (s *Service) observeIssuer(operation string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveIssuerRequest(operation, time.Since(start).Seconds())
	}
}

func (s *Service) recordIssueFailure(err error) {
	if s.metrics == nil {
		return
	}
	var dErr *dErrors.Error
	if errors.As(err, &dErr) {
		s.metrics.RecordIssueFailure(string(dErr.Code))
		return
	}
	s.metrics.RecordIssueFailure(string(dErrors.CodeInternal))
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

var credentialIDPattern = regexp.MustCompile(`(?i)/credential/([a-f0-9-]+)$`)

// parseCredentialJWT extracts the issuer credential identifier and
// expiry from the claimed credential payload. The signature is minted
// and verified by the issuer; only the embedded claims matter here.
func parseCredentialJWT(raw string) (string, *time.Time, error) {
	parser := jwt.NewParser()
	token, _, err := parser.ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return "", nil, err
	}
	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", nil, errors.New("unexpected claim shape")
	}

	jti, _ := mapClaims["jti"].(string)
	match := credentialIDPattern.FindStringSubmatch(jti)
	if match == nil {
		return "", nil, errors.New("jti carries no credential identifier")
	}
	credentialID := match[1]

	var expiresAt *time.Time
	if expClaim, err := mapClaims.GetExpirationTime(); err == nil && expClaim != nil {
		exp := expClaim.Time.UTC()
		expiresAt = &exp
	}
	return credentialID, expiresAt, nil
}

func sanitizeName(name string) string {
	if name == "" {
		return "Guest"
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		case r >= 0x4e00 && r <= 0x9fa5:
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "Guest"
	}
	return b.String()
}

func sanitizeRoom(room string) string {
	var b strings.Builder
	for _, r := range room {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		}
	}
	s := b.String()
	if len(s) > 10 {
		s = s[:10]
	}
	return s
}

func sanitizeTitle(title string) string {
	var b strings.Builder
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		}
	}
	s := b.String()
	if len(s) > 50 {
		s = s[:50]
	}
	return s
}
