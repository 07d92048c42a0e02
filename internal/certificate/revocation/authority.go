// Package revocation decides who may revoke a certificate and carries
// the revocation out against the issuer and the local store.
package revocation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"staykey/internal/booking"
	"staykey/internal/certificate/issuer"
	"staykey/internal/certificate/metrics"
	"staykey/internal/certificate/models"
	"staykey/internal/certificate/store"
	id "staykey/pkg/domain"
	dErrors "staykey/pkg/domain-errors"
	"staykey/pkg/platform/audit"
	"staykey/pkg/requestcontext"
	"staykey/pkg/sentinel"
)

// Permission reasons recorded on the certificate audit trail and the
// revocation metrics.
const (
	ReasonHost         = "host"
	ReasonPrimary      = "primary revokes co-occupant"
	ReasonNoPermission = "no permission"
)

// Decision is the outcome of a revocation permission check.
type Decision struct {
	Allowed bool
	Reason  string
}

// Gateway is the issuer-side revocation dependency.
type Gateway interface {
	Revoke(ctx context.Context, credentialID string) error
}

// AuditPublisher emits audit events for revocations.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Option configures the authority.
type Option func(*Authority)

// WithAuditor configures an audit publisher.
func WithAuditor(auditor AuditPublisher) Option {
	return func(a *Authority) { a.auditor = auditor }
}

// WithLogger configures a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Authority) { a.logger = logger }
}

// WithMetrics configures lifecycle metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Authority) { a.metrics = m }
}

// Authority owns the revocation permission matrix and the revocation
// flow. It is the only writer of the revoked status.
type Authority struct {
	certs    store.Store
	bookings booking.Store
	gateway  Gateway
	auditor  AuditPublisher
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewAuthority creates a revocation authority.
func NewAuthority(certs store.Store, bookings booking.Store, gateway Gateway, opts ...Option) *Authority {
	a := &Authority{
		certs:    certs,
		bookings: bookings,
		gateway:  gateway,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// CanRevoke evaluates the permission matrix for one actor against one
// certificate. The property host may revoke any certificate of the
// reservation. The primary holder may revoke co-occupant certificates
// minted off their own grants but never their own, which stays a
// host-only action so a guest cannot erase the record of a stay in
// progress.
func (a *Authority) CanRevoke(ctx context.Context, actor id.UserID, cert models.Certificate) (Decision, error) {
	if cert.Status.Terminal() {
		return Decision{Allowed: false, Reason: fmt.Sprintf("certificate already %s", cert.Status)}, nil
	}

	res, err := a.bookings.ReservationByID(ctx, cert.BookingID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Decision{}, dErrors.New(dErrors.CodeNotFound, "reservation not found")
		}
		return Decision{}, dErrors.Wrap(err, dErrors.CodeInternal, "load reservation")
	}

	if actor == res.HostID {
		return Decision{Allowed: true, Reason: ReasonHost}, nil
	}

	if actor == res.GuestID && cert.Role == models.RoleCoOccupant && cert.GrantID != nil {
		grant, err := a.bookings.GrantByID(ctx, *cert.GrantID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return Decision{Allowed: false, Reason: ReasonNoPermission}, nil
			}
			return Decision{}, dErrors.Wrap(err, dErrors.CodeInternal, "load co-occupancy grant")
		}
		if grant.InviterID == actor {
			return Decision{Allowed: true, Reason: ReasonPrimary}, nil
		}
	}

	return Decision{Allowed: false, Reason: ReasonNoPermission}, nil
}

// Revoke revokes a certificate by its identifier.
func (a *Authority) Revoke(ctx context.Context, certID id.CertificateID, actor id.UserID) (models.Certificate, error) {
	cert, err := a.findCert(ctx, certID)
	if err != nil {
		return models.Certificate{}, err
	}
	return a.revoke(ctx, cert, actor)
}

// RevokeByNonce revokes the certificate carrying a nonce within a
// reservation. Door-side operators see the nonce, not the certificate
// id.
func (a *Authority) RevokeByNonce(ctx context.Context, bookingID id.BookingID, nonce string, actor id.UserID) (models.Certificate, error) {
	cert, err := a.certs.FindByBookingAndNonce(ctx, bookingID, nonce)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Certificate{}, dErrors.New(dErrors.CodeNotFound, "no certificate with this nonce on the reservation")
		}
		return models.Certificate{}, dErrors.Wrap(err, dErrors.CodeInternal, "load certificate")
	}
	return a.revoke(ctx, cert, actor)
}

var errNoTransition = errors.New("no transition")

func (a *Authority) revoke(ctx context.Context, cert models.Certificate, actor id.UserID) (models.Certificate, error) {
	if actor.IsNil() {
		return models.Certificate{}, dErrors.New(dErrors.CodeUnauthorized, "acting user required")
	}

	decision, err := a.CanRevoke(ctx, actor, cert)
	if err != nil {
		return models.Certificate{}, err
	}
	if !decision.Allowed {
		if cert.Status.Terminal() {
			return models.Certificate{}, dErrors.New(dErrors.CodeConflict, decision.Reason)
		}
		return models.Certificate{}, dErrors.New(dErrors.CodeForbidden, decision.Reason)
	}

	// A certificate never claimed into a wallet has no issuer-side
	// credential to invalidate.
	if cert.CredentialID != "" {
		start := time.Now()
		err := a.gateway.Revoke(ctx, cert.CredentialID)
		if a.metrics != nil {
			a.metrics.ObserveIssuerRequest("revoke", time.Since(start).Seconds())
		}
		if err != nil {
			switch {
			case errors.Is(err, issuer.ErrInvalidCredentialID):
				// The issuer no longer recognizes the credential. The
				// wallet copy is already unusable, so only the local
				// record is left to settle.
				if a.logger != nil {
					a.logger.InfoContext(ctx, "issuer already dropped credential",
						"certificate_id", cert.ID,
						"credential_id", cert.CredentialID,
					)
				}
			case dErrors.HasCode(err, dErrors.CodeExternalUnavailable):
				// Fail closed. The local record drives door admission,
				// so revoking it now shuts the door even though the
				// wallet copy stays cosmetically valid until the issuer
				// recovers.
				if a.logger != nil {
					a.logger.WarnContext(ctx, "issuer unreachable, revoking locally only",
						"certificate_id", cert.ID,
						"error", err,
					)
				}
			default:
				return models.Certificate{}, err
			}
		}
	}

	now := requestcontext.Now(ctx)
	updated, err := a.certs.Execute(ctx, cert.ID,
		func(c *models.Certificate) error {
			if c.Status.Terminal() {
				return errNoTransition
			}
			return nil
		},
		func(c *models.Certificate) {
			c.Status = models.StatusRevoked
			c.RevokedAt = &now
		},
	)
	if errors.Is(err, errNoTransition) {
		return updated, nil
	}
	if err != nil {
		return models.Certificate{}, dErrors.Wrap(err, dErrors.CodeInternal, "record revocation")
	}

	if a.metrics != nil {
		a.metrics.RecordRevoked(decision.Reason)
	}
	if a.auditor != nil {
		event := audit.Event{
			ActorID:  actor,
			Subject:  updated.ID.String(),
			Action:   audit.ActionCertificateRevoked,
			Decision: string(models.StatusRevoked),
			Reason:   decision.Reason,
		}
		if err := a.auditor.Emit(ctx, event); err != nil && a.logger != nil {
			a.logger.ErrorContext(ctx, "failed to emit audit event",
				"error", err,
				"subject", event.Subject,
			)
		}
	}
	return updated, nil
}

func (a *Authority) findCert(ctx context.Context, certID id.CertificateID) (models.Certificate, error) {
	cert, err := a.certs.FindByID(ctx, certID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Certificate{}, dErrors.New(dErrors.CodeNotFound, "certificate not found")
		}
		return models.Certificate{}, dErrors.Wrap(err, dErrors.CodeInternal, "load certificate")
	}
	return cert, nil
}
