package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"staykey/internal/booking"
	bookingmemory "staykey/internal/booking/memory"
	certmodels "staykey/internal/certificate/models"
	certstore "staykey/internal/certificate/store"
	"staykey/internal/dooraccess/models"
	"staykey/internal/dooraccess/service/mocks"
	"staykey/internal/dooraccess/store"
	"staykey/internal/dooraccess/verifier"
	id "staykey/pkg/domain"
	dErrors "staykey/pkg/domain-errors"
	"staykey/pkg/platform/audit"
	"staykey/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite

	ctrl     *gomock.Controller
	gateway  *mocks.MockVerifierGateway
	doors    *store.MemoryStore
	bookings *bookingmemory.Store
	certs    *certstore.MemoryStore
	sink     *audit.InMemoryStore
	svc      *Service

	res   booking.Reservation
	cert  certmodels.Certificate
	host  id.UserID
	guest id.UserID
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.gateway = mocks.NewMockVerifierGateway(s.ctrl)
	s.doors = store.NewMemory()
	s.bookings = bookingmemory.NewStore()
	s.certs = certstore.NewMemory()
	s.sink = audit.NewInMemoryStore()
	s.svc = NewService(s.doors, s.bookings, s.certs, s.gateway,
		WithAuditor(syncAuditor{s.sink}),
	)

	s.host = id.UserID(uuid.New())
	s.guest = id.UserID(uuid.New())

	s.res = booking.Reservation{
		ID:         id.BookingID(uuid.New()),
		GuestID:    s.guest,
		PropertyID: id.PropertyID(uuid.New()),
		HostID:     s.host,
		RoomNumber: "A101",
		CheckIn:    time.Date(2025, 1, 10, 15, 0, 0, 0, time.UTC),
		CheckOut:   time.Date(2025, 1, 12, 11, 0, 0, 0, time.UTC),
		Status:     booking.ReservationConfirmed,
	}
	s.bookings.PutReservation(s.res)

	claimedAt := time.Date(2025, 1, 10, 16, 0, 0, 0, time.UTC)
	s.cert = certmodels.Certificate{
		ID:            id.CertificateID(uuid.New()),
		BookingID:     s.res.ID,
		UserID:        s.guest,
		Role:          certmodels.RolePrimary,
		TransactionID: uuid.NewString(),
		CredentialID:  "cred-1",
		Nonce:         "9F2C",
		Status:        certmodels.StatusClaimed,
		CreatedAt:     claimedAt.Add(-time.Hour),
		ClaimedAt:     &claimedAt,
	}
	s.Require().NoError(s.certs.Save(context.Background(), s.cert))
}

// SetupSubTest re-runs the fixture setup for every s.Run so each subtest
// starts from fresh stores; access logs and certificate mutations leak
// across subtests otherwise.
func (s *ServiceSuite) SetupSubTest() {
	s.SetupTest()
}

type syncAuditor struct {
	store audit.Store
}

func (a syncAuditor) Emit(ctx context.Context, event audit.Event) error {
	return a.store.Append(ctx, event)
}

func ctxAt(t time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), t)
}

// claims returns a presentation matching the seeded reservation and
// certificate.
func (s *ServiceSuite) claims() map[string]string {
	return map[string]string{
		"booking_id":    s.res.ID.ShortForm(),
		"member_serial": s.guest.ShortForm(),
		"room_num":      "A101",
		"checkin_time":  "20250110T1500",
		"checkout_time": "20250112T1100",
		"nonce":         s.cert.Nonce,
	}
}

// beginAttempt opens an attempt at the given instant against the seeded
// reservation's property and room.
func (s *ServiceSuite) beginAttempt(at time.Time) BeginResult {
	s.gateway.EXPECT().CreateChallenge(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, transactionID string) (verifier.Challenge, error) {
			return verifier.Challenge{
				TransactionID: transactionID,
				QRCodeImage:   "data:image/png;base64,qr",
				AuthURI:       "https://wallet.example/present",
			}, nil
		})
	result, err := s.svc.BeginAttempt(ctxAt(at), s.res.PropertyID, "A101")
	s.Require().NoError(err)
	return result
}

func (s *ServiceSuite) TestBeginAttempt() {
	s.Run("opens an active transaction with a bounded window", func() {
		start := time.Date(2025, 1, 11, 9, 55, 0, 0, time.UTC)
		result := s.beginAttempt(start)

		s.NotEmpty(result.TransactionID)
		s.Equal("data:image/png;base64,qr", result.QRCodeImage)
		s.Equal(start.Add(DefaultAttemptTTL), result.ExpiresAt)

		tx, err := s.doors.FindTransaction(context.Background(), result.TransactionID)
		s.Require().NoError(err)
		s.Equal(models.AttemptActive, tx.Status)
		s.Equal(s.res.PropertyID, tx.PropertyID)
	})

	s.Run("verifier outage leaves no transaction behind", func() {
		s.gateway.EXPECT().CreateChallenge(gomock.Any(), gomock.Any()).
			Return(verifier.Challenge{}, dErrors.New(dErrors.CodeExternalUnavailable, "verifier unreachable"))

		_, err := s.svc.BeginAttempt(ctxAt(time.Now()), s.res.PropertyID, "A101")
		s.True(dErrors.HasCode(err, dErrors.CodeExternalUnavailable))
	})

	s.Run("missing room fails validation", func() {
		_, err := s.svc.BeginAttempt(ctxAt(time.Now()), s.res.PropertyID, "  ")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("nil property is a bad request", func() {
		_, err := s.svc.BeginAttempt(ctxAt(time.Now()), id.PropertyID{}, "A101")
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})
}

func (s *ServiceSuite) TestCheckResult() {
	inWindow := time.Date(2025, 1, 11, 10, 0, 0, 0, time.UTC)

	s.Run("pending while no presentation was observed", func() {
		attempt := s.beginAttempt(inWindow.Add(-5 * time.Minute))
		s.gateway.EXPECT().FetchResult(gomock.Any(), attempt.TransactionID).
			Return(verifier.Presentation{}, verifier.ErrNotYetPresented)

		decision, err := s.svc.CheckResult(ctxAt(inWindow), attempt.TransactionID)
		s.Require().NoError(err)
		s.Equal(ResultPending, decision.Result)
	})

	s.Run("matching presentation inside the stay window is granted", func() {
		attempt := s.beginAttempt(inWindow.Add(-5 * time.Minute))
		s.gateway.EXPECT().FetchResult(gomock.Any(), attempt.TransactionID).
			Return(verifier.Presentation{Verified: true, Claims: s.claims()}, nil)

		decision, err := s.svc.CheckResult(ctxAt(inWindow), attempt.TransactionID)
		s.Require().NoError(err)
		s.Equal(ResultGranted, decision.Result)

		logs, err := s.doors.LogsByBooking(context.Background(), s.res.ID)
		s.Require().NoError(err)
		s.Require().Len(logs, 1)
		s.Equal(models.OutcomeGranted, logs[0].Status)
		s.Require().NotNil(logs[0].UserID)
		s.Equal(s.guest, *logs[0].UserID)

		events := s.sink.Events()
		s.Require().NotEmpty(events)
		s.Equal(audit.ActionDoorAdmissionJudged, events[len(events)-1].Action)
	})

	// Justification: a decided transaction must never re-evaluate, so a
	// replayed QR artifact answers from the stored outcome with no
	// second verifier call and no second audit row.
	s.Run("replaying a decided transaction returns the stored outcome", func() {
		attempt := s.beginAttempt(inWindow.Add(-5 * time.Minute))
		s.gateway.EXPECT().FetchResult(gomock.Any(), attempt.TransactionID).
			Return(verifier.Presentation{Verified: true, Claims: s.claims()}, nil).
			Times(1)

		first, err := s.svc.CheckResult(ctxAt(inWindow), attempt.TransactionID)
		s.Require().NoError(err)
		second, err := s.svc.CheckResult(ctxAt(inWindow.Add(time.Minute)), attempt.TransactionID)
		s.Require().NoError(err)
		s.Equal(first, second)

		logs, err := s.doors.LogsByBooking(context.Background(), s.res.ID)
		s.Require().NoError(err)
		s.Len(logs, 1)
	})

	s.Run("presentation after checkout is denied", func() {
		late := time.Date(2025, 1, 13, 10, 0, 0, 0, time.UTC)
		attempt := s.beginAttempt(late.Add(-5 * time.Minute))
		s.gateway.EXPECT().FetchResult(gomock.Any(), attempt.TransactionID).
			Return(verifier.Presentation{Verified: true, Claims: s.claims()}, nil)

		decision, err := s.svc.CheckResult(ctxAt(late), attempt.TransactionID)
		s.Require().NoError(err)
		s.Equal(ResultDenied, decision.Result)
		s.Equal("outside stay window", decision.Reason)
	})

	s.Run("holder mismatch is denied", func() {
		attempt := s.beginAttempt(inWindow.Add(-5 * time.Minute))
		claims := s.claims()
		claims["member_serial"] = "someoneelse"
		s.gateway.EXPECT().FetchResult(gomock.Any(), attempt.TransactionID).
			Return(verifier.Presentation{Verified: true, Claims: claims}, nil)

		decision, err := s.svc.CheckResult(ctxAt(inWindow), attempt.TransactionID)
		s.Require().NoError(err)
		s.Equal(ResultDenied, decision.Result)
		s.Equal("holder mismatch", decision.Reason)
	})

	s.Run("room mismatch is denied", func() {
		s.gateway.EXPECT().CreateChallenge(gomock.Any(), gomock.Any()).
			Return(verifier.Challenge{QRCodeImage: "qr"}, nil)
		attempt, err := s.svc.BeginAttempt(ctxAt(inWindow.Add(-5*time.Minute)), s.res.PropertyID, "B202")
		s.Require().NoError(err)

		s.gateway.EXPECT().FetchResult(gomock.Any(), attempt.TransactionID).
			Return(verifier.Presentation{Verified: true, Claims: s.claims()}, nil)

		decision, err := s.svc.CheckResult(ctxAt(inWindow), attempt.TransactionID)
		s.Require().NoError(err)
		s.Equal(ResultDenied, decision.Result)
		s.Equal("room mismatch", decision.Reason)
	})

	s.Run("property mismatch is denied", func() {
		s.gateway.EXPECT().CreateChallenge(gomock.Any(), gomock.Any()).
			Return(verifier.Challenge{QRCodeImage: "qr"}, nil)
		attempt, err := s.svc.BeginAttempt(ctxAt(inWindow.Add(-5*time.Minute)), id.PropertyID(uuid.New()), "A101")
		s.Require().NoError(err)

		s.gateway.EXPECT().FetchResult(gomock.Any(), attempt.TransactionID).
			Return(verifier.Presentation{Verified: true, Claims: s.claims()}, nil)

		decision, err := s.svc.CheckResult(ctxAt(inWindow), attempt.TransactionID)
		s.Require().NoError(err)
		s.Equal(ResultDenied, decision.Result)
		s.Equal("property mismatch", decision.Reason)
	})

	// Justification: the expiry sweep is advisory, so a claimed
	// certificate whose validity lapsed before any poll flipped it must
	// still be caught at the door from local state alone.
	s.Run("claimed certificate past its expiry is denied and settled", func() {
		expiry := inWindow.Add(-time.Hour)
		_, err := s.certs.Execute(context.Background(), s.cert.ID,
			func(*certmodels.Certificate) error { return nil },
			func(c *certmodels.Certificate) { c.ExpiresAt = &expiry },
		)
		s.Require().NoError(err)

		attempt := s.beginAttempt(inWindow.Add(-5 * time.Minute))
		s.gateway.EXPECT().FetchResult(gomock.Any(), attempt.TransactionID).
			Return(verifier.Presentation{Verified: true, Claims: s.claims()}, nil)

		decision, err := s.svc.CheckResult(ctxAt(inWindow), attempt.TransactionID)
		s.Require().NoError(err)
		s.Equal(ResultDenied, decision.Result)
		s.Equal("certificate expired", decision.Reason)

		cert, err := s.certs.FindByBookingAndNonce(context.Background(), s.res.ID, s.cert.Nonce)
		s.Require().NoError(err)
		s.Equal(certmodels.StatusExpired, cert.Status)
	})

	s.Run("revoked certificate is denied on local state alone", func() {
		_, err := s.certs.Execute(context.Background(), s.cert.ID,
			func(*certmodels.Certificate) error { return nil },
			func(c *certmodels.Certificate) { c.Status = certmodels.StatusRevoked },
		)
		s.Require().NoError(err)

		attempt := s.beginAttempt(inWindow.Add(-5 * time.Minute))
		s.gateway.EXPECT().FetchResult(gomock.Any(), attempt.TransactionID).
			Return(verifier.Presentation{Verified: true, Claims: s.claims()}, nil)

		decision, err := s.svc.CheckResult(ctxAt(inWindow), attempt.TransactionID)
		s.Require().NoError(err)
		s.Equal(ResultDenied, decision.Result)
		s.Equal("certificate revoked", decision.Reason)
	})

	s.Run("unresolvable reservation is denied without attribution", func() {
		attempt := s.beginAttempt(inWindow.Add(-5 * time.Minute))
		claims := s.claims()
		claims["booking_id"] = "ffffffffffffffffffffffffffffff"
		s.gateway.EXPECT().FetchResult(gomock.Any(), attempt.TransactionID).
			Return(verifier.Presentation{Verified: true, Claims: claims}, nil)

		decision, err := s.svc.CheckResult(ctxAt(inWindow), attempt.TransactionID)
		s.Require().NoError(err)
		s.Equal(ResultDenied, decision.Result)
		s.Equal("reservation not resolved", decision.Reason)

		logs, err := s.doors.LogsByBooking(context.Background(), s.res.ID)
		s.Require().NoError(err)
		s.Empty(logs)
	})

	s.Run("failed wallet verification is denied", func() {
		attempt := s.beginAttempt(inWindow.Add(-5 * time.Minute))
		s.gateway.EXPECT().FetchResult(gomock.Any(), attempt.TransactionID).
			Return(verifier.Presentation{Verified: false}, nil)

		decision, err := s.svc.CheckResult(ctxAt(inWindow), attempt.TransactionID)
		s.Require().NoError(err)
		s.Equal(ResultDenied, decision.Result)
		s.Equal("presentation failed verification", decision.Reason)
	})

	s.Run("elapsed attempt window is denied without a verifier call", func() {
		attempt := s.beginAttempt(inWindow.Add(-time.Hour))

		decision, err := s.svc.CheckResult(ctxAt(inWindow), attempt.TransactionID)
		s.Require().NoError(err)
		s.Equal(ResultDenied, decision.Result)
		s.Equal("attempt window elapsed", decision.Reason)

		tx, err := s.doors.FindTransaction(context.Background(), attempt.TransactionID)
		s.Require().NoError(err)
		s.Equal(models.AttemptExpired, tx.Status)
	})

	s.Run("unknown transaction is not found", func() {
		_, err := s.svc.CheckResult(ctxAt(inWindow), uuid.NewString())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestLogsByBooking() {
	inWindow := time.Date(2025, 1, 11, 10, 0, 0, 0, time.UTC)

	s.Run("host and holder can read, strangers cannot", func() {
		attempt := s.beginAttempt(inWindow.Add(-5 * time.Minute))
		s.gateway.EXPECT().FetchResult(gomock.Any(), attempt.TransactionID).
			Return(verifier.Presentation{Verified: true, Claims: s.claims()}, nil)
		_, err := s.svc.CheckResult(ctxAt(inWindow), attempt.TransactionID)
		s.Require().NoError(err)

		logs, err := s.svc.LogsByBooking(ctxAt(inWindow), s.res.ID, s.host)
		s.Require().NoError(err)
		s.Len(logs, 1)

		_, err = s.svc.LogsByBooking(ctxAt(inWindow), s.res.ID, s.guest)
		s.Require().NoError(err)

		_, err = s.svc.LogsByBooking(ctxAt(inWindow), s.res.ID, id.UserID(uuid.New()))
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}
