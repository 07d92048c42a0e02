package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"staykey/internal/booking"
	bookingmemory "staykey/internal/booking/memory"
	"staykey/internal/certificate/issuer"
	"staykey/internal/certificate/models"
	"staykey/internal/certificate/service/mocks"
	"staykey/internal/certificate/store"
	id "staykey/pkg/domain"
	dErrors "staykey/pkg/domain-errors"
	"staykey/pkg/platform/audit"
	"staykey/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite

	ctrl     *gomock.Controller
	gateway  *mocks.MockIssuerGateway
	certs    *store.MemoryStore
	bookings *bookingmemory.Store
	sink     *audit.InMemoryStore
	svc      *Service

	res   booking.Reservation
	host  id.UserID
	guest id.UserID
	now   time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.gateway = mocks.NewMockIssuerGateway(s.ctrl)
	s.certs = store.NewMemory()
	s.bookings = bookingmemory.NewStore()
	s.sink = audit.NewInMemoryStore()
	s.svc = NewService(s.certs, s.bookings, s.gateway, "00000000_certikey_2",
		WithAuditor(syncAuditor{s.sink}),
	)

	s.host = id.UserID(uuid.New())
	s.guest = id.UserID(uuid.New())
	s.now = time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)

	s.res = booking.Reservation{
		ID:              id.BookingID(uuid.New()),
		GuestID:         s.guest,
		PropertyID:      id.PropertyID(uuid.New()),
		HostID:          s.host,
		RoomNumber:      "A101",
		CheckIn:         time.Date(2025, 1, 10, 15, 0, 0, 0, time.UTC),
		CheckOut:        time.Date(2025, 1, 12, 11, 0, 0, 0, time.UTC),
		Status:          booking.ReservationConfirmed,
		Title:           "Seaside_Suite",
		GuestName:       "王小明",
		GuestEmail:      "guest@example.com",
		GuestNationalID: "A123456789",
	}
	s.bookings.PutReservation(s.res)
}

// SetupSubTest re-runs the fixture setup for every s.Run so each subtest
// starts from a fresh store; same-day issuances against one reservation
// collide on the deterministic nonce otherwise.
func (s *ServiceSuite) SetupSubTest() {
	s.SetupTest()
}

type syncAuditor struct {
	store audit.Store
}

func (a syncAuditor) Emit(ctx context.Context, event audit.Event) error {
	return a.store.Append(ctx, event)
}

func (s *ServiceSuite) ctx() context.Context {
	return requestcontext.WithTime(context.Background(), s.now)
}

func (s *ServiceSuite) artifact() issuer.IssueResponse {
	return issuer.IssueResponse{
		TransactionID: uuid.NewString(),
		QRCode:        "data:image/png;base64,abc",
		DeepLink:      "https://wallet.example/claim",
	}
}

// credentialJWT builds an unsigned token shaped like the issuer's
// claimed-credential payload.
func credentialJWT(credentialID string, exp time.Time) string {
	header, _ := json.Marshal(map[string]string{"alg": "ES256", "typ": "JWT"})
	payload, _ := json.Marshal(map[string]any{
		"jti": "https://issuer-sandbox.wallet.gov.tw/api/credential/" + credentialID,
		"exp": exp.Unix(),
	})
	enc := base64.RawURLEncoding
	return enc.EncodeToString(header) + "." + enc.EncodeToString(payload) + ".sig"
}

func (s *ServiceSuite) TestIssue() {
	s.Run("primary holder gets a pending certificate and the one-shot artifact", func() {
		art := s.artifact()
		var sent issuer.IssueRequest
		s.gateway.EXPECT().Issue(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, req issuer.IssueRequest) (issuer.IssueResponse, error) {
				sent = req
				return art, nil
			})

		result, err := s.svc.Issue(s.ctx(), s.res.ID, s.guest, nil)
		s.Require().NoError(err)

		cert := result.Certificate
		s.Equal(models.StatusPending, cert.Status)
		s.Equal(models.RolePrimary, cert.Role)
		s.Equal(art.TransactionID, cert.TransactionID)
		s.Regexp(`^[0-9A-F]{4}$`, cert.Nonce)
		s.Require().NotNil(cert.ExpiresAt)
		s.Equal(s.res.CheckOut, *cert.ExpiresAt)
		s.Equal(art.QRCode, result.QRCode)
		s.Equal(art.DeepLink, result.DeepLink)

		s.Equal("20250110", sent.IssuanceDate)
		s.Equal("20250112", sent.ExpiredDate)
		s.Len(sent.Claims.BookingID, 30)
		s.NotContains(sent.Claims.BookingID, "-")
		s.Equal("20250110T1500", sent.Claims.CheckinTime)

		saved, err := s.certs.FindByID(context.Background(), cert.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusPending, saved.Status)

		events := s.sink.Events()
		s.Require().Len(events, 1)
		s.Equal(audit.ActionCertificateIssued, events[0].Action)
	})

	s.Run("stranger without a grant is forbidden", func() {
		stranger := id.UserID(uuid.New())
		_, err := s.svc.Issue(s.ctx(), s.res.ID, stranger, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("accepted invitee issues as co-occupant", func() {
		invitee := id.UserID(uuid.New())
		grant := booking.CoOccupancyGrant{
			ID:        id.GrantID(uuid.New()),
			BookingID: s.res.ID,
			InviterID: s.guest,
			InviteeID: invitee,
			Status:    booking.GrantAccepted,
			CreatedAt: s.now,
		}
		s.bookings.PutGrant(grant)
		s.gateway.EXPECT().Issue(gomock.Any(), gomock.Any()).Return(s.artifact(), nil)

		result, err := s.svc.Issue(s.ctx(), s.res.ID, invitee, &grant.ID)
		s.Require().NoError(err)
		s.Equal(models.RoleCoOccupant, result.Certificate.Role)
		s.Require().NotNil(result.Certificate.GrantID)
		s.Equal(grant.ID, *result.Certificate.GrantID)
	})

	s.Run("pending grant does not entitle the invitee", func() {
		invitee := id.UserID(uuid.New())
		grant := booking.CoOccupancyGrant{
			ID:        id.GrantID(uuid.New()),
			BookingID: s.res.ID,
			InviterID: s.guest,
			InviteeID: invitee,
			Status:    booking.GrantPending,
			CreatedAt: s.now,
		}
		s.bookings.PutGrant(grant)

		_, err := s.svc.Issue(s.ctx(), s.res.ID, invitee, &grant.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("reservation without a room fails the precondition", func() {
		res := s.res
		res.ID = id.BookingID(uuid.New())
		res.RoomNumber = ""
		s.bookings.PutReservation(res)

		_, err := s.svc.Issue(s.ctx(), res.ID, s.guest, nil)
		s.True(dErrors.HasCode(err, dErrors.CodePreconditionFailed))
	})

	s.Run("invalid holder data surfaces a validation error without calling the issuer", func() {
		res := s.res
		res.ID = id.BookingID(uuid.New())
		res.GuestNationalID = "NOPE"
		s.bookings.PutReservation(res)

		_, err := s.svc.Issue(s.ctx(), res.ID, s.guest, nil)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Contains(dErrors.FieldErrors(err), "id_number")
	})

	// Justification: same booking, holder and issuance date produce the
	// same nonce, so the second issuance must lose at the uniqueness
	// constraint instead of silently shadowing the first certificate.
	s.Run("same-day reissue collides on the nonce", func() {
		s.gateway.EXPECT().Issue(gomock.Any(), gomock.Any()).Return(s.artifact(), nil).Times(2)

		_, err := s.svc.Issue(s.ctx(), s.res.ID, s.guest, nil)
		s.Require().NoError(err)

		_, err = s.svc.Issue(s.ctx(), s.res.ID, s.guest, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("issuer outage leaves no local record", func() {
		res := s.res
		res.ID = id.BookingID(uuid.New())
		s.bookings.PutReservation(res)
		s.gateway.EXPECT().Issue(gomock.Any(), gomock.Any()).
			Return(issuer.IssueResponse{}, dErrors.New(dErrors.CodeExternalUnavailable, "issuer unreachable"))

		_, err := s.svc.Issue(s.ctx(), res.ID, s.guest, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeExternalUnavailable))

		certs, listErr := s.certs.ListByBooking(context.Background(), res.ID)
		s.Require().NoError(listErr)
		s.Empty(certs)
	})

	s.Run("unknown reservation is not found", func() {
		_, err := s.svc.Issue(s.ctx(), id.BookingID(uuid.New()), s.guest, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) issuePending() models.Certificate {
	s.gateway.EXPECT().Issue(gomock.Any(), gomock.Any()).Return(s.artifact(), nil)
	result, err := s.svc.Issue(s.ctx(), s.res.ID, s.guest, nil)
	s.Require().NoError(err)
	return result.Certificate
}

func (s *ServiceSuite) TestPollStatus() {
	s.Run("unclaimed artifact leaves the record pending", func() {
		cert := s.issuePending()
		s.gateway.EXPECT().ClaimStatus(gomock.Any(), cert.TransactionID).Return("", issuer.ErrNotYetClaimed)

		polled, err := s.svc.PollStatus(s.ctx(), cert.ID, s.guest)
		s.Require().NoError(err)
		s.Equal(models.StatusPending, polled.Status)
	})

	s.Run("first claim observation stores the credential id and expiry", func() {
		cert := s.issuePending()
		exp := time.Date(2025, 1, 12, 11, 0, 0, 0, time.UTC)
		s.gateway.EXPECT().ClaimStatus(gomock.Any(), cert.TransactionID).
			Return(credentialJWT("9f2c1b3a-77aa-4c21-9e01-aabbccddeeff", exp), nil)

		polled, err := s.svc.PollStatus(s.ctx(), cert.ID, s.guest)
		s.Require().NoError(err)
		s.Equal(models.StatusClaimed, polled.Status)
		s.Equal("9f2c1b3a-77aa-4c21-9e01-aabbccddeeff", polled.CredentialID)
		s.Require().NotNil(polled.ClaimedAt)
		s.Equal(s.now, *polled.ClaimedAt)
		s.Require().NotNil(polled.ExpiresAt)
		s.Equal(exp, *polled.ExpiresAt)
	})

	s.Run("repeat polls after the claim never contact the issuer again", func() {
		cert := s.issuePending()
		exp := time.Date(2025, 1, 12, 11, 0, 0, 0, time.UTC)
		s.gateway.EXPECT().ClaimStatus(gomock.Any(), cert.TransactionID).
			Return(credentialJWT("9f2c1b3a-77aa-4c21-9e01-aabbccddeeff", exp), nil).
			Times(1)

		first, err := s.svc.PollStatus(s.ctx(), cert.ID, s.guest)
		s.Require().NoError(err)
		second, err := s.svc.PollStatus(s.ctx(), cert.ID, s.guest)
		s.Require().NoError(err)
		s.Equal(first, second)
	})

	s.Run("credential already expired at claim time goes straight to expired", func() {
		cert := s.issuePending()
		s.gateway.EXPECT().ClaimStatus(gomock.Any(), cert.TransactionID).
			Return(credentialJWT("9f2c1b3a-77aa-4c21-9e01-aabbccddeeff", s.now.Add(-time.Hour)), nil)

		polled, err := s.svc.PollStatus(s.ctx(), cert.ID, s.guest)
		s.Require().NoError(err)
		s.Equal(models.StatusExpired, polled.Status)
	})

	s.Run("pending record past its validity window expires without an issuer call", func() {
		cert := s.issuePending()
		lateCtx := requestcontext.WithTime(context.Background(), s.res.CheckOut.Add(time.Hour))

		polled, err := s.svc.PollStatus(lateCtx, cert.ID, s.guest)
		s.Require().NoError(err)
		s.Equal(models.StatusExpired, polled.Status)
	})

	s.Run("terminal records return immediately", func() {
		cert := s.issuePending()
		_, err := s.certs.Execute(context.Background(), cert.ID,
			func(*models.Certificate) error { return nil },
			func(c *models.Certificate) { c.Status = models.StatusRevoked },
		)
		s.Require().NoError(err)

		polled, err := s.svc.PollStatus(s.ctx(), cert.ID, s.guest)
		s.Require().NoError(err)
		s.Equal(models.StatusRevoked, polled.Status)
	})

	s.Run("another user's certificate is off limits", func() {
		cert := s.issuePending()
		_, err := s.svc.PollStatus(s.ctx(), cert.ID, id.UserID(uuid.New()))
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("issuer outage propagates", func() {
		cert := s.issuePending()
		s.gateway.EXPECT().ClaimStatus(gomock.Any(), cert.TransactionID).
			Return("", dErrors.New(dErrors.CodeExternalUnavailable, "issuer unreachable"))

		_, err := s.svc.PollStatus(s.ctx(), cert.ID, s.guest)
		s.True(dErrors.HasCode(err, dErrors.CodeExternalUnavailable))
	})
}

func (s *ServiceSuite) TestExpireIfPast() {
	s.Run("flips a pending record past its window", func() {
		cert := s.issuePending()
		lateCtx := requestcontext.WithTime(context.Background(), s.res.CheckOut.Add(time.Minute))

		expired, err := s.svc.ExpireIfPast(lateCtx, cert.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusExpired, expired.Status)
	})

	s.Run("leaves a record inside its window untouched", func() {
		cert := s.issuePending()

		same, err := s.svc.ExpireIfPast(s.ctx(), cert.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusPending, same.Status)
	})

	s.Run("is idempotent on already-expired records", func() {
		cert := s.issuePending()
		lateCtx := requestcontext.WithTime(context.Background(), s.res.CheckOut.Add(time.Minute))

		_, err := s.svc.ExpireIfPast(lateCtx, cert.ID)
		s.Require().NoError(err)
		again, err := s.svc.ExpireIfPast(lateCtx, cert.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusExpired, again.Status)
	})
}

func (s *ServiceSuite) TestListByBooking() {
	s.Run("holder and host can list, strangers cannot", func() {
		cert := s.issuePending()

		list, err := s.svc.ListByBooking(s.ctx(), s.res.ID, s.guest)
		s.Require().NoError(err)
		s.Require().Len(list, 1)
		s.Equal(cert.ID, list[0].ID)

		_, err = s.svc.ListByBooking(s.ctx(), s.res.ID, s.host)
		s.Require().NoError(err)

		_, err = s.svc.ListByBooking(s.ctx(), s.res.ID, id.UserID(uuid.New()))
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

func TestParseCredentialJWT(t *testing.T) {
	t.Run("extracts the credential id and expiry", func(t *testing.T) {
		header, _ := json.Marshal(map[string]string{"alg": "ES256"})
		exp := time.Date(2025, 1, 12, 11, 0, 0, 0, time.UTC)
		payload, _ := json.Marshal(map[string]any{
			"jti": "https://issuer-sandbox.wallet.gov.tw/api/credential/abc123-def456",
			"exp": exp.Unix(),
		})
		enc := base64.RawURLEncoding
		raw := enc.EncodeToString(header) + "." + enc.EncodeToString(payload) + ".sig"

		credID, expiresAt, err := parseCredentialJWT(raw)
		require.NoError(t, err)
		assert.Equal(t, "abc123-def456", credID)
		require.NotNil(t, expiresAt)
		assert.Equal(t, exp, *expiresAt)
	})

	t.Run("rejects a jti without a credential path", func(t *testing.T) {
		header, _ := json.Marshal(map[string]string{"alg": "ES256"})
		payload, _ := json.Marshal(map[string]any{"jti": "urn:something:else"})
		enc := base64.RawURLEncoding
		raw := enc.EncodeToString(header) + "." + enc.EncodeToString(payload) + ".sig"

		_, _, err := parseCredentialJWT(raw)
		assert.Error(t, err)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, _, err := parseCredentialJWT("not-a-jwt")
		assert.Error(t, err)
	})
}
