package verifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	dErrors "staykey/pkg/domain-errors"
)

type ClientSuite struct {
	suite.Suite
	ctx context.Context
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientSuite))
}

func (s *ClientSuite) SetupTest() {
	s.ctx = context.Background()
}

func (s *ClientSuite) newClient(server *httptest.Server) *Client {
	return NewClient(server.URL, "test-token", "00000000_certikey", 5*time.Second,
		WithHTTPClient(server.Client()))
}

func (s *ClientSuite) TestCreateChallenge() {
	s.Run("returns the challenge artifact", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.Equal(http.MethodGet, r.Method)
			s.Equal("/oidvp/qrcode", r.URL.Path)
			s.Equal("00000000_certikey", r.URL.Query().Get("ref"))
			s.Equal("tx-1", r.URL.Query().Get("transactionId"))
			s.Equal("test-token", r.Header.Get("Access-Token"))

			_ = json.NewEncoder(w).Encode(Challenge{
				TransactionID: "tx-1",
				QRCodeImage:   "data:image/png;base64,qr",
				AuthURI:       "https://wallet.example/present",
			})
		}))
		defer server.Close()

		challenge, err := s.newClient(server).CreateChallenge(s.ctx, "tx-1")
		s.Require().NoError(err)
		s.Equal("data:image/png;base64,qr", challenge.QRCodeImage)
		s.Equal("https://wallet.example/present", challenge.AuthURI)
	})

	s.Run("rejects a challenge without a qr image", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode(Challenge{TransactionID: "tx-1"})
		}))
		defer server.Close()

		_, err := s.newClient(server).CreateChallenge(s.ctx, "tx-1")
		s.True(dErrors.HasCode(err, dErrors.CodeExternalUnavailable))
	})

	s.Run("maps server failures to external unavailable", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]string{"code": "500", "message": "server down"})
		}))
		defer server.Close()

		_, err := s.newClient(server).CreateChallenge(s.ctx, "tx-1")
		s.True(dErrors.HasCode(err, dErrors.CodeExternalUnavailable))
	})

	s.Run("maps business rejections to external rejected", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "unknown ref"})
		}))
		defer server.Close()

		_, err := s.newClient(server).CreateChallenge(s.ctx, "tx-1")
		s.True(dErrors.HasCode(err, dErrors.CodeExternalRejected))
	})

	s.Run("transport failures are external unavailable", func() {
		server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		server.Close()

		_, err := s.newClient(server).CreateChallenge(s.ctx, "tx-1")
		s.True(dErrors.HasCode(err, dErrors.CodeExternalUnavailable))
	})
}

func (s *ClientSuite) TestFetchResult() {
	s.Run("returns the presented claims", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.Equal("/oidvp/result", r.URL.Path)
			s.Equal("tx-2", r.URL.Query().Get("transactionId"))

			_ = json.NewEncoder(w).Encode(map[string]any{
				"verifyResult": true,
				"data": []map[string]string{
					{"claimName": "booking_id", "claimValue": "6ba7b8109dad11d180b400c04fd430"},
					{"claimName": "nonce", "claimValue": "9F2C"},
				},
			})
		}))
		defer server.Close()

		presentation, err := s.newClient(server).FetchResult(s.ctx, "tx-2")
		s.Require().NoError(err)
		s.True(presentation.Verified)
		s.Equal("6ba7b8109dad11d180b400c04fd430", presentation.Claims["booking_id"])
		s.Equal("9F2C", presentation.Claims["nonce"])
	})

	s.Run("pending challenge maps to not yet presented", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "no result yet"})
		}))
		defer server.Close()

		_, err := s.newClient(server).FetchResult(s.ctx, "tx-2")
		s.ErrorIs(err, ErrNotYetPresented)
	})

	s.Run("failed verification is reported, not an error", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"verifyResult": false})
		}))
		defer server.Close()

		presentation, err := s.newClient(server).FetchResult(s.ctx, "tx-2")
		s.Require().NoError(err)
		s.False(presentation.Verified)
	})

	s.Run("server failures are external unavailable", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		_, err := s.newClient(server).FetchResult(s.ctx, "tx-2")
		s.True(dErrors.HasCode(err, dErrors.CodeExternalUnavailable))
	})
}
