// Package issuer wraps the external credential issuer's HTTP API. The
// issuer mints and revokes the actual cryptographic credential; this
// client only moves requests and maps the issuer's business error codes
// onto typed errors.
package issuer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"staykey/internal/certificate/claims"
	dErrors "staykey/pkg/domain-errors"
)

// Business error codes observed from the issuer sandbox.
const (
	codeNotYetClaimed       = "61010"
	codeInvalidCredentialID = "61006"
)

var (
	// ErrNotYetClaimed signals the holder has not scanned the artifact yet.
	ErrNotYetClaimed = errors.New("credential not yet claimed")
	// ErrInvalidCredentialID signals the issuer does not recognize the
	// credential identifier, typically because it was already revoked.
	ErrInvalidCredentialID = errors.New("issuer rejected credential id")
)

// Client is the HTTP adapter for the issuer service. Stateless; retries
// are a caller concern.
type Client struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client (for testing).
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// NewClient creates an issuer client.
func NewClient(baseURL, accessToken string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL:     baseURL,
		accessToken: accessToken,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IssueRequest carries everything the issuer needs to mint a credential.
type IssueRequest struct {
	VCUID        string
	IssuanceDate string
	ExpiredDate  string
	Claims       claims.ClaimSet
}

// IssueResponse is the one-shot artifact returned by the issuer.
type IssueResponse struct {
	TransactionID string `json:"transactionId"`
	QRCode        string `json:"qrCode"`
	DeepLink      string `json:"deepLink"`
}

type wireField struct {
	EName   string `json:"ename"`
	Content string `json:"content"`
}

type issueWireRequest struct {
	VCUID        string      `json:"vcUid"`
	IssuanceDate string      `json:"issuanceDate"`
	ExpiredDate  string      `json:"expiredDate"`
	Fields       []wireField `json:"fields"`
}

type issuerError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func wireFields(cs claims.ClaimSet) []wireField {
	return []wireField{
		{EName: "id_number", Content: cs.IDNumber},
		{EName: "name", Content: cs.Name},
		{EName: "member_serial", Content: cs.MemberSerial},
		{EName: "checkin_time", Content: cs.CheckinTime},
		{EName: "checkout_time", Content: cs.CheckoutTime},
		{EName: "booking_id", Content: cs.BookingID},
		{EName: "room_num", Content: cs.RoomNum},
		{EName: "nonce", Content: cs.Nonce},
		{EName: "email", Content: cs.Email},
		{EName: "booking_title", Content: cs.BookingTitle},
		{EName: "issued_date", Content: cs.IssuedDate},
	}
}

// Issue requests a new credential. Returns the transaction identifier
// and the one-shot QR artifact.
func (c *Client) Issue(ctx context.Context, req IssueRequest) (IssueResponse, error) {
	payload, err := json.Marshal(issueWireRequest{
		VCUID:        req.VCUID,
		IssuanceDate: req.IssuanceDate,
		ExpiredDate:  req.ExpiredDate,
		Fields:       wireFields(req.Claims),
	})
	if err != nil {
		return IssueResponse{}, fmt.Errorf("marshal issue request: %w", err)
	}

	body, status, err := c.do(ctx, http.MethodPost, c.baseURL+"/qrcode/data", payload)
	if err != nil {
		return IssueResponse{}, err
	}
	if status != http.StatusOK {
		return IssueResponse{}, c.mapError(status, body, "issue credential")
	}

	var resp IssueResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return IssueResponse{}, dErrors.Wrap(err, dErrors.CodeExternalUnavailable, "issuer returned malformed response")
	}
	if resp.TransactionID == "" || resp.QRCode == "" || resp.DeepLink == "" {
		return IssueResponse{}, dErrors.New(dErrors.CodeExternalUnavailable, "issuer response missing required fields")
	}
	return resp, nil
}

// ClaimStatus asks the issuer whether the credential for a transaction
// has been claimed. Returns the credential JWT when it has, or
// ErrNotYetClaimed while the artifact is still unscanned.
func (c *Client) ClaimStatus(ctx context.Context, transactionID string) (string, error) {
	url := c.baseURL + "/credential/nonce/" + transactionID
	body, status, err := c.do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	if status == http.StatusBadRequest {
		var ie issuerError
		if json.Unmarshal(body, &ie) == nil && ie.Code == codeNotYetClaimed {
			return "", ErrNotYetClaimed
		}
	}
	if status != http.StatusOK {
		return "", c.mapError(status, body, "query claim status")
	}

	var resp struct {
		Credential string `json:"credential"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeExternalUnavailable, "issuer returned malformed response")
	}
	if resp.Credential == "" {
		return "", dErrors.New(dErrors.CodeExternalUnavailable, "issuer claim response missing credential")
	}
	return resp.Credential, nil
}

// Revoke asks the issuer to revoke a minted credential.
func (c *Client) Revoke(ctx context.Context, credentialID string) error {
	url := c.baseURL + "/credential/" + credentialID + "/revocation"
	body, status, err := c.do(ctx, http.MethodPost, url, nil)
	if err != nil {
		return err
	}
	if status == http.StatusOK {
		return nil
	}

	var ie issuerError
	if json.Unmarshal(body, &ie) == nil && ie.Code == codeInvalidCredentialID {
		return ErrInvalidCredentialID
	}
	return c.mapError(status, body, "revoke credential")
}

func (c *Client) do(ctx context.Context, method, url string, payload []byte) ([]byte, int, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("create issuer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Access-Token", c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, dErrors.Wrap(err, dErrors.CodeExternalUnavailable, "issuer unreachable")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, dErrors.Wrap(err, dErrors.CodeExternalUnavailable, "read issuer response")
	}
	return body, resp.StatusCode, nil
}

func (c *Client) mapError(status int, body []byte, op string) error {
	if status >= http.StatusInternalServerError {
		return dErrors.New(dErrors.CodeExternalUnavailable, fmt.Sprintf("%s: issuer returned %d", op, status))
	}
	var ie issuerError
	if json.Unmarshal(body, &ie) == nil && ie.Code != "" {
		return dErrors.New(dErrors.CodeExternalRejected, fmt.Sprintf("%s: issuer code %s", op, ie.Code))
	}
	return dErrors.New(dErrors.CodeExternalRejected, fmt.Sprintf("%s: issuer returned %d", op, status))
}
