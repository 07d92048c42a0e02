// Package verifier is the HTTP client for the external credential
// verifier service. It creates presentation challenges and fetches
// their results.
package verifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	dErrors "staykey/pkg/domain-errors"
)

// ErrNotYetPresented signals that no wallet has answered the challenge
// yet. Callers map it to a pending poll result.
var ErrNotYetPresented = errors.New("challenge not yet presented")

// Challenge is the presentable artifact for one door attempt.
type Challenge struct {
	TransactionID string `json:"transactionId"`
	QRCodeImage   string `json:"qrcodeImage"`
	AuthURI       string `json:"authUri"`
}

// Presentation is a completed wallet presentation. Claims carries the
// disclosed credential fields keyed by their wire names.
type Presentation struct {
	Verified bool
	Claims   map[string]string
}

// Client talks to the verifier service.
type Client struct {
	baseURL     string
	accessToken string
	ref         string
	httpClient  *http.Client
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// NewClient creates a verifier client. The ref identifies the
// presentation definition registered with the verifier.
func NewClient(baseURL, accessToken, ref string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL:     baseURL,
		accessToken: accessToken,
		ref:         ref,
		httpClient:  &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateChallenge registers a presentation challenge under the caller's
// transaction id and returns the QR artifact.
func (c *Client) CreateChallenge(ctx context.Context, transactionID string) (Challenge, error) {
	endpoint := fmt.Sprintf("%s/oidvp/qrcode?ref=%s&transactionId=%s",
		c.baseURL, url.QueryEscape(c.ref), url.QueryEscape(transactionID))

	body, status, err := c.do(ctx, endpoint)
	if err != nil {
		return Challenge{}, err
	}
	if status != http.StatusOK {
		return Challenge{}, mapError(status, body, "verifier challenge creation failed")
	}

	var challenge Challenge
	if err := json.Unmarshal(body, &challenge); err != nil {
		return Challenge{}, dErrors.Wrap(err, dErrors.CodeExternalUnavailable, "verifier returned malformed challenge")
	}
	if challenge.QRCodeImage == "" {
		return Challenge{}, dErrors.New(dErrors.CodeExternalUnavailable, "verifier challenge is missing the qr image")
	}
	return challenge, nil
}

// resultResponse is the verifier's result payload. Claims arrive as a
// flat name/value list per disclosed field.
type resultResponse struct {
	VerifyResult bool `json:"verifyResult"`
	Data         []struct {
		ClaimName  string `json:"claimName"`
		ClaimValue string `json:"claimValue"`
	} `json:"data"`
}

// FetchResult retrieves the presentation result for a challenge.
// Returns ErrNotYetPresented while no wallet has responded.
func (c *Client) FetchResult(ctx context.Context, transactionID string) (Presentation, error) {
	endpoint := fmt.Sprintf("%s/oidvp/result?transactionId=%s",
		c.baseURL, url.QueryEscape(transactionID))

	body, status, err := c.do(ctx, endpoint)
	if err != nil {
		return Presentation{}, err
	}
	switch {
	case status == http.StatusOK:
	case status == http.StatusBadRequest, status == http.StatusNotFound:
		// The verifier answers 4xx until a wallet responds to the
		// challenge.
		return Presentation{}, ErrNotYetPresented
	default:
		return Presentation{}, mapError(status, body, "verifier result fetch failed")
	}

	var result resultResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return Presentation{}, dErrors.Wrap(err, dErrors.CodeExternalUnavailable, "verifier returned malformed result")
	}

	presentation := Presentation{
		Verified: result.VerifyResult,
		Claims:   make(map[string]string, len(result.Data)),
	}
	for _, claim := range result.Data {
		presentation.Claims[claim.ClaimName] = claim.ClaimValue
	}
	return presentation, nil
}

func (c *Client) do(ctx context.Context, endpoint string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build verifier request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Access-Token", c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, dErrors.Wrap(err, dErrors.CodeExternalUnavailable, "verifier unreachable")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, dErrors.Wrap(err, dErrors.CodeExternalUnavailable, "read verifier response")
	}
	return body, resp.StatusCode, nil
}

func mapError(status int, body []byte, msg string) error {
	var payload struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(body, &payload)

	detail := msg
	if payload.Message != "" {
		detail = fmt.Sprintf("%s: %s", msg, payload.Message)
	}
	if status >= http.StatusInternalServerError {
		return dErrors.New(dErrors.CodeExternalUnavailable, detail)
	}
	return dErrors.New(dErrors.CodeExternalRejected, detail)
}
