package handler

import (
	"time"

	"staykey/internal/certificate/models"
)

type CertificateResponse struct {
	ID            string        `json:"id"`
	BookingID     string        `json:"booking_id"`
	UserID        string        `json:"user_id"`
	GrantID       string        `json:"grant_id,omitempty"`
	Role          string        `json:"role"`
	TransactionID string        `json:"transaction_id"`
	Nonce         string        `json:"nonce"`
	Status        models.Status `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
	ClaimedAt     *time.Time    `json:"claimed_at,omitempty"`
	RevokedAt     *time.Time    `json:"revoked_at,omitempty"`
	ExpiresAt     *time.Time    `json:"expires_at,omitempty"`
}

type IssueCertificateResponse struct {
	Certificate *CertificateResponse `json:"certificate"`

	// One-shot claim artifact. Returned once and never stored.
	QRCode   string `json:"qr_code"`
	DeepLink string `json:"deep_link"`
}

type CertificateListResponse struct {
	Certificates []*CertificateResponse `json:"certificates"`
}

func toCertificateResponse(c models.Certificate) *CertificateResponse {
	resp := &CertificateResponse{
		ID:            c.ID.String(),
		BookingID:     c.BookingID.String(),
		UserID:        c.UserID.String(),
		Role:          string(c.Role),
		TransactionID: c.TransactionID,
		Nonce:         c.Nonce,
		Status:        c.Status,
		CreatedAt:     c.CreatedAt,
		ClaimedAt:     c.ClaimedAt,
		RevokedAt:     c.RevokedAt,
		ExpiresAt:     c.ExpiresAt,
	}
	if c.GrantID != nil {
		resp.GrantID = c.GrantID.String()
	}
	return resp
}
