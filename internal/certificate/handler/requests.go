package handler

import (
	"strings"

	dErrors "staykey/pkg/domain-errors"
)

// HTTP request DTOs. These carry JSON tags for the API surface and are
// converted to typed identifiers before reaching the services.

type IssueCertificateRequest struct {
	BookingID string `json:"booking_id"`
	GrantID   string `json:"grant_id,omitempty"`
}

func (r *IssueCertificateRequest) Normalize() {
	if r == nil {
		return
	}
	r.BookingID = strings.TrimSpace(r.BookingID)
	r.GrantID = strings.TrimSpace(r.GrantID)
}

func (r *IssueCertificateRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if r.BookingID == "" {
		return dErrors.New(dErrors.CodeValidation, "booking_id is required")
	}
	return nil
}

type RevokeByNonceRequest struct {
	BookingID string `json:"booking_id"`
	Nonce     string `json:"nonce"`
}

func (r *RevokeByNonceRequest) Normalize() {
	if r == nil {
		return
	}
	r.BookingID = strings.TrimSpace(r.BookingID)
	r.Nonce = strings.ToUpper(strings.TrimSpace(r.Nonce))
}

func (r *RevokeByNonceRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if r.BookingID == "" {
		return dErrors.New(dErrors.CodeValidation, "booking_id is required")
	}
	if r.Nonce == "" {
		return dErrors.New(dErrors.CodeValidation, "nonce is required")
	}
	return nil
}
