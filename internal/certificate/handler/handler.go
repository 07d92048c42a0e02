// Package handler exposes the certificate lifecycle over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"staykey/internal/certificate/models"
	id "staykey/pkg/domain"
	dErrors "staykey/pkg/domain-errors"
	"staykey/pkg/platform/httputil"
	"staykey/pkg/requestcontext"
)

// Lifecycle is the certificate lifecycle dependency. It returns domain
// objects, not HTTP response DTOs.
type Lifecycle interface {
	Issue(ctx context.Context, bookingID id.BookingID, actor id.UserID, grantID *id.GrantID) (models.IssueResult, error)
	PollStatus(ctx context.Context, certID id.CertificateID, actor id.UserID) (models.Certificate, error)
	ListByBooking(ctx context.Context, bookingID id.BookingID, actor id.UserID) ([]models.Certificate, error)
}

// Revoker is the revocation authority dependency.
type Revoker interface {
	Revoke(ctx context.Context, certID id.CertificateID, actor id.UserID) (models.Certificate, error)
	RevokeByNonce(ctx context.Context, bookingID id.BookingID, nonce string, actor id.UserID) (models.Certificate, error)
}

type Handler struct {
	lifecycle Lifecycle
	revoker   Revoker
	logger    *slog.Logger
}

func New(lifecycle Lifecycle, revoker Revoker, logger *slog.Logger) *Handler {
	return &Handler{lifecycle: lifecycle, revoker: revoker, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/certificates", h.HandleIssue)
	r.Get("/certificates/{id}/status", h.HandlePollStatus)
	r.Post("/certificates/{id}/revoke", h.HandleRevoke)
	r.Post("/certificates/revoke-by-nonce", h.HandleRevokeByNonce)
	r.Get("/bookings/{bookingID}/certificates", h.HandleListByBooking)
}

// HandleIssue mints a certificate and returns the one-shot claim
// artifact alongside the stored record.
func (h *Handler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[IssueCertificateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	bookingID, err := id.ParseBookingID(req.BookingID)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid booking id"))
		return
	}
	var grantID *id.GrantID
	if req.GrantID != "" {
		parsed, err := id.ParseGrantID(req.GrantID)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid grant id"))
			return
		}
		grantID = &parsed
	}

	result, err := h.lifecycle.Issue(ctx, bookingID, requestcontext.ActorID(ctx), grantID)
	if err != nil {
		h.logger.ErrorContext(ctx, "issue certificate failed", "error", err, "request_id", requestID, "booking_id", bookingID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, &IssueCertificateResponse{
		Certificate: toCertificateResponse(result.Certificate),
		QRCode:      result.QRCode,
		DeepLink:    result.DeepLink,
	})
}

// HandlePollStatus reports the certificate status, checking the issuer
// while the record is still pending.
func (h *Handler) HandlePollStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	certID, err := id.ParseCertificateID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid certificate id"))
		return
	}

	cert, err := h.lifecycle.PollStatus(ctx, certID, requestcontext.ActorID(ctx))
	if err != nil {
		h.logger.ErrorContext(ctx, "poll certificate status failed", "error", err, "request_id", requestID, "certificate_id", certID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toCertificateResponse(cert))
}

// HandleRevoke revokes a certificate by id.
func (h *Handler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	certID, err := id.ParseCertificateID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid certificate id"))
		return
	}

	cert, err := h.revoker.Revoke(ctx, certID, requestcontext.ActorID(ctx))
	if err != nil {
		h.logger.ErrorContext(ctx, "revoke certificate failed", "error", err, "request_id", requestID, "certificate_id", certID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toCertificateResponse(cert))
}

// HandleRevokeByNonce revokes the certificate carrying a nonce within a
// reservation.
func (h *Handler) HandleRevokeByNonce(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[RevokeByNonceRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	bookingID, err := id.ParseBookingID(req.BookingID)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid booking id"))
		return
	}

	cert, err := h.revoker.RevokeByNonce(ctx, bookingID, req.Nonce, requestcontext.ActorID(ctx))
	if err != nil {
		h.logger.ErrorContext(ctx, "revoke certificate by nonce failed", "error", err, "request_id", requestID, "booking_id", bookingID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toCertificateResponse(cert))
}

// HandleListByBooking lists the certificates of a reservation.
func (h *Handler) HandleListByBooking(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	bookingID, err := id.ParseBookingID(chi.URLParam(r, "bookingID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid booking id"))
		return
	}

	certs, err := h.lifecycle.ListByBooking(ctx, bookingID, requestcontext.ActorID(ctx))
	if err != nil {
		h.logger.ErrorContext(ctx, "list certificates failed", "error", err, "request_id", requestID, "booking_id", bookingID)
		httputil.WriteError(w, err)
		return
	}

	responses := make([]*CertificateResponse, len(certs))
	for i, c := range certs {
		responses[i] = toCertificateResponse(c)
	}
	httputil.WriteJSON(w, http.StatusOK, &CertificateListResponse{Certificates: responses})
}
