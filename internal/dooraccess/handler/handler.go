// Package handler exposes door admission over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"staykey/internal/dooraccess/models"
	"staykey/internal/dooraccess/service"
	id "staykey/pkg/domain"
	dErrors "staykey/pkg/domain-errors"
	"staykey/pkg/platform/httputil"
	"staykey/pkg/requestcontext"
)

// Admission is the door admission dependency.
type Admission interface {
	BeginAttempt(ctx context.Context, propertyID id.PropertyID, room string) (service.BeginResult, error)
	CheckResult(ctx context.Context, transactionID string) (service.Decision, error)
	LogsByBooking(ctx context.Context, bookingID id.BookingID, actor id.UserID) ([]models.AccessLogEntry, error)
}

type Handler struct {
	admission Admission
	logger    *slog.Logger
}

func New(admission Admission, logger *slog.Logger) *Handler {
	return &Handler{admission: admission, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/door/attempts", h.HandleBeginAttempt)
	r.Get("/door/attempts/{transactionID}/result", h.HandleCheckResult)
	r.Get("/door/access-logs", h.HandleListAccessLogs)
}

type BeginAttemptRequest struct {
	PropertyID string `json:"property_id"`
	Room       string `json:"room"`
}

func (r *BeginAttemptRequest) Normalize() {
	if r == nil {
		return
	}
	r.PropertyID = strings.TrimSpace(r.PropertyID)
	r.Room = strings.TrimSpace(r.Room)
}

func (r *BeginAttemptRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if r.PropertyID == "" {
		return dErrors.New(dErrors.CodeValidation, "property_id is required")
	}
	if r.Room == "" {
		return dErrors.New(dErrors.CodeValidation, "room is required")
	}
	return nil
}

type BeginAttemptResponse struct {
	TransactionID string    `json:"transaction_id"`
	QRCodeImage   string    `json:"qr_code_image"`
	AuthURI       string    `json:"auth_uri"`
	ExpiresAt     time.Time `json:"expires_at"`
}

type CheckResultResponse struct {
	Result service.Result `json:"result"`
	Reason string         `json:"reason,omitempty"`
}

type AccessLogResponse struct {
	ID            string    `json:"id"`
	BookingID     string    `json:"booking_id,omitempty"`
	UserID        string    `json:"user_id,omitempty"`
	PropertyID    string    `json:"property_id"`
	Method        string    `json:"method"`
	Status        string    `json:"status"`
	Reason        string    `json:"reason,omitempty"`
	DeviceInfo    string    `json:"device_info"`
	TransactionID string    `json:"transaction_id"`
	AccessTime    time.Time `json:"access_time"`
}

type AccessLogListResponse struct {
	Entries []*AccessLogResponse `json:"entries"`
}

// HandleBeginAttempt opens a door transaction and returns its QR
// challenge.
func (h *Handler) HandleBeginAttempt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[BeginAttemptRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	propertyID, err := id.ParsePropertyID(req.PropertyID)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid property id"))
		return
	}

	result, err := h.admission.BeginAttempt(ctx, propertyID, req.Room)
	if err != nil {
		h.logger.ErrorContext(ctx, "begin door attempt failed", "error", err, "request_id", requestID, "property_id", propertyID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, &BeginAttemptResponse{
		TransactionID: result.TransactionID,
		QRCodeImage:   result.QRCodeImage,
		AuthURI:       result.AuthURI,
		ExpiresAt:     result.ExpiresAt,
	})
}

// HandleCheckResult polls one attempt for its admission outcome.
func (h *Handler) HandleCheckResult(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	transactionID := chi.URLParam(r, "transactionID")

	decision, err := h.admission.CheckResult(ctx, transactionID)
	if err != nil {
		h.logger.ErrorContext(ctx, "check door result failed", "error", err, "request_id", requestID, "transaction_id", transactionID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, &CheckResultResponse{
		Result: decision.Result,
		Reason: decision.Reason,
	})
}

// HandleListAccessLogs lists access log entries for a reservation.
func (h *Handler) HandleListAccessLogs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	bookingID, err := id.ParseBookingID(r.URL.Query().Get("booking_id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid booking id"))
		return
	}

	entries, err := h.admission.LogsByBooking(ctx, bookingID, requestcontext.ActorID(ctx))
	if err != nil {
		h.logger.ErrorContext(ctx, "list access logs failed", "error", err, "request_id", requestID, "booking_id", bookingID)
		httputil.WriteError(w, err)
		return
	}

	responses := make([]*AccessLogResponse, len(entries))
	for i, entry := range entries {
		responses[i] = toAccessLogResponse(entry)
	}
	httputil.WriteJSON(w, http.StatusOK, &AccessLogListResponse{Entries: responses})
}

func toAccessLogResponse(entry models.AccessLogEntry) *AccessLogResponse {
	resp := &AccessLogResponse{
		ID:            entry.ID.String(),
		PropertyID:    entry.PropertyID.String(),
		Method:        entry.Method,
		Status:        string(entry.Status),
		Reason:        entry.Reason,
		DeviceInfo:    entry.DeviceInfo,
		TransactionID: entry.TransactionID,
		AccessTime:    entry.AccessTime,
	}
	if entry.BookingID != nil {
		resp.BookingID = entry.BookingID.String()
	}
	if entry.UserID != nil {
		resp.UserID = entry.UserID.String()
	}
	return resp
}
