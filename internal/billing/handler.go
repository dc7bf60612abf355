package billing

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ghostauditor/backend/internal/ledger"
	"github.com/ghostauditor/backend/internal/middleware"
	"github.com/ghostauditor/backend/internal/models"
	"github.com/ghostauditor/backend/internal/pricing"
)

type Handler struct {
	Svc *Service
	Log *slog.Logger
}

func NewHandler(svc *Service, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{Svc: svc, Log: log}
}

type quoteRequest struct {
	TargetKind string `json:"target_kind"`
	TargetRef  string `json:"target_ref"`
}

type quoteResponse struct {
	QuoteID    string    `json:"quote_id"`
	TargetKind string    `json:"target_kind"`
	TargetRef  string    `json:"target_ref,omitempty"`
	Cost       int       `json:"cost"`
	Balance    int       `json:"balance"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// CreateQuote handles POST /api/v1/quotes.
func (h *Handler) CreateQuote(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	if acc == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	var req quoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if req.TargetKind == "" {
		http.Error(w, `{"error":"target_kind is required"}`, http.StatusBadRequest)
		return
	}

	res, err := h.Svc.Quote(r.Context(), acc, req.TargetKind, req.TargetRef)
	if err != nil {
		h.writeServiceError(w, "quote", err)
		return
	}
	writeJSON(w, http.StatusCreated, quoteResponse{
		QuoteID:    res.Quote.ID.String(),
		TargetKind: res.Quote.TargetKind,
		TargetRef:  res.Quote.TargetRef,
		Cost:       res.Quote.Cost,
		Balance:    res.Balance,
		ExpiresAt:  res.Quote.ExpiresAt,
	})
}

type contentResponse struct {
	Scenarios []*models.Scenario `json:"scenarios"`
}

// DeliverContent handles GET /api/v1/quotes/{id}/content.
func (h *Handler) DeliverContent(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	if acc == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	quoteID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid quote id"}`, http.StatusBadRequest)
		return
	}

	scenarios, err := h.Svc.Deliver(r.Context(), acc, quoteID)
	if err != nil {
		h.writeServiceError(w, "deliver", err)
		return
	}
	writeJSON(w, http.StatusOK, contentResponse{Scenarios: scenarios})
}

type confirmResponse struct {
	QuoteID          string `json:"quote_id"`
	Cost             int    `json:"cost"`
	Balance          int    `json:"balance"`
	AlreadyConfirmed bool   `json:"already_confirmed,omitempty"`
}

// ConfirmQuote handles POST /api/v1/quotes/{id}/confirm.
func (h *Handler) ConfirmQuote(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	if acc == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	quoteID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid quote id"}`, http.StatusBadRequest)
		return
	}

	res, err := h.Svc.Confirm(r.Context(), acc, quoteID)
	if err != nil {
		h.writeServiceError(w, "confirm", err)
		return
	}
	writeJSON(w, http.StatusOK, confirmResponse{
		QuoteID:          res.QuoteID.String(),
		Cost:             res.Cost,
		Balance:          res.Balance,
		AlreadyConfirmed: res.AlreadyConfirmed,
	})
}

// writeServiceError maps billing sentinels onto stable HTTP error responses.
func (h *Handler) writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ledger.ErrInsufficientFunds):
		http.Error(w, `{"error":"insufficient funds"}`, http.StatusPaymentRequired)
	case errors.Is(err, pricing.ErrContentNotFound):
		http.Error(w, `{"error":"content not found"}`, http.StatusNotFound)
	case errors.Is(err, ErrGroupNotAllowed):
		http.Error(w, `{"error":"group not allowed for this account"}`, http.StatusForbidden)
	case errors.Is(err, ErrQuoteNotFound):
		http.Error(w, `{"error":"quote not found"}`, http.StatusNotFound)
	case errors.Is(err, ErrQuoteExpired):
		http.Error(w, `{"error":"quote expired, request a new one"}`, http.StatusConflict)
	case errors.Is(err, ledger.ErrAccountNotFound):
		http.Error(w, `{"error":"account not found"}`, http.StatusNotFound)
	default:
		h.Log.Error(op+" failed", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
