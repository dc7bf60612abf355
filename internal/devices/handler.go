package devices

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/ghostauditor/backend/internal/models"
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

// ListDevices handles GET /api/v1/admin/accounts/{id}/devices.
func (h *Handler) ListDevices(w http.ResponseWriter, r *http.Request) {
	accountID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid account id"}`, http.StatusBadRequest)
		return
	}
	list, err := h.Svc.List(r.Context(), accountID)
	if err != nil {
		h.Log.Error("list devices", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []*models.Device{}
	}
	writeJSON(w, http.StatusOK, list)
}

type resetResponse struct {
	Removed int64 `json:"removed"`
}

// ResetDevices handles DELETE /api/v1/admin/accounts/{id}/devices, the
// administrative hardware-lock reset.
func (h *Handler) ResetDevices(w http.ResponseWriter, r *http.Request) {
	accountID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid account id"}`, http.StatusBadRequest)
		return
	}
	removed, err := h.Svc.Reset(r.Context(), accountID)
	if err != nil {
		h.Log.Error("reset devices", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	h.Log.Info("device lock reset", "account_id", accountID, "removed", removed)
	writeJSON(w, http.StatusOK, resetResponse{Removed: removed})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
