package catalog

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ghostauditor/backend/internal/middleware"
	"github.com/ghostauditor/backend/internal/models"
	"github.com/ghostauditor/backend/internal/pricing"
)

type Handler struct {
	svc *Service
	log *slog.Logger
}

func NewHandler(svc *Service, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, log: log}
}

// Menu handles GET /api/v1/menu. The response carries no code payloads.
func (h *Handler) Menu(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	if acc == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	list, err := h.svc.Menu(r.Context(), acc)
	if err != nil {
		h.log.Error("menu listing failed", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"scenarios": list})
}

// ListGroups handles GET /api/v1/admin/groups.
func (h *Handler) ListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.svc.Groups(r.Context())
	if err != nil {
		h.log.Error("group listing failed", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"groups": groups})
}

type createScenarioRequest struct {
	GroupName   string `json:"group_name"`
	Title       string `json:"title"`
	Rationale   string `json:"rationale"`
	Remediation string `json:"remediation"`
	Code        string `json:"code"`
	Active      *bool  `json:"active"`
}

// CreateScenario handles POST /api/v1/admin/scenarios.
func (h *Handler) CreateScenario(w http.ResponseWriter, r *http.Request) {
	var req createScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if req.GroupName == "" || req.Title == "" {
		http.Error(w, `{"error":"group_name and title are required"}`, http.StatusBadRequest)
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	sc := &models.Scenario{
		GroupName:   req.GroupName,
		Title:       req.Title,
		Rationale:   req.Rationale,
		Remediation: req.Remediation,
		Code:        req.Code,
		Active:      active,
	}
	if err := h.svc.CreateScenario(r.Context(), sc); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			http.Error(w, `{"error":"unknown group, set its price first"}`, http.StatusBadRequest)
			return
		}
		h.log.Error("scenario create failed", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, sc)
}

type setGroupPriceRequest struct {
	CostPerRun *int  `json:"cost_per_run"`
	Active     *bool `json:"active"`
}

// SetGroupPrice handles PUT /api/v1/admin/groups/{name}/price.
func (h *Handler) SetGroupPrice(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		http.Error(w, `{"error":"group name is required"}`, http.StatusBadRequest)
		return
	}
	var req setGroupPriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	g := &models.ScenarioGroup{Name: name, CostPerRun: req.CostPerRun, Active: active}
	if err := h.svc.SetGroupPrice(r.Context(), g); err != nil {
		h.log.Error("group price update failed", "error", err, "group", name)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

type setActiveRequest struct {
	Active bool `json:"active"`
}

// SetScenarioActive handles PATCH /api/v1/admin/scenarios/{id}/active.
func (h *Handler) SetScenarioActive(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid scenario id"}`, http.StatusBadRequest)
		return
	}
	var req setActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if err := h.svc.SetScenarioActive(r.Context(), id, req.Active); err != nil {
		if errors.Is(err, pricing.ErrContentNotFound) {
			http.Error(w, `{"error":"scenario not found"}`, http.StatusNotFound)
			return
		}
		h.log.Error("scenario activation failed", "error", err, "scenario_id", id)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
