package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Damatnic/ASTRAL-CORE-V2-sub004/internal/escalation"
	"github.com/Damatnic/ASTRAL-CORE-V2-sub004/pkg/logging"
)

// EscalationHandler exposes manual escalation and escalation status. The
// risk-driven paths run inside the session manager; this surface exists for
// responders and supervisors.
type EscalationHandler struct {
	engine *escalation.Engine
	logger *logging.Logger
}

func NewEscalationHandler(engine *escalation.Engine, logger *logging.Logger) *EscalationHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &EscalationHandler{engine: engine, logger: logger}
}

type manualEscalateRequest struct {
	RequestedBy string `json:"requested_by"`
	Reason      string `json:"reason"`
}

// Escalate triggers a manual escalation for the session.
// Route: POST /sessions/{sessionID}/escalate
func (h *EscalationHandler) Escalate(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req manualEscalateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.RequestedBy == "" {
		jsonError(w, "requested_by is required", http.StatusBadRequest)
		return
	}

	rec, err := h.engine.Escalate(r.Context(), escalation.Request{
		SessionID:   sessionID,
		Trigger:     escalation.TriggerManualRequest,
		Reason:      req.Reason,
		RequestedBy: req.RequestedBy,
	})
	if err != nil {
		h.logger.Error("manual escalation failed", "session_id", sessionID, "error", err)
		domainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// Active returns the in-flight escalation for the session, if any.
// Route: GET /sessions/{sessionID}/escalation
func (h *EscalationHandler) Active(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	rec, ok := h.engine.Active(sessionID)
	if !ok {
		jsonError(w, "no active escalation", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type resolveEscalationRequest struct {
	ResolvedBy string `json:"resolved_by"`
	Notes      string `json:"notes"`
}

// Resolve closes the active escalation for the session.
// Route: POST /sessions/{sessionID}/escalation/resolve
func (h *EscalationHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req resolveEscalationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	rec, err := h.engine.Resolve(r.Context(), sessionID, req.ResolvedBy, req.Notes)
	if err != nil {
		domainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
