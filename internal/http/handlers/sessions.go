package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Damatnic/ASTRAL-CORE-V2-sub004/internal/escalation"
	"github.com/Damatnic/ASTRAL-CORE-V2-sub004/internal/session"
	"github.com/Damatnic/ASTRAL-CORE-V2-sub004/pkg/logging"
)

// SessionHandler exposes the crisis-session lifecycle over HTTP. Messages can
// be processed synchronously for an immediate ack or enqueued through the
// intake queue when the caller only needs delivery confirmation.
type SessionHandler struct {
	manager *session.Manager
	intake  *session.Intake
	logger  *logging.Logger
}

// NewSessionHandler wires the handler. intake may be nil; async delivery is
// then unavailable.
func NewSessionHandler(manager *session.Manager, intake *session.Intake, logger *logging.Logger) *SessionHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &SessionHandler{manager: manager, intake: intake, logger: logger}
}

// HealthCheck reports liveness and the current session count.
func (h *SessionHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"active_sessions": h.manager.Count(),
	})
}

type createSessionRequest struct {
	SeekerID          string               `json:"seeker_id"`
	Anonymous         bool                 `json:"anonymous"`
	Region            string               `json:"region"`
	Language          string               `json:"language"`
	Location          *escalation.Location `json:"location,omitempty"`
	ReferralSource    string               `json:"referral_source"`
	ClientFingerprint string               `json:"client_fingerprint"`
}

// Create opens a new crisis session.
// Route: POST /sessions
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	snap, err := h.manager.CreateSession(r.Context(), session.CreateOptions{
		SeekerID:          req.SeekerID,
		Anonymous:         req.Anonymous,
		Region:            req.Region,
		Language:          req.Language,
		Location:          req.Location,
		ReferralSource:    req.ReferralSource,
		ClientFingerprint: req.ClientFingerprint,
	})
	if err != nil {
		h.logger.Error("create session failed", "error", err)
		domainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

// Get returns the current session snapshot.
// Route: GET /sessions/{sessionID}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	snap, err := h.manager.GetSession(chi.URLParam(r, "sessionID"))
	if err != nil {
		domainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type postMessageRequest struct {
	SenderID string `json:"sender_id"`
	Text     string `json:"text"`
	Async    bool   `json:"async"`
}

// PostMessage scores one message. With async set the message is enqueued and
// the response carries the job id instead of an assessment.
// Route: POST /sessions/{sessionID}/messages
func (h *SessionHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		jsonError(w, "text is required", http.StatusBadRequest)
		return
	}

	if req.Async {
		if h.intake == nil {
			jsonError(w, "message queue not configured", http.StatusServiceUnavailable)
			return
		}
		jobID, err := h.intake.EnqueueMessage(r.Context(), session.InboundMessage{
			SessionID: sessionID,
			SenderID:  req.SenderID,
			Text:      req.Text,
		})
		if err != nil {
			h.logger.Error("enqueue message failed", "session_id", sessionID, "error", err)
			jsonError(w, "failed to enqueue message", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
		return
	}

	ack, err := h.manager.ProcessMessage(r.Context(), sessionID, req.SenderID, req.Text)
	if err != nil {
		domainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ack)
}

type addResponderRequest struct {
	ResponderID string `json:"responder_id"`
	Role        string `json:"role"`
}

// AddResponder joins a responder or supervisor to the session.
// Route: POST /sessions/{sessionID}/responders
func (h *SessionHandler) AddResponder(w http.ResponseWriter, r *http.Request) {
	var req addResponderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.ResponderID == "" {
		jsonError(w, "responder_id is required", http.StatusBadRequest)
		return
	}

	snap, err := h.manager.AddResponder(r.Context(), chi.URLParam(r, "sessionID"), req.ResponderID, session.Role(req.Role))
	if err != nil {
		domainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type endSessionRequest struct {
	CallerID string `json:"caller_id"`
}

// End closes the session on behalf of the caller.
// Route: POST /sessions/{sessionID}/end
func (h *SessionHandler) End(w http.ResponseWriter, r *http.Request) {
	var req endSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	snap, err := h.manager.EndSession(r.Context(), chi.URLParam(r, "sessionID"), req.CallerID)
	if err != nil {
		domainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type resolveSessionRequest struct {
	SupervisorID string `json:"supervisor_id"`
	Notes        string `json:"notes"`
}

// Resolve marks the crisis resolved. Supervisor only.
// Route: POST /sessions/{sessionID}/resolve
func (h *SessionHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req resolveSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	snap, err := h.manager.ResolveSession(r.Context(), chi.URLParam(r, "sessionID"), req.SupervisorID, req.Notes)
	if err != nil {
		domainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type transferSessionRequest struct {
	CallerID      string `json:"caller_id"`
	ToResponderID string `json:"to_responder_id"`
}

// Transfer hands the session to another responder.
// Route: POST /sessions/{sessionID}/transfer
func (h *SessionHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req transferSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.ToResponderID == "" {
		jsonError(w, "to_responder_id is required", http.StatusBadRequest)
		return
	}

	snap, err := h.manager.TransferSession(r.Context(), chi.URLParam(r, "sessionID"), req.CallerID, req.ToResponderID)
	if err != nil {
		domainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// Preserve flags the session so cleanup never evicts it.
// Route: POST /sessions/{sessionID}/preserve
func (h *SessionHandler) Preserve(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if err := h.manager.PreserveEvidence(sessionID); err != nil {
		domainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session_id": sessionID, "preserve_evidence": true})
}
