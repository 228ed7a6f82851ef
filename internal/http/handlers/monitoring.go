package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Damatnic/ASTRAL-CORE-V2-sub004/internal/audit"
	"github.com/Damatnic/ASTRAL-CORE-V2-sub004/internal/monitoring"
	"github.com/Damatnic/ASTRAL-CORE-V2-sub004/pkg/logging"
)

// AuditQuerier reads the durable audit trail.
type AuditQuerier interface {
	Query(ctx context.Context, filter audit.Filter) ([]monitoring.AuditEntry, error)
}

// MonitoringHandler serves operator-facing reports, system alerts, and the
// escalation audit trail.
type MonitoringHandler struct {
	auditor *monitoring.Auditor
	trail   AuditQuerier
	logger  *logging.Logger
}

// NewMonitoringHandler wires the handler. trail may be nil when no durable
// audit store is configured.
func NewMonitoringHandler(auditor *monitoring.Auditor, trail AuditQuerier, logger *logging.Logger) *MonitoringHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &MonitoringHandler{auditor: auditor, trail: trail, logger: logger}
}

// Report aggregates escalation outcomes over the requested window.
// Route: GET /monitoring/report?window=15m
func (h *MonitoringHandler) Report(w http.ResponseWriter, r *http.Request) {
	var window time.Duration
	if raw := r.URL.Query().Get("window"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed < 0 {
			jsonError(w, "window must be a positive duration", http.StatusBadRequest)
			return
		}
		window = parsed
	}
	writeJSON(w, http.StatusOK, h.auditor.GetReport(window))
}

// Alerts lists currently active system alerts.
// Route: GET /monitoring/alerts
func (h *MonitoringHandler) Alerts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"alerts": h.auditor.ActiveAlerts()})
}

// ResolveAlert acknowledges an alert by id.
// Route: POST /monitoring/alerts/{alertID}/resolve
func (h *MonitoringHandler) ResolveAlert(w http.ResponseWriter, r *http.Request) {
	alertID := chi.URLParam(r, "alertID")
	if !h.auditor.ResolveAlert(alertID) {
		jsonError(w, "alert not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": alertID, "resolved": true})
}

// AuditTrail queries the durable escalation audit trail.
// Route: GET /monitoring/audit?session_id=&tier=&outcome=&limit=&offset=
func (h *MonitoringHandler) AuditTrail(w http.ResponseWriter, r *http.Request) {
	if h.trail == nil {
		jsonError(w, "audit store not configured", http.StatusServiceUnavailable)
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		SessionID: q.Get("session_id"),
		Outcome:   monitoring.Outcome(q.Get("outcome")),
	}
	if raw := q.Get("tier"); raw != "" {
		tier, err := strconv.Atoi(raw)
		if err != nil {
			jsonError(w, "tier must be an integer", http.StatusBadRequest)
			return
		}
		filter.Tier = tier
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			jsonError(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		filter.Limit = limit
	}
	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			jsonError(w, "offset must be a non-negative integer", http.StatusBadRequest)
			return
		}
		filter.Offset = offset
	}

	entries, err := h.trail.Query(r.Context(), filter)
	if err != nil {
		h.logger.Error("audit trail query failed", "error", err)
		jsonError(w, "failed to query audit trail", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
