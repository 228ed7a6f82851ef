package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Damatnic/ASTRAL-CORE-V2-sub004/internal/escalation"
	"github.com/Damatnic/ASTRAL-CORE-V2-sub004/internal/session"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func jsonError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}

// statusFor maps domain errors to HTTP status codes. Unknown errors are
// reported as 500 without leaking the underlying message.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, escalation.ErrSessionNotFound),
		errors.Is(err, escalation.ErrNotEscalating):
		return http.StatusNotFound
	case errors.Is(err, session.ErrCapacityExceeded):
		return http.StatusServiceUnavailable
	case errors.Is(err, session.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, session.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, escalation.ErrAlreadyActive):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func domainError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	jsonError(w, msg, status)
}
