package escalation

import "time"

// ActionResult records one executed protocol action. Failures are recorded,
// never propagated; a failed action does not abort the escalation.
type ActionResult struct {
	Name      string        `json:"name"`
	Succeeded bool          `json:"succeeded"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Record is the immutable result of one escalation. It is created when the
// protocol completes and appended to the audit trail; re-escalation produces
// a new record rather than mutating this one.
type Record struct {
	ID        string  `json:"id"`
	SessionID string  `json:"session_id"`
	Tier      Tier    `json:"tier"`
	State     State   `json:"state"`
	Trigger   Trigger `json:"trigger"`
	Reason    string  `json:"reason,omitempty"`

	Actions                    []ActionResult `json:"actions"`
	ResponderAssigned          bool           `json:"responder_assigned"`
	ResponderID                string         `json:"responder_id,omitempty"`
	HotlineContacted           bool           `json:"hotline_contacted"`
	EmergencyServicesContacted bool           `json:"emergency_services_contacted"`

	ResponseTime time.Duration `json:"response_time"`
	SLATarget    time.Duration `json:"sla_target"`
	TargetMet    bool          `json:"target_met"`

	Routing Route `json:"routing"`

	TriggeredAt time.Time `json:"triggered_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// ActionExecuted reports whether a named protocol action ran successfully.
func (r *Record) ActionExecuted(name string) bool {
	for _, a := range r.Actions {
		if a.Name == name && a.Succeeded {
			return true
		}
	}
	return false
}
