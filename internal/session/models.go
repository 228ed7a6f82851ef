// Package session owns the crisis-session lifecycle: participants and their
// capabilities, per-message risk assessment, escalation hand-off, and
// time-based eviction.
package session

import (
	"sync"
	"time"

	"github.com/Damatnic/ASTRAL-CORE-V2-sub004/internal/escalation"
	"github.com/Damatnic/ASTRAL-CORE-V2-sub004/internal/risk"
)

// Status is the session lifecycle state.
type Status string

const (
	StatusActive      Status = "ACTIVE"
	StatusEscalated   Status = "ESCALATED"
	StatusResolved    Status = "RESOLVED"
	StatusTransferred Status = "TRANSFERRED"
	StatusEnded       Status = "ENDED"
)

// Severity is the session-level severity, distinct from per-message risk
// levels. It never decreases except through supervisor resolution.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// severityFor maps an assessment level onto a session severity.
func severityFor(level risk.Level) Severity {
	switch {
	case level >= risk.LevelCritical:
		return SeverityCritical
	case level >= risk.LevelHigh:
		return SeverityHigh
	case level >= risk.LevelModerate:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Role identifies what kind of participant joined a session.
type Role string

const (
	RoleSeeker             Role = "seeker"
	RoleResponder          Role = "responder"
	RoleSupervisor         Role = "supervisor"
	RoleEmergencyContact   Role = "emergency_contact"
	RoleAutomatedAssistant Role = "automated_assistant"
)

// Capability is a permission a participant holds within a session.
type Capability string

const (
	CapSendMessage     Capability = "send_message"
	CapEndSession      Capability = "end_session"
	CapEscalate        Capability = "escalate"
	CapTransferSession Capability = "transfer_session"
	CapViewRiskDetail  Capability = "view_risk_detail"
)

// capabilitiesFor returns the fixed capability set for a role.
func capabilitiesFor(role Role) []Capability {
	switch role {
	case RoleSeeker:
		return []Capability{CapSendMessage, CapEndSession}
	case RoleResponder:
		return []Capability{CapSendMessage, CapEscalate, CapViewRiskDetail}
	case RoleSupervisor:
		return []Capability{CapSendMessage, CapEscalate, CapViewRiskDetail, CapEndSession, CapTransferSession}
	case RoleEmergencyContact:
		return []Capability{CapSendMessage}
	case RoleAutomatedAssistant:
		return []Capability{CapSendMessage, CapEscalate}
	default:
		return nil
	}
}

// Participant is one party in a crisis session. Participants are never
// removed, only marked inactive.
type Participant struct {
	ID           string       `json:"id"`
	Role         Role         `json:"role"`
	Anonymous    bool         `json:"anonymous"`
	Capabilities []Capability `json:"capabilities"`
	JoinedAt     time.Time    `json:"joined_at"`
	LastActiveAt time.Time    `json:"last_active_at"`
	Inactive     bool         `json:"inactive,omitempty"`
}

// HasCapability reports whether the participant holds a capability.
func (p *Participant) HasCapability(c Capability) bool {
	for _, have := range p.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// Metadata is the closed set of opaque session attributes.
type Metadata struct {
	Region            string `json:"region,omitempty"`
	Language          string `json:"language,omitempty"`
	ReferralSource    string `json:"referral_source,omitempty"`
	ClientFingerprint string `json:"client_fingerprint,omitempty"`
}

// CrisisSession is the in-memory authoritative state for one session. All
// fields are guarded by mu; the manager is the only mutator.
type CrisisSession struct {
	mu sync.Mutex

	ID           string
	Status       Status
	Severity     Severity
	Encrypted    bool
	Participants []Participant
	MessageCount int
	RiskFlags    []string
	Escalations  int
	Metadata     Metadata
	Location     *escalation.Location

	PreserveEvidence bool

	CreatedAt    time.Time
	LastActivity time.Time
	EndedAt      time.Time

	progression *risk.Progression
}

// participant finds a participant by id. Caller holds mu.
func (s *CrisisSession) participant(id string) *Participant {
	for i := range s.Participants {
		if s.Participants[i].ID == id {
			return &s.Participants[i]
		}
	}
	return nil
}

// Snapshot is the serializable view of a session handed to the persistence
// store and returned to API callers. It never includes message text.
type Snapshot struct {
	ID               string        `json:"id"`
	Status           Status        `json:"status"`
	Severity         string        `json:"severity"`
	Encrypted        bool          `json:"encrypted"`
	Participants     []Participant `json:"participants"`
	MessageCount     int           `json:"message_count"`
	RiskFlags        []string      `json:"risk_flags"`
	Escalations      int           `json:"escalations"`
	Metadata         Metadata      `json:"metadata"`
	PreserveEvidence bool          `json:"preserve_evidence,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	LastActivity     time.Time     `json:"last_activity"`
	EndedAt          time.Time     `json:"ended_at,omitempty"`
}

// snapshotLocked builds a Snapshot. Caller holds mu.
func (s *CrisisSession) snapshotLocked() Snapshot {
	participants := make([]Participant, len(s.Participants))
	copy(participants, s.Participants)
	flags := make([]string, len(s.RiskFlags))
	copy(flags, s.RiskFlags)
	return Snapshot{
		ID:               s.ID,
		Status:           s.Status,
		Severity:         s.Severity.String(),
		Encrypted:        s.Encrypted,
		Participants:     participants,
		MessageCount:     s.MessageCount,
		RiskFlags:        flags,
		Escalations:      s.Escalations,
		Metadata:         s.Metadata,
		PreserveEvidence: s.PreserveEvidence,
		CreatedAt:        s.CreatedAt,
		LastActivity:     s.LastActivity,
		EndedAt:          s.EndedAt,
	}
}
