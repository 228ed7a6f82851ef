// Package events defines the wire types the engine publishes to the message
// transport. Delivery reliability belongs to the transport, not this core.
package events

import "time"

// Type names published on the transport.
const (
	TypeSessionCreated     = "session_created"
	TypeMessageProcessed   = "message_processed"
	TypeEmergencyEscalated = "emergency_escalated"
	TypeSessionEnded       = "session_ended"
)

// Event is the envelope for all published events.
type Event struct {
	EventID    string    `json:"event_id"`
	Type       string    `json:"type"`
	SessionID  string    `json:"session_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload,omitempty"`
}

type SessionCreatedV1 struct {
	SessionID string    `json:"session_id"`
	SeekerID  string    `json:"seeker_id"`
	Encrypted bool      `json:"encrypted"`
	CreatedAt time.Time `json:"created_at"`
}

type MessageProcessedV1 struct {
	SessionID    string    `json:"session_id"`
	SenderID     string    `json:"sender_id"`
	MessageCount int       `json:"message_count"`
	RiskScore    float64   `json:"risk_score"`
	RiskLevel    string    `json:"risk_level"`
	ProcessedAt  time.Time `json:"processed_at"`
}

type EmergencyEscalatedV1 struct {
	SessionID    string    `json:"session_id"`
	EscalationID string    `json:"escalation_id"`
	Tier         int       `json:"tier"`
	Trigger      string    `json:"trigger"`
	HelpOnTheWay bool      `json:"help_on_the_way"`
	EscalatedAt  time.Time `json:"escalated_at"`
}

type SessionEndedV1 struct {
	SessionID string    `json:"session_id"`
	EndedBy   string    `json:"ended_by"`
	Status    string    `json:"status"`
	EndedAt   time.Time `json:"ended_at"`
}
