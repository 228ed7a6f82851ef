package escalation

import "time"

// Tier is one of the five escalation severities, each with its own SLA and
// protocol.
type Tier int

const (
	TierStandard  Tier = 1
	TierElevated  Tier = 2
	TierHigh      Tier = 3
	TierCritical  Tier = 4
	TierEmergency Tier = 5
)

func (t Tier) String() string {
	switch t {
	case TierStandard:
		return "STANDARD"
	case TierElevated:
		return "ELEVATED"
	case TierHigh:
		return "HIGH"
	case TierCritical:
		return "CRITICAL"
	case TierEmergency:
		return "EMERGENCY"
	default:
		return "UNKNOWN"
	}
}

// Default response-time targets per tier.
var defaultSLAs = map[Tier]time.Duration{
	TierEmergency: 30 * time.Second,
	TierCritical:  60 * time.Second,
	TierHigh:      120 * time.Second,
	TierElevated:  180 * time.Second,
	TierStandard:  300 * time.Second,
}

// DefaultSLA returns the built-in target for a tier.
func DefaultSLA(tier Tier) time.Duration {
	if sla, ok := defaultSLAs[tier]; ok {
		return sla
	}
	return defaultSLAs[TierStandard]
}

// TierForScore maps a risk score onto an escalation tier. Emergency keyword
// presence forces tier 5 regardless of the weighted score.
func TierForScore(score float64, emergency bool) Tier {
	switch {
	case emergency || score >= 9:
		return TierEmergency
	case score >= 7:
		return TierCritical
	case score >= 5:
		return TierHigh
	case score >= 3:
		return TierElevated
	default:
		return TierStandard
	}
}

// Trigger identifies what initiated an escalation.
type Trigger string

const (
	TriggerRiskAssessment Trigger = "risk_assessment"
	TriggerAutoFlags      Trigger = "accumulated_risk_flags"
	TriggerManualRequest  Trigger = "manual_request"
)

// tierForTrigger selects a tier when no assessment is available.
func tierForTrigger(trigger Trigger) Tier {
	switch trigger {
	case TriggerAutoFlags:
		return TierCritical
	case TriggerManualRequest:
		return TierStandard
	default:
		return TierStandard
	}
}

// State is the per-session escalation lifecycle.
type State string

const (
	StateNone       State = "NONE"
	StateEscalating State = "ESCALATING"
	StateResolved   State = "RESOLVED"
	StateSuperseded State = "SUPERSEDED"
)
