package escalation

import "context"

// protocolAction is one step of a tier protocol. Actions run sequentially in
// the order listed; each gets its own deadline of half the tier SLA so a
// single slow dependency cannot consume the whole response window.
type protocolAction struct {
	name string
	run  func(ctx context.Context) error
}

func (e *Engine) actionsForTier(tier Tier, a *active) []protocolAction {
	switch tier {
	case TierEmergency:
		return []protocolAction{
			{"contact_emergency_services", a.contactEmergencyServices},
			{"contact_crisis_hotline", a.contactHotline},
			{"assign_crisis_specialist", a.assignResponder},
			{"activate_location_services", a.activateLocationServices},
			{"begin_continuous_monitoring", a.beginMonitoring},
		}
	case TierCritical:
		return []protocolAction{
			{"contact_crisis_hotline", a.contactHotline},
			{"assign_specialist", a.assignResponder},
			{"initiate_emergency_protocol", a.initiateEmergencyProtocol},
		}
	case TierHigh:
		return []protocolAction{
			{"assign_counselor", a.assignResponder},
			{"generate_safety_plan", a.generateSafetyPlan},
			{"begin_continuous_monitoring", a.beginMonitoring},
		}
	case TierElevated:
		return []protocolAction{
			{"assign_volunteer", a.assignResponder},
			{"conduct_safety_check", a.conductSafetyCheck},
			{"offer_coping_strategies", a.offerCopingStrategies},
		}
	default:
		return []protocolAction{
			{"assign_peer_volunteer", a.assignResponder},
			{"provide_resources", a.provideResources},
		}
	}
}
