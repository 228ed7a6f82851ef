// Package notify implements outbound contact with hotlines, emergency
// services, and responders. The simple dispatcher logs and records instead of
// dialing; real telephony integrations slot in behind the same interface.
package notify

import (
	"context"
	"sync"

	"github.com/Damatnic/ASTRAL-CORE-V2-sub004/internal/escalation"
	"github.com/Damatnic/ASTRAL-CORE-V2-sub004/pkg/logging"
)

// Contact is one recorded outbound contact attempt.
type Contact struct {
	Kind        string
	Region      string
	ResponderID string
	SessionID   string
	Tier        escalation.Tier
}

// SimpleDispatcher satisfies the escalation engine's dispatcher contract by
// logging each contact and keeping an in-memory trail. It always reports
// contact as established.
type SimpleDispatcher struct {
	logger *logging.Logger

	mu       sync.Mutex
	contacts []Contact
}

var _ escalation.NotificationDispatcher = (*SimpleDispatcher)(nil)

// NewSimpleDispatcher creates a dispatcher that records contacts in memory.
func NewSimpleDispatcher(logger *logging.Logger) *SimpleDispatcher {
	if logger == nil {
		logger = logging.Default()
	}
	return &SimpleDispatcher{logger: logger}
}

func (d *SimpleDispatcher) ContactHotline(ctx context.Context, region string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	route := escalation.ResolveRoute(region)
	d.record(Contact{Kind: "hotline", Region: route.Region})
	d.logger.Warn("crisis hotline contacted",
		"region", route.Region,
		"numbers", route.HotlineNumbers)
	return true, nil
}

func (d *SimpleDispatcher) ContactEmergencyServices(ctx context.Context, region string, loc *escalation.Location) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	route := escalation.ResolveRoute(region)
	d.record(Contact{Kind: "emergency_services", Region: route.Region})
	if loc != nil {
		d.logger.Warn("emergency services contacted with location",
			"region", route.Region,
			"numbers", route.EmergencyNumbers,
			"latitude", loc.Latitude,
			"longitude", loc.Longitude)
	} else {
		d.logger.Warn("emergency services contacted without location",
			"region", route.Region,
			"numbers", route.EmergencyNumbers)
	}
	return true, nil
}

func (d *SimpleDispatcher) NotifyResponder(ctx context.Context, responderID, sessionID string, tier escalation.Tier) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.record(Contact{Kind: "responder", ResponderID: responderID, SessionID: sessionID, Tier: tier})
	d.logger.Info("responder notified",
		"responder_id", responderID,
		"session_id", sessionID,
		"tier", tier.String())
	return nil
}

// Contacts returns a copy of the recorded contact trail.
func (d *SimpleDispatcher) Contacts() []Contact {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Contact, len(d.contacts))
	copy(out, d.contacts)
	return out
}

func (d *SimpleDispatcher) record(c Contact) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.contacts = append(d.contacts, c)
}
