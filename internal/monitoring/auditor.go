// Package monitoring observes escalation outcomes: it appends the immutable
// audit trail, keeps rolling SLA metrics, and raises or clears system alerts.
package monitoring

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Damatnic/ASTRAL-CORE-V2-sub004/internal/clock"
	"github.com/Damatnic/ASTRAL-CORE-V2-sub004/internal/escalation"
	"github.com/Damatnic/ASTRAL-CORE-V2-sub004/internal/observability/metrics"
	"github.com/Damatnic/ASTRAL-CORE-V2-sub004/pkg/logging"
)

var monitoringTracer = otel.Tracer("crisis-engine/monitoring")

// Outcome classifies a completed escalation for the audit trail.
type Outcome string

const (
	OutcomeSuccess        Outcome = "SUCCESS"
	OutcomePartialSuccess Outcome = "PARTIAL_SUCCESS"
	OutcomeFailure        Outcome = "FAILURE"
)

// AuditEntry mirrors an escalation record plus its outcome classification.
// Entries are append-only and never edited.
type AuditEntry struct {
	ID           string            `json:"id"`
	EscalationID string            `json:"escalation_id"`
	SessionID    string            `json:"session_id"`
	Tier         int               `json:"tier"`
	Trigger      string            `json:"trigger"`
	Outcome      Outcome           `json:"outcome"`
	ErrorText    string            `json:"error_text,omitempty"`
	ResponseTime time.Duration     `json:"response_time"`
	SLATarget    time.Duration     `json:"sla_target"`
	TargetMet    bool              `json:"target_met"`
	Region       string            `json:"region"`
	Record       escalation.Record `json:"record"`
	RecordedAt   time.Time         `json:"recorded_at"`
}

// AuditSink durably appends audit entries.
type AuditSink interface {
	Append(ctx context.Context, entry AuditEntry) error
}

// maxRetainedEntries bounds the in-memory window used for reports; the sink
// holds the full trail.
const maxRetainedEntries = 10000

type tierStats struct {
	count         int
	met           int
	totalResponse time.Duration
}

// Auditor implements the escalation engine's Recorder. It never returns
// errors to its caller; its own pipeline failures surface as ERROR alerts.
type Auditor struct {
	logger  *logging.Logger
	clock   clock.Clock
	sink    AuditSink
	metrics *metrics.EngineMetrics
	alerts  *alertBook

	mu       sync.Mutex
	entries  []AuditEntry
	perTier  map[int]*tierStats
	outcomes map[Outcome]int

	hotlineAttempts   int
	hotlineContacted  int
	emsAttempts       int
	emsContacted      int
	responderAssigned int
	total             int

	geographic map[string]int
	hourly     [24]int
}

// AuditorOption configures the auditor.
type AuditorOption func(*Auditor)

// WithClock substitutes the time source, used by tests.
func WithClock(c clock.Clock) AuditorOption {
	return func(a *Auditor) { a.clock = c }
}

// WithMetrics attaches Prometheus instrumentation.
func WithMetrics(m *metrics.EngineMetrics) AuditorOption {
	return func(a *Auditor) { a.metrics = m }
}

// NewAuditor wires a monitoring auditor. sink may be nil for in-memory-only
// operation.
func NewAuditor(logger *logging.Logger, sink AuditSink, opts ...AuditorOption) *Auditor {
	if logger == nil {
		logger = logging.Default()
	}
	a := &Auditor{
		logger:     logger,
		clock:      clock.New(),
		sink:       sink,
		perTier:    make(map[int]*tierStats),
		outcomes:   make(map[Outcome]int),
		geographic: make(map[string]int),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.alerts = newAlertBook(a.clock)
	return a
}

var _ escalation.Recorder = (*Auditor)(nil)

// RecordEscalation classifies a completed escalation, appends the audit
// entry, updates rolling metrics, and runs threshold checks.
func (a *Auditor) RecordEscalation(ctx context.Context, rec *escalation.Record) {
	ctx, span := monitoringTracer.Start(ctx, "monitoring.record_escalation")
	defer span.End()

	outcome, errText := classify(rec)
	entry := AuditEntry{
		ID:           uuid.NewString(),
		EscalationID: rec.ID,
		SessionID:    rec.SessionID,
		Tier:         int(rec.Tier),
		Trigger:      string(rec.Trigger),
		Outcome:      outcome,
		ErrorText:    errText,
		ResponseTime: rec.ResponseTime,
		SLATarget:    rec.SLATarget,
		TargetMet:    rec.TargetMet,
		Region:       rec.Routing.Region,
		Record:       *rec,
		RecordedAt:   a.clock.Now(),
	}

	span.SetAttributes(
		attribute.Int("escalation.tier", entry.Tier),
		attribute.String("escalation.outcome", string(outcome)),
	)
	a.logger.Info("escalation audited",
		"escalation_id", rec.ID,
		"session_id", rec.SessionID,
		"tier", entry.Tier,
		"outcome", string(outcome),
		"response_ms", rec.ResponseTime.Milliseconds(),
		"target_met", rec.TargetMet)

	if a.sink != nil {
		if err := a.sink.Append(ctx, entry); err != nil {
			a.logger.Error("audit append failed",
				"escalation_id", rec.ID,
				"error", err)
			a.alerts.raise("audit_sink", AlertError, SeverityCritical,
				fmt.Sprintf("audit trail append failed: %v", err))
		} else {
			a.alerts.clear("audit_sink")
		}
	}

	a.fold(entry)
	a.checkThresholds(entry)
	a.metrics.ObserveEscalation(entry.Tier, string(outcome), rec.ResponseTime.Seconds(), rec.TargetMet)
	a.publishAlertGauges()
}

// classify applies the outcome rules: a missed SLA is always FAILURE; a met
// SLA with a missing tier-mandated contact is PARTIAL_SUCCESS.
func classify(rec *escalation.Record) (Outcome, string) {
	if !rec.TargetMet {
		return OutcomeFailure, fmt.Sprintf("response time %s exceeded %s target", rec.ResponseTime, rec.SLATarget)
	}
	switch {
	case rec.Tier == escalation.TierEmergency && !rec.EmergencyServicesContacted:
		return OutcomePartialSuccess, "emergency services not contacted"
	case rec.Tier >= escalation.TierCritical && !rec.HotlineContacted:
		return OutcomePartialSuccess, "crisis hotline not contacted"
	case !rec.ResponderAssigned:
		return OutcomePartialSuccess, "no responder assigned"
	}
	return OutcomeSuccess, ""
}

func (a *Auditor) fold(entry AuditEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.entries = append(a.entries, entry)
	if len(a.entries) > maxRetainedEntries {
		a.entries = a.entries[len(a.entries)-maxRetainedEntries:]
	}

	stats, ok := a.perTier[entry.Tier]
	if !ok {
		stats = &tierStats{}
		a.perTier[entry.Tier] = stats
	}
	stats.count++
	stats.totalResponse += entry.ResponseTime
	if entry.TargetMet {
		stats.met++
	}

	a.outcomes[entry.Outcome]++
	a.total++

	rec := entry.Record
	if entry.Tier >= int(escalation.TierCritical) {
		a.hotlineAttempts++
		if rec.HotlineContacted {
			a.hotlineContacted++
		}
	}
	if entry.Tier == int(escalation.TierEmergency) {
		a.emsAttempts++
		if rec.EmergencyServicesContacted {
			a.emsContacted++
		}
	}
	if rec.ResponderAssigned {
		a.responderAssigned++
	}

	a.geographic[entry.Region]++
	a.hourly[entry.RecordedAt.Hour()]++
}

func (a *Auditor) checkThresholds(entry AuditEntry) {
	slaKey := fmt.Sprintf("sla_breach_tier_%d", entry.Tier)
	if !entry.TargetMet {
		severity := SeverityHigh
		if entry.Tier >= int(escalation.TierCritical) {
			severity = SeverityCritical
		}
		a.alerts.raise(slaKey, AlertPerformance, severity,
			fmt.Sprintf("tier %d escalation took %s against a %s target", entry.Tier, entry.ResponseTime, entry.SLATarget))
	} else {
		a.alerts.clear(slaKey)
	}

	if entry.Outcome == OutcomeFailure {
		a.alerts.raise("escalation_failure", AlertError, SeverityHigh,
			fmt.Sprintf("escalation %s failed: %s", entry.EscalationID, entry.ErrorText))
	} else {
		a.alerts.clear("escalation_failure")
	}

	// Contact availability is checked independently of the SLA.
	rec := entry.Record
	if entry.Tier >= int(escalation.TierCritical) && !rec.HotlineContacted {
		a.alerts.raise("hotline_unreachable", AlertAvailability, SeverityCritical,
			"crisis hotline contact failed on a critical-tier escalation")
	} else if entry.Tier >= int(escalation.TierCritical) {
		a.alerts.clear("hotline_unreachable")
	}
	if entry.Tier == int(escalation.TierEmergency) && !rec.EmergencyServicesContacted {
		a.alerts.raise("emergency_services_unreachable", AlertAvailability, SeverityCritical,
			"emergency services contact failed on a tier 5 escalation")
	} else if entry.Tier == int(escalation.TierEmergency) {
		a.alerts.clear("emergency_services_unreachable")
	}
}

func (a *Auditor) publishAlertGauges() {
	if a.metrics == nil {
		return
	}
	counts := a.alerts.countBySeverity()
	for _, sev := range []AlertSeverity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical} {
		a.metrics.SetActiveAlerts(sev.String(), counts[sev])
	}
}

// RaiseAlert lets other subsystems report conditions through the same
// dedup/resolve machinery.
func (a *Auditor) RaiseAlert(key string, category AlertCategory, severity AlertSeverity, message string) *SystemAlert {
	alert := a.alerts.raise(key, category, severity, message)
	a.publishAlertGauges()
	return alert
}

// ResolveAlert is the operator action closing an alert by id.
func (a *Auditor) ResolveAlert(id string) bool {
	ok := a.alerts.resolve(id)
	a.publishAlertGauges()
	return ok
}

// ActiveAlerts returns the unresolved alerts.
func (a *Auditor) ActiveAlerts() []SystemAlert {
	return a.alerts.snapshot()
}
