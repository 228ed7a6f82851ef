package monitoring

import (
	"fmt"
	"time"
)

// Health is the coarse system health label.
type Health string

const (
	HealthCritical  Health = "CRITICAL"
	HealthWarning   Health = "WARNING"
	HealthGood      Health = "GOOD"
	HealthExcellent Health = "EXCELLENT"
)

// TierMetrics aggregates completed escalations for one tier.
type TierMetrics struct {
	Count         int           `json:"count"`
	AvgResponse   time.Duration `json:"avg_response"`
	TargetMetRate float64       `json:"target_met_rate"`
}

// Metrics is the rolling aggregate view over a report window.
type Metrics struct {
	TotalEscalations        int                 `json:"total_escalations"`
	SuccessRate             float64             `json:"success_rate"`
	Outcomes                map[Outcome]int     `json:"outcomes"`
	PerTier                 map[int]TierMetrics `json:"per_tier"`
	HotlineContactRate      float64             `json:"hotline_contact_rate"`
	EmergencyContactRate    float64             `json:"emergency_contact_rate"`
	ResponderAssignmentRate float64             `json:"responder_assignment_rate"`
	Geographic              map[string]int      `json:"geographic"`
	Hourly                  [24]int             `json:"hourly"`
}

// Report is the operator-facing monitoring summary.
type Report struct {
	Window          time.Duration `json:"window"`
	GeneratedAt     time.Time     `json:"generated_at"`
	Metrics         Metrics       `json:"metrics"`
	ActiveAlerts    []SystemAlert `json:"active_alerts"`
	Recommendations []string      `json:"recommendations"`
	Health          Health        `json:"health"`
}

// GetReport aggregates audit entries recorded within the window. A zero
// window covers everything retained in memory.
func (a *Auditor) GetReport(window time.Duration) Report {
	now := a.clock.Now()

	a.mu.Lock()
	var selected []AuditEntry
	for i := range a.entries {
		if window <= 0 || now.Sub(a.entries[i].RecordedAt) <= window {
			selected = append(selected, a.entries[i])
		}
	}
	a.mu.Unlock()

	m := aggregate(selected)
	alerts := a.alerts.snapshot()

	return Report{
		Window:          window,
		GeneratedAt:     now,
		Metrics:         m,
		ActiveAlerts:    alerts,
		Recommendations: recommend(m, alerts),
		Health:          healthLabel(m, alerts),
	}
}

func aggregate(entries []AuditEntry) Metrics {
	m := Metrics{
		Outcomes:   make(map[Outcome]int),
		PerTier:    make(map[int]TierMetrics),
		Geographic: make(map[string]int),
	}

	perTier := make(map[int]*tierStats)
	var hotlineAttempts, hotlineContacted int
	var emsAttempts, emsContacted int
	var responderAssigned int

	for _, entry := range entries {
		m.TotalEscalations++
		m.Outcomes[entry.Outcome]++
		m.Geographic[entry.Region]++
		m.Hourly[entry.RecordedAt.Hour()]++

		stats, ok := perTier[entry.Tier]
		if !ok {
			stats = &tierStats{}
			perTier[entry.Tier] = stats
		}
		stats.count++
		stats.totalResponse += entry.ResponseTime
		if entry.TargetMet {
			stats.met++
		}

		rec := entry.Record
		if entry.Tier >= 4 {
			hotlineAttempts++
			if rec.HotlineContacted {
				hotlineContacted++
			}
		}
		if entry.Tier == 5 {
			emsAttempts++
			if rec.EmergencyServicesContacted {
				emsContacted++
			}
		}
		if rec.ResponderAssigned {
			responderAssigned++
		}
	}

	for tier, stats := range perTier {
		tm := TierMetrics{Count: stats.count}
		if stats.count > 0 {
			tm.AvgResponse = stats.totalResponse / time.Duration(stats.count)
			tm.TargetMetRate = float64(stats.met) / float64(stats.count)
		}
		m.PerTier[tier] = tm
	}
	if m.TotalEscalations > 0 {
		m.SuccessRate = float64(m.Outcomes[OutcomeSuccess]) / float64(m.TotalEscalations)
		m.ResponderAssignmentRate = float64(responderAssigned) / float64(m.TotalEscalations)
	} else {
		m.SuccessRate = 1
		m.ResponderAssignmentRate = 1
	}
	m.HotlineContactRate = ratio(hotlineContacted, hotlineAttempts)
	m.EmergencyContactRate = ratio(emsContacted, emsAttempts)
	return m
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 1
	}
	return float64(n) / float64(d)
}

func recommend(m Metrics, alerts []SystemAlert) []string {
	var out []string
	if m.SuccessRate < 0.90 {
		out = append(out, fmt.Sprintf("escalation success rate is %.0f%%; review recent FAILURE entries for systemic causes", m.SuccessRate*100))
	}
	if m.HotlineContactRate < 0.95 {
		out = append(out, "hotline contact rate is degraded; verify hotline gateway connectivity")
	}
	if m.EmergencyContactRate < 1 {
		out = append(out, "emergency services contact failed on at least one tier 5 escalation; review immediately")
	}
	if m.ResponderAssignmentRate < 0.90 {
		out = append(out, "responder assignment rate is low; check directory coverage for active regions")
	}
	for _, tier := range []int{5, 4} {
		if tm, ok := m.PerTier[tier]; ok && tm.TargetMetRate < 0.95 {
			out = append(out, fmt.Sprintf("tier %d response target met only %.0f%% of the time; consider adding responders", tier, tm.TargetMetRate*100))
		}
	}
	for _, alert := range alerts {
		if alert.Severity == SeverityCritical {
			out = append(out, fmt.Sprintf("resolve critical alert %q", alert.MetricKey))
		}
	}
	return out
}

func healthLabel(m Metrics, alerts []SystemAlert) Health {
	highCount := 0
	for _, alert := range alerts {
		switch alert.Severity {
		case SeverityCritical:
			return HealthCritical
		case SeverityHigh:
			highCount++
		}
	}
	switch {
	case m.SuccessRate < 0.90 || highCount > 3:
		return HealthWarning
	case m.SuccessRate < 0.95 || highCount > 1:
		return HealthGood
	default:
		return HealthExcellent
	}
}
