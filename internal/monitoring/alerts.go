package monitoring

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Damatnic/ASTRAL-CORE-V2-sub004/internal/clock"
)

// AlertCategory classifies what kind of condition raised an alert.
type AlertCategory string

const (
	AlertPerformance  AlertCategory = "performance"
	AlertAvailability AlertCategory = "availability"
	AlertError        AlertCategory = "error"
	AlertThreshold    AlertCategory = "threshold"
	AlertSecurity     AlertCategory = "security"
)

// AlertSeverity orders alerts for health rollups.
type AlertSeverity int

const (
	SeverityLow AlertSeverity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s AlertSeverity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// SystemAlert is one raised monitoring condition. Alerts are deduplicated by
// MetricKey: re-raising at a different severity replaces the alert, and a
// clean evaluation auto-resolves it.
type SystemAlert struct {
	ID         string        `json:"id"`
	MetricKey  string        `json:"metric_key"`
	Category   AlertCategory `json:"category"`
	Severity   AlertSeverity `json:"severity"`
	Message    string        `json:"message"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
	Resolved   bool          `json:"resolved"`
	ResolvedAt time.Time     `json:"resolved_at,omitempty"`
}

// alertBook owns the active-alert table. Callers hold no locks; the book
// locks internally.
type alertBook struct {
	clock clock.Clock

	mu      sync.Mutex
	active  map[string]*SystemAlert
	history []SystemAlert
}

func newAlertBook(c clock.Clock) *alertBook {
	return &alertBook{
		clock:  c,
		active: make(map[string]*SystemAlert),
	}
}

// raise creates or refreshes the alert for a metric key. A severity change
// replaces the alert under a new id.
func (b *alertBook) raise(key string, category AlertCategory, severity AlertSeverity, message string) *SystemAlert {
	now := b.clock.Now()

	b.mu.Lock()
	defer b.mu.Unlock()

	if existing, ok := b.active[key]; ok {
		if existing.Severity == severity {
			existing.Message = message
			existing.UpdatedAt = now
			return existing
		}
		existing.Resolved = true
		existing.ResolvedAt = now
		b.history = append(b.history, *existing)
	}

	alert := &SystemAlert{
		ID:        uuid.NewString(),
		MetricKey: key,
		Category:  category,
		Severity:  severity,
		Message:   message,
		CreatedAt: now,
		UpdatedAt: now,
	}
	b.active[key] = alert
	return alert
}

// clear auto-resolves the alert for a metric key if one is active.
func (b *alertBook) clear(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	alert, ok := b.active[key]
	if !ok {
		return false
	}
	alert.Resolved = true
	alert.ResolvedAt = b.clock.Now()
	b.history = append(b.history, *alert)
	delete(b.active, key)
	return true
}

// resolve is the operator action closing an alert by id.
func (b *alertBook) resolve(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for key, alert := range b.active {
		if alert.ID == id {
			alert.Resolved = true
			alert.ResolvedAt = b.clock.Now()
			b.history = append(b.history, *alert)
			delete(b.active, key)
			return true
		}
	}
	return false
}

// snapshot returns copies of the unresolved alerts.
func (b *alertBook) snapshot() []SystemAlert {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]SystemAlert, 0, len(b.active))
	for _, alert := range b.active {
		out = append(out, *alert)
	}
	return out
}

// countBySeverity tallies unresolved alerts.
func (b *alertBook) countBySeverity() map[AlertSeverity]int {
	b.mu.Lock()
	defer b.mu.Unlock()

	counts := make(map[AlertSeverity]int)
	for _, alert := range b.active {
		counts[alert.Severity]++
	}
	return counts
}
