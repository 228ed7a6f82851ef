// Package metrics exposes Prometheus instrumentation for the crisis engine.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics exposes counters/histograms for session and escalation flows.
type EngineMetrics struct {
	messagesTotal      *prometheus.CounterVec
	riskScore          prometheus.Histogram
	escalationsTotal   *prometheus.CounterVec
	escalationDuration *prometheus.HistogramVec
	slaMissTotal       *prometheus.CounterVec
	activeSessions     prometheus.Gauge
	alertsActive       *prometheus.GaugeVec
}

func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	m := &EngineMetrics{
		messagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crisis",
			Subsystem: "session",
			Name:      "messages_total",
			Help:      "Total processed crisis messages",
		}, []string{"risk_level"}),
		riskScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "crisis",
			Subsystem: "risk",
			Name:      "score",
			Help:      "Distribution of computed risk scores",
			Buckets:   prometheus.LinearBuckets(1, 1, 10),
		}),
		escalationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crisis",
			Subsystem: "escalation",
			Name:      "total",
			Help:      "Completed escalations by tier and outcome",
		}, []string{"tier", "outcome"}),
		escalationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "crisis",
			Subsystem: "escalation",
			Name:      "response_seconds",
			Help:      "Escalation response time from trigger to protocol completion",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 180, 300, 600},
		}, []string{"tier"}),
		slaMissTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crisis",
			Subsystem: "escalation",
			Name:      "sla_miss_total",
			Help:      "Escalations that exceeded their tier response target",
		}, []string{"tier"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "crisis",
			Subsystem: "session",
			Name:      "active",
			Help:      "Currently tracked crisis sessions",
		}),
		alertsActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "crisis",
			Subsystem: "monitoring",
			Name:      "alerts_active",
			Help:      "Unresolved system alerts by severity",
		}, []string{"severity"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.messagesTotal,
		m.riskScore,
		m.escalationsTotal,
		m.escalationDuration,
		m.slaMissTotal,
		m.activeSessions,
		m.alertsActive,
	)
	return m
}

func (m *EngineMetrics) ObserveMessage(riskLevel string, score float64) {
	if m == nil {
		return
	}
	m.messagesTotal.WithLabelValues(riskLevel).Inc()
	m.riskScore.Observe(score)
}

func (m *EngineMetrics) ObserveEscalation(tier int, outcome string, responseSeconds float64, targetMet bool) {
	if m == nil {
		return
	}
	label := strconv.Itoa(tier)
	m.escalationsTotal.WithLabelValues(label, outcome).Inc()
	m.escalationDuration.WithLabelValues(label).Observe(responseSeconds)
	if !targetMet {
		m.slaMissTotal.WithLabelValues(label).Inc()
	}
}

func (m *EngineMetrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}

func (m *EngineMetrics) SetActiveAlerts(severity string, n int) {
	if m == nil {
		return
	}
	m.alertsActive.WithLabelValues(severity).Set(float64(n))
}
