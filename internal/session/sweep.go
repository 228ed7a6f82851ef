package session

import (
	"context"
)

// Run drives the periodic cleanup sweep until ctx is canceled.
func (m *Manager) Run(ctx context.Context) {
	interval := m.settings.CleanupInterval
	if interval <= 0 {
		interval = DefaultSettings().CleanupInterval
	}
	ticker := m.clock.NewTicker(interval)
	defer ticker.Stop()

	m.logger.Info("session cleanup sweep started", "interval", interval.String())
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("session cleanup sweep stopped")
			return
		case <-ticker.C():
			evicted := m.Sweep()
			if evicted > 0 {
				m.logger.Info("sessions evicted", "count", evicted)
			}
		}
	}
}

// Sweep evicts sessions that outlived their retention window and returns the
// eviction count. Escalated sessions and sessions flagged preserve_evidence
// are never evicted; their audit trail is the durable record either way.
func (m *Manager) Sweep() int {
	now := m.clock.Now()

	m.mu.Lock()

	var removed []string
	for id, sess := range m.sessions {
		sess.mu.Lock()
		status := sess.Status
		remove := false
		switch {
		case sess.PreserveEvidence || sess.Status == StatusEscalated:
		case sess.Status == StatusEnded:
			remove = now.Sub(sess.EndedAt) > m.settings.EndedSessionGrace
		case now.Sub(sess.CreatedAt) > m.settings.MaxSessionDuration:
			remove = true
		case now.Sub(sess.LastActivity) > m.settings.SessionIdleTimeout:
			remove = true
		}
		sess.mu.Unlock()

		if remove {
			delete(m.sessions, id)
			removed = append(removed, id)
			m.logger.Info("session evicted",
				"session_id", id,
				"status", string(status))
		}
	}
	m.metrics.SetActiveSessions(len(m.sessions))
	m.mu.Unlock()

	// Evicted sessions must not leave stale escalation slots behind. Only a
	// long-finished protocol can still be active here; ESCALATED sessions
	// themselves are never evicted.
	for _, id := range removed {
		if _, active := m.escalator.Active(id); !active {
			continue
		}
		if _, err := m.escalator.Resolve(context.Background(), id, "cleanup-sweep", "session evicted"); err != nil {
			m.logger.Error("release escalation on eviction failed",
				"session_id", id,
				"error", err)
		}
	}
	return len(removed)
}
