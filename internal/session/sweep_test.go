package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Damatnic/ASTRAL-CORE-V2-sub004/internal/clock"
	"github.com/Damatnic/ASTRAL-CORE-V2-sub004/internal/escalation"
)

func sweepSettings() Settings {
	s := DefaultSettings()
	s.MaxSessionDuration = 4 * time.Hour
	s.SessionIdleTimeout = time.Hour
	s.EndedSessionGrace = 5 * time.Minute
	return s
}

func TestSweepEvictsIdleSessions(t *testing.T) {
	fc := clock.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	m, _, _ := newTestManager(t, sweepSettings(), WithClock(fc))
	snap := createSession(t, m, "seeker-1", "US")

	fc.Advance(30 * time.Minute)
	require.Equal(t, 0, m.Sweep(), "active session within idle window stays")

	fc.Advance(45 * time.Minute)
	assert.Equal(t, 1, m.Sweep())
	_, err := m.GetSession(snap.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSweepEvictsEndedSessionsAfterGrace(t *testing.T) {
	fc := clock.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	m, _, _ := newTestManager(t, sweepSettings(), WithClock(fc))
	snap := createSession(t, m, "seeker-1", "US")

	_, err := m.EndSession(context.Background(), snap.ID, "seeker-1")
	require.NoError(t, err)

	fc.Advance(2 * time.Minute)
	assert.Equal(t, 0, m.Sweep(), "ended session inside grace window stays")

	fc.Advance(4 * time.Minute)
	assert.Equal(t, 1, m.Sweep())
}

func TestSweepEvictsExpiredSessions(t *testing.T) {
	fc := clock.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	m, _, _ := newTestManager(t, sweepSettings(), WithClock(fc))
	snap := createSession(t, m, "seeker-1", "US")

	// Keep the session busy so only the max-duration rule can fire.
	for i := 0; i < 5; i++ {
		fc.Advance(50 * time.Minute)
		_, err := m.ProcessMessage(context.Background(), snap.ID, "seeker-1", "still here")
		require.NoError(t, err)
		if fc.Since(snap.CreatedAt) <= sweepSettings().MaxSessionDuration {
			require.Equal(t, 0, m.Sweep())
		}
	}

	fc.Advance(50 * time.Minute)
	_, err := m.ProcessMessage(context.Background(), snap.ID, "seeker-1", "still here")
	require.NoError(t, err)
	assert.Equal(t, 1, m.Sweep())
}

func TestSweepNeverEvictsPreservedOrEscalated(t *testing.T) {
	fc := clock.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	m, _, _ := newTestManager(t, sweepSettings(), WithClock(fc))

	preserved := createSession(t, m, "seeker-1", "US")
	require.NoError(t, m.PreserveEvidence(preserved.ID))

	escalated := createSession(t, m, "seeker-2", "US")
	_, err := m.ProcessMessage(context.Background(), escalated.ID, "seeker-2", "I want to kill myself")
	require.NoError(t, err)
	got, err := m.GetSession(escalated.ID)
	require.NoError(t, err)
	require.Equal(t, StatusEscalated, got.Status)

	fc.Advance(48 * time.Hour)
	assert.Equal(t, 0, m.Sweep())
	assert.Equal(t, 2, m.Count())
}

func TestSweepReleasesEscalationOnEviction(t *testing.T) {
	fc := clock.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	m, escalator, _ := newTestManager(t, sweepSettings(), WithClock(fc))
	snap := createSession(t, m, "seeker-1", "US")

	// A manually requested escalation leaves the session ACTIVE, so the idle
	// rule can still evict it later.
	_, err := escalator.Escalate(context.Background(), escalation.Request{
		SessionID: snap.ID,
		Trigger:   escalation.TriggerManualRequest,
		Score:     5.0,
	})
	require.NoError(t, err)

	fc.Advance(90 * time.Minute)
	assert.Equal(t, 1, m.Sweep())
	_, active := escalator.Active(snap.ID)
	assert.False(t, active, "eviction releases the escalation slot")
}

func TestRunSweepsOnTicker(t *testing.T) {
	fc := clock.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	settings := sweepSettings()
	settings.CleanupInterval = 5 * time.Minute
	m, _, _ := newTestManager(t, settings, WithClock(fc))
	createSession(t, m, "seeker-1", "US")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		fc.Advance(30 * time.Minute)
		return m.Count() == 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweep goroutine did not stop")
	}
}
