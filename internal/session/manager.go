package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Damatnic/ASTRAL-CORE-V2-sub004/internal/clock"
	"github.com/Damatnic/ASTRAL-CORE-V2-sub004/internal/escalation"
	"github.com/Damatnic/ASTRAL-CORE-V2-sub004/internal/events"
	"github.com/Damatnic/ASTRAL-CORE-V2-sub004/internal/observability/metrics"
	"github.com/Damatnic/ASTRAL-CORE-V2-sub004/internal/risk"
	"github.com/Damatnic/ASTRAL-CORE-V2-sub004/pkg/logging"
)

var sessionTracer = otel.Tracer("crisis-engine/session")

var (
	// ErrSessionNotFound means the session id is unknown or the session has
	// already ended.
	ErrSessionNotFound = errors.New("session: session not found")

	// ErrCapacityExceeded means the concurrent-session ceiling was reached.
	ErrCapacityExceeded = errors.New("session: capacity exceeded")

	// ErrUnauthorized means the sender is not a participant of the session.
	ErrUnauthorized = errors.New("session: sender is not a participant")

	// ErrForbidden means the caller lacks the capability for the operation.
	ErrForbidden = errors.New("session: caller lacks required capability")
)

// Escalator is the slice of the escalation engine the manager drives.
type Escalator interface {
	Escalate(ctx context.Context, req escalation.Request) (*escalation.Record, error)
	Resolve(ctx context.Context, sessionID, resolvedBy, notes string) (*escalation.Record, error)
	Active(sessionID string) (*escalation.Record, bool)
}

// SnapshotStore persists best-effort session snapshots. In-memory state stays
// authoritative; the store exists for compliance and recovery.
type SnapshotStore interface {
	SaveSession(ctx context.Context, snap Snapshot) error
}

// Publisher emits session lifecycle events to the message transport.
type Publisher interface {
	Publish(ctx context.Context, ev events.Event) error
}

// Settings bounds the manager's resource usage and retention behavior.
type Settings struct {
	MaxConcurrentSessions   int
	MaxSessionDuration      time.Duration
	SessionIdleTimeout      time.Duration
	EndedSessionGrace       time.Duration
	CleanupInterval         time.Duration
	AutoEscalationThreshold int
	EncryptionRequired      bool

	// DefaultRegion is stamped on sessions created without one so routing
	// does not depend on every client sending a region.
	DefaultRegion string
}

// DefaultSettings mirrors the documented configuration defaults.
func DefaultSettings() Settings {
	return Settings{
		MaxConcurrentSessions:   1000,
		MaxSessionDuration:      4 * time.Hour,
		SessionIdleTimeout:      time.Hour,
		EndedSessionGrace:       5 * time.Minute,
		CleanupInterval:         5 * time.Minute,
		AutoEscalationThreshold: 3,
		EncryptionRequired:      true,
	}
}

// Manager owns the session table. It is the only mutator of CrisisSession
// state.
type Manager struct {
	logger    *logging.Logger
	clock     clock.Clock
	scorer    *risk.Scorer
	escalator Escalator
	publisher Publisher
	snapshots SnapshotStore
	metrics   *metrics.EngineMetrics
	settings  Settings
	newID     func() string

	mu       sync.Mutex
	sessions map[string]*CrisisSession
}

// ManagerOption configures the manager.
type ManagerOption func(*Manager)

// WithClock substitutes the time source, used by tests.
func WithClock(c clock.Clock) ManagerOption {
	return func(m *Manager) { m.clock = c }
}

// WithIDGenerator substitutes session ID generation, used by tests.
func WithIDGenerator(fn func() string) ManagerOption {
	return func(m *Manager) { m.newID = fn }
}

// WithSnapshotStore attaches a best-effort persistence store.
func WithSnapshotStore(store SnapshotStore) ManagerOption {
	return func(m *Manager) { m.snapshots = store }
}

// WithMetrics attaches Prometheus instrumentation.
func WithMetrics(em *metrics.EngineMetrics) ManagerOption {
	return func(m *Manager) { m.metrics = em }
}

// NewManager wires a session manager. publisher may be nil.
func NewManager(
	logger *logging.Logger,
	scorer *risk.Scorer,
	escalator Escalator,
	publisher Publisher,
	settings Settings,
	opts ...ManagerOption,
) *Manager {
	if logger == nil {
		logger = logging.Default()
	}
	if settings.MaxConcurrentSessions <= 0 {
		settings.MaxConcurrentSessions = DefaultSettings().MaxConcurrentSessions
	}
	if settings.AutoEscalationThreshold <= 0 {
		settings.AutoEscalationThreshold = DefaultSettings().AutoEscalationThreshold
	}
	m := &Manager{
		logger:    logger,
		clock:     clock.New(),
		scorer:    scorer,
		escalator: escalator,
		publisher: publisher,
		settings:  settings,
		newID:     uuid.NewString,
		sessions:  make(map[string]*CrisisSession),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateOptions describes the first contact that opens a session.
type CreateOptions struct {
	SeekerID          string
	Anonymous         bool
	Region            string
	Language          string
	Location          *escalation.Location
	ReferralSource    string
	ClientFingerprint string
}

// CreateSession opens a session seeded with the seeker participant. It fails
// with ErrCapacityExceeded at the configured ceiling.
func (m *Manager) CreateSession(ctx context.Context, opts CreateOptions) (Snapshot, error) {
	ctx, span := sessionTracer.Start(ctx, "session.create")
	defer span.End()

	now := m.clock.Now()
	seekerID := opts.SeekerID
	if seekerID == "" {
		seekerID = "anon-" + m.newID()
		opts.Anonymous = true
	}
	if opts.Region == "" {
		opts.Region = m.settings.DefaultRegion
	}

	sess := &CrisisSession{
		ID:        m.newID(),
		Status:    StatusActive,
		Severity:  SeverityLow,
		Encrypted: m.settings.EncryptionRequired,
		Participants: []Participant{{
			ID:           seekerID,
			Role:         RoleSeeker,
			Anonymous:    opts.Anonymous,
			Capabilities: capabilitiesFor(RoleSeeker),
			JoinedAt:     now,
			LastActiveAt: now,
		}},
		Metadata: Metadata{
			Region:            opts.Region,
			Language:          opts.Language,
			ReferralSource:    opts.ReferralSource,
			ClientFingerprint: opts.ClientFingerprint,
		},
		Location:     opts.Location,
		CreatedAt:    now,
		LastActivity: now,
		progression:  risk.NewProgression(),
	}

	m.mu.Lock()
	if len(m.sessions) >= m.settings.MaxConcurrentSessions {
		m.mu.Unlock()
		return Snapshot{}, fmt.Errorf("session: create: %w", ErrCapacityExceeded)
	}
	m.sessions[sess.ID] = sess
	open := len(m.sessions)
	m.mu.Unlock()
	m.metrics.SetActiveSessions(open)

	span.SetAttributes(attribute.String("session.id", sess.ID))
	m.logger.Info("session created",
		"session_id", sess.ID,
		"anonymous", opts.Anonymous,
		"encrypted", sess.Encrypted,
		"region", opts.Region)

	m.publish(ctx, events.Event{
		EventID:    m.newID(),
		Type:       events.TypeSessionCreated,
		SessionID:  sess.ID,
		OccurredAt: now,
		Payload: events.SessionCreatedV1{
			SessionID: sess.ID,
			SeekerID:  seekerID,
			Encrypted: sess.Encrypted,
			CreatedAt: now,
		},
	})

	sess.mu.Lock()
	snap := sess.snapshotLocked()
	sess.mu.Unlock()
	m.saveSnapshot(ctx, snap)
	return snap, nil
}

// Ack is the result of processing one message.
type Ack struct {
	SessionID    string           `json:"session_id"`
	MessageCount int              `json:"message_count"`
	Assessment   *risk.Assessment `json:"assessment"`
	Escalated    bool             `json:"escalated"`
	EscalationID string           `json:"escalation_id,omitempty"`
	HelpOnTheWay bool             `json:"help_on_the_way"`
}

// ProcessMessage scores one message and escalates when the assessment
// demands it. The help-requested signal in the ack is what the crisis-facing
// surface shows; dependency failures inside the protocol never surface here.
func (m *Manager) ProcessMessage(ctx context.Context, sessionID, senderID, text string) (Ack, error) {
	ctx, span := sessionTracer.Start(ctx, "session.process_message",
		trace.WithAttributes(attribute.String("session.id", sessionID)))
	defer span.End()

	sess, err := m.lookup(sessionID)
	if err != nil {
		return Ack{}, err
	}

	now := m.clock.Now()

	sess.mu.Lock()
	if sess.Status == StatusEnded {
		sess.mu.Unlock()
		return Ack{}, fmt.Errorf("session: message to ended session %s: %w", sessionID, ErrSessionNotFound)
	}
	sender := sess.participant(senderID)
	if sender == nil {
		sess.mu.Unlock()
		return Ack{}, fmt.Errorf("session: sender %s in session %s: %w", senderID, sessionID, ErrUnauthorized)
	}
	sender.LastActiveAt = now
	sess.LastActivity = now
	sess.MessageCount++
	count := sess.MessageCount

	assessment := m.scorer.Score(ctx, text, &risk.Context{Progression: sess.progression})

	if sev := severityFor(assessment.Level); sev > sess.Severity {
		sess.Severity = sev
	}
	if assessment.Level >= risk.LevelHigh {
		sess.RiskFlags = append(sess.RiskFlags, flagForLevel(assessment.Level))
	}
	flagCount := sess.highRiskFlagCountLocked()
	sess.mu.Unlock()

	m.metrics.ObserveMessage(assessment.Level.String(), assessment.Score)

	m.publish(ctx, events.Event{
		EventID:    m.newID(),
		Type:       events.TypeMessageProcessed,
		SessionID:  sessionID,
		OccurredAt: now,
		Payload: events.MessageProcessedV1{
			SessionID:    sessionID,
			SenderID:     senderID,
			MessageCount: count,
			RiskScore:    assessment.Score,
			RiskLevel:    assessment.Level.String(),
			ProcessedAt:  now,
		},
	})

	ack := Ack{
		SessionID:    sessionID,
		MessageCount: count,
		Assessment:   assessment,
	}

	switch {
	case assessment.Level >= risk.LevelCritical:
		m.escalate(ctx, sess, escalation.Request{
			SessionID: sessionID,
			Trigger:   escalation.TriggerRiskAssessment,
			Score:     assessment.Score,
			Emergency: assessment.EmergencyTerms > 0,
			Reason:    assessment.Level.String() + " assessment",
		}, &ack)
	case flagCount >= m.settings.AutoEscalationThreshold:
		if _, active := m.escalator.Active(sessionID); !active {
			m.escalate(ctx, sess, escalation.Request{
				SessionID: sessionID,
				Trigger:   escalation.TriggerAutoFlags,
				Reason:    fmt.Sprintf("%d accumulated risk flags", flagCount),
			}, &ack)
		}
	}

	sess.mu.Lock()
	snap := sess.snapshotLocked()
	sess.mu.Unlock()
	m.saveSnapshot(ctx, snap)
	return ack, nil
}

func flagForLevel(level risk.Level) string {
	switch level {
	case risk.LevelHigh:
		return "high_risk_detected"
	case risk.LevelCritical:
		return "critical_risk_detected"
	default:
		return "emergency_risk_detected"
	}
}

// highRiskFlagCountLocked counts accumulated HIGH and above flags. Caller
// holds mu.
func (s *CrisisSession) highRiskFlagCountLocked() int {
	n := 0
	for _, f := range s.RiskFlags {
		switch f {
		case "high_risk_detected", "critical_risk_detected", "emergency_risk_detected":
			n++
		}
	}
	return n
}

// escalate runs the engine and folds the outcome into session state. A
// rejected duplicate still reports the existing escalation in the ack.
func (m *Manager) escalate(ctx context.Context, sess *CrisisSession, req escalation.Request, ack *Ack) {
	rec, err := m.escalator.Escalate(ctx, req)
	if err != nil && !errors.Is(err, escalation.ErrAlreadyActive) {
		m.logger.Error("escalation failed",
			"session_id", req.SessionID,
			"trigger", string(req.Trigger),
			"error", err)
		return
	}
	if rec == nil {
		return
	}

	ack.Escalated = true
	ack.EscalationID = rec.ID
	ack.HelpOnTheWay = rec.ResponderAssigned || rec.HotlineContacted || rec.EmergencyServicesContacted

	if err == nil {
		sess.mu.Lock()
		sess.Escalations++
		if sess.Status == StatusActive {
			sess.Status = StatusEscalated
		}
		sess.mu.Unlock()
	}
}

// AddResponder joins a responder-side participant. Adding the same id twice
// is a no-op.
func (m *Manager) AddResponder(ctx context.Context, sessionID, responderID string, role Role) (Snapshot, error) {
	if role == "" || role == RoleSeeker {
		role = RoleResponder
	}
	sess, err := m.lookup(sessionID)
	if err != nil {
		return Snapshot{}, err
	}

	now := m.clock.Now()
	sess.mu.Lock()
	if existing := sess.participant(responderID); existing != nil {
		existing.Inactive = false
		existing.LastActiveAt = now
		snap := sess.snapshotLocked()
		sess.mu.Unlock()
		return snap, nil
	}
	sess.Participants = append(sess.Participants, Participant{
		ID:           responderID,
		Role:         role,
		Capabilities: capabilitiesFor(role),
		JoinedAt:     now,
		LastActiveAt: now,
	})
	sess.LastActivity = now
	snap := sess.snapshotLocked()
	sess.mu.Unlock()

	m.logger.Info("participant joined",
		"session_id", sessionID,
		"participant_id", responderID,
		"role", string(role))
	m.saveSnapshot(ctx, snap)
	return snap, nil
}

// EndSession closes a session. The caller must hold end_session. Any
// escalation still tracked for the session is resolved so the slot does not
// outlive the session itself.
func (m *Manager) EndSession(ctx context.Context, sessionID, callerID string) (Snapshot, error) {
	sess, err := m.lookup(sessionID)
	if err != nil {
		return Snapshot{}, err
	}

	now := m.clock.Now()
	sess.mu.Lock()
	caller := sess.participant(callerID)
	if caller == nil || !caller.HasCapability(CapEndSession) {
		sess.mu.Unlock()
		return Snapshot{}, fmt.Errorf("session: end session %s by %s: %w", sessionID, callerID, ErrForbidden)
	}
	sess.Status = StatusEnded
	sess.EndedAt = now
	sess.LastActivity = now
	snap := sess.snapshotLocked()
	sess.mu.Unlock()

	// Ending releases the session's escalation slot; the completed record
	// already reached the audit trail when the protocol finished.
	if _, active := m.escalator.Active(sessionID); active {
		if _, err := m.escalator.Resolve(ctx, sessionID, callerID, "session ended"); err != nil {
			m.logger.Error("release escalation on end failed",
				"session_id", sessionID,
				"error", err)
		}
	}

	m.logger.Info("session ended",
		"session_id", sessionID,
		"ended_by", callerID)
	m.publish(ctx, events.Event{
		EventID:    m.newID(),
		Type:       events.TypeSessionEnded,
		SessionID:  sessionID,
		OccurredAt: now,
		Payload: events.SessionEndedV1{
			SessionID: sessionID,
			EndedBy:   callerID,
			Status:    string(StatusEnded),
			EndedAt:   now,
		},
	})
	m.saveSnapshot(ctx, snap)
	return snap, nil
}

// ResolveSession is the supervisor action that closes out an escalated
// session. It is the only path that lowers severity.
func (m *Manager) ResolveSession(ctx context.Context, sessionID, supervisorID, notes string) (Snapshot, error) {
	sess, err := m.lookup(sessionID)
	if err != nil {
		return Snapshot{}, err
	}

	sess.mu.Lock()
	caller := sess.participant(supervisorID)
	if caller == nil || caller.Role != RoleSupervisor {
		sess.mu.Unlock()
		return Snapshot{}, fmt.Errorf("session: resolve session %s by %s: %w", sessionID, supervisorID, ErrForbidden)
	}
	sess.Status = StatusResolved
	sess.Severity = SeverityLow
	sess.LastActivity = m.clock.Now()
	snap := sess.snapshotLocked()
	sess.mu.Unlock()

	if _, active := m.escalator.Active(sessionID); active {
		if _, err := m.escalator.Resolve(ctx, sessionID, supervisorID, notes); err != nil {
			m.logger.Error("resolve escalation failed",
				"session_id", sessionID,
				"error", err)
		}
	}
	m.logger.Info("session resolved",
		"session_id", sessionID,
		"supervisor_id", supervisorID)
	m.saveSnapshot(ctx, snap)
	return snap, nil
}

// TransferSession hands a session to another responder. The caller must hold
// transfer_session.
func (m *Manager) TransferSession(ctx context.Context, sessionID, callerID, toResponderID string) (Snapshot, error) {
	sess, err := m.lookup(sessionID)
	if err != nil {
		return Snapshot{}, err
	}

	sess.mu.Lock()
	caller := sess.participant(callerID)
	if caller == nil || !caller.HasCapability(CapTransferSession) {
		sess.mu.Unlock()
		return Snapshot{}, fmt.Errorf("session: transfer session %s by %s: %w", sessionID, callerID, ErrForbidden)
	}
	for i := range sess.Participants {
		if sess.Participants[i].Role == RoleResponder {
			sess.Participants[i].Inactive = true
		}
	}
	sess.Status = StatusTransferred
	sess.mu.Unlock()

	if _, err := m.AddResponder(ctx, sessionID, toResponderID, RoleResponder); err != nil {
		return Snapshot{}, err
	}

	sess.mu.Lock()
	snap := sess.snapshotLocked()
	sess.mu.Unlock()
	m.logger.Info("session transferred",
		"session_id", sessionID,
		"from", callerID,
		"to", toResponderID)
	return snap, nil
}

// PreserveEvidence flags a session as immune to time-based eviction.
func (m *Manager) PreserveEvidence(sessionID string) error {
	sess, err := m.lookup(sessionID)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	sess.PreserveEvidence = true
	sess.mu.Unlock()
	return nil
}

// Profile satisfies the escalation engine's session source.
func (m *Manager) Profile(_ context.Context, sessionID string) (escalation.Profile, error) {
	sess, err := m.lookup(sessionID)
	if err != nil {
		return escalation.Profile{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	anonymous := true
	for _, p := range sess.Participants {
		if p.Role == RoleSeeker {
			anonymous = p.Anonymous
			break
		}
	}
	return escalation.Profile{
		SessionID: sess.ID,
		Region:    sess.Metadata.Region,
		Language:  sess.Metadata.Language,
		Location:  sess.Location,
		Anonymous: anonymous,
	}, nil
}

// GetSession returns a point-in-time snapshot.
func (m *Manager) GetSession(sessionID string) (Snapshot, error) {
	sess, err := m.lookup(sessionID)
	if err != nil {
		return Snapshot{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.snapshotLocked(), nil
}

// Count returns the number of tracked sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) lookup(sessionID string) (*CrisisSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session: lookup %s: %w", sessionID, ErrSessionNotFound)
	}
	return sess, nil
}

func (m *Manager) publish(ctx context.Context, ev events.Event) {
	if m.publisher == nil {
		return
	}
	if err := m.publisher.Publish(ctx, ev); err != nil {
		m.logger.Error("publish event failed",
			"event_type", ev.Type,
			"session_id", ev.SessionID,
			"error", err)
	}
}

func (m *Manager) saveSnapshot(ctx context.Context, snap Snapshot) {
	if m.snapshots == nil {
		return
	}
	if err := m.snapshots.SaveSession(ctx, snap); err != nil {
		m.logger.Error("persist session snapshot failed",
			"session_id", snap.ID,
			"error", err)
	}
}
