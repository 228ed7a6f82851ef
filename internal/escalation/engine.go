// Package escalation runs the tiered response protocols that fire when a
// session's risk crosses an escalation threshold. Each tier has a fixed
// action sequence and a response-time target; action failures are recorded
// but never abort the run.
package escalation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Damatnic/ASTRAL-CORE-V2-sub004/internal/clock"
	"github.com/Damatnic/ASTRAL-CORE-V2-sub004/internal/events"
	"github.com/Damatnic/ASTRAL-CORE-V2-sub004/pkg/logging"
)

var escalationTracer = otel.Tracer("crisis-engine/escalation")

var (
	// ErrSessionNotFound means the session source has no record of the
	// session an escalation was requested for.
	ErrSessionNotFound = errors.New("escalation: session not found")

	// ErrAlreadyActive means an escalation at the same or a higher tier is
	// already running for the session. Only a strictly higher tier
	// supersedes a running escalation.
	ErrAlreadyActive = errors.New("escalation: escalation already active at equal or higher tier")

	// ErrNotEscalating means resolve was called for a session with no
	// active escalation.
	ErrNotEscalating = errors.New("escalation: no active escalation for session")

	// ErrNoResponder is returned by directory implementations when no
	// responder matching the tier is available.
	ErrNoResponder = errors.New("escalation: no responder available")
)

// Location is a consented coordinate pair attached to a session.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Profile is the slice of session state the engine needs for routing and
// responder assignment.
type Profile struct {
	SessionID string
	Region    string
	Language  string
	Location  *Location
	Anonymous bool
}

// Responder is a reachable crisis responder returned by the directory.
type Responder struct {
	ID   string
	Name string
	Role string
}

// SessionSource resolves session profiles. The session manager implements it.
type SessionSource interface {
	Profile(ctx context.Context, sessionID string) (Profile, error)
}

// SessionSourceFunc adapts a function to the SessionSource interface. It
// breaks the construction cycle between the engine and the session manager.
type SessionSourceFunc func(ctx context.Context, sessionID string) (Profile, error)

func (f SessionSourceFunc) Profile(ctx context.Context, sessionID string) (Profile, error) {
	return f(ctx, sessionID)
}

// NotificationDispatcher reaches external services on behalf of a session.
// The booleans report whether contact was actually established.
type NotificationDispatcher interface {
	ContactHotline(ctx context.Context, region string) (bool, error)
	ContactEmergencyServices(ctx context.Context, region string, loc *Location) (bool, error)
	NotifyResponder(ctx context.Context, responderID, sessionID string, tier Tier) error
}

// ResponderDirectory finds an available responder for a tier and region.
type ResponderDirectory interface {
	FindResponder(ctx context.Context, tier Tier, region string) (Responder, error)
}

// Recorder receives completed escalation records for auditing and metrics.
type Recorder interface {
	RecordEscalation(ctx context.Context, rec *Record)
}

// Publisher emits engine events to the message transport.
type Publisher interface {
	Publish(ctx context.Context, ev events.Event) error
}

// Request asks the engine to escalate a session.
type Request struct {
	SessionID string
	Trigger   Trigger
	Reason    string

	// Score and Emergency are consulted only for TriggerRiskAssessment.
	Score     float64
	Emergency bool

	// RequestedBy identifies the requester for manual escalations.
	RequestedBy string
}

// Engine owns the per-session escalation lifecycle: at most one escalation is
// active per session, and a strictly higher tier supersedes a running one.
type Engine struct {
	logger     *logging.Logger
	clock      clock.Clock
	sessions   SessionSource
	dispatcher NotificationDispatcher
	directory  ResponderDirectory
	recorder   Recorder
	publisher  Publisher

	slaOverrides map[int]time.Duration
	newID        func() string

	mu     sync.Mutex
	active map[string]*active
}

// Option configures the engine.
type Option func(*Engine)

// WithClock substitutes the time source, used by tests.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithSLAOverrides replaces response-time targets for the given tiers.
func WithSLAOverrides(overrides map[int]time.Duration) Option {
	return func(e *Engine) { e.slaOverrides = overrides }
}

// WithIDGenerator substitutes escalation ID generation, used by tests.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) { e.newID = fn }
}

// NewEngine wires an escalation engine. recorder and publisher may be nil.
func NewEngine(
	logger *logging.Logger,
	sessions SessionSource,
	dispatcher NotificationDispatcher,
	directory ResponderDirectory,
	recorder Recorder,
	publisher Publisher,
	opts ...Option,
) *Engine {
	if logger == nil {
		logger = logging.Default()
	}
	e := &Engine{
		logger:     logger,
		clock:      clock.New(),
		sessions:   sessions,
		dispatcher: dispatcher,
		directory:  directory,
		recorder:   recorder,
		publisher:  publisher,
		newID:      uuid.NewString,
		active:     make(map[string]*active),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SLAFor returns the effective response-time target for a tier, honoring
// configured overrides.
func (e *Engine) SLAFor(tier Tier) time.Duration {
	if sla, ok := e.slaOverrides[int(tier)]; ok {
		return sla
	}
	return DefaultSLA(tier)
}

// active is one in-flight escalation run. The record is shared with readers
// through snapshot() only; every write holds recMu because an abandoned
// (timed-out) action can still complete later in its own goroutine.
type active struct {
	engine  *Engine
	profile Profile
	route   Route
	tier    Tier
	cancel  context.CancelFunc

	recMu sync.Mutex
	rec   *Record

	superseded atomic.Bool
}

func (a *active) updateRecord(fn func(r *Record)) {
	a.recMu.Lock()
	defer a.recMu.Unlock()
	fn(a.rec)
}

// snapshot returns a detached copy of the record, safe to hand outside the
// engine while the run is still writing.
func (a *active) snapshot() *Record {
	a.recMu.Lock()
	defer a.recMu.Unlock()
	cp := *a.rec
	cp.Actions = append([]ActionResult(nil), a.rec.Actions...)
	return &cp
}

// Escalate runs the protocol for the tier implied by the request. It blocks
// until every action has completed or timed out, then hands the finished
// record to the recorder. The returned record's TargetMet reflects whether
// the full sequence finished inside the tier SLA.
func (e *Engine) Escalate(ctx context.Context, req Request) (*Record, error) {
	tier := tierForTrigger(req.Trigger)
	if req.Trigger == TriggerRiskAssessment {
		tier = TierForScore(req.Score, req.Emergency)
	}

	ctx, span := escalationTracer.Start(ctx, "escalation.escalate",
		trace.WithAttributes(
			attribute.String("session.id", req.SessionID),
			attribute.Int("escalation.tier", int(tier)),
			attribute.String("escalation.trigger", string(req.Trigger)),
		))
	defer span.End()

	profile, err := e.sessions.Profile(ctx, req.SessionID)
	if err != nil {
		return nil, fmt.Errorf("escalation: resolve session %s: %w", req.SessionID, err)
	}

	start := e.clock.Now()
	// The run must outlive the caller: a dropped client connection or a
	// draining worker never aborts an in-flight protocol. Only supersession
	// or completion cancels runCtx; per-action timeouts still apply.
	base := context.WithoutCancel(ctx)
	runCtx, cancel := context.WithCancel(base)
	a := &active{
		engine:  e,
		profile: profile,
		route:   ResolveRoute(profile.Region),
		tier:    tier,
		cancel:  cancel,
	}
	a.rec = &Record{
		ID:          e.newID(),
		SessionID:   req.SessionID,
		Tier:        tier,
		State:       StateEscalating,
		Trigger:     req.Trigger,
		Reason:      req.Reason,
		SLATarget:   e.SLAFor(tier),
		Routing:     a.route,
		TriggeredAt: start,
	}

	e.mu.Lock()
	if cur, ok := e.active[req.SessionID]; ok {
		if tier <= cur.tier {
			e.mu.Unlock()
			cancel()
			return cur.snapshot(), ErrAlreadyActive
		}
		cur.superseded.Store(true)
		cur.cancel()
		e.logger.Warn("escalation superseded",
			"session_id", req.SessionID,
			"old_tier", int(cur.tier),
			"new_tier", int(tier))
	}
	e.active[req.SessionID] = a
	e.mu.Unlock()

	e.logger.Warn("escalation triggered",
		"session_id", req.SessionID,
		"escalation_id", a.rec.ID,
		"tier", tier.String(),
		"trigger", string(req.Trigger),
		"region", a.route.Region)

	actionTimeout := a.rec.SLATarget / 2
	for _, act := range e.actionsForTier(tier, a) {
		if runCtx.Err() != nil {
			break
		}
		res := e.runAction(runCtx, act, actionTimeout)
		a.updateRecord(func(r *Record) {
			r.Actions = append(r.Actions, res)
		})
	}
	cancel()

	a.updateRecord(func(r *Record) {
		r.CompletedAt = e.clock.Now()
		r.ResponseTime = r.CompletedAt.Sub(start)
		r.TargetMet = r.ResponseTime <= r.SLATarget
		if a.superseded.Load() {
			r.State = StateSuperseded
		}
	})
	rec := a.snapshot()

	span.SetAttributes(
		attribute.Int64("escalation.response_ms", rec.ResponseTime.Milliseconds()),
		attribute.Bool("escalation.target_met", rec.TargetMet),
	)
	e.logger.Info("escalation protocol complete",
		"session_id", req.SessionID,
		"escalation_id", rec.ID,
		"tier", tier.String(),
		"state", string(rec.State),
		"response_ms", rec.ResponseTime.Milliseconds(),
		"target_met", rec.TargetMet)

	if e.recorder != nil {
		e.recorder.RecordEscalation(base, rec)
	}
	if tier == TierEmergency && rec.State == StateEscalating {
		e.publishEmergency(base, rec)
	}
	return rec, nil
}

// Resolve closes a session's active escalation. The completed record is
// returned with its state updated; a superseded run cannot be resolved
// because the superseding run owns the session slot.
func (e *Engine) Resolve(ctx context.Context, sessionID, resolvedBy, notes string) (*Record, error) {
	e.mu.Lock()
	a, ok := e.active[sessionID]
	if !ok {
		e.mu.Unlock()
		return nil, fmt.Errorf("escalation: resolve session %s: %w", sessionID, ErrNotEscalating)
	}
	delete(e.active, sessionID)
	e.mu.Unlock()

	a.cancel()
	a.updateRecord(func(r *Record) { r.State = StateResolved })
	e.logger.Info("escalation resolved",
		"session_id", sessionID,
		"escalation_id", a.rec.ID,
		"resolved_by", resolvedBy,
		"notes", notes)
	return a.snapshot(), nil
}

// Active returns a snapshot of the running escalation for a session, if any.
func (e *Engine) Active(sessionID string) (*Record, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	a, ok := e.active[sessionID]
	if !ok {
		return nil, false
	}
	return a.snapshot(), true
}

// ActiveCount returns the number of sessions with a running escalation.
func (e *Engine) ActiveCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.active)
}

// runAction executes one protocol step under its own deadline. Actions that
// ignore their context are still bounded by the select.
func (e *Engine) runAction(ctx context.Context, act protocolAction, timeout time.Duration) ActionResult {
	actionCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := e.clock.Now()
	done := make(chan error, 1)
	go func() { done <- act.run(actionCtx) }()

	var err error
	select {
	case err = <-done:
	case <-actionCtx.Done():
		err = actionCtx.Err()
	}

	res := ActionResult{
		Name:      act.name,
		Succeeded: err == nil,
		Duration:  e.clock.Since(start),
	}
	if err != nil {
		res.Error = err.Error()
		e.logger.Error("escalation action failed",
			"action", act.name,
			"error", err)
	}
	return res
}

func (e *Engine) publishEmergency(ctx context.Context, rec *Record) {
	if e.publisher == nil {
		return
	}
	ev := events.Event{
		EventID:    e.newID(),
		Type:       events.TypeEmergencyEscalated,
		SessionID:  rec.SessionID,
		OccurredAt: rec.CompletedAt,
		Payload: events.EmergencyEscalatedV1{
			SessionID:    rec.SessionID,
			EscalationID: rec.ID,
			Tier:         int(rec.Tier),
			Trigger:      string(rec.Trigger),
			HelpOnTheWay: rec.EmergencyServicesContacted || rec.HotlineContacted,
			EscalatedAt:  rec.CompletedAt,
		},
	}
	if err := e.publisher.Publish(ctx, ev); err != nil {
		e.logger.Error("publish emergency event failed",
			"session_id", rec.SessionID,
			"error", err)
	}
}

// The action implementations below write to the run's record through
// updateRecord; a timed-out action abandoned by runAction can still reach its
// write concurrently with later steps.

func (a *active) contactEmergencyServices(ctx context.Context) error {
	ok, err := a.engine.dispatcher.ContactEmergencyServices(ctx, a.route.Region, a.profile.Location)
	if err != nil {
		return fmt.Errorf("contact emergency services: %w", err)
	}
	if !ok {
		return errors.New("emergency services unreachable")
	}
	a.updateRecord(func(r *Record) { r.EmergencyServicesContacted = true })
	return nil
}

func (a *active) contactHotline(ctx context.Context) error {
	ok, err := a.engine.dispatcher.ContactHotline(ctx, a.route.Region)
	if err != nil {
		return fmt.Errorf("contact hotline: %w", err)
	}
	if !ok {
		return errors.New("hotline unreachable")
	}
	a.updateRecord(func(r *Record) { r.HotlineContacted = true })
	return nil
}

func (a *active) assignResponder(ctx context.Context) error {
	responder, err := a.engine.directory.FindResponder(ctx, a.tier, a.route.Region)
	if err != nil {
		return fmt.Errorf("assign responder: %w", err)
	}
	if err := a.engine.dispatcher.NotifyResponder(ctx, responder.ID, a.profile.SessionID, a.tier); err != nil {
		return fmt.Errorf("notify responder %s: %w", responder.ID, err)
	}
	a.updateRecord(func(r *Record) {
		r.ResponderAssigned = true
		r.ResponderID = responder.ID
	})
	return nil
}

// activateLocationServices only succeeds when the session shared coordinates;
// anonymous sessions without location consent record a failed step.
func (a *active) activateLocationServices(ctx context.Context) error {
	if a.profile.Location == nil {
		return errors.New("no location consent on session")
	}
	return ctx.Err()
}

func (a *active) beginMonitoring(ctx context.Context) error { return ctx.Err() }

func (a *active) initiateEmergencyProtocol(ctx context.Context) error { return ctx.Err() }

func (a *active) generateSafetyPlan(ctx context.Context) error { return ctx.Err() }

func (a *active) conductSafetyCheck(ctx context.Context) error { return ctx.Err() }

func (a *active) offerCopingStrategies(ctx context.Context) error { return ctx.Err() }

func (a *active) provideResources(ctx context.Context) error { return ctx.Err() }
