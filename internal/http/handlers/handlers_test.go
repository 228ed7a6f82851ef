package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Damatnic/ASTRAL-CORE-V2-sub004/internal/audit"
	"github.com/Damatnic/ASTRAL-CORE-V2-sub004/internal/directory"
	"github.com/Damatnic/ASTRAL-CORE-V2-sub004/internal/escalation"
	"github.com/Damatnic/ASTRAL-CORE-V2-sub004/internal/monitoring"
	"github.com/Damatnic/ASTRAL-CORE-V2-sub004/internal/notify"
	"github.com/Damatnic/ASTRAL-CORE-V2-sub004/internal/risk"
	"github.com/Damatnic/ASTRAL-CORE-V2-sub004/internal/session"
	"github.com/Damatnic/ASTRAL-CORE-V2-sub004/pkg/logging"
)

// testStack wires a real manager, engine, and auditor against in-memory
// dependencies.
type testStack struct {
	manager *session.Manager
	engine  *escalation.Engine
	auditor *monitoring.Auditor
	trail   *audit.MemoryStore
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()
	logger := logging.NewWithWriter("error", &bytes.Buffer{})

	trail := audit.NewMemoryStore()
	auditor := monitoring.NewAuditor(logger, trail)

	dir := directory.NewMemory(logger)
	dir.Register(directory.Entry{
		ID:      "resp-1",
		Name:    "On-call responder",
		Role:    "specialist",
		Regions: []string{"US"},
		MinTier: escalation.TierStandard,
		MaxTier: escalation.TierEmergency,
	})

	var manager *session.Manager
	sessions := escalation.SessionSourceFunc(func(ctx context.Context, sessionID string) (escalation.Profile, error) {
		return manager.Profile(ctx, sessionID)
	})
	engine := escalation.NewEngine(logger, sessions, notify.NewSimpleDispatcher(logger), dir, auditor, nil)
	manager = session.NewManager(logger, risk.NewScorer(logger), engine, nil, session.DefaultSettings())

	return &testStack{manager: manager, engine: engine, auditor: auditor, trail: trail}
}

func newTestRouter(stack *testStack, intake *session.Intake) http.Handler {
	logger := logging.NewWithWriter("error", &bytes.Buffer{})
	r := chi.NewRouter()

	sessions := NewSessionHandler(stack.manager, intake, logger)
	escalations := NewEscalationHandler(stack.engine, logger)
	mon := NewMonitoringHandler(stack.auditor, stack.trail, logger)

	r.Get("/health", sessions.HealthCheck)
	r.Route("/sessions", func(s chi.Router) {
		s.Post("/", sessions.Create)
		s.Route("/{sessionID}", func(sess chi.Router) {
			sess.Get("/", sessions.Get)
			sess.Post("/messages", sessions.PostMessage)
			sess.Post("/responders", sessions.AddResponder)
			sess.Post("/end", sessions.End)
			sess.Post("/escalate", escalations.Escalate)
			sess.Get("/escalation", escalations.Active)
		})
	})
	r.Get("/monitoring/report", mon.Report)
	r.Get("/monitoring/alerts", mon.Alerts)
	r.Get("/monitoring/audit", mon.AuditTrail)
	return r
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func createSession(t *testing.T, router http.Handler) session.Snapshot {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/sessions", createSessionRequest{
		SeekerID: "seeker-1",
		Region:   "US",
		Language: "en",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var snap session.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.NotEmpty(t, snap.ID)
	return snap
}

func TestHealthCheck(t *testing.T) {
	router := newTestRouter(newTestStack(t), nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestCreateAndGetSession(t *testing.T) {
	router := newTestRouter(newTestStack(t), nil)
	snap := createSession(t, router)

	req := httptest.NewRequest(http.MethodGet, "/sessions/"+snap.ID+"/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got session.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, snap.ID, got.ID)
	assert.Equal(t, session.StatusActive, got.Status)
}

func TestGetUnknownSessionReturns404(t *testing.T) {
	router := newTestRouter(newTestStack(t), nil)

	req := httptest.NewRequest(http.MethodGet, "/sessions/nope/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPostMessageSyncAck(t *testing.T) {
	router := newTestRouter(newTestStack(t), nil)
	snap := createSession(t, router)

	rec := doJSON(t, router, http.MethodPost, "/sessions/"+snap.ID+"/messages", postMessageRequest{
		SenderID: "seeker-1",
		Text:     "I had a rough day at work",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var ack session.Ack
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ack))
	assert.Equal(t, snap.ID, ack.SessionID)
	assert.Equal(t, 1, ack.MessageCount)
	require.NotNil(t, ack.Assessment)
	assert.False(t, ack.Escalated)
}

func TestPostMessageEmergencyEscalates(t *testing.T) {
	stack := newTestStack(t)
	router := newTestRouter(stack, nil)
	snap := createSession(t, router)

	rec := doJSON(t, router, http.MethodPost, "/sessions/"+snap.ID+"/messages", postMessageRequest{
		SenderID: "seeker-1",
		Text:     "I want to kill myself right now",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var ack session.Ack
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ack))
	assert.True(t, ack.Escalated)
	assert.NotEmpty(t, ack.EscalationID)
	assert.True(t, ack.HelpOnTheWay)

	entries := stack.trail.BySession(snap.ID)
	require.NotEmpty(t, entries)
	assert.Equal(t, int(escalation.TierEmergency), entries[0].Tier)
}

func TestPostMessageValidation(t *testing.T) {
	router := newTestRouter(newTestStack(t), nil)
	snap := createSession(t, router)

	t.Run("empty text", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/sessions/"+snap.ID+"/messages", postMessageRequest{
			SenderID: "seeker-1",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown sender", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/sessions/"+snap.ID+"/messages", postMessageRequest{
			SenderID: "stranger",
			Text:     "hello",
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/sessions/"+snap.ID+"/messages", bytes.NewBufferString("{"))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestPostMessageAsyncEnqueues(t *testing.T) {
	stack := newTestStack(t)
	logger := logging.NewWithWriter("error", &bytes.Buffer{})
	queue := session.NewMemoryQueue(16)
	intake := session.NewIntake(queue, logger)
	router := newTestRouter(stack, intake)
	snap := createSession(t, router)

	worker := session.NewWorker(stack.manager, queue, logger, session.WithReceiveWaitSeconds(0))
	ctx, cancel := context.WithCancel(context.Background())
	worker.Start(ctx)
	defer func() {
		cancel()
		worker.Wait()
	}()

	rec := doJSON(t, router, http.MethodPost, "/sessions/"+snap.ID+"/messages", postMessageRequest{
		SenderID: "seeker-1",
		Text:     "feeling very alone today",
		Async:    true,
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body["job_id"])

	require.Eventually(t, func() bool {
		got, err := stack.manager.GetSession(snap.ID)
		return err == nil && got.MessageCount == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPostMessageAsyncWithoutIntake(t *testing.T) {
	router := newTestRouter(newTestStack(t), nil)
	snap := createSession(t, router)

	rec := doJSON(t, router, http.MethodPost, "/sessions/"+snap.ID+"/messages", postMessageRequest{
		SenderID: "seeker-1",
		Text:     "hello",
		Async:    true,
	})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAddResponderAndEnd(t *testing.T) {
	router := newTestRouter(newTestStack(t), nil)
	snap := createSession(t, router)

	rec := doJSON(t, router, http.MethodPost, "/sessions/"+snap.ID+"/responders", addResponderRequest{
		ResponderID: "resp-1",
		Role:        string(session.RoleResponder),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var got session.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got.Participants, 2)

	rec = doJSON(t, router, http.MethodPost, "/sessions/"+snap.ID+"/end", endSessionRequest{
		CallerID: "seeker-1",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, session.StatusEnded, got.Status)
}

func TestEndSessionForbiddenForResponder(t *testing.T) {
	router := newTestRouter(newTestStack(t), nil)
	snap := createSession(t, router)

	rec := doJSON(t, router, http.MethodPost, "/sessions/"+snap.ID+"/responders", addResponderRequest{
		ResponderID: "resp-1",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/sessions/"+snap.ID+"/end", endSessionRequest{
		CallerID: "resp-1",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestManualEscalation(t *testing.T) {
	stack := newTestStack(t)
	router := newTestRouter(stack, nil)
	snap := createSession(t, router)

	rec := doJSON(t, router, http.MethodPost, "/sessions/"+snap.ID+"/escalate", manualEscalateRequest{
		RequestedBy: "supervisor-1",
		Reason:      "seeker requested a human",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var record escalation.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
	assert.Equal(t, snap.ID, record.SessionID)
	assert.Equal(t, escalation.TierStandard, record.Tier)

	req := httptest.NewRequest(http.MethodGet, "/sessions/"+snap.ID+"/escalation", nil)
	got := httptest.NewRecorder()
	router.ServeHTTP(got, req)
	assert.Equal(t, http.StatusOK, got.Code)
}

func TestManualEscalationRequiresRequester(t *testing.T) {
	router := newTestRouter(newTestStack(t), nil)
	snap := createSession(t, router)

	rec := doJSON(t, router, http.MethodPost, "/sessions/"+snap.ID+"/escalate", manualEscalateRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMonitoringReportAndAudit(t *testing.T) {
	stack := newTestStack(t)
	router := newTestRouter(stack, nil)
	snap := createSession(t, router)

	rec := doJSON(t, router, http.MethodPost, "/sessions/"+snap.ID+"/messages", postMessageRequest{
		SenderID: "seeker-1",
		Text:     "I want to kill myself right now",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/monitoring/report?window=1h", nil)
	got := httptest.NewRecorder()
	router.ServeHTTP(got, req)
	require.Equal(t, http.StatusOK, got.Code)

	var report monitoring.Report
	require.NoError(t, json.Unmarshal(got.Body.Bytes(), &report))
	assert.Equal(t, 1, report.Metrics.TotalEscalations)

	req = httptest.NewRequest(http.MethodGet, "/monitoring/audit?session_id="+snap.ID, nil)
	got = httptest.NewRecorder()
	router.ServeHTTP(got, req)
	require.Equal(t, http.StatusOK, got.Code)

	var trail struct {
		Entries []monitoring.AuditEntry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(got.Body.Bytes(), &trail))
	require.Len(t, trail.Entries, 1)
	assert.Equal(t, snap.ID, trail.Entries[0].SessionID)
}

func TestMonitoringReportRejectsBadWindow(t *testing.T) {
	router := newTestRouter(newTestStack(t), nil)

	req := httptest.NewRequest(http.MethodGet, "/monitoring/report?window=banana", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuditTrailWithoutStore(t *testing.T) {
	stack := newTestStack(t)
	logger := logging.NewWithWriter("error", &bytes.Buffer{})
	mon := NewMonitoringHandler(stack.auditor, nil, logger)

	req := httptest.NewRequest(http.MethodGet, "/monitoring/audit", nil)
	rec := httptest.NewRecorder()
	mon.AuditTrail(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
