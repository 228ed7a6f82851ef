package transport

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Damatnic/ASTRAL-CORE-V2-sub004/internal/events"
	"github.com/Damatnic/ASTRAL-CORE-V2-sub004/internal/session"
	"github.com/Damatnic/ASTRAL-CORE-V2-sub004/pkg/logging"
)

func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestRedisPublisher(t *testing.T) {
	client := testRedis(t)
	publisher := NewRedisPublisher(client, logging.NewWithWriter("error", io.Discard))
	ctx := context.Background()

	sub := client.Subscribe(ctx, SessionChannel("sess-1"), FirehoseChannel())
	_, err := sub.Receive(ctx)
	require.NoError(t, err)
	defer sub.Close()

	ev := events.Event{
		EventID:    "ev-1",
		Type:       events.TypeEmergencyEscalated,
		SessionID:  "sess-1",
		OccurredAt: time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC),
	}
	require.NoError(t, publisher.Publish(ctx, ev))

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		msg, err := sub.ReceiveMessage(ctx)
		require.NoError(t, err)
		var got events.Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, "ev-1", got.EventID)
		assert.Equal(t, events.TypeEmergencyEscalated, got.Type)
		seen[msg.Channel] = true
	}
	assert.True(t, seen[SessionChannel("sess-1")])
	assert.True(t, seen[FirehoseChannel()])
}

func TestRedisSnapshotStoreRoundTrip(t *testing.T) {
	client := testRedis(t)
	store := NewRedisSnapshotStore(client)
	ctx := context.Background()

	snap := session.Snapshot{
		ID:           "sess-1",
		Status:       session.StatusEscalated,
		Severity:     "CRITICAL",
		MessageCount: 7,
		RiskFlags:    []string{"emergency_risk_detected"},
	}
	require.NoError(t, store.SaveSession(ctx, snap))

	got, err := store.LoadSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, snap.Status, got.Status)
	assert.Equal(t, snap.MessageCount, got.MessageCount)
	assert.Equal(t, snap.RiskFlags, got.RiskFlags)

	_, err = store.LoadSession(ctx, "missing")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}

func TestRedisSnapshotStoreTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisSnapshotStore(client)
	ctx := context.Background()

	require.NoError(t, store.SaveSession(ctx, session.Snapshot{ID: "expiring"}))
	require.NoError(t, store.SaveSession(ctx, session.Snapshot{ID: "preserved", PreserveEvidence: true}))

	assert.Greater(t, mr.TTL(snapshotKeyPrefix+"expiring"), time.Duration(0))
	assert.Equal(t, time.Duration(0), mr.TTL(snapshotKeyPrefix+"preserved"))
}

func TestMemoryPublisher(t *testing.T) {
	p := NewMemoryPublisher()
	require.NoError(t, p.Publish(context.Background(), events.Event{EventID: "a"}))
	require.NoError(t, p.Publish(context.Background(), events.Event{EventID: "b"}))

	got := p.Events()
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].EventID)
	assert.Equal(t, "b", got[1].EventID)
}
