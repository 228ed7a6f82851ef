package session

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Damatnic/ASTRAL-CORE-V2-sub004/pkg/logging"
)

func TestWorkerProcessesQueuedMessages(t *testing.T) {
	m, escalator, _ := newTestManager(t, DefaultSettings())
	snap := createSession(t, m, "seeker-1", "US")

	queue := NewMemoryQueue(16)
	logger := logging.NewWithWriter("error", io.Discard)
	intake := NewIntake(queue, logger)
	worker := NewWorker(m, queue, logger,
		WithLaneCount(2),
		WithReceiveWaitSeconds(1),
		WithReceiveBatchSize(5),
	)

	ctx, cancel := context.WithCancel(context.Background())
	worker.Start(ctx)

	messages := []string{
		"feeling a bit down today",
		"things are getting worse",
		"I can't take this anymore",
		"nobody would even notice if I was gone",
		"I have a plan. I'm going to do it tonight",
	}
	for _, text := range messages {
		_, err := intake.EnqueueMessage(ctx, InboundMessage{
			SessionID: snap.ID,
			SenderID:  "seeker-1",
			Text:      text,
		})
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		got, err := m.GetSession(snap.ID)
		return err == nil && got.MessageCount == len(messages)
	}, 3*time.Second, 10*time.Millisecond)

	// Same-session jobs share a lane, so the five messages scored in
	// arrival order and the last one escalated.
	got, err := m.GetSession(snap.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusEscalated, got.Status)
	require.NotEmpty(t, escalator.triggers())

	cancel()
	worker.Wait()
}

func TestWorkerEndJob(t *testing.T) {
	m, _, _ := newTestManager(t, DefaultSettings())
	snap := createSession(t, m, "seeker-1", "US")

	queue := NewMemoryQueue(16)
	logger := logging.NewWithWriter("error", io.Discard)
	intake := NewIntake(queue, logger)
	worker := NewWorker(m, queue, logger, WithReceiveWaitSeconds(1))

	ctx, cancel := context.WithCancel(context.Background())
	worker.Start(ctx)

	_, err := intake.EnqueueEnd(ctx, EndRequest{SessionID: snap.ID, CallerID: "seeker-1"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := m.GetSession(snap.ID)
		return err == nil && got.Status == StatusEnded
	}, 3*time.Second, 10*time.Millisecond)

	cancel()
	worker.Wait()
}

func TestWorkerSkipsMalformedJobs(t *testing.T) {
	m, _, _ := newTestManager(t, DefaultSettings())
	snap := createSession(t, m, "seeker-1", "US")

	queue := NewMemoryQueue(16)
	logger := logging.NewWithWriter("error", io.Discard)
	worker := NewWorker(m, queue, logger, WithReceiveWaitSeconds(1))

	ctx, cancel := context.WithCancel(context.Background())
	worker.Start(ctx)

	require.NoError(t, queue.Send(ctx, "{not json", ""))
	_, err := NewIntake(queue, logger).EnqueueMessage(ctx, InboundMessage{
		SessionID: snap.ID,
		SenderID:  "seeker-1",
		Text:      "hello",
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := m.GetSession(snap.ID)
		return err == nil && got.MessageCount == 1
	}, 3*time.Second, 10*time.Millisecond)

	cancel()
	worker.Wait()
}

func TestLaneIndexIsStable(t *testing.T) {
	first := laneIndex("session-abc", 4)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, laneIndex("session-abc", 4))
	}
	assert.Less(t, first, 4)
	assert.GreaterOrEqual(t, first, 0)
}
