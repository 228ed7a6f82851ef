// Package transport forwards engine events to connected parties and keeps
// best-effort session snapshots. Delivery reliability past the broker is out
// of scope for the engine.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Damatnic/ASTRAL-CORE-V2-sub004/internal/events"
	"github.com/Damatnic/ASTRAL-CORE-V2-sub004/pkg/logging"
)

var transportTracer = otel.Tracer("crisis-engine/transport")

const eventChannelPrefix = "crisis_events:"

// RedisPublisher publishes engine events on per-session Redis channels plus a
// firehose channel for dashboards.
type RedisPublisher struct {
	redis  *redis.Client
	logger *logging.Logger
}

// NewRedisPublisher wraps a Redis client for event publishing.
func NewRedisPublisher(client *redis.Client, logger *logging.Logger) *RedisPublisher {
	if client == nil {
		panic("transport: redis client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &RedisPublisher{redis: client, logger: logger}
}

// Publish sends an event to the session channel and the firehose.
func (p *RedisPublisher) Publish(ctx context.Context, ev events.Event) error {
	ctx, span := transportTracer.Start(ctx, "transport.publish")
	defer span.End()
	span.SetAttributes(
		attribute.String("event.type", ev.Type),
		attribute.String("session.id", ev.SessionID),
	)

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("transport: encode event: %w", err)
	}

	pipe := p.redis.TxPipeline()
	pipe.Publish(ctx, eventChannelPrefix+ev.SessionID, data)
	pipe.Publish(ctx, eventChannelPrefix+"all", data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("transport: publish event %s: %w", ev.Type, err)
	}
	return nil
}

// SessionChannel returns the Redis channel name for one session's events.
func SessionChannel(sessionID string) string {
	return eventChannelPrefix + sessionID
}

// FirehoseChannel returns the channel carrying every published event.
func FirehoseChannel() string {
	return eventChannelPrefix + "all"
}

// MemoryPublisher buffers events in memory for single-process deployments
// and tests.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

// NewMemoryPublisher creates an empty buffer.
func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

func (p *MemoryPublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

// Events returns a copy of the published events in order.
func (p *MemoryPublisher) Events() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Event, len(p.events))
	copy(out, p.events)
	return out
}
