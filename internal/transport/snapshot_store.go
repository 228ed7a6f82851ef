package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Damatnic/ASTRAL-CORE-V2-sub004/internal/session"
)

const (
	snapshotKeyPrefix = "crisis_session:"
	snapshotTTL       = 24 * time.Hour
)

// ErrSnapshotNotFound is returned when no snapshot exists for a session.
var ErrSnapshotNotFound = errors.New("transport: session snapshot not found")

// RedisSnapshotStore keeps the latest session snapshot in Redis for recovery
// and dashboards. In-memory state stays authoritative.
type RedisSnapshotStore struct {
	redis *redis.Client
}

var _ session.SnapshotStore = (*RedisSnapshotStore)(nil)

// NewRedisSnapshotStore wraps a Redis client for snapshot persistence.
func NewRedisSnapshotStore(client *redis.Client) *RedisSnapshotStore {
	if client == nil {
		panic("transport: redis client cannot be nil")
	}
	return &RedisSnapshotStore{redis: client}
}

// SaveSession overwrites the snapshot for a session and refreshes its TTL.
// Snapshots for preserved-evidence sessions never expire.
func (s *RedisSnapshotStore) SaveSession(ctx context.Context, snap session.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("transport: encode session snapshot: %w", err)
	}

	ttl := snapshotTTL
	if snap.PreserveEvidence {
		ttl = 0
	}
	if err := s.redis.Set(ctx, snapshotKeyPrefix+snap.ID, data, ttl).Err(); err != nil {
		return fmt.Errorf("transport: save session snapshot %s: %w", snap.ID, err)
	}
	return nil
}

// LoadSession reads the latest snapshot for a session.
func (s *RedisSnapshotStore) LoadSession(ctx context.Context, sessionID string) (session.Snapshot, error) {
	data, err := s.redis.Get(ctx, snapshotKeyPrefix+sessionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return session.Snapshot{}, fmt.Errorf("transport: load session %s: %w", sessionID, ErrSnapshotNotFound)
	}
	if err != nil {
		return session.Snapshot{}, fmt.Errorf("transport: load session %s: %w", sessionID, err)
	}

	var snap session.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return session.Snapshot{}, fmt.Errorf("transport: decode session snapshot %s: %w", sessionID, err)
	}
	return snap, nil
}
