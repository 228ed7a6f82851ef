package audit

import (
	"context"
	"sync"

	"github.com/Damatnic/ASTRAL-CORE-V2-sub004/internal/monitoring"
)

// MemoryStore keeps the audit trail in memory for single-process deployments
// and tests.
type MemoryStore struct {
	mu      sync.Mutex
	entries []monitoring.AuditEntry
}

var _ monitoring.AuditSink = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory trail.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append adds one entry to the trail.
func (s *MemoryStore) Append(_ context.Context, entry monitoring.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

// Entries returns a copy of the trail in append order.
func (s *MemoryStore) Entries() []monitoring.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]monitoring.AuditEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Query retrieves entries matching the filter, newest first.
func (s *MemoryStore) Query(_ context.Context, filter Filter) ([]monitoring.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []monitoring.AuditEntry
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if filter.SessionID != "" && e.SessionID != filter.SessionID {
			continue
		}
		if filter.Tier > 0 && e.Tier != filter.Tier {
			continue
		}
		if filter.Outcome != "" && e.Outcome != filter.Outcome {
			continue
		}
		if !filter.StartTime.IsZero() && e.RecordedAt.Before(filter.StartTime) {
			continue
		}
		if !filter.EndTime.IsZero() && e.RecordedAt.After(filter.EndTime) {
			continue
		}
		matched = append(matched, e)
	}

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return nil, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

// BySession returns the trail entries for one session in append order.
func (s *MemoryStore) BySession(sessionID string) []monitoring.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []monitoring.AuditEntry
	for _, e := range s.entries {
		if e.SessionID == sessionID {
			out = append(out, e)
		}
	}
	return out
}
