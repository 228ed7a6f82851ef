// Package directory tracks which crisis responders are registered and
// available per tier and region.
package directory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Damatnic/ASTRAL-CORE-V2-sub004/internal/escalation"
	"github.com/Damatnic/ASTRAL-CORE-V2-sub004/pkg/logging"
)

// Entry is one registered responder.
type Entry struct {
	ID      string
	Name    string
	Role    string
	Regions []string
	MinTier escalation.Tier
	MaxTier escalation.Tier

	// MaxLoad bounds concurrent assignments; zero means unbounded.
	MaxLoad int
}

// Memory is an in-memory responder directory. Assignment is least-loaded
// first among responders matching the tier and region.
type Memory struct {
	logger *logging.Logger

	mu      sync.Mutex
	entries map[string]*Entry
	load    map[string]int
	order   []string
}

var _ escalation.ResponderDirectory = (*Memory)(nil)

// NewMemory creates an empty in-memory directory.
func NewMemory(logger *logging.Logger) *Memory {
	if logger == nil {
		logger = logging.Default()
	}
	return &Memory{
		logger:  logger,
		entries: make(map[string]*Entry),
		load:    make(map[string]int),
	}
}

// Register adds or replaces a responder entry.
func (m *Memory) Register(e Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.entries[e.ID]; !exists {
		m.order = append(m.order, e.ID)
	}
	copied := e
	m.entries[e.ID] = &copied
	m.logger.Info("responder registered",
		"responder_id", e.ID,
		"role", e.Role,
		"min_tier", int(e.MinTier),
		"max_tier", int(e.MaxTier))
}

// Deregister removes a responder. Existing assignments are unaffected.
func (m *Memory) Deregister(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, id)
	delete(m.load, id)
	for i, existing := range m.order {
		if existing == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// FindResponder returns the least-loaded responder covering the tier and
// region and increments its load. Release must be called when the assignment
// ends.
func (m *Memory) FindResponder(ctx context.Context, tier escalation.Tier, region string) (escalation.Responder, error) {
	if err := ctx.Err(); err != nil {
		return escalation.Responder{}, err
	}
	region = strings.ToUpper(strings.TrimSpace(region))

	m.mu.Lock()
	defer m.mu.Unlock()

	var best *Entry
	bestLoad := 0
	for _, id := range m.order {
		e, ok := m.entries[id]
		if !ok || !e.covers(tier, region) {
			continue
		}
		load := m.load[id]
		if e.MaxLoad > 0 && load >= e.MaxLoad {
			continue
		}
		if best == nil || load < bestLoad {
			best = e
			bestLoad = load
		}
	}
	if best == nil {
		return escalation.Responder{}, fmt.Errorf("directory: tier %d region %s: %w", tier, region, escalation.ErrNoResponder)
	}

	m.load[best.ID]++
	return escalation.Responder{ID: best.ID, Name: best.Name, Role: best.Role}, nil
}

// Release decrements a responder's load after an assignment ends.
func (m *Memory) Release(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.load[id] > 0 {
		m.load[id]--
	}
}

// Load returns a responder's current assignment count.
func (m *Memory) Load(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.load[id]
}

func (e *Entry) covers(tier escalation.Tier, region string) bool {
	if tier < e.MinTier || tier > e.MaxTier {
		return false
	}
	if len(e.Regions) == 0 {
		return true
	}
	for _, r := range e.Regions {
		if strings.EqualFold(r, region) {
			return true
		}
	}
	return false
}
