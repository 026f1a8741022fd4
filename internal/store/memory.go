// internal/store/memory.go
//
// In-memory registry of live game sessions.
//
// Characteristics:
//   - Stores *game.Session values keyed by session ID in a map.
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive).
//   - Tracks last access so idle sessions can be swept and closed.
//   - State is lost when the process restarts.

package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/robalobadob/wordguess/internal/game"
)

// ErrNotFound is returned by Get for unknown session IDs.
var ErrNotFound = errors.New("session not found")

// Store defines the registry interface for live sessions.
type Store interface {
	// Save registers or replaces the session under id.
	Save(ctx context.Context, id string, s *game.Session) error

	// Get retrieves a session by ID and marks it as accessed.
	Get(ctx context.Context, id string) (*game.Session, error)

	// Delete closes and removes a session.
	Delete(ctx context.Context, id string) error

	// Sweep closes and removes sessions not accessed since cutoff.
	// It returns the removed IDs.
	Sweep(ctx context.Context, cutoff time.Time) []string
}

type entry struct {
	session    *game.Session
	lastAccess time.Time
}

// memory is an in-memory map-based Store implementation.
type memory struct {
	mu      sync.RWMutex      // guards entries
	entries map[string]*entry // keyed by session ID
	now     func() time.Time
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore() Store {
	return &memory{entries: make(map[string]*entry), now: time.Now}
}

func (m *memory) Save(ctx context.Context, id string, s *game.Session) error {
	m.mu.Lock()
	prev := m.entries[id]
	m.entries[id] = &entry{session: s, lastAccess: m.now()}
	m.mu.Unlock()
	if prev != nil && prev.session != s {
		prev.session.Close()
	}
	return nil
}

func (m *memory) Get(ctx context.Context, id string) (*game.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	e.lastAccess = m.now()
	return e.session, nil
}

func (m *memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	e, ok := m.entries[id]
	delete(m.entries, id)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	e.session.Close()
	return nil
}

func (m *memory) Sweep(ctx context.Context, cutoff time.Time) []string {
	m.mu.Lock()
	stale := lo.PickBy(m.entries, func(_ string, e *entry) bool {
		return e.lastAccess.Before(cutoff)
	})
	for id := range stale {
		delete(m.entries, id)
	}
	m.mu.Unlock()

	for _, e := range stale {
		e.session.Close()
	}
	return lo.Keys(stale)
}
