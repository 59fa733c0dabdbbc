// internal/store/memory.go
//
// In-memory registry of per-player game controllers.
// Each player (HTTP session id or Telegram chat) owns exactly one
// *game.Controller; the controller guards its own session state.
//
// Characteristics:
//   - Controllers are keyed by player id in a map.
//   - Concurrency-safe via RWMutex (lookups and the map are guarded here;
//     game state is guarded by the controller).
//   - Entries idle longer than the TTL are evicted on access.
//   - State is lost when the process restarts.

package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/riddler/internal/game"
)

// ErrNotFound is returned by Get for unknown or evicted players.
var ErrNotFound = errors.New("not found")

// Store maps player ids to their game controllers.
type Store interface {
	// GetOrCreate returns the player's controller, creating one if needed.
	GetOrCreate(ctx context.Context, id string) *game.Controller

	// Get returns an existing controller.
	// Returns ErrNotFound if the player has none.
	Get(ctx context.Context, id string) (*game.Controller, error)

	// Delete forgets the player's controller.
	Delete(ctx context.Context, id string)

	// Len reports how many players are tracked.
	Len() int
}

// Factory builds a fresh controller for a player id.
type Factory func(id string) *game.Controller

type entry struct {
	ctrl     *game.Controller
	lastSeen time.Time
}

// memory is an in-memory map-based Store implementation.
type memory struct {
	mu      sync.RWMutex      // guards entries
	entries map[string]*entry // keyed by player id
	ttl     time.Duration     // zero disables eviction
	now     func() time.Time
	factory Factory
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore(factory Factory, ttl time.Duration) Store {
	return newMemory(factory, ttl, time.Now)
}

func newMemory(factory Factory, ttl time.Duration, now func() time.Time) *memory {
	return &memory{
		entries: make(map[string]*entry),
		ttl:     ttl,
		now:     now,
		factory: factory,
	}
}

// GetOrCreate looks up the player, sweeping stale entries first.
func (m *memory) GetOrCreate(ctx context.Context, id string) *game.Controller {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.sweepLocked(now)
	if e, ok := m.entries[id]; ok {
		e.lastSeen = now
		return e.ctrl
	}
	e := &entry{ctrl: m.factory(id), lastSeen: now}
	m.entries[id] = e
	log.Debug().Str("session", id).Int("sessions", len(m.entries)).Msg("session created")
	return e.ctrl
}

// Get returns the player's controller or ErrNotFound.
func (m *memory) Get(ctx context.Context, id string) (*game.Controller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.sweepLocked(now)
	e, ok := m.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	e.lastSeen = now
	return e.ctrl, nil
}

// Delete removes the player's controller, if any.
func (m *memory) Delete(ctx context.Context, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, id)
}

// Len returns the number of live entries.
func (m *memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *memory) sweepLocked(now time.Time) {
	if m.ttl <= 0 {
		return
	}
	for id, e := range m.entries {
		if now.Sub(e.lastSeen) > m.ttl {
			delete(m.entries, id)
			log.Debug().Str("session", id).Msg("session evicted")
		}
	}
}
