package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/challengely/challengely/internal/catalog"
	"github.com/challengely/challengely/internal/store"
)

const sweepInterval = 5 * time.Minute

// Manager is the per-user coordinator registry. Coordinators are built
// lazily from persisted state on first touch and evicted after an idle TTL;
// eviction is safe because everything that matters is persisted.
type Manager struct {
	catalog *catalog.Catalog
	store   store.Store
	opts    Options
	ttl     time.Duration

	mu     sync.Mutex
	coords map[string]*managed
}

type managed struct {
	coord      *Coordinator
	lastActive time.Time
}

// NewManager creates a coordinator registry. ttl bounds how long an idle
// user's sessions stay resident.
func NewManager(cat *catalog.Catalog, st store.Store, ttl time.Duration, opts Options) *Manager {
	return &Manager{
		catalog: cat,
		store:   st,
		opts:    opts,
		ttl:     ttl,
		coords:  make(map[string]*managed),
	}
}

// Get returns the coordinator for userID, constructing it from persisted
// state on first use, and marks it active.
func (m *Manager) Get(ctx context.Context, userID string) *Coordinator {
	m.mu.Lock()
	defer m.mu.Unlock()

	if mc, ok := m.coords[userID]; ok {
		mc.lastActive = time.Now()
		return mc.coord
	}

	coord := NewCoordinator(ctx, userID, m.catalog, m.store, m.opts)
	m.coords[userID] = &managed{coord: coord, lastActive: time.Now()}
	slog.Info("Session coordinator created", "user_id", userID)
	return coord
}

// StartSweeper runs a background goroutine that periodically evicts idle
// coordinators, stopping their timers and freeing memory.
func (m *Manager) StartSweeper(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	go func() {
		defer ticker.Stop()
		slog.Info("Idle session sweeper started", "interval", sweepInterval, "ttl", m.ttl)

		for {
			select {
			case <-ticker.C:
				m.sweep()
			case <-ctx.Done():
				slog.Info("Idle session sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func (m *Manager) sweep() {
	cutoff := time.Now().Add(-m.ttl)

	m.mu.Lock()
	var evicted []*Coordinator
	for userID, mc := range m.coords {
		if mc.lastActive.Before(cutoff) {
			evicted = append(evicted, mc.coord)
			delete(m.coords, userID)
			slog.Info("Evicting idle session", "user_id", userID, "idle_since", mc.lastActive)
		}
	}
	m.mu.Unlock()

	for _, coord := range evicted {
		coord.Close()
	}
}

// CloseAll shuts down every resident coordinator.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	coords := make([]*Coordinator, 0, len(m.coords))
	for _, mc := range m.coords {
		coords = append(coords, mc.coord)
	}
	m.coords = make(map[string]*managed)
	m.mu.Unlock()

	for _, coord := range coords {
		coord.Close()
	}
}
