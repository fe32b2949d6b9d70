// Package cache
package cache

import (
	"sync"
	"time"

	"metricsd/internal/domain"
)

// Store holds the last published snapshot. It is replaced as a whole on
// every update so readers never see fields from two different cycles.
type Store struct {
	mu       sync.RWMutex
	snapshot domain.Snapshot
	ready    bool

	now func() time.Time
}

func NewStore() *Store {
	return &Store{now: time.Now}
}

// Update publishes a new snapshot. A nil remote clears any previous remote
// reading: the dashboard shows the peer as unreachable instead of stale data.
func (s *Store) Update(local domain.LocalMetrics, remote *domain.RemoteMetrics) {
	snap := domain.Snapshot{
		Local:       local,
		RefreshedAt: s.now(),
	}
	if remote != nil {
		r := *remote
		snap.Remote = &r
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot = snap
	s.ready = true
}

// Snapshot returns the last published snapshot, or false before the first update.
func (s *Store) Snapshot() (domain.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.snapshot, s.ready
}
