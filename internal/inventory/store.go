package inventory

import (
	"context"
	"sync"
	"time"
)

// Store keeps the last snapshot loaded from a Source so that a long-running
// service can answer previews without reloading on every request.
type Store struct {
	src Source

	mu       sync.RWMutex
	snap     Snapshot
	loaded   bool
	loadedAt time.Time
}

func NewStore(src Source) *Store {
	return &Store{src: src}
}

func (s *Store) Source() string { return s.src.String() }

// Reload replaces the held snapshot. On error the previous one is kept.
func (s *Store) Reload(ctx context.Context) (Snapshot, error) {
	snap, err := s.src.Load(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = snap
	s.loaded = true
	s.loadedAt = time.Now().UTC()
	return snap.Clone(), nil
}

// Snapshot returns a copy of the held snapshot, loading it on first use.
func (s *Store) Snapshot(ctx context.Context) (Snapshot, error) {
	s.mu.RLock()
	if s.loaded {
		defer s.mu.RUnlock()
		return s.snap.Clone(), nil
	}
	s.mu.RUnlock()
	return s.Reload(ctx)
}

func (s *Store) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}
