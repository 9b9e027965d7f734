// Package memory provides an in-memory implementation of history.Store
// for testing and lightweight deployments. Runs are stored in memory and
// lost when the process restarts. Optional LRU eviction limits memory usage.
package memory

import (
	"container/list"
	"context"
	"sort"
	"sync"

	"github.com/codepool-dev/codepool/pkg/history"
)

// entry holds a stored record and its position in the LRU list.
type entry struct {
	rec     *history.Record
	lruElem *list.Element
}

// Store is an in-memory history.Store with optional LRU eviction.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	lruList *list.List // front = most recently used, back = least recently used
	maxSize int        // 0 = unlimited
}

// Ensure Store implements history.Store at compile time.
var _ history.Store = (*Store)(nil)

// New creates a new in-memory store. If maxSize is 0, the store grows
// without limit. If maxSize > 0, the oldest run is evicted when the
// limit is reached.
func New(maxSize int) *Store {
	return &Store{
		entries: make(map[string]*entry),
		lruList: list.New(),
		maxSize: maxSize,
	}
}

// Type identifies the store implementation.
func (s *Store) Type() string { return "memory" }

// SaveRun persists a run record in memory.
func (s *Store) SaveRun(_ context.Context, rec *history.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[rec.ID]; exists {
		return history.ErrConflict
	}

	// Evict if at capacity.
	if s.maxSize > 0 && len(s.entries) >= s.maxSize {
		s.evictOldest()
	}

	elem := s.lruList.PushFront(rec.ID)
	s.entries[rec.ID] = &entry{rec: rec, lruElem: elem}

	return nil
}

// GetRun retrieves a run by ID. Returns ErrNotFound if absent.
func (s *Store) GetRun(_ context.Context, id string) (*history.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, history.ErrNotFound
	}
	return e.rec, nil
}

// ListRuns returns stored runs, newest first, up to limit (0 = all).
func (s *Store) ListRuns(_ context.Context, limit int) ([]*history.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := make([]*history.Record, 0, len(s.entries))
	for _, e := range s.entries {
		recs = append(recs, e.rec)
	}
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].CreatedAt.After(recs[j].CreatedAt)
	})

	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

// DeleteRun removes a run by ID. Returns ErrNotFound if absent.
func (s *Store) DeleteRun(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return history.ErrNotFound
	}

	s.lruList.Remove(e.lruElem)
	delete(s.entries, id)
	return nil
}

// Close is a no-op for the memory store.
func (s *Store) Close() error { return nil }

// evictOldest removes the least recently stored run.
// Caller must hold the write lock.
func (s *Store) evictOldest() {
	oldest := s.lruList.Back()
	if oldest == nil {
		return
	}
	id := oldest.Value.(string)
	s.lruList.Remove(oldest)
	delete(s.entries, id)
}
