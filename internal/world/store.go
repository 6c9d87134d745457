package world

import (
	"sort"
	"sync"
	"time"
)

type entry[T any] struct {
	value     T
	updatedAt time.Time
}

// Store is a keyed set of entities guarded by its own lock.
type Store[T any] struct {
	mu    sync.RWMutex
	items map[int64]*entry[T]
}

func newStore[T any]() *Store[T] {
	return &Store[T]{items: make(map[int64]*entry[T])}
}

// Put inserts or replaces the entity.
func (s *Store[T]) Put(id int64, v T, at time.Time) {
	s.mu.Lock()
	s.items[id] = &entry[T]{value: v, updatedAt: at}
	s.mu.Unlock()
}

// Update applies fn to an existing entity. It reports false when id is not
// tracked.
func (s *Store[T]) Update(id int64, at time.Time, fn func(*T)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[id]
	if !ok {
		return false
	}
	fn(&e.value)
	e.updatedAt = at
	return true
}

// Remove deletes id.
func (s *Store[T]) Remove(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return false
	}
	delete(s.items, id)
	return true
}

// Get returns a copy of the entity.
func (s *Store[T]) Get(id int64) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.items[id]
	if !ok {
		var zero T
		return zero, false
	}
	return e.value, true
}

// Len returns the number of tracked entities.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Clear drops every entity.
func (s *Store[T]) Clear() {
	s.mu.Lock()
	s.items = make(map[int64]*entry[T])
	s.mu.Unlock()
}

// Evict drops entities not updated since cutoff.
func (s *Store[T]) Evict(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, e := range s.items {
		if e.updatedAt.Before(cutoff) {
			delete(s.items, id)
			n++
		}
	}
	return n
}

// List returns copies of every entity ordered by id.
func (s *Store[T]) List() []T {
	s.mu.RLock()
	ids := make([]int64, 0, len(s.items))
	for id := range s.items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.items[id].value)
	}
	s.mu.RUnlock()
	return out
}
