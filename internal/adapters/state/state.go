// Package state holds the raw scoreboard snapshot the feed pushes at us.
//
// The snapshot is a flat string->string map keyed by feed paths. It has one
// logical writer, the projector's apply loop, and any number of readers. The
// projector treats it as an eventually-consistent external snapshot it may
// query synchronously at any time; entities derived from it live elsewhere.
package state

import (
	"strings"
	"sync"
)

// Snapshot is the read-side view of the raw feed state.
type Snapshot interface {
	// Get returns the value for key and whether the key is present.
	Get(key string) (string, bool)

	// Scan calls fn for every key/value pair until fn returns false.
	// Iteration order is unspecified.
	Scan(fn func(key, value string) bool)

	// Len returns the number of keys currently held.
	Len() int
}

// Store is a Snapshot that the apply loop can mutate.
type Store struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewStore creates an empty raw-state store.
func NewStore() *Store {
	return &Store{data: make(map[string]string)}
}

// Get returns the value for key and whether the key is present.
func (s *Store) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

// Set records a key/value pair. It returns true when the stored value
// actually changed, so callers can skip recomputes for no-op deltas. An empty
// value deletes the key; that is how the feed retracts state.
func (s *Store) Set(key, value string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, existed := s.data[key]
	if value == "" {
		if !existed {
			return false
		}
		delete(s.data, key)
		return true
	}
	if existed && old == value {
		return false
	}
	s.data[key] = value
	return true
}

// Scan calls fn for every key/value pair until fn returns false.
func (s *Store) Scan(fn func(key, value string) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for k, v := range s.data {
		if !fn(k, v) {
			return
		}
	}
}

// ScanPrefix calls fn for every pair whose key starts with prefix.
func (s *Store) ScanPrefix(prefix string, fn func(key, value string) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for k, v := range s.data {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if !fn(k, v) {
			return
		}
	}
}

// Len returns the number of keys currently held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
