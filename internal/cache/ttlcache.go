// Package cache provides a generic keyed store with per-record expiry.
// Expired records are kept until overwritten or invalidated: the caller
// decides whether a stale value is still acceptable (it is, as a
// last-resort fallback while offline).
package cache

import (
	"sync"
	"time"
)

// Record holds one cached value with its expiry window.
type Record[T any] struct {
	Value     T
	CreatedAt time.Time
	TTL       time.Duration
}

// Remaining returns the record's remaining time-to-live at now, floored
// at zero.
func (r Record[T]) Remaining(now time.Time) time.Duration {
	rem := r.TTL - now.Sub(r.CreatedAt)
	if rem < 0 {
		return 0
	}
	return rem
}

// Expired reports whether the record's TTL has fully elapsed at now.
func (r Record[T]) Expired(now time.Time) bool {
	return r.Remaining(now) == 0
}

// Store is a concurrency-safe keyed record store. Reads and writes on
// different keys never interfere; writes on the same key are
// last-write-wins under the lock.
type Store[T any] struct {
	mu      sync.RWMutex
	records map[string]Record[T]
	now     func() time.Time
}

// New creates an empty Store using the wall clock.
func New[T any]() *Store[T] {
	return NewWithClock[T](time.Now)
}

// NewWithClock creates an empty Store with an injected clock.
func NewWithClock[T any](now func() time.Time) *Store[T] {
	return &Store[T]{
		records: make(map[string]Record[T]),
		now:     now,
	}
}

// Get returns the record for key regardless of expiry state. The second
// return is false when the key is absent.
func (s *Store[T]) Get(key string) (Record[T], bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[key]
	return rec, ok
}

// Set stores value under key with the given TTL, overwriting any
// existing record and resetting its creation time.
func (s *Store[T]) Set(key string, value T, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[key] = Record[T]{
		Value:     value,
		CreatedAt: s.now(),
		TTL:       ttl,
	}
}

// RemainingTTL returns the remaining time-to-live for key: zero when the
// key is absent or its record has expired.
func (s *Store[T]) RemainingTTL(key string) time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[key]
	if !ok {
		return 0
	}
	return rec.Remaining(s.now())
}

// Invalidate removes the record for key ahead of its expiry. Used after
// a destructive remote mutation so the next read re-fetches.
func (s *Store[T]) Invalidate(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, key)
}

// Len returns the number of live records, expired ones included.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.records)
}

// Key builds the canonical cache key for a collection and owner. All
// callers must use this convention; diverging from it risks key
// collisions across collections.
func Key(collection, ownerID string) string {
	return collection + "_" + ownerID
}
