package ratelimit

import (
	"sync"
	"sync/atomic"
	"time"
)

// memoryStore is the default per-process Store. A read-mostly outer lock
// guards the key map; each entry carries its own mutex so updates for the
// same key serialize while different keys proceed in parallel.
type memoryStore struct {
	mu      sync.RWMutex
	entries map[string]*clientEntry

	cleanupInterval time.Duration
	lastCleanup     atomic.Int64 // unix nanos
}

type clientEntry struct {
	mu       sync.Mutex
	times    []time.Time // in-window request timestamps, oldest first
	lastSeen time.Time
}

func newMemoryStore(cleanupInterval time.Duration) *memoryStore {
	s := &memoryStore{
		entries:         make(map[string]*clientEntry),
		cleanupInterval: cleanupInterval,
	}
	s.lastCleanup.Store(time.Now().UnixNano())
	return s
}

func (s *memoryStore) entry(key string) *clientEntry {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if ok {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok = s.entries[key]; ok {
		return e
	}
	e = &clientEntry{}
	s.entries[key] = e
	return e
}

// Take implements Store.
func (s *memoryStore) Take(key string, now time.Time, window time.Duration, limit int) Decision {
	s.maybeSweep(now, window)

	e := s.entry(key)
	e.mu.Lock()
	defer e.mu.Unlock()

	e.prune(now, window)
	e.lastSeen = now

	if len(e.times) >= limit {
		oldest := e.times[0]
		return Decision{
			Allowed:    false,
			RetryAfter: oldest.Add(window).Sub(now),
			Remaining:  0,
		}
	}

	e.times = append(e.times, now)
	return Decision{Allowed: true, Remaining: limit - len(e.times)}
}

// Status implements Store.
func (s *memoryStore) Status(key string, now time.Time, window time.Duration, limit int) Status {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return Status{Remaining: limit, ResetAt: now}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.prune(now, window)

	st := Status{
		Requests:  len(e.times),
		Remaining: max(0, limit-len(e.times)),
		ResetAt:   now,
	}
	if len(e.times) > 0 {
		st.ResetAt = e.times[0].Add(window)
	}
	return st
}

// Reset implements Store.
func (s *memoryStore) Reset(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// Sweep implements Store.
func (s *memoryStore) Sweep(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, e := range s.entries {
		e.mu.Lock()
		idle := e.lastSeen.Before(cutoff)
		e.mu.Unlock()
		if idle {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// maybeSweep opportunistically drops clients idle for more than twice the
// window, at most once per cleanup interval.
func (s *memoryStore) maybeSweep(now time.Time, window time.Duration) {
	last := s.lastCleanup.Load()
	if now.Sub(time.Unix(0, last)) < s.cleanupInterval {
		return
	}
	if !s.lastCleanup.CompareAndSwap(last, now.UnixNano()) {
		return
	}
	s.Sweep(now.Add(-2 * window))
}

// prune drops timestamps that have aged out of the trailing window. Caller
// holds e.mu.
func (e *clientEntry) prune(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)
	i := 0
	for i < len(e.times) && !e.times[i].After(cutoff) {
		i++
	}
	if i > 0 {
		e.times = append(e.times[:0], e.times[i:]...)
	}
}
