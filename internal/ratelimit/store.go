package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// MemoryStore is a mutex-guarded in-process CounterStore with TTL
// expiration. Entries are evicted lazily on read and swept opportunistically
// on write, which is enough for the small keyspace of (scope, client) pairs.
type MemoryStore struct {
	clock clockwork.Clock

	mu      sync.Mutex
	entries map[string]memEntry
}

type memEntry struct {
	count       int
	windowStart time.Time
	expiresAt   time.Time
}

// NewMemoryStore creates a MemoryStore. Pass a nil clock for real time.
func NewMemoryStore(clock clockwork.Clock) *MemoryStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryStore{clock: clock, entries: make(map[string]memEntry)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (int, time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return 0, time.Time{}, false, nil
	}
	if !s.clock.Now().Before(e.expiresAt) {
		delete(s.entries, key)
		return 0, time.Time{}, false, nil
	}
	return e.count, e.windowStart, true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, count int, windowStart time.Time, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	s.entries[key] = memEntry{count: count, windowStart: windowStart, expiresAt: now.Add(ttl)}

	// Opportunistic sweep keeps the map from accumulating dead keys.
	if len(s.entries) > 1024 {
		for k, e := range s.entries {
			if !now.Before(e.expiresAt) {
				delete(s.entries, k)
			}
		}
	}
	return nil
}
