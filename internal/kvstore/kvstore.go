// Package kvstore provides the narrow key-value capability shared by the
// rate limiter and the portfolio cache. The interface is small on purpose:
// get, set with TTL, and an atomic windowed increment, which both drivers
// (process memory and Redis) provide with the same semantics.
package kvstore

import (
	"context"
	"sync"
	"time"
)

// Store is the key-value capability.
type Store interface {
	// Get returns the value for key, or ok=false when absent or expired.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// SetWithTTL stores value under key, expiring after ttl.
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Incr atomically increments the counter at key, setting expiry to ttl
	// on first increment. Returns the post-increment count and the time the
	// window resets.
	Incr(ctx context.Context, key string, ttl time.Duration) (count int64, resetAt time.Time, err error)
}

type memoryEntry struct {
	value     []byte
	count     int64
	expiresAt time.Time
}

// Memory is an in-process Store. Values are immutable after write, so the
// only synchronization needed is around the map itself.
type Memory struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	now     func() time.Time
}

// NewMemory creates an in-process store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]*memoryEntry), now: time.Now}
}

// NewMemoryWithClock creates an in-process store with an injected clock.
func NewMemoryWithClock(now func() time.Time) *Memory {
	return &Memory{entries: make(map[string]*memoryEntry), now: now}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok || m.now().After(e.expiresAt) {
		delete(m.entries, key)
		return nil, false, nil
	}
	return e.value, true, nil
}

func (m *Memory) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = &memoryEntry{value: value, expiresAt: m.now().Add(ttl)}
	return nil
}

func (m *Memory) Incr(_ context.Context, key string, ttl time.Duration) (int64, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	e, ok := m.entries[key]
	if !ok || now.After(e.expiresAt) {
		e = &memoryEntry{expiresAt: now.Add(ttl)}
		m.entries[key] = e
	}
	e.count++
	return e.count, e.expiresAt, nil
}
