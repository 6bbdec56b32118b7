// Package cache provides the key/value store used by the auth client for
// JWKS documents, user-info responses, revocation records and session
// bindings. Implementations must be safe for concurrent use and honor
// per-entry TTLs.
package cache

import (
	"context"
	"sync"
	"time"
)

// Cache is a byte-oriented key/value store with TTL semantics.
type Cache interface {
	// Get returns the value for key. The second return value reports
	// whether an unexpired entry was found.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key. A ttl of zero or less stores the entry
	// without expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes the entry for key. Deleting a missing key is not an
	// error.
	Delete(ctx context.Context, key string) error
}

// memoryEntry is a single stored value with its expiry.
type memoryEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

// Memory is an in-process Cache backed by a map with periodic cleanup of
// expired entries.
type Memory struct {
	mu        sync.RWMutex
	items     map[string]memoryEntry
	stop      chan struct{}
	closeOnce sync.Once
}

// NewMemory creates an in-memory cache. Call Close to stop the cleanup
// goroutine when the cache is no longer needed.
func NewMemory() *Memory {
	m := &Memory{
		items: make(map[string]memoryEntry),
		stop:  make(chan struct{}),
	}

	go m.cleanupLoop()

	return m
}

// Get implements Cache.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	entry, ok := m.items[key]
	m.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}

	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		m.mu.Lock()
		delete(m.items, key)
		m.mu.Unlock()
		return nil, false, nil
	}

	return entry.value, true, nil
}

// Set implements Cache.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}

	m.mu.Lock()
	m.items[key] = entry
	m.mu.Unlock()

	return nil
}

// Delete implements Cache.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()

	return nil
}

// Len returns the number of stored entries, including not-yet-swept
// expired ones.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Close stops the cleanup goroutine.
func (m *Memory) Close() {
	m.closeOnce.Do(func() {
		close(m.stop)
	})
}

// cleanupLoop periodically removes expired entries.
func (m *Memory) cleanupLoop() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.removeExpired()
		case <-m.stop:
			return
		}
	}
}

// removeExpired drops all entries whose expiry has passed.
func (m *Memory) removeExpired() {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	for key, entry := range m.items {
		if !entry.expiresAt.IsZero() && now.After(entry.expiresAt) {
			delete(m.items, key)
		}
	}
}

// Nop is a Cache that stores nothing. Every Get is a miss.
type Nop struct{}

// Get implements Cache.
func (Nop) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

// Set implements Cache.
func (Nop) Set(context.Context, string, []byte, time.Duration) error { return nil }

// Delete implements Cache.
func (Nop) Delete(context.Context, string) error { return nil }
