package authclient

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// AuthorizationRequest is a pending authorization round-trip: the state
// nonce issued to the provider and the opaque context payload to echo
// back through the redirect. It lives until the code exchange consumes
// it or its lifetime elapses.
type AuthorizationRequest struct {
	State       string
	ContextData string
	CreatedAt   time.Time
}

// stateEntry is a stored pending request with its expiration time.
type stateEntry struct {
	contextData string
	createdAt   time.Time
	expiresAt   time.Time
}

// stateStore tracks issued authorization requests by their state nonce.
// It is thread-safe and uses in-memory storage with automatic cleanup.
type stateStore struct {
	mu      sync.Mutex
	states  map[string]*stateEntry
	ttl     time.Duration
	cleanup *time.Ticker
	done    chan struct{}
	once    sync.Once
}

// newStateStore creates a state store with the specified lifetime.
func newStateStore(ttl time.Duration) *stateStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	ss := &stateStore{
		states:  make(map[string]*stateEntry),
		ttl:     ttl,
		cleanup: time.NewTicker(ttl / 2),
		done:    make(chan struct{}),
	}

	go ss.cleanupLoop()

	return ss
}

// Issue generates a state nonce, records the pending request and returns
// it for inclusion in the authorization URL.
func (ss *stateStore) Issue(contextData string) AuthorizationRequest {
	now := time.Now()
	req := AuthorizationRequest{
		State:       uuid.NewString(),
		ContextData: contextData,
		CreatedAt:   now,
	}

	ss.mu.Lock()
	defer ss.mu.Unlock()

	ss.states[req.State] = &stateEntry{
		contextData: contextData,
		createdAt:   now,
		expiresAt:   now.Add(ss.ttl),
	}

	return req
}

// Consume validates a callback state against the issued requests and
// removes it. States are single-use: a second Consume with the same
// value fails, which blocks replayed callbacks.
func (ss *stateStore) Consume(state string) (contextData string, ok bool) {
	if state == "" {
		return "", false
	}

	ss.mu.Lock()
	defer ss.mu.Unlock()

	entry, exists := ss.states[state]
	if !exists {
		return "", false
	}

	delete(ss.states, state)

	if time.Now().After(entry.expiresAt) {
		return "", false
	}

	return entry.contextData, true
}

// cleanupLoop periodically removes expired pending requests.
func (ss *stateStore) cleanupLoop() {
	for {
		select {
		case <-ss.cleanup.C:
			ss.removeExpired()
		case <-ss.done:
			return
		}
	}
}

// removeExpired drops all expired entries.
func (ss *stateStore) removeExpired() {
	now := time.Now()

	ss.mu.Lock()
	defer ss.mu.Unlock()

	for state, entry := range ss.states {
		if now.After(entry.expiresAt) {
			delete(ss.states, state)
		}
	}
}

// Count returns the number of pending requests (for testing).
func (ss *stateStore) Count() int {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return len(ss.states)
}

// Close stops the cleanup goroutine.
func (ss *stateStore) Close() {
	ss.once.Do(func() {
		ss.cleanup.Stop()
		close(ss.done)
	})
}
