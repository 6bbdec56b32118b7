package authclient

import "sync"

// The default client slot exists for components that run outside the
// request pipeline, such as framework filter hooks, and cannot receive a
// Client by injection. It is set once at startup, after configuration is
// loaded, and read-only thereafter.

var (
	defaultMu     sync.RWMutex
	defaultClient *Client
)

// SetDefault installs the process-wide default client.
func SetDefault(client *Client) {
	defaultMu.Lock()
	defaultClient = client
	defaultMu.Unlock()
}

// Default returns the process-wide default client, or nil if none was
// installed. Prefer passing a *Client explicitly; this accessor is for
// call sites with no injection seam.
func Default() *Client {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultClient
}
