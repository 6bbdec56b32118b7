package authclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fproject/go-authclient/pkg/cache"
)

func newTestKeyStore(t *testing.T, jwksURL string, c cache.Cache, ttl time.Duration) *KeyStore {
	t.Helper()

	config := newTestConfig(jwksURL)
	config.Cache = c
	if err := config.Validate(); err != nil {
		t.Fatalf("Validate() failed: %v", err)
	}
	if ttl > 0 {
		config.JWKSCacheTTL = ttl
	}

	return newKeyStore(config, newDefaultHTTPClient(config.Timeout, nil, false))
}

func TestKeyStore_CachedKeySetSkipsFetch(t *testing.T) {
	privateKey := newTestKey(t)

	var hits atomic.Int32
	jwksServer := newJWKSServer(t, &privateKey.PublicKey, &hits)
	defer jwksServer.Close()

	store := cache.NewMemory()
	defer store.Close()

	keys := newTestKeyStore(t, jwksServer.URL, store, time.Hour)
	ctx := context.Background()

	if _, err := keys.Keyfunc(ctx); err != nil {
		t.Fatalf("First Keyfunc() failed: %v", err)
	}
	if _, err := keys.Keyfunc(ctx); err != nil {
		t.Fatalf("Second Keyfunc() failed: %v", err)
	}

	if hits.Load() != 1 {
		t.Errorf("Expected 1 fetch with a warm cache, got %d", hits.Load())
	}
}

func TestKeyStore_ExpiredEntryRefetched(t *testing.T) {
	privateKey := newTestKey(t)

	var hits atomic.Int32
	jwksServer := newJWKSServer(t, &privateKey.PublicKey, &hits)
	defer jwksServer.Close()

	store := cache.NewMemory()
	defer store.Close()

	keys := newTestKeyStore(t, jwksServer.URL, store, 50*time.Millisecond)
	ctx := context.Background()

	if _, err := keys.Keyfunc(ctx); err != nil {
		t.Fatalf("First Keyfunc() failed: %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	if _, err := keys.Keyfunc(ctx); err != nil {
		t.Fatalf("Keyfunc() after expiry failed: %v", err)
	}

	if hits.Load() != 2 {
		t.Errorf("Expected refetch after cache expiry, got %d fetches", hits.Load())
	}
}

func TestKeyStore_NoCacheFetchesEveryCall(t *testing.T) {
	privateKey := newTestKey(t)

	var hits atomic.Int32
	jwksServer := newJWKSServer(t, &privateKey.PublicKey, &hits)
	defer jwksServer.Close()

	keys := newTestKeyStore(t, jwksServer.URL, nil, 0)
	ctx := context.Background()

	if _, err := keys.Keyfunc(ctx); err != nil {
		t.Fatalf("First Keyfunc() failed: %v", err)
	}
	if _, err := keys.Keyfunc(ctx); err != nil {
		t.Fatalf("Second Keyfunc() failed: %v", err)
	}

	if hits.Load() != 2 {
		t.Errorf("Expected a fetch per call without a cache, got %d", hits.Load())
	}
}

func TestKeyStore_ServerError(t *testing.T) {
	jwksServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer jwksServer.Close()

	keys := newTestKeyStore(t, jwksServer.URL, nil, 0)

	_, err := keys.Keyfunc(context.Background())
	if !errors.Is(err, ErrKeyFetch) {
		t.Errorf("Expected ErrKeyFetch for 5xx response, got %v", err)
	}
}

func TestKeyStore_UnparsableBody(t *testing.T) {
	jwksServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer jwksServer.Close()

	keys := newTestKeyStore(t, jwksServer.URL, nil, 0)

	_, err := keys.Keyfunc(context.Background())
	if !errors.Is(err, ErrKeyFetch) {
		t.Errorf("Expected ErrKeyFetch for unparsable body, got %v", err)
	}
}

func TestKeyStore_Unreachable(t *testing.T) {
	config := newTestConfig("http://127.0.0.1:1/jwk")
	config.Timeout = 500 * time.Millisecond
	if err := config.Validate(); err != nil {
		t.Fatalf("Validate() failed: %v", err)
	}

	keys := newKeyStore(config, newDefaultHTTPClient(config.Timeout, nil, false))

	_, err := keys.Keyfunc(context.Background())
	if !errors.Is(err, ErrKeyFetch) {
		t.Errorf("Expected ErrKeyFetch when endpoint is unreachable, got %v", err)
	}
}

func TestKeyStore_CorruptCacheEntryRefetched(t *testing.T) {
	privateKey := newTestKey(t)

	var hits atomic.Int32
	jwksServer := newJWKSServer(t, &privateKey.PublicKey, &hits)
	defer jwksServer.Close()

	store := cache.NewMemory()
	defer store.Close()

	ctx := context.Background()
	if err := store.Set(ctx, "jwk:"+hashKey(jwksServer.URL), []byte("garbage"), time.Hour); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}

	keys := newTestKeyStore(t, jwksServer.URL, store, time.Hour)

	if _, err := keys.Keyfunc(ctx); err != nil {
		t.Fatalf("Keyfunc() with corrupt cache entry failed: %v", err)
	}

	if hits.Load() != 1 {
		t.Errorf("Expected corrupt entry to trigger a refetch, got %d fetches", hits.Load())
	}
}
