package authclient

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestRetryTransport_RetriesTransientGetFailures(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := newDefaultHTTPClient(5*time.Second, nil, false)

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	if err != nil {
		t.Fatalf("NewRequest() failed: %v", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do() failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected retries to reach the healthy response, got %d", resp.StatusCode)
	}
	if hits.Load() != 3 {
		t.Errorf("Expected 3 attempts, got %d", hits.Load())
	}
}

func TestRetryTransport_DoesNotRetryPost(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newDefaultHTTPClient(5*time.Second, nil, false)

	req, err := http.NewRequest(http.MethodPost, server.URL, nil)
	if err != nil {
		t.Fatalf("NewRequest() failed: %v", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do() failed: %v", err)
	}
	resp.Body.Close()

	if hits.Load() != 1 {
		t.Errorf("Expected a single attempt for POST, got %d", hits.Load())
	}
}

func TestRetryTransport_DoesNotRetryClientErrors(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer server.Close()

	client := newDefaultHTTPClient(5*time.Second, nil, false)

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	if err != nil {
		t.Fatalf("NewRequest() failed: %v", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do() failed: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 to pass through, got %d", resp.StatusCode)
	}
	if hits.Load() != 1 {
		t.Errorf("Expected a single attempt for 4xx, got %d", hits.Load())
	}
}

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{http.StatusOK, false},
		{http.StatusBadRequest, false},
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
	}

	for _, tc := range tests {
		got := shouldRetry(&http.Response{StatusCode: tc.status})
		if got != tc.want {
			t.Errorf("shouldRetry(%d) = %v, want %v", tc.status, got, tc.want)
		}
	}

	if !shouldRetry(nil) {
		t.Error("shouldRetry(nil) = false, want true")
	}
}

func TestHashKey(t *testing.T) {
	a := hashKey("token-a")
	b := hashKey("token-b")

	if a == b {
		t.Error("Expected distinct inputs to hash differently")
	}
	if a != hashKey("token-a") {
		t.Error("Expected hashKey to be deterministic")
	}
	if len(a) != 40 {
		t.Errorf("Expected a 40-char hex digest, got %d chars", len(a))
	}
}
