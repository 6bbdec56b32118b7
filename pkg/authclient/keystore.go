package authclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/rs/zerolog"

	"github.com/fproject/go-authclient/pkg/cache"
)

// KeyStore fetches the provider's JSON Web Key Set and caches the raw
// document through the cache port. Keys are indexed by key id, so the
// verifier can select the signing key named by a token's header.
type KeyStore struct {
	jwksURL    string
	ttl        time.Duration
	cache      cache.Cache
	httpClient HTTPClient
	logger     zerolog.Logger

	warnOnce sync.Once
}

// newKeyStore creates a key store for the configured JWKS endpoint.
func newKeyStore(config *Config, httpClient HTTPClient) *KeyStore {
	return &KeyStore{
		jwksURL:    config.JWKSURL,
		ttl:        config.JWKSCacheTTL,
		cache:      config.Cache,
		httpClient: httpClient,
		logger:     config.Logger,
	}
}

// Keyfunc returns the current key set as a JWT key resolver. A cached,
// unexpired key set is served without a network call; otherwise the JWKS
// endpoint is fetched and the raw document re-cached with the configured
// TTL. An unreachable endpoint or unparsable body fails with ErrKeyFetch,
// never an empty key set.
func (s *KeyStore) Keyfunc(ctx context.Context) (keyfunc.Keyfunc, error) {
	cacheKey := "jwk:" + hashKey(s.jwksURL)

	if s.cache != nil {
		raw, ok, err := s.cache.Get(ctx, cacheKey)
		if err != nil {
			s.logger.Warn().Err(err).Msg("jwks cache read failed, fetching key set")
		} else if ok {
			kf, err := keyfunc.NewJWKSetJSON(json.RawMessage(raw))
			if err == nil {
				return kf, nil
			}
			// A corrupt cache entry is dropped and refetched.
			s.logger.Warn().Err(err).Msg("cached jwks is unparsable, refetching")
			_ = s.cache.Delete(ctx, cacheKey)
		}
	} else {
		s.warnOnce.Do(func() {
			s.logger.Warn().Msg("no cache configured, jwks is fetched on every verification")
		})
	}

	raw, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}

	kf, err := keyfunc.NewJWKSetJSON(json.RawMessage(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: unparsable key set: %v", ErrKeyFetch, err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, raw, s.ttl); err != nil {
			s.logger.Warn().Err(err).Msg("jwks cache write failed")
		}
	}

	return kf, nil
}

// fetch retrieves the raw JWKS document from the provider.
func (s *KeyStore) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.jwksURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyFetch, err)
	}

	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w: status %d: %s", ErrKeyFetch, resp.StatusCode, string(body))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyFetch, err)
	}

	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty response body", ErrKeyFetch)
	}

	return raw, nil
}
