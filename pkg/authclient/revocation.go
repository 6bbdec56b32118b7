package authclient

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fproject/go-authclient/pkg/cache"
)

// revokedKeyPrefix keys revocation records by subject, so revoking one
// token revokes every session of that user.
const revokedKeyPrefix = "revoked:sub:"

// RevocationTracker records and checks revoked subjects through the
// cache port. Propagation between instances follows the shared cache, so
// revocation is at-least-eventual rather than immediate.
type RevocationTracker struct {
	cache  cache.Cache
	leeway time.Duration
	logger zerolog.Logger

	warnOnce sync.Once
}

// newRevocationTracker creates a tracker over the configured cache.
func newRevocationTracker(config *Config) *RevocationTracker {
	return &RevocationTracker{
		cache:  config.Cache,
		leeway: config.Leeway,
		logger: config.Logger,
	}
}

// Revoke writes a revocation record for the payload's subject. The
// record's TTL is the token's remaining lifetime plus leeway, clamped at
// zero: an already-expired token writes nothing, and no record outlives
// the window in which its token would still be accepted. A payload
// without an expiry claim is a no-op.
func (r *RevocationTracker) Revoke(ctx context.Context, payload *TokenPayload) error {
	if payload == nil || payload.Subject == "" || payload.ExpireTime.IsZero() {
		return nil
	}

	if r.cache == nil {
		r.warnDegraded()
		return nil
	}

	ttl := time.Until(payload.ExpireTime.Add(r.leeway))
	if ttl <= 0 {
		return nil
	}

	if err := r.cache.Set(ctx, revokedKeyPrefix+payload.Subject, []byte("1"), ttl); err != nil {
		r.logger.Warn().Err(err).Str("sub", payload.Subject).Msg("failed to write revocation record")
		return err
	}

	return nil
}

// IsRevoked reports whether the payload's subject has an active
// revocation record. Absence of a record means "not known revoked", not
// "valid". Cache unavailability degrades to false and is logged, never
// surfaced as an error.
func (r *RevocationTracker) IsRevoked(ctx context.Context, payload *TokenPayload) bool {
	if payload == nil || payload.Subject == "" {
		return false
	}

	if r.cache == nil {
		r.warnDegraded()
		return false
	}

	_, found, err := r.cache.Get(ctx, revokedKeyPrefix+payload.Subject)
	if err != nil {
		r.logger.Warn().Err(err).Str("sub", payload.Subject).Msg("revocation check degraded by cache error")
		return false
	}

	return found
}

func (r *RevocationTracker) warnDegraded() {
	r.warnOnce.Do(func() {
		r.logger.Warn().Msg("no cache configured, revocation checks always report false")
	})
}
