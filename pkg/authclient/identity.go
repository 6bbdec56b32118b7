package authclient

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/fproject/go-authclient/pkg/cache"
)

// sessionKeyPrefix keys session bindings by subject id.
const sessionKeyPrefix = "session:sub:"

// defaultSessionTTL bounds session bindings for identities that carry no
// token expiry.
const defaultSessionTTL = 24 * time.Hour

// Identity is the application-facing view of a verified end user.
type Identity struct {
	// Subject is the user id registered at the identity provider.
	Subject string `json:"sub"`

	// Name is the end user's full name in displayable form.
	Name string `json:"name,omitempty"`

	// Nickname is the casual name of the end user.
	Nickname string `json:"nickname,omitempty"`

	// Email is the end user's preferred e-mail address.
	Email string `json:"email,omitempty"`

	// EmailVerified is true if the provider affirmed control of Email.
	EmailVerified bool `json:"email_verified,omitempty"`

	// SessionID is the session id issued by the provider.
	SessionID string `json:"sid,omitempty"`

	// Locale is a BCP47 language tag, e.g. "en-US".
	Locale string `json:"locale,omitempty"`

	// ZoneInfo is a zoneinfo time zone name, e.g. "Europe/Paris".
	ZoneInfo string `json:"zoneinfo,omitempty"`

	// ExpireTime is the expiry of the token this identity came from.
	ExpireTime time.Time `json:"expire_time,omitempty"`

	// Extra preserves claims not mapped to the fields above, so nothing
	// is lost across provider schema changes.
	Extra map[string]any `json:"extra,omitempty"`
}

// IdentityFromClaims copies known claim names into an Identity and
// preserves the rest in Extra.
func IdentityFromClaims(claims map[string]any) *Identity {
	ident := &Identity{}

	if sub, ok := claims["sub"].(string); ok {
		ident.Subject = sub
	}
	if name, ok := claims["name"].(string); ok {
		ident.Name = name
	}
	if nickname, ok := claims["nickname"].(string); ok {
		ident.Nickname = nickname
	}
	if email, ok := claims["email"].(string); ok {
		ident.Email = email
	}
	if verified, ok := claims["email_verified"].(bool); ok {
		ident.EmailVerified = verified
	}
	if sid, ok := claims["sid"].(string); ok {
		ident.SessionID = sid
	}
	if locale, ok := claims["locale"].(string); ok {
		ident.Locale = locale
	}
	if zoneinfo, ok := claims["zoneinfo"].(string); ok {
		ident.ZoneInfo = zoneinfo
	}

	known := map[string]bool{
		"sub": true, "name": true, "nickname": true, "email": true,
		"email_verified": true, "sid": true, "locale": true, "zoneinfo": true,
	}

	for key, value := range claims {
		if known[key] {
			continue
		}
		if ident.Extra == nil {
			ident.Extra = make(map[string]any)
		}
		ident.Extra[key] = value
	}

	return ident
}

// identityFromPayload builds an Identity from a verified token payload.
// Profile claims embedded in the token seed the identity; the payload's
// own subject, session id and expiry take precedence.
func identityFromPayload(p *TokenPayload) *Identity {
	var ident *Identity
	if p.UserInfoProfile != nil {
		ident = IdentityFromClaims(p.UserInfoProfile)
	} else {
		ident = &Identity{}
	}

	if p.Subject != "" {
		ident.Subject = p.Subject
	}
	if p.SessionID != "" {
		ident.SessionID = p.SessionID
	}
	ident.ExpireTime = p.ExpireTime

	return ident
}

// SessionStore binds identities to their subject id through the cache
// port. Binding is decoupled from verification: bearer-token flows
// verify without a session, and browser flows create sessions lazily
// from a verified token.
type SessionStore struct {
	cache  cache.Cache
	logger zerolog.Logger
}

// newSessionStore creates a session store over the given cache.
func newSessionStore(c cache.Cache, logger zerolog.Logger) *SessionStore {
	return &SessionStore{cache: c, logger: logger}
}

// Bind stores the identity keyed by its subject id. The binding lives
// until the identity's token expiry, or a day for identities without one.
func (s *SessionStore) Bind(ctx context.Context, ident *Identity) error {
	if ident == nil || ident.Subject == "" {
		return errors.New("authclient: identity has no subject")
	}

	encoded, err := json.Marshal(ident)
	if err != nil {
		return err
	}

	ttl := defaultSessionTTL
	if !ident.ExpireTime.IsZero() {
		if remaining := time.Until(ident.ExpireTime); remaining > 0 {
			ttl = remaining
		}
	}

	return s.cache.Set(ctx, sessionKeyPrefix+ident.Subject, encoded, ttl)
}

// Lookup returns the identity bound to the subject id, if any.
func (s *SessionStore) Lookup(ctx context.Context, subject string) (*Identity, bool) {
	if subject == "" {
		return nil, false
	}

	encoded, ok, err := s.cache.Get(ctx, sessionKeyPrefix+subject)
	if err != nil {
		s.logger.Warn().Err(err).Str("sub", subject).Msg("session lookup degraded by cache error")
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var ident Identity
	if err := json.Unmarshal(encoded, &ident); err != nil {
		s.logger.Warn().Err(err).Str("sub", subject).Msg("stored session is unparsable")
		return nil, false
	}

	return &ident, true
}

// Unbind removes the session binding for the subject id.
func (s *SessionStore) Unbind(ctx context.Context, subject string) error {
	if subject == "" {
		return nil
	}
	return s.cache.Delete(ctx, sessionKeyPrefix+subject)
}

// ResolveBearer verifies a bearer token, revocation included, and maps
// it onto an Identity. An invalid or revoked token resolves to no
// identity rather than an error, so callers enforcing authentication can
// turn the nil into their own access-denied response. Failures to obtain
// the key set still propagate: they say nothing about the token.
func (c *Client) ResolveBearer(ctx context.Context, rawToken string) (*Identity, error) {
	payload, err := c.verifier.Verify(ctx, rawToken, true)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrTokenRevoked) {
			return nil, nil
		}
		return nil, err
	}

	if payload.Subject == "" {
		return nil, nil
	}

	return identityFromPayload(payload), nil
}
