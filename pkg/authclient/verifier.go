package authclient

import (
	"context"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// cryptoAlg is the only signature algorithm accepted on provider tokens.
// Anything else, "none" included, is rejected outright.
const cryptoAlg = "RS256"

// Verifier validates provider-signed JWTs and decodes their claims.
type Verifier struct {
	config      *Config
	keys        *KeyStore
	revocations *RevocationTracker
}

// newVerifier creates a verifier over the given key store and
// revocation tracker.
func newVerifier(config *Config, keys *KeyStore, revocations *RevocationTracker) *Verifier {
	return &Verifier{
		config:      config,
		keys:        keys,
		revocations: revocations,
	}
}

// Verify checks the token's signature against the current key set and
// its time claims against the configured leeway, then decodes the
// payload. With checkRevocation set, the decoded subject is looked up in
// the revocation tracker and an active record fails the verification
// with ErrTokenRevoked; call sites handling freshly minted tokens may
// skip that lookup.
//
// Signature, algorithm and time failures return ErrInvalidToken. A key
// set that cannot be obtained returns ErrKeyFetch: that is an
// authentication failure, not a pass.
func (v *Verifier) Verify(ctx context.Context, rawToken string, checkRevocation bool) (*TokenPayload, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, fmt.Errorf("%w: missing token", ErrInvalidToken)
	}

	kf, err := v.keys.Keyfunc(ctx)
	if err != nil {
		return nil, err
	}

	token, err := jwt.Parse(rawToken, kf.Keyfunc,
		jwt.WithValidMethods([]string{cryptoAlg}),
		jwt.WithLeeway(v.config.Leeway),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected claims type", ErrInvalidToken)
	}

	payload := payloadFromClaims(claims)

	if checkRevocation && v.revocations.IsRevoked(ctx, payload) {
		return nil, ErrTokenRevoked
	}

	return payload, nil
}

// unverifiedSubject decodes a token without verifying it and returns its
// sub claim. Only for side effects that need to name a subject, never
// for trust decisions.
func unverifiedSubject(rawToken string) string {
	token, _, err := new(jwt.Parser).ParseUnverified(rawToken, jwt.MapClaims{})
	if err != nil {
		return ""
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return ""
	}

	subject, _ := claims["sub"].(string)
	return subject
}
