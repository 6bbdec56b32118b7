package authclient

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"regexp"
)

// RevokeFilter is a request-time gate over the revocation tracker: it
// re-verifies the caller's bearer token, revocation included, without
// repeating the code exchange.
type RevokeFilter struct {
	client *Client
}

// NewRevokeFilter creates a filter bound to the given client.
func NewRevokeFilter(client *Client) *RevokeFilter {
	return &RevokeFilter{client: client}
}

// Allow reports whether the request carrying rawToken may proceed.
// Unauthenticated callers (no token) are out of scope for this filter
// and pass; a token passes only if it verifies, is not revoked and names
// a subject.
func (f *RevokeFilter) Allow(ctx context.Context, rawToken string) bool {
	if rawToken == "" {
		return true
	}

	payload, err := f.client.verifier.Verify(ctx, rawToken, true)
	if err != nil {
		return false
	}

	return payload.Subject != ""
}

var basicAuthPattern = regexp.MustCompile(`^Basic\s+(.*?)$`)

// BasicAuthCheck verifies an Authorization header against resource
// server credentials using a constant-time comparison. It returns false
// for a missing or malformed header.
func BasicAuthCheck(authHeader, clientRSID, clientRSSecret string) bool {
	matches := basicAuthPattern.FindStringSubmatch(authHeader)
	if matches == nil {
		return false
	}

	expected := base64.StdEncoding.EncodeToString([]byte(clientRSID + ":" + clientRSSecret))

	return subtle.ConstantTimeCompare([]byte(matches[1]), []byte(expected)) == 1
}
