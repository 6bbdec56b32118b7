package authclient

import "errors"

var (
	// ErrInvalidConfiguration indicates the client configuration is invalid.
	ErrInvalidConfiguration = errors.New("authclient: invalid configuration")

	// ErrInvalidState indicates the state parameter on an authentication
	// callback is missing or does not match an issued authorization request.
	ErrInvalidState = errors.New("authclient: invalid auth state parameter")

	// ErrProtocolError indicates the provider's token endpoint returned a
	// non-success response or a body that is not a token response.
	ErrProtocolError = errors.New("authclient: token endpoint protocol error")

	// ErrKeyFetch indicates the JWKS endpoint is unreachable or returned an
	// unparsable key set.
	ErrKeyFetch = errors.New("authclient: jwks fetch failed")

	// ErrInvalidToken indicates the token is malformed, uses a disallowed
	// algorithm, has an invalid signature, or is outside its validity window.
	ErrInvalidToken = errors.New("authclient: invalid token")

	// ErrTokenRevoked indicates the token verified correctly but its subject
	// has an active revocation record.
	ErrTokenRevoked = errors.New("authclient: token revoked")

	// ErrUnauthorized indicates the user-info endpoint rejected the access
	// token, typically because the upstream session expired.
	ErrUnauthorized = errors.New("authclient: unauthorized")
)
