package authclient

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token represents an issued token set and its metadata. A Token is
// replaced wholesale on refresh, never mutated in place.
type Token struct {
	// AccessToken is the bearer access token.
	AccessToken string

	// TokenType is the type of token (usually "Bearer").
	TokenType string

	// RefreshToken is used to obtain new access tokens (optional).
	RefreshToken string

	// IDToken is the signed identity token (optional).
	IDToken string

	// Params holds the raw token endpoint response parameters.
	Params map[string]any

	// IssuedAt is when the token response was received.
	IssuedAt time.Time

	// Expiry is when the access token expires.
	Expiry time.Time

	// Payload is the verified ID token payload, when an ID token was
	// returned and verified.
	Payload *TokenPayload
}

// Valid returns true if the token is not expired.
func (t *Token) Valid() bool {
	return !t.Expired()
}

// Expired returns true if the token has expired.
func (t *Token) Expired() bool {
	if t.Expiry.IsZero() {
		return false
	}
	return time.Now().After(t.Expiry)
}

// ExpiresIn returns the duration until the token expires.
// Returns 0 if the token is already expired or has no expiry.
func (t *Token) ExpiresIn() time.Duration {
	if t.Expiry.IsZero() {
		return 0
	}
	d := time.Until(t.Expiry)
	if d < 0 {
		return 0
	}
	return d
}

// TokenPayload holds the decoded claims of a verified token. It is
// recomputed on every verification and never persisted on its own.
//
// The provider uses short claim names; they map as follows:
// scp→Scopes, sub→Subject, clm→Claims, iss→Issuer, exp→ExpireTime,
// uip→UserInfoProfile, cid→ClientID, sid→SessionID. Claims the mapping
// does not know about are kept in Extra.
type TokenPayload struct {
	// Subject is the subject identifier (typically the user ID).
	Subject string

	// Scopes are the scopes granted to this token.
	Scopes []string

	// Claims carries the provider's consented-claims object.
	Claims map[string]any

	// Issuer is the token issuer.
	Issuer string

	// ExpireTime is when the token expires.
	ExpireTime time.Time

	// UserInfoProfile carries profile data embedded in the token.
	UserInfoProfile map[string]any

	// ClientID is the client the token was issued to.
	ClientID string

	// SessionID is the provider-issued session identifier.
	SessionID string

	// Extra contains claims not mapped to the fields above.
	Extra map[string]any
}

// payloadFromClaims decodes provider claims into a TokenPayload. Missing
// claims are left at their zero value so version skew in the provider's
// claim set is tolerated.
func payloadFromClaims(claims jwt.MapClaims) *TokenPayload {
	p := &TokenPayload{
		Extra: make(map[string]any),
	}

	if sub, ok := claims["sub"].(string); ok {
		p.Subject = sub
	}

	// scp can be a space-separated string or an array
	if scp, ok := claims["scp"].(string); ok {
		p.Scopes = splitScopes(scp)
	} else if scp, ok := claims["scp"].([]any); ok {
		for _, s := range scp {
			if str, ok := s.(string); ok {
				p.Scopes = append(p.Scopes, str)
			}
		}
	}

	if clm, ok := claims["clm"].(map[string]any); ok {
		p.Claims = clm
	}

	if iss, ok := claims["iss"].(string); ok {
		p.Issuer = iss
	}

	if exp, ok := claims["exp"].(float64); ok {
		p.ExpireTime = time.Unix(int64(exp), 0)
	}

	if uip, ok := claims["uip"].(map[string]any); ok {
		p.UserInfoProfile = uip
	}

	if cid, ok := claims["cid"].(string); ok {
		p.ClientID = cid
	}

	if sid, ok := claims["sid"].(string); ok {
		p.SessionID = sid
	}

	mapped := map[string]bool{
		"scp": true, "sub": true, "clm": true, "iss": true,
		"exp": true, "uip": true, "cid": true, "sid": true,
	}

	for key, value := range claims {
		if !mapped[key] {
			p.Extra[key] = value
		}
	}

	return p
}

// splitScopes splits a space-separated scope string.
func splitScopes(scope string) []string {
	var scopes []string
	var current string
	for _, r := range scope {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			if current != "" {
				scopes = append(scopes, current)
				current = ""
			}
		} else {
			current += string(r)
		}
	}
	if current != "" {
		scopes = append(scopes, current)
	}
	return scopes
}
