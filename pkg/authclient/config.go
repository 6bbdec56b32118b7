package authclient

import (
	"crypto/tls"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/fproject/go-authclient/pkg/cache"
)

// Config contains the complete auth client configuration. It is treated
// as immutable after New returns.
type Config struct {
	// ClientID is the OAuth client identifier.
	ClientID string

	// ClientSecret is the OAuth client secret, sent as HTTP basic
	// credentials on token endpoint calls.
	ClientSecret string

	// AuthURL is the provider's authorization endpoint.
	AuthURL string

	// TokenURL is the provider's token endpoint.
	TokenURL string

	// JWKSURL is the provider's JSON Web Key Set endpoint.
	JWKSURL string

	// UserInfoURL is the provider's user-info endpoint (optional).
	UserInfoURL string

	// LogoutURL is the provider's logout notification endpoint (optional).
	LogoutURL string

	// RedirectURL is the callback URL registered with the provider.
	RedirectURL string

	// Scopes are the OAuth scopes to request.
	Scopes []string

	// AttributeNames are the user attribute names requested from the
	// provider. Defaults to name, profile and email.
	AttributeNames []string

	// Leeway is the permitted clock skew applied to time-based claim
	// checks. Default: 60 seconds.
	Leeway time.Duration

	// JWKSCacheTTL determines how long a fetched key set is served from
	// cache. Default: 24 hours.
	JWKSCacheTTL time.Duration

	// StateLifetime bounds how long an issued authorization request stays
	// redeemable. Default: 10 minutes.
	StateLifetime time.Duration

	// Timeout is the HTTP client timeout for provider requests.
	// Default: 30 seconds.
	Timeout time.Duration

	// TLSConfig allows custom TLS configuration.
	TLSConfig *tls.Config

	// InsecureSkipVerify disables TLS certificate verification (not
	// recommended).
	InsecureSkipVerify bool

	// Cache is the shared store for JWKS documents, user-info responses,
	// revocation records and session bindings. When nil, JWKS and
	// user-info calls always fetch, revocation checks always report
	// false, and sessions are held in process memory.
	Cache cache.Cache

	// Logger receives observability events (degraded cache, swallowed
	// logout failures, key refetches). Defaults to a disabled logger.
	Logger zerolog.Logger
}

// Validate checks the configuration and applies defaults.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalidConfiguration)
	}

	if strings.TrimSpace(c.ClientID) == "" {
		return fmt.Errorf("%w: client_id is required", ErrInvalidConfiguration)
	}

	if strings.TrimSpace(c.TokenURL) == "" {
		return fmt.Errorf("%w: token_url is required", ErrInvalidConfiguration)
	}

	if strings.TrimSpace(c.AuthURL) == "" {
		return fmt.Errorf("%w: auth_url is required", ErrInvalidConfiguration)
	}

	if strings.TrimSpace(c.JWKSURL) == "" {
		return fmt.Errorf("%w: jwks_url is required", ErrInvalidConfiguration)
	}

	for _, u := range []string{c.AuthURL, c.TokenURL, c.JWKSURL, c.UserInfoURL, c.LogoutURL, c.RedirectURL} {
		if u == "" {
			continue
		}
		parsed, err := url.Parse(u)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("%w: malformed endpoint url %q", ErrInvalidConfiguration, u)
		}
	}

	if len(c.AttributeNames) == 0 {
		c.AttributeNames = []string{"name", "profile", "email"}
	}

	if c.Leeway <= 0 {
		c.Leeway = 60 * time.Second
	}

	if c.JWKSCacheTTL <= 0 {
		c.JWKSCacheTTL = 24 * time.Hour
	}

	if c.StateLifetime <= 0 {
		c.StateLifetime = 10 * time.Minute
	}

	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}

	return nil
}
