// Package authclient implements an OAuth 2.0 / OpenID Connect relying
// party: it authenticates end users against a remote identity provider,
// verifies the provider's signed tokens, tracks revocation, and exposes
// a verified identity to the embedding application.
//
// # Flow
//
// A browser login starts with an authorization URL, returns through the
// callback with a code, and ends with a verified token and a bound
// identity:
//
//	client, err := authclient.New(&authclient.Config{
//	    ClientID:     "my-app",
//	    ClientSecret: "secret",
//	    AuthURL:      "https://idp.example.com/oauth2/auth",
//	    TokenURL:     "https://idp.example.com/oauth2/token",
//	    JWKSURL:      "https://idp.example.com/oauth2/jwk",
//	    UserInfoURL:  "https://idp.example.com/oauth2/userinfo",
//	    LogoutURL:    "https://idp.example.com/oauth2/logout",
//	    RedirectURL:  "https://my-app.example.com/auth/callback",
//	    Scopes:       []string{"openid", "profile"},
//	    Cache:        redisCache,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Redirect the user here to log in.
//	loginURL := client.BuildAuthorizationURL(contextJSON, "en-US")
//
//	// On the callback:
//	token, err := client.ExchangeCode(ctx, code, authclient.CallbackParams{
//	    State:       state,
//	    ContextData: contextJSON,
//	})
//
// Subsequent requests presenting a bearer token re-enter at the
// verifier without repeating the exchange:
//
//	ident, err := client.ResolveBearer(ctx, rawToken)
//	if err != nil {
//	    // key set unavailable; fail the request
//	}
//	if ident == nil {
//	    // invalid or revoked token; deny access
//	}
//
// # Verification
//
// Tokens are verified locally: signatures against the provider's JWKS
// (RS256 only), time claims with a configurable leeway, and optionally a
// revocation lookup. The key set is cached for 24 hours through the
// cache port and refetched when stale.
//
// # Caching and degradation
//
// One cache.Cache instance backs JWKS documents, user-info responses,
// revocation records and session bindings. The engine runs without one:
// JWKS and user-info fall back to always-fetch and revocation checks to
// always-false. Both degradations are logged, since the latter is a
// security trade-off the operator should see.
//
// # Errors
//
// Failures are sentinel errors matched with errors.Is: ErrInvalidState,
// ErrProtocolError, ErrKeyFetch, ErrInvalidToken, ErrTokenRevoked and
// ErrUnauthorized. Exchange and verification failures are never retried
// internally.
package authclient
