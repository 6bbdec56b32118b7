package authclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/fproject/go-authclient/pkg/cache"
)

// essentialClaim marks a claim as essential in the authorization
// request's claims parameter.
type essentialClaim struct {
	Essential bool `json:"essential"`
}

// authRequestClaims is the fixed claims object sent on every
// authorization request: the provider is asked for the user's project
// groups and extended profile info as essential user-info claims.
type authRequestClaims struct {
	UserInfo map[string]essentialClaim `json:"userInfo"`
}

// CallbackParams are the parameters the provider sends to the
// authentication callback endpoint.
type CallbackParams struct {
	// State is the state nonce echoed back by the provider.
	State string

	// ContextData is the JSON-encoded context payload round-tripped
	// through the authorization request.
	ContextData string
}

// Client is the OAuth2 flow manager: it builds authorization URLs,
// exchanges codes for tokens, refreshes them, fetches user info and
// notifies the provider of logouts. It is safe for concurrent use and
// immutable after construction.
type Client struct {
	config      *Config
	httpClient  HTTPClient
	cache       cache.Cache
	ownedCache  *cache.Memory
	keys        *KeyStore
	revocations *RevocationTracker
	verifier    *Verifier
	sessions    *SessionStore
	states      *stateStore
	oauthCfg    *oauth2.Config
	logger      zerolog.Logger
}

// New creates a configured Client. The configuration is validated and
// defaults applied; see Config for the knobs.
func New(config *Config) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("%w: config is nil", ErrInvalidConfiguration)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	httpClient := newDefaultHTTPClient(config.Timeout, config.TLSConfig, config.InsecureSkipVerify)

	c := &Client{
		config:     config,
		httpClient: httpClient,
		cache:      config.Cache,
		logger:     config.Logger,
		states:     newStateStore(config.StateLifetime),
		oauthCfg: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:  config.AuthURL,
				TokenURL: config.TokenURL,
			},
			Scopes:      config.Scopes,
			RedirectURL: config.RedirectURL,
		},
	}

	// Sessions must work even without a shared cache; fall back to a
	// process-local store so lazily created browser sessions still bind.
	sessionCache := config.Cache
	if sessionCache == nil {
		c.ownedCache = cache.NewMemory()
		sessionCache = c.ownedCache
	}

	c.keys = newKeyStore(config, httpClient)
	c.revocations = newRevocationTracker(config)
	c.verifier = newVerifier(config, c.keys, c.revocations)
	c.sessions = newSessionStore(sessionCache, config.Logger)

	return c, nil
}

// Verifier returns the client's JWT verifier.
func (c *Client) Verifier() *Verifier { return c.verifier }

// Revocations returns the client's revocation tracker.
func (c *Client) Revocations() *RevocationTracker { return c.revocations }

// Sessions returns the client's session store.
func (c *Client) Sessions() *SessionStore { return c.sessions }

// Keys returns the client's JWKS key store.
func (c *Client) Keys() *KeyStore { return c.keys }

// BuildAuthorizationURL issues a state nonce for a new authorization
// round-trip and returns the provider authorization URL carrying it,
// together with the essential-claims request, the caller's context
// payload and a locale hint.
func (c *Client) BuildAuthorizationURL(contextData, uiLocales string) string {
	req := c.states.Issue(contextData)

	claims := authRequestClaims{
		UserInfo: map[string]essentialClaim{
			"projectGroups": {Essential: true},
			"exInfo":        {Essential: true},
		},
	}
	claimsJSON, _ := json.Marshal(claims)

	opts := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("claims", string(claimsJSON)),
	}
	if contextData != "" {
		opts = append(opts, oauth2.SetAuthURLParam("contextData", contextData))
	}
	if uiLocales != "" {
		opts = append(opts, oauth2.SetAuthURLParam("ui_locales", uiLocales))
	}

	return c.oauthCfg.AuthCodeURL(req.State, opts...)
}

// ExchangeCode redeems an authorization code for a token. The callback
// state must match an issued, unexpired authorization request or the
// exchange fails with ErrInvalidState before any network call; a code is
// redeemable once at the provider, so a failed exchange is never retried.
// A returned ID token is verified (revocation excluded, the token is
// freshly minted) and its payload attached to the Token; the verified
// identity is bound to the session store.
func (c *Client) ExchangeCode(ctx context.Context, code string, callback CallbackParams) (*Token, error) {
	if _, ok := c.states.Consume(callback.State); !ok {
		return nil, ErrInvalidState
	}

	if strings.TrimSpace(code) == "" {
		return nil, fmt.Errorf("%w: authorization code is required", ErrProtocolError)
	}

	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("code", code)
	data.Set("redirect_uri", c.config.RedirectURL)

	return c.exchangeToken(ctx, data)
}

// Refresh obtains a new token with the stored refresh token. The old
// Token is left untouched; callers replace it wholesale with the result.
func (c *Client) Refresh(ctx context.Context, token *Token) (*Token, error) {
	if token == nil || strings.TrimSpace(token.RefreshToken) == "" {
		return nil, fmt.Errorf("%w: refresh token is required", ErrProtocolError)
	}

	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", token.RefreshToken)

	return c.exchangeToken(ctx, data)
}

// exchangeToken posts a grant to the token endpoint with basic client
// credentials and verifies the resulting ID token, if any.
func (c *Client) exchangeToken(ctx context.Context, data url.Values) (*Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocolError, err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(c.config.ClientID, c.config.ClientSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocolError, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrProtocolError, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d: %s", ErrProtocolError, resp.StatusCode, string(body))
	}

	token, err := parseTokenResponse(body)
	if err != nil {
		return nil, err
	}

	if token.IDToken != "" {
		payload, err := c.verifier.Verify(ctx, token.IDToken, false)
		if err != nil {
			return nil, err
		}
		token.Payload = payload

		ident := identityFromPayload(payload)
		if ident.Subject != "" {
			if err := c.sessions.Bind(ctx, ident); err != nil {
				c.logger.Warn().Err(err).Str("sub", ident.Subject).Msg("failed to bind session")
			}
		}
	}

	return token, nil
}

// parseTokenResponse decodes a token endpoint response body.
func parseTokenResponse(body []byte) (*Token, error) {
	var tokenResp struct {
		AccessToken  string `json:"access_token"`
		TokenType    string `json:"token_type"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int64  `json:"expires_in"`
		IDToken      string `json:"id_token"`
	}

	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, fmt.Errorf("%w: failed to parse response: %v", ErrProtocolError, err)
	}

	if tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("%w: no access token in response", ErrProtocolError)
	}

	var params map[string]any
	_ = json.Unmarshal(body, &params)

	token := &Token{
		AccessToken:  tokenResp.AccessToken,
		TokenType:    tokenResp.TokenType,
		RefreshToken: tokenResp.RefreshToken,
		IDToken:      tokenResp.IDToken,
		Params:       params,
		IssuedAt:     time.Now(),
	}

	if token.TokenType == "" {
		token.TokenType = "Bearer"
	}

	if tokenResp.ExpiresIn > 0 {
		token.Expiry = token.IssuedAt.Add(time.Duration(tokenResp.ExpiresIn) * time.Second)
	}

	return token, nil
}

// UserInfo fetches the consented claims for the access token's subject
// from the user-info endpoint. With ttl > 0 the response is cached under
// a hash of the access token and served from cache until expiry.
//
// A 401-class response means the upstream session is gone: the local
// session bound to the token's subject is cleared and ErrUnauthorized
// returned. Any other failure is wrapped in ErrUnauthorized with the
// provider's message.
func (c *Client) UserInfo(ctx context.Context, accessToken string, ttl time.Duration) (map[string]any, error) {
	if strings.TrimSpace(accessToken) == "" {
		return nil, fmt.Errorf("%w: access token required", ErrUnauthorized)
	}

	if c.config.UserInfoURL == "" {
		return nil, fmt.Errorf("%w: user_info_url not configured", ErrInvalidConfiguration)
	}

	cacheKey := "userinfo:" + hashKey(accessToken)

	if ttl > 0 && c.cache != nil {
		encoded, ok, err := c.cache.Get(ctx, cacheKey)
		if err != nil {
			c.logger.Warn().Err(err).Msg("userinfo cache read failed")
		} else if ok {
			var userInfo map[string]any
			if err := json.Unmarshal(encoded, &userInfo); err == nil {
				return userInfo, nil
			}
			_ = c.cache.Delete(ctx, cacheKey)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.UserInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		c.forceLogout(ctx, accessToken)
		return nil, fmt.Errorf("%w: token expired, please login again", ErrUnauthorized)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w: status %d: %s", ErrUnauthorized, resp.StatusCode, string(body))
	}

	var userInfo map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&userInfo); err != nil {
		return nil, fmt.Errorf("%w: failed to parse response: %v", ErrUnauthorized, err)
	}

	if ttl > 0 && c.cache != nil {
		if encoded, err := json.Marshal(userInfo); err == nil {
			if err := c.cache.Set(ctx, cacheKey, encoded, ttl); err != nil {
				c.logger.Warn().Err(err).Msg("userinfo cache write failed")
			}
		}
	}

	return userInfo, nil
}

// forceLogout clears the local session behind an access token the
// provider no longer accepts. The token is decoded without verification;
// it only names which binding to drop.
func (c *Client) forceLogout(ctx context.Context, accessToken string) {
	subject := unverifiedSubject(accessToken)
	if subject == "" {
		return
	}

	if err := c.sessions.Unbind(ctx, subject); err != nil {
		c.logger.Warn().Err(err).Str("sub", subject).Msg("failed to clear session after upstream rejection")
		return
	}

	c.logger.Info().Str("sub", subject).Msg("session cleared, provider rejected access token")
}

// Logout notifies the provider's logout endpoint of the identity's
// session. Notification failures are logged and swallowed: they must not
// fail the local teardown. With globalLogout set the local session
// binding is cleared regardless of the notification outcome.
func (c *Client) Logout(ctx context.Context, ident *Identity, accessToken string, globalLogout bool) {
	if ident != nil && ident.SessionID != "" && c.config.LogoutURL != "" {
		if err := c.notifyLogout(ctx, ident.SessionID, accessToken); err != nil {
			c.logger.Warn().Err(err).Str("sid", ident.SessionID).Msg("logout notification failed")
		}
	}

	if globalLogout && ident != nil && ident.Subject != "" {
		if err := c.sessions.Unbind(ctx, ident.Subject); err != nil {
			c.logger.Warn().Err(err).Str("sub", ident.Subject).Msg("failed to clear session on logout")
		}
	}
}

// notifyLogout performs the provider logout call.
func (c *Client) notifyLogout(ctx context.Context, sessionID, accessToken string) error {
	logoutURL, err := url.Parse(c.config.LogoutURL)
	if err != nil {
		return err
	}

	query := logoutURL.Query()
	query.Set("sid", sessionID)
	logoutURL.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, logoutURL.String(), nil)
	if err != nil {
		return err
	}

	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

// Close releases the client's internal resources.
func (c *Client) Close() {
	c.states.Close()
	if c.ownedCache != nil {
		c.ownedCache.Close()
	}
}
