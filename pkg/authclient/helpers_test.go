package authclient

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

// Helper functions shared by the package tests.

func newTestKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("Failed to generate RSA key: %v", err)
	}

	return privateKey
}

func signTestJWT(t *testing.T, privateKey *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = "test-key-id"

	tokenString, err := token.SignedString(privateKey)
	if err != nil {
		t.Fatalf("Failed to sign JWT: %v", err)
	}

	return tokenString
}

// jwksDocument renders the public key as a JWKS body keyed by the kid
// used by signTestJWT.
func jwksDocument(t *testing.T, publicKey *rsa.PublicKey) []byte {
	t.Helper()

	jwks := map[string]interface{}{
		"keys": []map[string]interface{}{
			{
				"kty": "RSA",
				"kid": "test-key-id",
				"use": "sig",
				"alg": "RS256",
				"n":   base64.RawURLEncoding.EncodeToString(publicKey.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(publicKey.E)).Bytes()),
			},
		},
	}

	body, err := json.Marshal(jwks)
	if err != nil {
		t.Fatalf("Failed to marshal JWKS: %v", err)
	}

	return body
}

// newJWKSServer serves the key set and counts fetches in hits.
func newJWKSServer(t *testing.T, publicKey *rsa.PublicKey, hits *atomic.Int32) *httptest.Server {
	t.Helper()

	body := jwksDocument(t, publicKey)

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	}))
}

// newTestConfig returns a minimal valid configuration. Tests override
// the endpoints they exercise with httptest server URLs.
func newTestConfig(jwksURL string) *Config {
	return &Config{
		ClientID:     "test-client",
		ClientSecret: "test-secret",
		AuthURL:      "https://idp.example.com/oauth2/auth",
		TokenURL:     "https://idp.example.com/oauth2/token",
		JWKSURL:      jwksURL,
		RedirectURL:  "https://app.example.com/auth/callback",
		Scopes:       []string{"openid", "profile"},
	}
}
