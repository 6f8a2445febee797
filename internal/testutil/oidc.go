// Package testutil provides test doubles shared across packages, most
// importantly a fake OIDC issuer that serves discovery and JWKS endpoints
// and signs identity tokens the way the queue service's issuer would.
package testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
)

// OIDCIssuer is an in-process OIDC issuer with rotatable RSA signing keys.
type OIDCIssuer struct {
	server *httptest.Server

	// JWKSCalls counts fetches of the JWKS endpoint.
	JWKSCalls atomic.Int32
	// JWKSDelay slows JWKS responses down, widening the window for
	// refresh-coalescing assertions.
	JWKSDelay time.Duration

	mu   sync.Mutex
	key  *rsa.PrivateKey
	kid  string
	keys jose.JSONWebKeySet
}

func NewOIDCIssuer(t *testing.T) *OIDCIssuer {
	t.Helper()

	issuer := &OIDCIssuer{}
	issuer.Rotate(t, "key-1")

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"issuer":                 issuer.server.URL,
			"jwks_uri":               issuer.server.URL + "/jwks",
			"authorization_endpoint": issuer.server.URL + "/auth",
			"token_endpoint":         issuer.server.URL + "/token",
		})
	})
	mux.HandleFunc("/jwks", func(w http.ResponseWriter, r *http.Request) {
		issuer.JWKSCalls.Add(1)

		if issuer.JWKSDelay > 0 {
			time.Sleep(issuer.JWKSDelay)
		}

		issuer.mu.Lock()
		keys := issuer.keys
		issuer.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(keys)
	})

	issuer.server = httptest.NewServer(mux)
	t.Cleanup(issuer.server.Close)

	return issuer
}

// URL is the issuer identifier, matching the discovery document.
func (f *OIDCIssuer) URL() string {
	return f.server.URL
}

// Client returns an HTTP client that can reach the issuer.
func (f *OIDCIssuer) Client() *http.Client {
	return f.server.Client()
}

// Rotate replaces the signing key, simulating an issuer key rotation.
func (f *OIDCIssuer) Rotate(t *testing.T, kid string) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.key = key
	f.kid = kid
	f.keys = jose.JSONWebKeySet{Keys: []jose.JSONWebKey{{
		Key:       &key.PublicKey,
		KeyID:     kid,
		Algorithm: string(jose.RS256),
		Use:       "sig",
	}}}
}

// TokenOptions parameterize a signed identity token. The zero value of
// KeyID means the issuer's current key ID.
type TokenOptions struct {
	Issuer   string
	Audience string
	Email    string
	Subject  string
	Expiry   time.Time
	KeyID    string
}

// Sign issues a token with the current signing key.
func (f *OIDCIssuer) Sign(t *testing.T, opts TokenOptions) string {
	t.Helper()

	f.mu.Lock()
	key := f.key
	kid := f.kid
	f.mu.Unlock()

	if opts.KeyID != "" {
		kid = opts.KeyID
	}

	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.RS256, Key: key},
		(&jose.SignerOptions{}).WithType("JWT").WithHeader(jose.HeaderKey("kid"), kid),
	)
	if err != nil {
		t.Fatalf("failed to create signer: %v", err)
	}

	claims := jwt.Claims{
		Issuer:   opts.Issuer,
		Subject:  opts.Subject,
		Audience: jwt.Audience{opts.Audience},
		Expiry:   jwt.NewNumericDate(opts.Expiry),
		IssuedAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}

	raw, err := jwt.Signed(signer).Claims(claims).Claims(map[string]any{"email": opts.Email}).Serialize()
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	return raw
}
