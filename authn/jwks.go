package authn

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/zitadel/oidc/v3/pkg/client"
	"golang.org/x/sync/singleflight"
)

// keyCache holds the issuer's signing keys indexed by key ID. Reads share
// an RLock; a lookup miss triggers one refresh from the issuer's JWKS
// endpoint, coalesced across concurrent requests so a key rotation does
// not fan out into redundant fetches.
type keyCache struct {
	issuer     string
	httpClient *http.Client

	mu      sync.RWMutex
	jwksURI string
	keys    map[string]jose.JSONWebKey

	group singleflight.Group
}

func newKeyCache(issuer string, httpClient *http.Client) *keyCache {
	return &keyCache{
		issuer:     issuer,
		httpClient: httpClient,
		keys:       make(map[string]jose.JSONWebKey),
	}
}

// key returns the signing key for kid, refreshing the cache at most once
// when the kid is unknown.
func (c *keyCache) key(ctx context.Context, kid string) (jose.JSONWebKey, error) {
	if key, ok := c.lookup(kid); ok {
		return key, nil
	}

	if err := c.refresh(ctx); err != nil {
		return jose.JSONWebKey{}, err
	}

	key, ok := c.lookup(kid)
	if !ok {
		return jose.JSONWebKey{}, fmt.Errorf("%w: unknown key id %q", ErrUnauthenticated, kid)
	}

	return key, nil
}

func (c *keyCache) lookup(kid string) (jose.JSONWebKey, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	key, ok := c.keys[kid]

	return key, ok
}

// refresh fetches the key set once for all concurrent callers.
func (c *keyCache) refresh(ctx context.Context) error {
	_, err, _ := c.group.Do("jwks", func() (any, error) {
		jwksURI, err := c.discoverJWKSURI(ctx)
		if err != nil {
			return nil, err
		}

		keys, err := c.fetchKeys(ctx, jwksURI)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.keys = keys
		c.mu.Unlock()

		return nil, nil
	})

	return err
}

// discoverJWKSURI resolves the issuer's JWKS endpoint through the OIDC
// discovery document and remembers it.
func (c *keyCache) discoverJWKSURI(ctx context.Context) (string, error) {
	c.mu.RLock()
	jwksURI := c.jwksURI
	c.mu.RUnlock()

	if jwksURI != "" {
		return jwksURI, nil
	}

	discovery, err := client.Discover(ctx, c.issuer, c.httpClient)
	if err != nil {
		return "", fmt.Errorf("%w: discovery for %s: %v", ErrKeyDiscovery, c.issuer, err)
	}

	if discovery.JwksURI == "" {
		return "", fmt.Errorf("%w: issuer %s advertises no jwks_uri", ErrKeyDiscovery, c.issuer)
	}

	c.mu.Lock()
	c.jwksURI = discovery.JwksURI
	c.mu.Unlock()

	return discovery.JwksURI, nil
}

func (c *keyCache) fetchKeys(ctx context.Context, jwksURI string) (map[string]jose.JSONWebKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, jwksURI, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyDiscovery, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyDiscovery, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: jwks endpoint returned %d", ErrKeyDiscovery, resp.StatusCode)
	}

	var keySet jose.JSONWebKeySet
	if err := json.NewDecoder(resp.Body).Decode(&keySet); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyDiscovery, err)
	}

	keys := make(map[string]jose.JSONWebKey, len(keySet.Keys))
	for _, key := range keySet.Keys {
		keys[key.KeyID] = key
	}

	return keys, nil
}
