package authn

import (
	"context"
	"fmt"
	"net/http"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	httphelper "github.com/zitadel/oidc/v3/pkg/http"
)

// DefaultIssuer is the issuer of the identity tokens Cloud Tasks mints for
// OIDC-configured HTTP tasks.
const DefaultIssuer = "https://accounts.google.com"

var supportedSigAlgs = []jose.SignatureAlgorithm{jose.RS256, jose.ES256}

// OIDCAuthenticator verifies the OIDC identity token on a callback
// request: signature against the issuer's published keys, expiry, issuer,
// audience, and optionally the service account the token was minted for.
// Checks run in that order and every failure is terminal.
type OIDCAuthenticator struct {
	issuer        string
	audience      string
	expectedEmail string
	keys          *keyCache
	now           func() time.Time
}

func NewOIDCAuthenticator(cfg Config) (*OIDCAuthenticator, error) {
	if cfg.Audience == "" {
		return nil, fmt.Errorf("%w: oidc mode requires an audience", ErrInvalidAuthnMode)
	}

	issuer := cfg.Issuer
	if issuer == "" {
		issuer = DefaultIssuer
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = httphelper.DefaultHTTPClient
	}

	return &OIDCAuthenticator{
		issuer:        issuer,
		audience:      cfg.Audience,
		expectedEmail: cfg.ServiceAccountEmail,
		keys:          newKeyCache(issuer, httpClient),
		now:           time.Now,
	}, nil
}

// tokenClaims are the registered claims plus the service account email
// Google includes in identity tokens.
type tokenClaims struct {
	Email string `json:"email"`
}

func (a *OIDCAuthenticator) Verify(ctx context.Context, r *http.Request) (*Identity, error) {
	raw, err := bearerToken(r)
	if err != nil {
		return nil, err
	}

	token, err := jwt.ParseSigned(raw, supportedSigAlgs)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed token: %v", ErrUnauthenticated, err)
	}

	if len(token.Headers) != 1 {
		return nil, fmt.Errorf("%w: unexpected token header count", ErrUnauthenticated)
	}

	key, err := a.keys.key(ctx, token.Headers[0].KeyID)
	if err != nil {
		return nil, err
	}

	var claims jwt.Claims

	var extra tokenClaims

	if err := token.Claims(key, &claims, &extra); err != nil {
		return nil, fmt.Errorf("%w: signature verification failed: %v", ErrUnauthenticated, err)
	}

	now := a.now()

	if claims.Expiry == nil || !now.Before(claims.Expiry.Time()) {
		return nil, fmt.Errorf("%w: token expired", ErrUnauthenticated)
	}

	if claims.Issuer != a.issuer {
		return nil, fmt.Errorf("%w: issuer mismatch", ErrUnauthenticated)
	}

	if !claims.Audience.Contains(a.audience) {
		return nil, fmt.Errorf("%w: audience mismatch", ErrUnauthenticated)
	}

	if a.expectedEmail != "" && extra.Email != a.expectedEmail {
		return nil, fmt.Errorf("%w: unexpected service account", ErrUnauthenticated)
	}

	return &Identity{Subject: claims.Subject, Email: extra.Email}, nil
}
