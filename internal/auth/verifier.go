package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Verification failure sentinels.
var (
	// ErrNoToken means the request carried no bearer credential at all.
	ErrNoToken = errors.New("no token provided")
	// ErrInvalidToken covers every other verification failure: bad
	// signature, audience or issuer mismatch, expiry, malformed token,
	// or a failed key fetch.
	ErrInvalidToken = errors.New("invalid or expired token")
)

// Verifier validates a raw bearer token and extracts its claims.
type Verifier interface {
	Verify(ctx context.Context, rawToken string) (*Claims, error)
}

// Auth0Verifier verifies RS256 tokens issued by an Auth0 tenant against the
// tenant's published key set. The application never holds a signing secret;
// the only trust anchor is the issuer's rotatable public keys.
type Auth0Verifier struct {
	keys   *KeyProvider
	parser *jwt.Parser
}

// NewAuth0Verifier builds a verifier for the given tenant domain and expected
// audience. The issuer and JWKS URL are derived from the domain the same way
// Auth0 publishes them.
func NewAuth0Verifier(domain, audience string, opts ...KeyProviderOption) *Auth0Verifier {
	issuer := "https://" + domain + "/"
	jwksURL := "https://" + domain + "/.well-known/jwks.json"
	return &Auth0Verifier{
		keys: NewKeyProvider(jwksURL, opts...),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{"RS256"}),
			jwt.WithAudience(audience),
			jwt.WithIssuer(issuer),
			jwt.WithExpirationRequired(),
		),
	}
}

// Verify validates the token signature, audience, issuer and expiry, and
// returns the claim set on success.
func (v *Auth0Verifier) Verify(ctx context.Context, rawToken string) (*Claims, error) {
	if rawToken == "" {
		return nil, ErrNoToken
	}

	claims := &Claims{}
	token, err := v.parser.ParseWithClaims(rawToken, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("token header missing kid")
		}
		return v.keys.Key(ctx, kid)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
