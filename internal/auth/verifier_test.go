package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const (
	testKid      = "test-key-1"
	testAudience = "https://api.mathshelp.test"
	testIssuer   = "https://mathshelp-test.local/"
)

func newJWKSServer(t *testing.T, pub *rsa.PublicKey, kid string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		doc := map[string]any{
			"keys": []map[string]string{{
				"kty": "RSA",
				"kid": kid,
				"use": "sig",
				"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
			}},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(doc))
	}))
}

func newTestVerifier(t *testing.T, jwksURL string) *Auth0Verifier {
	t.Helper()
	return &Auth0Verifier{
		keys: NewKeyProvider(jwksURL, WithMinRefreshInterval(0)),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{"RS256"}),
			jwt.WithAudience(testAudience),
			jwt.WithIssuer(testIssuer),
			jwt.WithExpirationRequired(),
		),
	}
}

func signToken(t *testing.T, key *rsa.PrivateKey, kid string, claims Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, &claims)
	token.Header["kid"] = kid
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func baseClaims(sub string) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			Issuer:    testIssuer,
			Audience:  jwt.ClaimStrings{testAudience},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Email: "teacher@example.com",
		Name:  "Test Teacher",
	}
}

func TestVerifyValidToken(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	server := newJWKSServer(t, &key.PublicKey, testKid)
	defer server.Close()

	verifier := newTestVerifier(t, server.URL)
	raw := signToken(t, key, testKid, baseClaims("auth0|abc123"))

	claims, err := verifier.Verify(context.Background(), raw)
	require.NoError(t, err)
	require.Equal(t, "auth0|abc123", claims.Subject)
	require.Equal(t, "teacher@example.com", claims.Email)
}

func TestVerifyNoToken(t *testing.T) {
	verifier := newTestVerifier(t, "http://127.0.0.1:0")
	_, err := verifier.Verify(context.Background(), "")
	require.ErrorIs(t, err, ErrNoToken)
}

func TestVerifyExpiredToken(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	server := newJWKSServer(t, &key.PublicKey, testKid)
	defer server.Close()

	verifier := newTestVerifier(t, server.URL)
	claims := baseClaims("auth0|abc123")
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	raw := signToken(t, key, testKid, claims)

	_, err = verifier.Verify(context.Background(), raw)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyWrongAudience(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	server := newJWKSServer(t, &key.PublicKey, testKid)
	defer server.Close()

	verifier := newTestVerifier(t, server.URL)
	claims := baseClaims("auth0|abc123")
	claims.Audience = jwt.ClaimStrings{"https://other.api"}
	raw := signToken(t, key, testKid, claims)

	_, err = verifier.Verify(context.Background(), raw)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyWrongSigningKey(t *testing.T) {
	published, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	attacker, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	server := newJWKSServer(t, &published.PublicKey, testKid)
	defer server.Close()

	verifier := newTestVerifier(t, server.URL)
	raw := signToken(t, attacker, testKid, baseClaims("auth0|abc123"))

	_, err = verifier.Verify(context.Background(), raw)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyUnknownKid(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	server := newJWKSServer(t, &key.PublicKey, testKid)
	defer server.Close()

	verifier := newTestVerifier(t, server.URL)
	raw := signToken(t, key, "rotated-away", baseClaims("auth0|abc123"))

	_, err = verifier.Verify(context.Background(), raw)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestKeyProviderCachesAcrossCalls(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		doc := map[string]any{
			"keys": []map[string]string{{
				"kty": "RSA",
				"kid": testKid,
				"n":   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
			}},
		}
		_ = json.NewEncoder(w).Encode(doc)
	}))
	defer server.Close()

	provider := NewKeyProvider(server.URL, WithMinRefreshInterval(0))
	for i := 0; i < 5; i++ {
		_, err := provider.Key(context.Background(), testKid)
		require.NoError(t, err)
	}
	require.Equal(t, 1, hits)
}

func TestKeyProviderStaleFallback(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	healthy := true
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		doc := map[string]any{
			"keys": []map[string]string{{
				"kty": "RSA",
				"kid": testKid,
				"n":   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
			}},
		}
		_ = json.NewEncoder(w).Encode(doc)
	}))
	defer server.Close()

	provider := NewKeyProvider(server.URL, WithMinRefreshInterval(0), WithKeyTTL(time.Nanosecond))
	_, err = provider.Key(context.Background(), testKid)
	require.NoError(t, err)

	// The endpoint going down must not invalidate a previously cached key.
	healthy = false
	time.Sleep(time.Millisecond)
	pub, err := provider.Key(context.Background(), testKid)
	require.NoError(t, err)
	require.NotNil(t, pub)
}
