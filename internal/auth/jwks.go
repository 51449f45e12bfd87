package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	defaultKeyTTL     = time.Hour
	defaultMinRefresh = 12 * time.Second // at most 5 fetches per minute
	maxJWKSBody       = 1 << 20
)

// KeyProvider fetches and caches the RSA signing keys published by the
// issuer's JWKS endpoint. The cache is process-wide, read-mostly state;
// refreshes are rate limited and concurrent refreshes are coalesced.
type KeyProvider struct {
	url        string
	client     *http.Client
	ttl        time.Duration
	minRefresh time.Duration

	mu          sync.RWMutex
	keys        map[string]*rsa.PublicKey
	fetchedAt   time.Time
	lastAttempt time.Time

	group singleflight.Group
}

// KeyProviderOption customises a KeyProvider.
type KeyProviderOption func(*KeyProvider)

// WithHTTPClient overrides the HTTP client used for JWKS fetches.
func WithHTTPClient(client *http.Client) KeyProviderOption {
	return func(p *KeyProvider) { p.client = client }
}

// WithKeyTTL overrides how long a fetched key set is considered fresh.
func WithKeyTTL(ttl time.Duration) KeyProviderOption {
	return func(p *KeyProvider) { p.ttl = ttl }
}

// WithMinRefreshInterval overrides the minimum spacing between fetches.
func WithMinRefreshInterval(d time.Duration) KeyProviderOption {
	return func(p *KeyProvider) { p.minRefresh = d }
}

// NewKeyProvider constructs a provider for the given JWKS URL.
func NewKeyProvider(jwksURL string, opts ...KeyProviderOption) *KeyProvider {
	p := &KeyProvider{
		url:        jwksURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		ttl:        defaultKeyTTL,
		minRefresh: defaultMinRefresh,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Key returns the public key for the given key ID, fetching the key set when
// the cache is cold, stale, or does not contain the kid (key rotation).
func (p *KeyProvider) Key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	p.mu.RLock()
	key, ok := p.keys[kid]
	fresh := time.Since(p.fetchedAt) < p.ttl
	p.mu.RUnlock()
	if ok && fresh {
		return key, nil
	}

	if err := p.refresh(ctx); err != nil {
		// A stale key beats no key when the issuer is briefly unreachable.
		if ok {
			return key, nil
		}
		return nil, err
	}

	p.mu.RLock()
	key, ok = p.keys[kid]
	p.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("auth: signing key %q not found in key set", kid)
	}
	return key, nil
}

func (p *KeyProvider) refresh(ctx context.Context) error {
	_, err, _ := p.group.Do("jwks", func() (any, error) {
		p.mu.RLock()
		throttled := time.Since(p.lastAttempt) < p.minRefresh
		p.mu.RUnlock()
		if throttled {
			return nil, fmt.Errorf("auth: jwks refresh throttled")
		}

		keys, err := p.fetch(ctx)

		p.mu.Lock()
		p.lastAttempt = time.Now()
		if err == nil {
			p.keys = keys
			p.fetchedAt = time.Now()
		}
		p.mu.Unlock()
		return nil, err
	})
	return err
}

type jwksDocument struct {
	Keys []struct {
		Kty string `json:"kty"`
		Kid string `json:"kid"`
		Use string `json:"use"`
		N   string `json:"n"`
		E   string `json:"e"`
	} `json:"keys"`
}

func (p *KeyProvider) fetch(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, fmt.Errorf("auth: build jwks request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: fetch jwks: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: jwks endpoint returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxJWKSBody))
	if err != nil {
		return nil, fmt.Errorf("auth: read jwks response: %w", err)
	}

	var doc jwksDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("auth: parse jwks response: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Kty != "RSA" || k.Kid == "" {
			continue
		}
		pub, err := parseRSAKey(k.N, k.E)
		if err != nil {
			continue
		}
		keys[k.Kid] = pub
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("auth: jwks response contained no usable RSA keys")
	}
	return keys, nil
}

func parseRSAKey(nB64, eB64 string) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(nB64)
	if err != nil {
		return nil, fmt.Errorf("auth: decode modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(eB64)
	if err != nil {
		return nil, fmt.Errorf("auth: decode exponent: %w", err)
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(new(big.Int).SetBytes(eBytes).Int64()),
	}, nil
}
