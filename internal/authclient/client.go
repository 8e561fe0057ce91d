// Package authclient validates bearer tokens against the CapyCode
// identity provider. The relay never inspects tokens itself; it treats
// the provider's verdict as authoritative.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// ErrNotAuthenticated is returned for every failure mode: missing or
// malformed tokens, provider rejection, and provider call errors. Callers
// must not distinguish between them.
var ErrNotAuthenticated = errors.New("not authenticated")

// Identity is the user reference resolved from a valid token.
type Identity struct {
	UserID string   `json:"user_id"`
	Email  string   `json:"email,omitempty"`
	Roles  []string `json:"roles,omitempty"`
}

type verifyRequest struct {
	Token string `json:"token"`
}

type verifyResponse struct {
	Valid  bool     `json:"valid"`
	UserID string   `json:"user_id"`
	Email  string   `json:"email,omitempty"`
	Roles  []string `json:"roles,omitempty"`
}

// Client resolves tokens via the identity provider's verify endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      *resultCache
}

// New creates a Client. timeout bounds each provider call; cacheTTL
// bounds how long a verdict is reused before re-verification.
func New(baseURL string, timeout, cacheTTL time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		cache: newResultCache(cacheTTL),
	}
}

// Resolve validates token and returns the resolved identity. Every
// failure path, including provider timeouts, reports ErrNotAuthenticated.
func (c *Client) Resolve(ctx context.Context, token string) (*Identity, error) {
	if c == nil {
		return nil, fmt.Errorf("auth client not configured")
	}
	if token == "" {
		return nil, ErrNotAuthenticated
	}

	if id, verdict := c.cache.get(token); verdict {
		if id == nil {
			return nil, ErrNotAuthenticated
		}
		return id, nil
	}

	body, err := json.Marshal(verifyRequest{Token: token})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/v1/verify", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Network errors and timeouts are indistinguishable from a
		// rejected token as far as the relay is concerned.
		return nil, fmt.Errorf("%w: %v", ErrNotAuthenticated, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		// An explicit rejection is a verdict worth remembering.
		c.cache.set(token, nil)
		return nil, ErrNotAuthenticated
	default:
		// Provider trouble (5xx etc.) is not a verdict; caching it
		// would keep a valid token failing until the TTL runs out.
		return nil, fmt.Errorf("%w: provider returned %d", ErrNotAuthenticated, resp.StatusCode)
	}

	var result verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrNotAuthenticated, err)
	}

	if !result.Valid || result.UserID == "" {
		c.cache.set(token, nil)
		return nil, ErrNotAuthenticated
	}

	identity := &Identity{
		UserID: result.UserID,
		Email:  result.Email,
		Roles:  result.Roles,
	}
	c.cache.set(token, identity)

	return identity, nil
}

// resultCache remembers recent verdicts, both positive and negative, so
// reconnect storms do not hammer the provider.
type resultCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
}

type cacheEntry struct {
	identity  *Identity // nil for cached rejections
	expiresAt time.Time
}

func newResultCache(ttl time.Duration) *resultCache {
	return &resultCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
	}
}

func (rc *resultCache) get(token string) (*Identity, bool) {
	rc.mu.RLock()
	defer rc.mu.RUnlock()

	entry, ok := rc.entries[token]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.identity, true
}

func (rc *resultCache) set(token string, identity *Identity) {
	if rc.ttl <= 0 {
		return
	}

	rc.mu.Lock()
	defer rc.mu.Unlock()

	now := time.Now()
	for tok, entry := range rc.entries {
		if now.After(entry.expiresAt) {
			delete(rc.entries, tok)
		}
	}

	rc.entries[token] = cacheEntry{
		identity:  identity,
		expiresAt: now.Add(rc.ttl),
	}
}
