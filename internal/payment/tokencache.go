package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// TokenSource obtains a fresh gateway access token and its lifetime.
type TokenSource func(ctx context.Context) (token string, expiresIn time.Duration, err error)

// TokenCache caches a short-lived access token until shortly before expiry.
// It is an explicit, injected dependency of the payment client rather than
// package-level state.
type TokenCache struct {
	mu     sync.Mutex
	source TokenSource
	token  string
	expiry time.Time
	skew   time.Duration
	now    func() time.Time
}

// NewTokenCache creates a cache over the given source. Tokens are refreshed
// 30 seconds before their reported expiry.
func NewTokenCache(source TokenSource) *TokenCache {
	return &TokenCache{
		source: source,
		skew:   30 * time.Second,
		now:    time.Now,
	}
}

// Token returns the cached token, refreshing it when expired.
func (c *TokenCache) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.expiry.Add(-c.skew)) {
		return c.token, nil
	}

	token, expiresIn, err := c.source(ctx)
	if err != nil {
		return "", fmt.Errorf("refresh gateway token: %w", err)
	}

	c.token = token
	c.expiry = c.now().Add(expiresIn)
	return c.token, nil
}

// Invalidate discards the cached token so the next call refreshes.
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
	c.expiry = time.Time{}
}

// ClientCredentialsSource exchanges client credentials for an access token
// at the gateway's OAuth token endpoint.
func ClientCredentialsSource(httpClient *http.Client, baseURL, clientID, clientSecret string) TokenSource {
	return func(ctx context.Context) (string, time.Duration, error) {
		form := url.Values{}
		form.Set("grant_type", "client_credentials")
		form.Set("client_id", clientID)
		form.Set("client_secret", clientSecret)

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/oauth/token", strings.NewReader(form.Encode()))
		if err != nil {
			return "", 0, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := httpClient.Do(req)
		if err != nil {
			return "", 0, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return "", 0, fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
		}

		var body struct {
			AccessToken string `json:"access_token"`
			ExpiresIn   int64  `json:"expires_in"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return "", 0, fmt.Errorf("decode token response: %w", err)
		}
		if body.AccessToken == "" {
			return "", 0, fmt.Errorf("token endpoint returned empty access token")
		}

		return body.AccessToken, time.Duration(body.ExpiresIn) * time.Second, nil
	}
}
