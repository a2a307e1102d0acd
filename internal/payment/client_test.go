package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pizzeria-platform/internal/config"
	"pizzeria-platform/internal/logger"
)

func newGateway(t *testing.T) (*httptest.Server, *atomic.Int64, *atomic.Int64) {
	t.Helper()
	tokenCalls := &atomic.Int64{}
	authCalls := &atomic.Int64{}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /oauth/token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls.Add(1)
		require.NoError(t, r.ParseForm())
		if r.Form.Get("client_secret") != "good-secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "tok-123",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("POST /v1/authorizations", func(w http.ResponseWriter, r *http.Request) {
		authCalls.Add(1)
		if r.Header.Get("Authorization") != "Bearer tok-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req AuthRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.AmountMinor < 50 {
			w.WriteHeader(http.StatusUnprocessableEntity)
			json.NewEncoder(w).Encode(map[string]string{"code": "amount_too_small", "message": "below minimum"})
			return
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{
			"id":           "auth-42",
			"client_token": "cont-42",
		})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, tokenCalls, authCalls
}

func newTestClient(t *testing.T, baseURL, secret string) *Client {
	t.Helper()
	cfg := config.PaymentConfig{
		BaseURL:        baseURL,
		ClientID:       "client",
		ClientSecret:   secret,
		Currency:       "eur",
		MinAmountMinor: 50,
	}
	tokens := NewTokenCache(ClientCredentialsSource(http.DefaultClient, baseURL, cfg.ClientID, cfg.ClientSecret))
	return NewClient(cfg, tokens, logger.New("test"))
}

func TestAuthorize(t *testing.T) {
	server, tokenCalls, _ := newGateway(t)
	client := newTestClient(t, server.URL, "good-secret")

	auth, err := client.Authorize(context.Background(), AuthRequest{
		AmountMinor:  1250,
		Currency:     "eur",
		ReceiptEmail: "mario@example.com",
		Metadata:     map[string]string{"order_id": "o-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "auth-42", auth.AuthorizationID)
	assert.Equal(t, "cont-42", auth.ClientContinuationToken)

	// Second call reuses the cached token.
	_, err = client.Authorize(context.Background(), AuthRequest{AmountMinor: 900, Currency: "eur"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), tokenCalls.Load())
}

func TestAuthorize_BelowMinimumRejectedLocally(t *testing.T) {
	server, _, authCalls := newGateway(t)
	client := newTestClient(t, server.URL, "good-secret")

	_, err := client.Authorize(context.Background(), AuthRequest{AmountMinor: 49, Currency: "eur"})
	assert.ErrorIs(t, err, ErrAmountBelowMinimum)
	assert.Equal(t, int64(0), authCalls.Load())
}

func TestAuthorize_BadCredentials(t *testing.T) {
	server, _, _ := newGateway(t)
	client := newTestClient(t, server.URL, "bad-secret")

	_, err := client.Authorize(context.Background(), AuthRequest{AmountMinor: 100, Currency: "eur"})
	require.Error(t, err)
}

func TestTokenCache_RefreshesAfterExpiry(t *testing.T) {
	calls := 0
	cache := NewTokenCache(func(context.Context) (string, time.Duration, error) {
		calls++
		return "tok", time.Minute, nil
	})

	now := time.Now()
	cache.now = func() time.Time { return now }

	_, err := cache.Token(context.Background())
	require.NoError(t, err)
	_, err = cache.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	// Past the expiry skew the next call refreshes.
	now = now.Add(time.Minute)
	_, err = cache.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}
