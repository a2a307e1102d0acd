package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"pizzeria-platform/internal/config"
	"pizzeria-platform/internal/logger"
)

// ErrAmountBelowMinimum is returned when the amount is below the gateway's
// minimum payable amount.
var ErrAmountBelowMinimum = errors.New("amount below gateway minimum")

// AuthRequest asks the gateway to open a card-payment authorization.
type AuthRequest struct {
	AmountMinor  int64             `json:"amount"`
	Currency     string            `json:"currency"`
	ReceiptEmail string            `json:"receipt_email,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Authorization is an opened authorization: the id for server-side capture
// and the opaque token the client uses to continue the payment flow.
type Authorization struct {
	AuthorizationID         string `json:"authorization_id"`
	ClientContinuationToken string `json:"client_continuation_token"`
}

// Client talks to the external card-payment gateway.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     *TokenCache
	minAmount  int64
	logger     *logger.Logger
}

// NewClient creates a gateway client. The token cache is injected so its
// lifetime is owned by the caller.
func NewClient(cfg config.PaymentConfig, tokens *TokenCache, log *logger.Logger) *Client {
	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		tokens:     tokens,
		minAmount:  cfg.MinAmountMinor,
		logger:     log,
	}
}

// MinimumAmountMinor returns the smallest payable amount in minor units.
func (c *Client) MinimumAmountMinor() int64 {
	return c.minAmount
}

// Authorize opens an authorization for the given amount. Amounts below the
// gateway minimum are rejected locally without a network call.
func (c *Client) Authorize(ctx context.Context, authReq AuthRequest) (*Authorization, error) {
	if authReq.AmountMinor < c.minAmount {
		return nil, fmt.Errorf("%w: %d < %d", ErrAmountBelowMinimum, authReq.AmountMinor, c.minAmount)
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(authReq)
	if err != nil {
		return nil, fmt.Errorf("marshal authorization request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/authorizations", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call payment gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		// The cached token went stale before its reported expiry.
		c.tokens.Invalidate()
		return nil, fmt.Errorf("payment gateway rejected credentials")
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		var gatewayErr struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&gatewayErr)
		return nil, fmt.Errorf("payment gateway returned status %d: %s %s", resp.StatusCode, gatewayErr.Code, gatewayErr.Message)
	}

	var body struct {
		ID          string `json:"id"`
		ClientToken string `json:"client_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode authorization response: %w", err)
	}

	return &Authorization{
		AuthorizationID:         body.ID,
		ClientContinuationToken: body.ClientToken,
	}, nil
}
