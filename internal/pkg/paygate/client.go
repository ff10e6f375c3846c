// Package paygate talks to the hosted-checkout payment gateway: outbound
// checkout session creation and inbound webhook verification.
package paygate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jcq/jcq-api/internal/pkg/apperror"
)

var (
	ErrNotConfigured      = apperror.New(apperror.KindConfiguration, "GATEWAY_NOT_CONFIGURED", "payment gateway is not configured")
	ErrGatewayRejected    = apperror.New(apperror.KindConfiguration, "GATEWAY_REJECTED", "payment gateway rejected the request")
	ErrGatewayUnavailable = apperror.New(apperror.KindConfiguration, "GATEWAY_UNAVAILABLE", "payment gateway is unavailable")
)

// Config holds gateway connection settings
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client creates hosted checkout sessions. Calls are never retried: a
// failed checkout creation is surfaced to the player, who may try again.
type Client struct {
	httpClient *http.Client
	baseURL    string
	timeout    time.Duration
}

// CheckoutRequest describes one hosted checkout.
type CheckoutRequest struct {
	ProductID         string            `json:"product_id"`
	Quantity          int               `json:"quantity"`
	SuccessURL        string            `json:"success_url"`
	CancelURL         string            `json:"cancel_url"`
	ClientReferenceID string            `json:"client_reference_id,omitempty"`
	Metadata          map[string]string `json:"metadata"`
}

// CheckoutSession is the gateway's answer: an id and the hosted page URL.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// NewClient creates a gateway client
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		timeout:    timeout,
	}
}

// CreateCheckout creates a hosted checkout session authenticated with apiKey.
func (c *Client) CreateCheckout(ctx context.Context, apiKey string, req CheckoutRequest) (*CheckoutSession, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, apperror.WithMessage(ErrNotConfigured, "gateway api key is empty")
	}
	if c.baseURL == "" {
		return nil, apperror.WithMessage(ErrNotConfigured, "gateway base url is empty")
	}
	if strings.TrimSpace(req.ProductID) == "" {
		return nil, apperror.WithMessage(ErrNotConfigured, "gateway product id is empty")
	}
	if req.Metadata["transactionId"] == "" {
		return nil, fmt.Errorf("checkout metadata must carry transactionId")
	}
	if req.Quantity <= 0 {
		req.Quantity = 1
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode checkout request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/checkout/sessions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build checkout request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	httpReq.Header.Set("Idempotency-Key", req.Metadata["transactionId"])

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, apperror.Wrap(ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, apperror.Wrap(ErrGatewayUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperror.Wrap(ErrGatewayRejected,
			fmt.Errorf("gateway returned non-2xx status: %d, body: %s", resp.StatusCode, string(body)))
	}

	var session CheckoutSession
	if err := json.Unmarshal(body, &session); err != nil {
		return nil, apperror.Wrap(ErrGatewayRejected, fmt.Errorf("parse checkout response: %w", err))
	}
	if session.ID == "" || session.URL == "" {
		return nil, apperror.WithMessage(ErrGatewayRejected, "gateway response is missing session id or url")
	}

	return &session, nil
}
