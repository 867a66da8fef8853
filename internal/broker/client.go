// Package broker talks to the external trading venue service over HTTP.
// The venue is the only place real account state (buying power, positions)
// changes; this client never caches or re-validates it.
package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/HuskyDanny/FinancialAgent-sub001/internal/models"
)

type Config struct {
	ServiceURL string
	APIKey     string
	APISecret  string
	Timeout    time.Duration
}

func DefaultConfig() Config {
	return Config{
		ServiceURL: "http://localhost:3001",
		Timeout:    30 * time.Second,
	}
}

// Client is the venue interface the pipeline depends on.
type Client interface {
	GetPositions(ctx context.Context, userID string) ([]models.Position, error)
	GetAccountSummary(ctx context.Context, userID string) (*models.AccountSummary, error)
	PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResponse, error)
	Ping(ctx context.Context) error
}

// PlaceOrderRequest carries one order plus linkage back to the research
// message that motivated it.
type PlaceOrderRequest struct {
	UserID          string `json:"user_id"`
	Symbol          string `json:"symbol"`
	Quantity        int64  `json:"quantity"`
	Side            string `json:"side"`
	SourceMessageID string `json:"source_message_id,omitempty"`
	AnalysisID      string `json:"analysis_id,omitempty"`
}

type PlaceOrderResponse struct {
	ExternalID     string          `json:"external_id"`
	Status         string          `json:"status"`
	FilledQty      decimal.Decimal `json:"filled_qty"`
	FilledAvgPrice decimal.Decimal `json:"filled_avg_price"`
}

// HTTPClient implements Client against the venue's JSON API.
type HTTPClient struct {
	serviceURL string
	apiKey     string
	apiSecret  string
	httpClient *http.Client
}

var _ Client = (*HTTPClient)(nil)

func NewHTTPClient(cfg Config) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		serviceURL: cfg.ServiceURL,
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) GetPositions(ctx context.Context, userID string) ([]models.Position, error) {
	var result struct {
		Positions []models.Position `json:"positions"`
	}
	if err := c.get(ctx, fmt.Sprintf("/api/users/%s/positions", userID), &result); err != nil {
		return nil, fmt.Errorf("failed to fetch positions: %w", err)
	}
	return result.Positions, nil
}

func (c *HTTPClient) GetAccountSummary(ctx context.Context, userID string) (*models.AccountSummary, error) {
	var result models.AccountSummary
	if err := c.get(ctx, fmt.Sprintf("/api/users/%s/account", userID), &result); err != nil {
		return nil, fmt.Errorf("failed to fetch account summary: %w", err)
	}
	return &result, nil
}

func (c *HTTPClient) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResponse, error) {
	if req.Symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	if req.Quantity < 1 {
		return nil, fmt.Errorf("quantity must be at least 1")
	}
	if req.Side != "buy" && req.Side != "sell" {
		return nil, fmt.Errorf("invalid side: %s", req.Side)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serviceURL+"/api/orders", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("order placement failed with status %d: %s", resp.StatusCode, string(detail))
	}

	var result PlaceOrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &result, nil
}

// Ping reports whether the venue service is reachable. The executor refuses
// to start a batch when it is not.
func (c *HTTPClient) Ping(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.serviceURL+"/api/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("venue unreachable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("venue health check failed with status: %d", resp.StatusCode)
	}
	return nil
}

func (c *HTTPClient) get(ctx context.Context, path string, out any) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.serviceURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request failed with status: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *HTTPClient) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	if c.apiSecret != "" {
		req.Header.Set("X-API-Secret", c.apiSecret)
	}
}
