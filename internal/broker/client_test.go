package broker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *HTTPClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewHTTPClient(Config{ServiceURL: server.URL, APIKey: "test-key"})
}

func TestGetPositions(t *testing.T) {
	var gotPath, gotKey string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("X-API-Key")
		_, _ = w.Write([]byte(`{"positions": [
			{"symbol": "AAPL", "quantity": "100", "market_value": "15000"},
			{"symbol": "TSLA", "quantity": "-20", "market_value": "-5000"}
		]}`))
	}))

	positions, err := client.GetPositions(context.Background(), "user-1")
	require.NoError(t, err)

	assert.Equal(t, "/api/users/user-1/positions", gotPath)
	assert.Equal(t, "test-key", gotKey)
	require.Len(t, positions, 2)
	assert.Equal(t, "AAPL", positions[0].Symbol)
	assert.True(t, positions[1].IsShort())
}

func TestGetAccountSummary(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/users/user-1/account", r.URL.Path)
		_, _ = w.Write([]byte(`{"equity": "50000", "buying_power": "20000", "cash": "10000", "position_count": 4}`))
	}))

	account, err := client.GetAccountSummary(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "20000", account.BuyingPower.String())
	assert.Equal(t, 4, account.PositionCount)
}

func TestPlaceOrder(t *testing.T) {
	var got PlaceOrderRequest
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/orders", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"external_id": "ord-1", "status": "filled", "filled_qty": "10", "filled_avg_price": "150.25"}`))
	}))

	resp, err := client.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserID:          "user-1",
		Symbol:          "AAPL",
		Quantity:        10,
		Side:            "buy",
		SourceMessageID: "msg-1",
	})
	require.NoError(t, err)

	assert.Equal(t, "ord-1", resp.ExternalID)
	assert.Equal(t, "150.25", resp.FilledAvgPrice.String())
	assert.Equal(t, "AAPL", got.Symbol)
	assert.Equal(t, "msg-1", got.SourceMessageID)
}

func TestPlaceOrderValidation(t *testing.T) {
	client := NewHTTPClient(Config{ServiceURL: "http://localhost:0"})

	_, err := client.PlaceOrder(context.Background(), PlaceOrderRequest{Quantity: 1, Side: "buy"})
	assert.ErrorContains(t, err, "symbol")

	_, err = client.PlaceOrder(context.Background(), PlaceOrderRequest{Symbol: "AAPL", Side: "buy"})
	assert.ErrorContains(t, err, "quantity")

	_, err = client.PlaceOrder(context.Background(), PlaceOrderRequest{Symbol: "AAPL", Quantity: 1, Side: "hold"})
	assert.ErrorContains(t, err, "invalid side")
}

func TestPlaceOrderRejected(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error": "insufficient buying power"}`))
	}))

	_, err := client.PlaceOrder(context.Background(), PlaceOrderRequest{Symbol: "AAPL", Quantity: 10, Side: "buy"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
	assert.Contains(t, err.Error(), "insufficient buying power")
}

func TestPing(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	assert.NoError(t, client.Ping(context.Background()))
}

func TestPingUnreachable(t *testing.T) {
	client := NewHTTPClient(Config{ServiceURL: "http://127.0.0.1:1"})
	assert.Error(t, client.Ping(context.Background()))
}
