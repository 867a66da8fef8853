package pipeline

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HuskyDanny/FinancialAgent-sub001/internal/broker"
	"github.com/HuskyDanny/FinancialAgent-sub001/internal/logging"
	"github.com/HuskyDanny/FinancialAgent-sub001/internal/models"
)

type fakeVenue struct {
	pingErr    error
	placed     []broker.PlaceOrderRequest
	failSymbol string
	positions  []models.Position
	account    *models.AccountSummary
}

func (f *fakeVenue) GetPositions(ctx context.Context, userID string) ([]models.Position, error) {
	return f.positions, nil
}

func (f *fakeVenue) GetAccountSummary(ctx context.Context, userID string) (*models.AccountSummary, error) {
	if f.account == nil {
		return &models.AccountSummary{}, nil
	}
	return f.account, nil
}

func (f *fakeVenue) PlaceOrder(ctx context.Context, req broker.PlaceOrderRequest) (*broker.PlaceOrderResponse, error) {
	if req.Symbol == f.failSymbol {
		return nil, fmt.Errorf("insufficient buying power")
	}
	f.placed = append(f.placed, req)
	return &broker.PlaceOrderResponse{
		ExternalID:     fmt.Sprintf("ext-%s", req.Symbol),
		Status:         "filled",
		FilledQty:      decimal.NewFromInt(req.Quantity),
		FilledAvgPrice: decimal.NewFromInt(100),
	}, nil
}

func (f *fakeVenue) Ping(ctx context.Context) error { return f.pingErr }

type fakeOrderStore struct {
	saved       []models.OrderRecord
	savedFailed []models.OrderRecord
	saveErr     error
}

func (f *fakeOrderStore) SaveBatch(ctx context.Context, records []models.OrderRecord) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, records...)
	return nil
}

func (f *fakeOrderStore) SaveFailedBatch(ctx context.Context, records []models.OrderRecord) error {
	f.savedFailed = append(f.savedFailed, records...)
	return nil
}

type fakeMetadataStore struct {
	updates []models.MessageMetadataUpdate
}

func (f *fakeMetadataStore) UpdateMetadataBatch(ctx context.Context, updates []models.MessageMetadataUpdate) error {
	f.updates = append(f.updates, updates...)
	return nil
}

func planOf(orders ...models.OptimizedOrder) *models.OrderExecutionPlan {
	return &models.OrderExecutionPlan{Orders: orders}
}

func buyOrder(symbol string, shares int64, priority int) models.OptimizedOrder {
	return models.OptimizedOrder{
		Symbol:         symbol,
		Side:           models.OrderSideBuy,
		Shares:         shares,
		EstimatedPrice: decimal.NewFromInt(100),
		EstimatedCost:  decimal.NewFromInt(shares * 100),
		Priority:       priority,
	}
}

func TestExecuteEmptyPlan(t *testing.T) {
	executor := NewOrderExecutor(&fakeVenue{}, &fakeOrderStore{}, &fakeMetadataStore{}, logging.NewNop())

	result, err := executor.Execute(context.Background(), "user-1", "run-1", planOf())
	require.NoError(t, err)
	assert.Equal(t, 0, result.TotalOrders)
}

func TestExecuteVenueUnavailable(t *testing.T) {
	venue := &fakeVenue{pingErr: fmt.Errorf("connection refused")}
	orders := &fakeOrderStore{}
	executor := NewOrderExecutor(venue, orders, &fakeMetadataStore{}, logging.NewNop())

	result, err := executor.Execute(context.Background(), "user-1", "run-1", planOf(
		buyOrder("AAPL", 10, 1),
		buyOrder("NVDA", 5, 2),
	))
	require.NoError(t, err)

	assert.Equal(t, 0, result.Executed)
	assert.Equal(t, 2, result.Skipped)
	assert.Equal(t, "venue_unavailable", result.Reason)
	assert.Empty(t, venue.placed, "nothing is attempted against an unreachable venue")
	assert.Empty(t, orders.saved)
}

func TestExecutePlacesInPriorityOrder(t *testing.T) {
	venue := &fakeVenue{}
	executor := NewOrderExecutor(venue, &fakeOrderStore{}, &fakeMetadataStore{}, logging.NewNop())

	// Deliberately out of order in the slice.
	result, err := executor.Execute(context.Background(), "user-1", "run-1", planOf(
		buyOrder("THIRD", 1, 3),
		buyOrder("FIRST", 1, 1),
		buyOrder("SECOND", 1, 2),
	))
	require.NoError(t, err)

	assert.Equal(t, 3, result.Executed)
	require.Len(t, venue.placed, 3)
	assert.Equal(t, "FIRST", venue.placed[0].Symbol)
	assert.Equal(t, "SECOND", venue.placed[1].Symbol)
	assert.Equal(t, "THIRD", venue.placed[2].Symbol)
}

func TestExecuteFailureContinuesBatch(t *testing.T) {
	venue := &fakeVenue{failSymbol: "NVDA"}
	orders := &fakeOrderStore{}
	executor := NewOrderExecutor(venue, orders, &fakeMetadataStore{}, logging.NewNop())

	result, err := executor.Execute(context.Background(), "user-1", "run-1", planOf(
		buyOrder("AAPL", 10, 1),
		buyOrder("NVDA", 5, 2),
		buyOrder("AMD", 3, 3),
	))
	require.NoError(t, err)

	assert.Equal(t, 2, result.Executed)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 3, result.TotalOrders)

	require.Len(t, orders.savedFailed, 1)
	failed := orders.savedFailed[0]
	assert.Equal(t, "NVDA", failed.Symbol)
	assert.Equal(t, "failed", failed.Status)
	assert.Equal(t, int64(5), failed.Shares, "failed record keeps the requested quantity")
	assert.Nil(t, failed.ExternalOrderID)
	assert.Contains(t, failed.ErrorMessage, "insufficient buying power")

	require.Len(t, orders.saved, 2)
	for _, record := range orders.saved {
		require.NotNil(t, record.ExternalOrderID)
		assert.Equal(t, "run-1", record.RunID)
	}
}

func TestExecuteSkipReasonNotSubmitted(t *testing.T) {
	venue := &fakeVenue{}
	executor := NewOrderExecutor(venue, &fakeOrderStore{}, &fakeMetadataStore{}, logging.NewNop())

	skipped := buyOrder("GOOG", 2, 2)
	skipped.SkipReason = "position not found"

	result, err := executor.Execute(context.Background(), "user-1", "run-1", planOf(
		buyOrder("AAPL", 10, 1),
		skipped,
	))
	require.NoError(t, err)

	assert.Equal(t, 1, result.Executed)
	assert.Equal(t, 1, result.Skipped)
	require.Len(t, venue.placed, 1)
	assert.Equal(t, "AAPL", venue.placed[0].Symbol)
}

func TestExecuteUpdatesMessageMetadata(t *testing.T) {
	venue := &fakeVenue{}
	metadata := &fakeMetadataStore{}
	executor := NewOrderExecutor(venue, &fakeOrderStore{}, metadata, logging.NewNop())

	linked := buyOrder("AAPL", 10, 1)
	linked.SourceMessageID = "msg-42"
	unlinked := buyOrder("AMD", 3, 2)

	_, err := executor.Execute(context.Background(), "user-1", "run-1", planOf(linked, unlinked))
	require.NoError(t, err)

	require.Len(t, metadata.updates, 1)
	assert.Equal(t, "msg-42", metadata.updates[0].MessageID)
	assert.Equal(t, "ext-AAPL", metadata.updates[0].ExternalOrderID)
	assert.True(t, metadata.updates[0].OrderPlaced)
}

func TestExecutePersistenceFailureDoesNotFailRun(t *testing.T) {
	venue := &fakeVenue{}
	orders := &fakeOrderStore{saveErr: fmt.Errorf("db down")}
	executor := NewOrderExecutor(venue, orders, &fakeMetadataStore{}, logging.NewNop())

	result, err := executor.Execute(context.Background(), "user-1", "run-1", planOf(buyOrder("AAPL", 10, 1)))
	require.NoError(t, err, "audit persistence failure never rolls back placed orders")
	assert.Equal(t, 1, result.Executed)
}
