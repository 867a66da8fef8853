package pipeline

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/HuskyDanny/FinancialAgent-sub001/internal/broker"
	"github.com/HuskyDanny/FinancialAgent-sub001/internal/logging"
	"github.com/HuskyDanny/FinancialAgent-sub001/internal/models"
)

// OrderAuditStore persists order audit records. Successes and failures are
// written through separate batched calls.
type OrderAuditStore interface {
	SaveBatch(ctx context.Context, records []models.OrderRecord) error
	SaveFailedBatch(ctx context.Context, records []models.OrderRecord) error
}

// MessageMetadataStore marks research messages that resulted in placed orders.
type MessageMetadataStore interface {
	UpdateMetadataBatch(ctx context.Context, updates []models.MessageMetadataUpdate) error
}

// OrderExecutor submits a plan's orders to the trading venue one at a time in
// ascending priority order. Each placement changes real buying power, so no
// two orders from the same plan may be in flight at once.
type OrderExecutor struct {
	venue    broker.Client
	orders   OrderAuditStore
	messages MessageMetadataStore
	logger   *logging.Logger
}

func NewOrderExecutor(venue broker.Client, orders OrderAuditStore, messages MessageMetadataStore, logger *logging.Logger) *OrderExecutor {
	return &OrderExecutor{
		venue:    venue,
		orders:   orders,
		messages: messages,
		logger:   logger,
	}
}

// Execute places every order in the plan against the venue. A single failed
// placement is recorded and the batch continues; only an unreachable venue
// aborts the whole run before anything is submitted.
func (e *OrderExecutor) Execute(ctx context.Context, userID, runID string, plan *models.OrderExecutionPlan) (*models.ExecutionResult, error) {
	result := &models.ExecutionResult{TotalOrders: len(plan.Orders)}
	if len(plan.Orders) == 0 {
		return result, nil
	}

	if err := e.venue.Ping(ctx); err != nil {
		e.logger.WithError(err).WithField("user_id", userID).Warn("trading venue unavailable, skipping execution")
		result.Skipped = len(plan.Orders)
		result.Reason = "venue_unavailable"
		return result, nil
	}

	ordered := make([]models.OptimizedOrder, len(plan.Orders))
	copy(ordered, plan.Orders)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Priority < ordered[j].Priority })

	var placed, failed []models.OrderRecord
	var metadata []models.MessageMetadataUpdate

	for _, order := range ordered {
		if order.SkipReason != "" {
			result.Skipped++
			continue
		}

		entry := e.logger.WithFields(logging.Fields{
			"user_id":  userID,
			"symbol":   order.Symbol,
			"side":     order.Side,
			"shares":   order.Shares,
			"priority": order.Priority,
		})

		resp, err := e.venue.PlaceOrder(ctx, broker.PlaceOrderRequest{
			UserID:          userID,
			Symbol:          order.Symbol,
			Quantity:        order.Shares,
			Side:            string(order.Side),
			SourceMessageID: order.SourceMessageID,
			AnalysisID:      order.AnalysisID,
		})
		if err != nil {
			entry.WithError(err).Error("order placement failed")
			failed = append(failed, e.auditRecord(userID, runID, order, nil, err))
			result.Failed++
			continue
		}

		entry.WithField("external_order_id", resp.ExternalID).Info("order placed")
		placed = append(placed, e.auditRecord(userID, runID, order, resp, nil))
		result.Executed++

		if order.SourceMessageID != "" {
			metadata = append(metadata, models.MessageMetadataUpdate{
				MessageID:       order.SourceMessageID,
				ExternalOrderID: resp.ExternalID,
				OrderPlaced:     true,
			})
		}
	}

	// Audit writes happen after the loop so a slow database cannot stretch
	// the window between consecutive placements.
	if len(placed) > 0 {
		if err := e.orders.SaveBatch(ctx, placed); err != nil {
			e.logger.WithError(err).WithField("user_id", userID).Error("failed to persist placed order records")
		}
	}
	if len(failed) > 0 {
		if err := e.orders.SaveFailedBatch(ctx, failed); err != nil {
			e.logger.WithError(err).WithField("user_id", userID).Error("failed to persist failed order records")
		}
	}
	if len(metadata) > 0 {
		if err := e.messages.UpdateMetadataBatch(ctx, metadata); err != nil {
			e.logger.WithError(err).WithField("user_id", userID).Error("failed to update message metadata")
		}
	}

	return result, nil
}

func (e *OrderExecutor) auditRecord(userID, runID string, order models.OptimizedOrder, resp *broker.PlaceOrderResponse, placeErr error) models.OrderRecord {
	record := models.OrderRecord{
		UserID:          userID,
		RunID:           runID,
		Symbol:          order.Symbol,
		Side:            order.Side,
		Shares:          order.Shares,
		EstimatedPrice:  order.EstimatedPrice,
		EstimatedCost:   order.EstimatedCost,
		IsCover:         order.IsCover,
		SourceMessageID: order.SourceMessageID,
		CreatedAt:       time.Now().UTC(),
	}
	if placeErr != nil {
		record.Status = "failed"
		record.ErrorMessage = placeErr.Error()
		record.FilledQty = decimal.Zero
		record.FilledAvgPrice = decimal.Zero
		return record
	}
	record.Status = resp.Status
	record.ExternalOrderID = &resp.ExternalID
	record.FilledQty = resp.FilledQty
	record.FilledAvgPrice = resp.FilledAvgPrice
	return record
}
