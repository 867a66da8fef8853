package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide is the venue-facing side of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OptimizedOrder is one planned order. Created by the planner, read-only for
// the executor. Priority is unique and ascending within a plan; covers come
// before ordinary sells, sells before buys.
type OptimizedOrder struct {
	Symbol              string          `json:"symbol"`
	Side                OrderSide       `json:"side"`
	Shares              int64           `json:"shares"`
	EstimatedPrice      decimal.Decimal `json:"estimated_price"`
	EstimatedCost       decimal.Decimal `json:"estimated_cost"`
	OriginalSizePercent int             `json:"original_size_percent"`
	AdjustedSizePercent *int            `json:"adjusted_size_percent,omitempty"`
	Priority            int             `json:"priority"`
	SkipReason          string          `json:"skip_reason,omitempty"`
	IsCover             bool            `json:"is_cover"`
	// Linkage back to the research message that motivated the order.
	SourceMessageID string `json:"source_message_id,omitempty"`
	AnalysisID      string `json:"analysis_id,omitempty"`
}

// OrderExecutionPlan is the capital-feasible, priority-ordered order list for
// one user. AvailableBuyingPower always equals BuyingPower at snapshot time
// plus TotalSellProceeds.
type OrderExecutionPlan struct {
	Orders               []OptimizedOrder `json:"orders"`
	TotalSellProceeds    decimal.Decimal  `json:"total_sell_proceeds"`
	TotalBuyCost         decimal.Decimal  `json:"total_buy_cost"`
	AvailableBuyingPower decimal.Decimal  `json:"available_buying_power"`
	ScalingApplied       bool             `json:"scaling_applied"`
	ScalingFactor        *decimal.Decimal `json:"scaling_factor,omitempty"`
	OrdersSkipped        int              `json:"orders_skipped"`
	Notes                string           `json:"notes"`
}

// ExecutionResult is the write-once summary of one executor run.
type ExecutionResult struct {
	Executed    int    `json:"executed"`
	Failed      int    `json:"failed"`
	Skipped     int    `json:"skipped"`
	TotalOrders int    `json:"total_orders"`
	Reason      string `json:"reason,omitempty"`
}

// OrderRecord is the permanent audit record of one attempted order. Failed
// placements produce a record with a nil ExternalOrderID and a non-empty
// ErrorMessage. Records are never updated or deleted.
type OrderRecord struct {
	ID              int64           `json:"id" db:"id"`
	UserID          string          `json:"user_id" db:"user_id"`
	RunID           string          `json:"run_id" db:"run_id"`
	Symbol          string          `json:"symbol" db:"symbol"`
	Side            OrderSide       `json:"side" db:"side"`
	Shares          int64           `json:"shares" db:"shares"`
	EstimatedPrice  decimal.Decimal `json:"estimated_price" db:"estimated_price"`
	EstimatedCost   decimal.Decimal `json:"estimated_cost" db:"estimated_cost"`
	IsCover         bool            `json:"is_cover" db:"is_cover"`
	ExternalOrderID *string         `json:"external_order_id" db:"external_order_id"`
	Status          string          `json:"status" db:"status"`
	FilledQty       decimal.Decimal `json:"filled_qty" db:"filled_qty"`
	FilledAvgPrice  decimal.Decimal `json:"filled_avg_price" db:"filled_avg_price"`
	ErrorMessage    string          `json:"error_message,omitempty" db:"error_message"`
	SourceMessageID string          `json:"source_message_id" db:"source_message_id"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
}

// MessageMetadataUpdate marks one research message as having produced a
// placed order with the given external id.
type MessageMetadataUpdate struct {
	MessageID       string `json:"message_id"`
	ExternalOrderID string `json:"external_order_id"`
	OrderPlaced     bool   `json:"order_placed"`
}

// RunSummary aggregates one fleet-wide pipeline run.
type RunSummary struct {
	RunID              string           `json:"run_id"`
	StartedAt          time.Time        `json:"started_at"`
	CompletedAt        time.Time        `json:"completed_at"`
	UsersAnalyzed      int              `json:"users_analyzed"`
	PortfoliosAnalyzed int              `json:"portfolios_analyzed"`
	Errors             []string         `json:"errors"`
	Metrics            map[string]int64 `json:"metrics"`
}
