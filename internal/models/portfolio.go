package models

import (
	"github.com/shopspring/decimal"
)

// InstrumentKind distinguishes why an instrument entered a run.
type InstrumentKind string

const (
	InstrumentHolding   InstrumentKind = "holding"
	InstrumentWatchlist InstrumentKind = "watchlist"
)

// Instrument is one symbol scheduled for research in a pipeline run.
type Instrument struct {
	Symbol string         `json:"symbol"`
	Kind   InstrumentKind `json:"kind"`
}

// Position is a single brokerage position. Quantity is signed: a negative
// quantity is a short position and its MarketValue is negative as well.
type Position struct {
	Symbol              string          `json:"symbol"`
	Quantity            decimal.Decimal `json:"quantity"`
	MarketValue         decimal.Decimal `json:"market_value"`
	UnrealizedPLPercent decimal.Decimal `json:"unrealized_pl_percent"`
}

// AveragePrice derives the per-share price from market value and quantity.
// Works for shorts too since both fields carry the same sign.
func (p Position) AveragePrice() decimal.Decimal {
	if p.Quantity.IsZero() {
		return decimal.Zero
	}
	return p.MarketValue.Div(p.Quantity).Abs()
}

// IsShort reports whether the position is a short.
func (p Position) IsShort() bool {
	return p.Quantity.IsNegative()
}

// PortfolioContext is a point-in-time account snapshot fetched once per run.
// The planner never mutates it; real buying power only changes at the venue.
type PortfolioContext struct {
	TotalEquity decimal.Decimal `json:"total_equity"`
	BuyingPower decimal.Decimal `json:"buying_power"`
	Cash        decimal.Decimal `json:"cash"`
	Positions   []Position      `json:"positions"`
}

// FindPosition returns the position for symbol, if any.
func (c PortfolioContext) FindPosition(symbol string) (Position, bool) {
	for _, p := range c.Positions {
		if p.Symbol == symbol {
			return p, true
		}
	}
	return Position{}, false
}

// UserAccount is one account enrolled in scheduled portfolio reviews,
// together with its watchlist symbols.
type UserAccount struct {
	UserID    string   `json:"user_id"`
	Watchlist []string `json:"watchlist"`
}

// AccountSummary mirrors the venue's account endpoint.
type AccountSummary struct {
	Equity        decimal.Decimal `json:"equity"`
	BuyingPower   decimal.Decimal `json:"buying_power"`
	Cash          decimal.Decimal `json:"cash"`
	PositionCount int             `json:"position_count"`
}
