package pipeline

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/HuskyDanny/FinancialAgent-sub001/internal/logging"
	"github.com/HuskyDanny/FinancialAgent-sub001/internal/models"
)

// placeholderBuyPrice stands in for instruments with no held position until
// real-time pricing is attached at the venue. Share counts for such buys are
// estimates; the venue fills at market.
var placeholderBuyPrice = decimal.NewFromInt(100)

var oneHundred = decimal.NewFromInt(100)

// ExecutionPlanner turns a decision batch into a priority-ordered,
// capital-feasible order plan. Ordering is covers, then ordinary sells, then
// buys: risk reduction first, liquidity generation next, deployment last.
type ExecutionPlanner struct {
	logger *logging.Logger
}

func NewExecutionPlanner(logger *logging.Logger) *ExecutionPlanner {
	return &ExecutionPlanner{logger: logger}
}

// resolvedDecision is one actionable leg after SWAP expansion.
type resolvedDecision struct {
	symbol  string
	percent *int
}

type buyEstimate struct {
	decision resolvedDecision
	price    decimal.Decimal
	cost     decimal.Decimal
}

// BuildPlan derives the order plan from one user's decisions and portfolio
// snapshot. A nil plan means there were no decisions at all; an empty plan
// means every decision resolved to HOLD or a skip.
func (p *ExecutionPlanner) BuildPlan(decisions []models.TradingDecision, portfolio models.PortfolioContext) *models.OrderExecutionPlan {
	if len(decisions) == 0 {
		return nil
	}

	sellLegs, buyLegs := partition(decisions)

	plan := &models.OrderExecutionPlan{
		TotalSellProceeds:    decimal.Zero,
		TotalBuyCost:         decimal.Zero,
		AvailableBuyingPower: portfolio.BuyingPower,
	}

	if len(sellLegs) == 0 && len(buyLegs) == 0 {
		plan.Notes = "no action required; all decisions are HOLD"
		return plan
	}

	var coverOrders, sellOrders []models.OptimizedOrder

	for _, leg := range sellLegs {
		position, held := portfolio.FindPosition(leg.symbol)
		if !held {
			p.skip(plan, leg.symbol, "no position held")
			continue
		}
		if leg.percent == nil {
			p.skip(plan, leg.symbol, "missing position size")
			continue
		}
		percent := decimal.NewFromInt(int64(*leg.percent))

		if position.IsShort() {
			// A SELL against a short is a request to close it: buy to cover.
			absQty := position.Quantity.Abs()
			shares := absQty.Mul(percent).Div(oneHundred).Floor().IntPart()
			if shares < 1 {
				p.skip(plan, leg.symbol, "cover size below one share")
				continue
			}
			price := position.AveragePrice()
			coverOrders = append(coverOrders, models.OptimizedOrder{
				Symbol:              leg.symbol,
				Side:                models.OrderSideBuy,
				Shares:              shares,
				EstimatedPrice:      price,
				EstimatedCost:       price.Mul(decimal.NewFromInt(shares)),
				OriginalSizePercent: *leg.percent,
				IsCover:             true,
			})
			continue
		}

		shares := position.Quantity.Mul(percent).Div(oneHundred).Floor().IntPart()
		if shares < 1 {
			p.skip(plan, leg.symbol, "sell size below one share")
			continue
		}
		price := position.AveragePrice()
		proceeds := price.Mul(decimal.NewFromInt(shares))
		sellOrders = append(sellOrders, models.OptimizedOrder{
			Symbol:              leg.symbol,
			Side:                models.OrderSideSell,
			Shares:              shares,
			EstimatedPrice:      price,
			EstimatedCost:       proceeds,
			OriginalSizePercent: *leg.percent,
		})
		// Covers consume capital; only ordinary sells generate it.
		plan.TotalSellProceeds = plan.TotalSellProceeds.Add(proceeds)
	}

	priority := 1
	for i := range coverOrders {
		coverOrders[i].Priority = priority
		priority++
	}
	for i := range sellOrders {
		sellOrders[i].Priority = priority
		priority++
	}
	plan.Orders = append(plan.Orders, coverOrders...)
	plan.Orders = append(plan.Orders, sellOrders...)

	plan.AvailableBuyingPower = portfolio.BuyingPower.Add(plan.TotalSellProceeds)

	// Buy percentages are taken of the pre-sell buying power; feasibility is
	// checked against the post-sell available figure. Observed behavior of
	// the decision contract, kept as-is pending product clarification.
	var estimates []buyEstimate
	for _, leg := range buyLegs {
		if leg.percent == nil {
			p.skip(plan, leg.symbol, "missing position size")
			continue
		}
		percent := decimal.NewFromInt(int64(*leg.percent))
		cost := portfolio.BuyingPower.Mul(percent).Div(oneHundred)

		price := placeholderBuyPrice
		if position, held := portfolio.FindPosition(leg.symbol); held && !position.Quantity.IsZero() {
			price = position.AveragePrice()
		}

		estimates = append(estimates, buyEstimate{decision: leg, price: price, cost: cost})
		plan.TotalBuyCost = plan.TotalBuyCost.Add(cost)
	}

	var scalingFactor decimal.Decimal
	if plan.TotalBuyCost.GreaterThan(plan.AvailableBuyingPower) && plan.TotalBuyCost.IsPositive() {
		scalingFactor = plan.AvailableBuyingPower.Div(plan.TotalBuyCost)
		plan.ScalingApplied = true
		plan.ScalingFactor = &scalingFactor
	}

	for _, est := range estimates {
		cost := est.cost
		var adjustedPercent *int
		if plan.ScalingApplied {
			cost = est.cost.Mul(scalingFactor)
			adj := int(decimal.NewFromInt(int64(*est.decision.percent)).Mul(scalingFactor).Floor().IntPart())
			adjustedPercent = &adj
		}

		shares := cost.Div(est.price).Floor().IntPart()
		if shares < 1 {
			p.skip(plan, est.decision.symbol, "buy size below one share")
			continue
		}

		plan.Orders = append(plan.Orders, models.OptimizedOrder{
			Symbol:              est.decision.symbol,
			Side:                models.OrderSideBuy,
			Shares:              shares,
			EstimatedPrice:      est.price,
			EstimatedCost:       cost,
			OriginalSizePercent: *est.decision.percent,
			AdjustedSizePercent: adjustedPercent,
			Priority:            priority,
		})
		priority++
	}

	plan.Notes = p.buildNotes(plan, len(coverOrders), len(sellOrders))

	p.logger.WithFields(logging.Fields{
		"orders":          len(plan.Orders),
		"skipped":         plan.OrdersSkipped,
		"sell_proceeds":   plan.TotalSellProceeds.String(),
		"buy_cost":        plan.TotalBuyCost.String(),
		"scaling_applied": plan.ScalingApplied,
	}).Info("execution plan built")

	return plan
}

// partition drops HOLDs and splits remaining decisions into sell and buy
// legs, preserving decision order within each side. A SWAP contributes a sell
// leg for the source symbol and a buy leg for the target.
func partition(decisions []models.TradingDecision) (sells, buys []resolvedDecision) {
	for _, d := range decisions {
		switch d.Action {
		case models.ActionSell:
			sells = append(sells, resolvedDecision{symbol: d.Symbol, percent: d.PositionSizePercent})
		case models.ActionBuy:
			buys = append(buys, resolvedDecision{symbol: d.Symbol, percent: d.PositionSizePercent})
		case models.ActionSwap:
			sells = append(sells, resolvedDecision{symbol: d.SwapFromSymbol, percent: d.PositionSizePercent})
			buys = append(buys, resolvedDecision{symbol: d.Symbol, percent: d.PositionSizePercent})
		}
	}
	return sells, buys
}

func (p *ExecutionPlanner) skip(plan *models.OrderExecutionPlan, symbol, reason string) {
	plan.OrdersSkipped++
	p.logger.WithFields(logging.Fields{"symbol": symbol, "reason": reason}).Debug("decision skipped")
}

func (p *ExecutionPlanner) buildNotes(plan *models.OrderExecutionPlan, covers, sells int) string {
	var parts []string
	if covers > 0 {
		parts = append(parts, fmt.Sprintf("%d short cover(s) first", covers))
	}
	if sells > 0 {
		parts = append(parts, fmt.Sprintf("%d sell(s) generating %s in liquidity", sells, plan.TotalSellProceeds.StringFixed(2)))
	}
	if plan.ScalingApplied {
		parts = append(parts, fmt.Sprintf("buy demand %s exceeds available %s; all buys scaled by %s",
			plan.TotalBuyCost.StringFixed(2), plan.AvailableBuyingPower.StringFixed(2), plan.ScalingFactor.StringFixed(4)))
	} else if plan.TotalBuyCost.IsPositive() {
		parts = append(parts, fmt.Sprintf("buy demand %s fits within available %s",
			plan.TotalBuyCost.StringFixed(2), plan.AvailableBuyingPower.StringFixed(2)))
	}
	if plan.OrdersSkipped > 0 {
		parts = append(parts, fmt.Sprintf("%d decision(s) skipped", plan.OrdersSkipped))
	}
	if len(parts) == 0 {
		return "no executable orders"
	}
	return strings.Join(parts, "; ")
}
