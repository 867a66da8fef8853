package models

import (
	"fmt"
)

// DecisionAction is the action the synthesizer chose for one symbol.
type DecisionAction string

const (
	ActionBuy  DecisionAction = "BUY"
	ActionSell DecisionAction = "SELL"
	ActionHold DecisionAction = "HOLD"
	ActionSwap DecisionAction = "SWAP"
)

// SymbolAnalysisResult is one instrument's research output. Produced once per
// instrument per run, immutable, consumed only by decision synthesis.
type SymbolAnalysisResult struct {
	Symbol          string         `json:"symbol"`
	Kind            InstrumentKind `json:"analysis_kind"`
	Analysis        string         `json:"analysis_text"`
	AnalysisID      string         `json:"analysis_id"`
	ConversationID  string         `json:"correlation_id"`
	ResultMessageID string         `json:"result_message_id"`
	InputTokens     int            `json:"input_tokens,omitempty"`
	OutputTokens    int            `json:"output_tokens,omitempty"`
}

// TradingDecision is one per-symbol instruction from the synthesis call.
// PositionSizePercent is nil exactly when Action is HOLD; otherwise it is an
// integer in [1,100]. For BUY the percent applies to buying power, for SELL
// to the held quantity.
type TradingDecision struct {
	Symbol              string         `json:"symbol"`
	Action              DecisionAction `json:"action"`
	PositionSizePercent *int           `json:"position_size_percent"`
	SwapFromSymbol      string         `json:"swap_from_symbol,omitempty"`
	Confidence          int            `json:"confidence"`
	Reasoning           string         `json:"reasoning_summary"`
}

// Validate checks the size-percent invariant and confidence range.
func (d TradingDecision) Validate() error {
	switch d.Action {
	case ActionBuy, ActionSell, ActionHold, ActionSwap:
	default:
		return fmt.Errorf("unknown action %q for %s", d.Action, d.Symbol)
	}
	if d.Action == ActionHold {
		if d.PositionSizePercent != nil {
			return fmt.Errorf("%s: HOLD must not carry a position size", d.Symbol)
		}
	} else if d.PositionSizePercent != nil {
		if p := *d.PositionSizePercent; p < 1 || p > 100 {
			return fmt.Errorf("%s: position size %d outside [1,100]", d.Symbol, p)
		}
	}
	if d.Confidence < 1 || d.Confidence > 10 {
		return fmt.Errorf("%s: confidence %d outside [1,10]", d.Symbol, d.Confidence)
	}
	return nil
}

// DecisionBatch is the full synthesis output: one decision per analyzed
// symbol plus a free-text portfolio assessment.
type DecisionBatch struct {
	Decisions  []TradingDecision `json:"decisions"`
	Assessment string            `json:"portfolio_assessment"`
}

// Missing reports which of the given symbols lack a decision. The synthesis
// prompt asks for full coverage; callers validate rather than trust it.
func (b DecisionBatch) Missing(symbols []string) []string {
	seen := make(map[string]bool, len(b.Decisions))
	for _, d := range b.Decisions {
		seen[d.Symbol] = true
	}
	var missing []string
	for _, s := range symbols {
		if !seen[s] {
			missing = append(missing, s)
		}
	}
	return missing
}
