// Package research drives the LLM calls of the pipeline: independent
// per-instrument analysis and the single holistic decision synthesis.
package research

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/HuskyDanny/FinancialAgent-sub001/internal/llm"
	"github.com/HuskyDanny/FinancialAgent-sub001/internal/models"
)

// Agent is the research collaborator the pipeline depends on.
type Agent interface {
	// Research produces one context-free analysis for a single instrument.
	Research(ctx context.Context, instrument models.Instrument, position *models.Position) (*Analysis, error)
	// Synthesize reviews all analyses plus the portfolio snapshot and returns
	// exactly one decision per analyzed symbol.
	Synthesize(ctx context.Context, results []models.SymbolAnalysisResult, portfolio models.PortfolioContext) (*models.DecisionBatch, error)
}

// Analysis is one instrument's research output before persistence assigns
// message and conversation ids.
type Analysis struct {
	Symbol       string
	Text         string
	AnalysisID   string
	InputTokens  int
	OutputTokens int
}

type Config struct {
	ResearchModel string
	DecisionModel string
	MaxTokens     int
}

func DefaultConfig() Config {
	return Config{
		ResearchModel: "claude-sonnet-4-20250514",
		DecisionModel: "claude-sonnet-4-20250514",
		MaxTokens:     4096,
	}
}

// LLMAgent implements Agent over an llm.Client.
type LLMAgent struct {
	client llm.Client
	config Config
}

var _ Agent = (*LLMAgent)(nil)

func NewLLMAgent(client llm.Client, cfg Config) *LLMAgent {
	if cfg.ResearchModel == "" {
		cfg.ResearchModel = DefaultConfig().ResearchModel
	}
	if cfg.DecisionModel == "" {
		cfg.DecisionModel = DefaultConfig().DecisionModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultConfig().MaxTokens
	}
	return &LLMAgent{client: client, config: cfg}
}

const researchSystemPrompt = `You are an equity research analyst. Analyze the given instrument on its own merits: business momentum, valuation, technical posture, and near-term catalysts. Do not reference any other holdings. End with a one-paragraph outlook.`

func (a *LLMAgent) Research(ctx context.Context, instrument models.Instrument, position *models.Position) (*Analysis, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Analyze %s.\n", instrument.Symbol)
	if instrument.Kind == models.InstrumentHolding && position != nil {
		fmt.Fprintf(&sb, "Currently held: %s shares, market value %s, unrealized P/L %s%%.\n",
			position.Quantity.String(), position.MarketValue.String(), position.UnrealizedPLPercent.String())
	} else {
		sb.WriteString("On the watchlist, not currently held.\n")
	}

	resp, err := a.client.Complete(ctx, &llm.CompletionRequest{
		Model:     a.config.ResearchModel,
		System:    researchSystemPrompt,
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: sb.String()}},
		MaxTokens: a.config.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("research call for %s failed: %w", instrument.Symbol, err)
	}
	if strings.TrimSpace(resp.Text) == "" {
		return nil, fmt.Errorf("research call for %s returned no analysis", instrument.Symbol)
	}

	return &Analysis{
		Symbol:       instrument.Symbol,
		Text:         resp.Text,
		AnalysisID:   fmt.Sprintf("analysis_%s_%d", instrument.Symbol, time.Now().UnixNano()),
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}, nil
}

const synthesisSystemPrompt = `You are a portfolio manager reviewing fresh research across an entire portfolio. Weigh the analyses against each other and against available capital, then commit to one decision per symbol. Position sizes are integers 1-100: for BUY a percent of buying power, for SELL a percent of the held quantity. Use HOLD when no action is warranted.`

// decisionTool is the forced tool whose input schema shapes the synthesis
// output. Decisions come back as structured JSON only; free-text decision
// parsing is deliberately unsupported.
func decisionTool(symbols []string) *llm.ToolDefinition {
	return &llm.ToolDefinition{
		Name:        "submit_trading_decisions",
		Description: "Submit one trading decision per analyzed symbol plus an overall portfolio assessment.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"decisions": map[string]interface{}{
					"type": "array",
					"items": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"symbol": map[string]interface{}{"type": "string", "enum": symbols},
							"action": map[string]interface{}{"type": "string", "enum": []string{"BUY", "SELL", "HOLD", "SWAP"}},
							"position_size_percent": map[string]interface{}{
								"type":        []string{"integer", "null"},
								"minimum":     1,
								"maximum":     100,
								"description": "null exactly when action is HOLD",
							},
							"swap_from_symbol":  map[string]interface{}{"type": "string"},
							"confidence":        map[string]interface{}{"type": "integer", "minimum": 1, "maximum": 10},
							"reasoning_summary": map[string]interface{}{"type": "string"},
						},
						"required": []string{"symbol", "action", "confidence", "reasoning_summary"},
					},
				},
				"portfolio_assessment": map[string]interface{}{"type": "string"},
			},
			"required": []string{"decisions", "portfolio_assessment"},
		},
	}
}

func (a *LLMAgent) Synthesize(ctx context.Context, results []models.SymbolAnalysisResult, portfolio models.PortfolioContext) (*models.DecisionBatch, error) {
	if len(results) == 0 {
		return nil, fmt.Errorf("no analysis results to synthesize")
	}

	symbols := make([]string, 0, len(results))
	var sb strings.Builder
	sb.WriteString("PORTFOLIO SNAPSHOT\n")
	fmt.Fprintf(&sb, "Total equity: %s  Buying power: %s  Cash: %s\n",
		portfolio.TotalEquity.String(), portfolio.BuyingPower.String(), portfolio.Cash.String())
	for _, p := range portfolio.Positions {
		fmt.Fprintf(&sb, "- %s: qty %s, market value %s, unrealized P/L %s%%\n",
			p.Symbol, p.Quantity.String(), p.MarketValue.String(), p.UnrealizedPLPercent.String())
	}
	sb.WriteString("\nRESEARCH RESULTS\n")
	for _, r := range results {
		symbols = append(symbols, r.Symbol)
		fmt.Fprintf(&sb, "\n=== %s (%s) ===\n%s\n", r.Symbol, r.Kind, r.Analysis)
	}
	fmt.Fprintf(&sb, "\nSubmit exactly one decision for each of: %s.\n", strings.Join(symbols, ", "))

	resp, err := a.client.Complete(ctx, &llm.CompletionRequest{
		Model:     a.config.DecisionModel,
		System:    synthesisSystemPrompt,
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: sb.String()}},
		MaxTokens: a.config.MaxTokens,
		Tool:      decisionTool(symbols),
		ForceTool: true,
	})
	if err != nil {
		return nil, fmt.Errorf("decision synthesis failed: %w", err)
	}
	if len(resp.ToolInput) == 0 {
		return nil, fmt.Errorf("decision synthesis returned no structured output")
	}

	return ParseDecisionBatch(resp.ToolInput)
}

// ParseDecisionBatch decodes and validates the structured synthesis output.
// Invalid decisions fail the whole batch; there is no lenient fallback path.
func ParseDecisionBatch(raw json.RawMessage) (*models.DecisionBatch, error) {
	var batch models.DecisionBatch
	if err := json.Unmarshal(raw, &batch); err != nil {
		return nil, fmt.Errorf("failed to decode decision batch: %w", err)
	}
	if len(batch.Decisions) == 0 {
		return nil, fmt.Errorf("decision batch contains no decisions")
	}
	for _, d := range batch.Decisions {
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("invalid decision: %w", err)
		}
	}
	return &batch, nil
}
