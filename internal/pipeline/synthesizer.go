package pipeline

import (
	"context"
	"fmt"

	"github.com/HuskyDanny/FinancialAgent-sub001/internal/logging"
	"github.com/HuskyDanny/FinancialAgent-sub001/internal/models"
	"github.com/HuskyDanny/FinancialAgent-sub001/internal/research"
)

// GateResult is the coverage check between research and synthesis.
type GateResult struct {
	Attempted   int
	Succeeded   int
	SuccessRate float64
	Passed      bool
}

// CheckGate computes the research success rate against the configured
// minimum. Failing the gate aborts synthesis and execution for the user:
// decisions made on partial market coverage would not be holistic, so the
// policy is all-or-nothing rather than synthesizing over the surviving subset.
func CheckGate(attempted, succeeded int, minRate float64) GateResult {
	result := GateResult{Attempted: attempted, Succeeded: succeeded}
	if attempted == 0 {
		return result
	}
	result.SuccessRate = float64(succeeded) / float64(attempted)
	result.Passed = result.SuccessRate >= minRate
	return result
}

// DecisionSynthesizer wraps the single holistic synthesis call.
type DecisionSynthesizer struct {
	agent  research.Agent
	logger *logging.Logger
}

func NewDecisionSynthesizer(agent research.Agent, logger *logging.Logger) *DecisionSynthesizer {
	return &DecisionSynthesizer{agent: agent, logger: logger}
}

// Synthesize runs the one decision call over every analysis plus the
// portfolio snapshot. On failure no decisions exist and phase 3 is skipped.
func (s *DecisionSynthesizer) Synthesize(ctx context.Context, results []models.SymbolAnalysisResult, portfolio models.PortfolioContext) (*models.DecisionBatch, error) {
	if len(results) == 0 {
		return nil, fatalErr("synthesis", fmt.Errorf("no research results to synthesize"))
	}

	batch, err := s.agent.Synthesize(ctx, results, portfolio)
	if err != nil {
		return nil, recoverableErr("synthesis", err)
	}
	if batch == nil || len(batch.Decisions) == 0 {
		return nil, recoverableErr("synthesis", fmt.Errorf("synthesis produced no decisions"))
	}

	symbols := make([]string, len(results))
	for i, r := range results {
		symbols[i] = r.Symbol
	}
	if missing := batch.Missing(symbols); len(missing) > 0 {
		// The schema asks for full coverage; log the gap rather than guess at
		// decisions for the uncovered symbols.
		s.logger.WithField("symbols", missing).Warn("synthesis left symbols without a decision")
	}

	s.logger.WithFields(logging.Fields{
		"decisions": len(batch.Decisions),
	}).Info("decision synthesis complete")

	return batch, nil
}
