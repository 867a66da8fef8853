package pipeline

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HuskyDanny/FinancialAgent-sub001/internal/logging"
	"github.com/HuskyDanny/FinancialAgent-sub001/internal/models"
)

func TestCheckGate(t *testing.T) {
	tests := []struct {
		name      string
		attempted int
		succeeded int
		minRate   float64
		passed    bool
	}{
		{"all succeeded", 10, 10, 0.5, true},
		{"exactly at threshold", 10, 5, 0.5, true},
		{"below threshold", 10, 4, 0.5, false},
		{"nothing attempted", 0, 0, 0.5, false},
		{"zero minimum still needs attempts", 0, 0, 0, false},
		{"single success", 1, 1, 0.5, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CheckGate(tt.attempted, tt.succeeded, tt.minRate)
			assert.Equal(t, tt.passed, result.Passed)
			assert.Equal(t, tt.attempted, result.Attempted)
			assert.Equal(t, tt.succeeded, result.Succeeded)
		})
	}
}

func analysisResults(symbols ...string) []models.SymbolAnalysisResult {
	out := make([]models.SymbolAnalysisResult, len(symbols))
	for i, s := range symbols {
		out[i] = models.SymbolAnalysisResult{Symbol: s, Analysis: "analysis of " + s}
	}
	return out
}

func TestSynthesizeNoResultsIsFatal(t *testing.T) {
	synthesizer := NewDecisionSynthesizer(&fakeAgent{}, logging.NewNop())

	_, err := synthesizer.Synthesize(context.Background(), nil, models.PortfolioContext{})
	require.Error(t, err)
	assert.True(t, IsFatal(err))
}

func TestSynthesizeAgentErrorIsRecoverable(t *testing.T) {
	agent := &fakeAgent{synthesizeErr: fmt.Errorf("rate limited")}
	synthesizer := NewDecisionSynthesizer(agent, logging.NewNop())

	_, err := synthesizer.Synthesize(context.Background(), analysisResults("AAPL"), models.PortfolioContext{})
	require.Error(t, err)
	assert.False(t, IsFatal(err))

	var pe *PhaseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, SeverityRecoverable, pe.Severity)
}

func TestSynthesizeEmptyBatchIsError(t *testing.T) {
	agent := &fakeAgent{synthesizeBatch: &models.DecisionBatch{}}
	synthesizer := NewDecisionSynthesizer(agent, logging.NewNop())

	_, err := synthesizer.Synthesize(context.Background(), analysisResults("AAPL"), models.PortfolioContext{})
	assert.Error(t, err)
}

func TestSynthesizeReturnsBatch(t *testing.T) {
	batch := &models.DecisionBatch{
		Decisions: []models.TradingDecision{
			{Symbol: "AAPL", Action: models.ActionHold, Confidence: 6},
		},
		Assessment: "portfolio is balanced",
	}
	agent := &fakeAgent{synthesizeBatch: batch}
	synthesizer := NewDecisionSynthesizer(agent, logging.NewNop())

	got, err := synthesizer.Synthesize(context.Background(), analysisResults("AAPL"), models.PortfolioContext{})
	require.NoError(t, err)
	assert.Equal(t, batch, got)
	assert.Len(t, agent.synthesizeGot, 1, "agent sees every analysis")
}

func TestSynthesizeToleratesPartialCoverage(t *testing.T) {
	// A batch covering only one of two analyzed symbols is logged, not
	// rejected.
	batch := &models.DecisionBatch{
		Decisions: []models.TradingDecision{
			{Symbol: "AAPL", Action: models.ActionHold, Confidence: 6},
		},
	}
	agent := &fakeAgent{synthesizeBatch: batch}
	synthesizer := NewDecisionSynthesizer(agent, logging.NewNop())

	got, err := synthesizer.Synthesize(context.Background(), analysisResults("AAPL", "NVDA"), models.PortfolioContext{})
	require.NoError(t, err)
	assert.Len(t, got.Decisions, 1)
}
