package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/HuskyDanny/FinancialAgent-sub001/internal/logging"
	"github.com/HuskyDanny/FinancialAgent-sub001/internal/models"
	"github.com/HuskyDanny/FinancialAgent-sub001/internal/research"
)

// ResearchMessageSink persists successful research into the per-instrument
// conversation of the system portfolio account.
type ResearchMessageSink interface {
	SaveResearch(ctx context.Context, accountID, symbol, analysisID, text string) (conversationID, messageID string, err error)
}

// ResearchFailure records one instrument whose research did not produce a
// usable result. Failures never cancel sibling research in the same batch.
type ResearchFailure struct {
	Symbol string
	Err    error
}

// ResearchCoordinatorConfig tunes phase 1.
type ResearchCoordinatorConfig struct {
	BatchSize int
	AccountID string
}

func DefaultResearchCoordinatorConfig() ResearchCoordinatorConfig {
	return ResearchCoordinatorConfig{
		BatchSize: 5,
		AccountID: "portfolio-system",
	}
}

// ResearchCoordinator runs independent instrument research with bounded
// fan-out: waves of at most BatchSize concurrent calls, each wave fully
// awaited before the next starts.
type ResearchCoordinator struct {
	agent    research.Agent
	messages ResearchMessageSink
	config   ResearchCoordinatorConfig
	logger   *logging.Logger
}

func NewResearchCoordinator(agent research.Agent, messages ResearchMessageSink, cfg ResearchCoordinatorConfig, logger *logging.Logger) *ResearchCoordinator {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = DefaultResearchCoordinatorConfig().BatchSize
	}
	return &ResearchCoordinator{agent: agent, messages: messages, config: cfg, logger: logger}
}

// BuildInstrumentList merges holdings and watchlist symbols, deduplicating by
// symbol with holdings taking precedence.
func BuildInstrumentList(positions []models.Position, watchlist []string) []models.Instrument {
	seen := make(map[string]bool, len(positions)+len(watchlist))
	instruments := make([]models.Instrument, 0, len(positions)+len(watchlist))

	for _, p := range positions {
		if seen[p.Symbol] {
			continue
		}
		seen[p.Symbol] = true
		instruments = append(instruments, models.Instrument{Symbol: p.Symbol, Kind: models.InstrumentHolding})
	}
	for _, symbol := range watchlist {
		if seen[symbol] {
			continue
		}
		seen[symbol] = true
		instruments = append(instruments, models.Instrument{Symbol: symbol, Kind: models.InstrumentWatchlist})
	}
	return instruments
}

// Run researches every instrument and returns successful results plus
// per-instrument failures. A failed instrument does not stop its batch.
func (c *ResearchCoordinator) Run(ctx context.Context, instruments []models.Instrument, portfolio models.PortfolioContext) ([]models.SymbolAnalysisResult, []ResearchFailure) {
	resultSlots := make([]*models.SymbolAnalysisResult, len(instruments))
	failureSlots := make([]*ResearchFailure, len(instruments))

	for start := 0; start < len(instruments); start += c.config.BatchSize {
		end := start + c.config.BatchSize
		if end > len(instruments) {
			end = len(instruments)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				resultSlots[idx], failureSlots[idx] = c.researchOne(ctx, instruments[idx], portfolio)
			}(i)
		}
		wg.Wait()
	}

	results := make([]models.SymbolAnalysisResult, 0, len(instruments))
	var failures []ResearchFailure
	for i := range instruments {
		switch {
		case resultSlots[i] != nil:
			results = append(results, *resultSlots[i])
		case failureSlots[i] != nil:
			failures = append(failures, *failureSlots[i])
		}
	}

	c.logger.WithFields(logging.Fields{
		"attempted": len(instruments),
		"succeeded": len(results),
		"failed":    len(failures),
	}).Info("research phase complete")

	return results, failures
}

func (c *ResearchCoordinator) researchOne(ctx context.Context, instrument models.Instrument, portfolio models.PortfolioContext) (result *models.SymbolAnalysisResult, failure *ResearchFailure) {
	// Research runs on its own goroutine; a panic here must become a
	// per-instrument failure, not a process crash.
	defer func() {
		if r := recover(); r != nil {
			result = nil
			failure = &ResearchFailure{Symbol: instrument.Symbol, Err: fmt.Errorf("panic during research: %v", r)}
		}
	}()

	var position *models.Position
	if p, ok := portfolio.FindPosition(instrument.Symbol); ok {
		position = &p
	}

	analysis, err := c.agent.Research(ctx, instrument, position)
	if err != nil {
		c.logger.WithError(err).WithField("symbol", instrument.Symbol).Warn("instrument research failed")
		return nil, &ResearchFailure{Symbol: instrument.Symbol, Err: err}
	}
	if analysis == nil || analysis.Text == "" {
		return nil, &ResearchFailure{Symbol: instrument.Symbol, Err: fmt.Errorf("empty analysis")}
	}

	conversationID, messageID, err := c.messages.SaveResearch(ctx, c.config.AccountID, instrument.Symbol, analysis.AnalysisID, analysis.Text)
	if err != nil {
		c.logger.WithError(err).WithField("symbol", instrument.Symbol).Warn("failed to persist research message")
		return nil, &ResearchFailure{Symbol: instrument.Symbol, Err: err}
	}

	return &models.SymbolAnalysisResult{
		Symbol:          instrument.Symbol,
		Kind:            instrument.Kind,
		Analysis:        analysis.Text,
		AnalysisID:      analysis.AnalysisID,
		ConversationID:  conversationID,
		ResultMessageID: messageID,
		InputTokens:     analysis.InputTokens,
		OutputTokens:    analysis.OutputTokens,
	}, nil
}
