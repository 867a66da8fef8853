package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"

	"github.com/HuskyDanny/FinancialAgent-sub001/internal/broker"
	"github.com/HuskyDanny/FinancialAgent-sub001/internal/locking"
	"github.com/HuskyDanny/FinancialAgent-sub001/internal/logging"
	"github.com/HuskyDanny/FinancialAgent-sub001/internal/models"
	"github.com/HuskyDanny/FinancialAgent-sub001/internal/observability"
)

// NoticeSink writes user-visible pipeline notices and the synthesis
// assessment into the decision log.
type NoticeSink interface {
	SaveNotice(ctx context.Context, userID, runID, notice string) error
	SaveAssessment(ctx context.Context, userID, runID, assessment string) error
}

// RunSink persists the fleet-wide run summary.
type RunSink interface {
	Save(ctx context.Context, summary models.RunSummary) error
}

// OrchestratorConfig tunes a fleet run.
type OrchestratorConfig struct {
	MinResearchSuccessRate float64
	RunTimeout             time.Duration
	UserLockTTL            time.Duration
	// DevSymbols, when non-empty, restricts research to the listed symbols.
	DevSymbols []string
}

// PipelineOrchestrator drives research, synthesis and execution per user.
// One user's failure is recorded and never stops the rest of the fleet.
type PipelineOrchestrator struct {
	venue       broker.Client
	coordinator *ResearchCoordinator
	synthesizer *DecisionSynthesizer
	planner     *ExecutionPlanner
	executor    *OrderExecutor
	locker      *locking.Locker
	notices     NoticeSink
	runs        RunSink
	config      OrchestratorConfig
	logger      *logging.Logger
}

func NewPipelineOrchestrator(
	venue broker.Client,
	coordinator *ResearchCoordinator,
	synthesizer *DecisionSynthesizer,
	planner *ExecutionPlanner,
	executor *OrderExecutor,
	locker *locking.Locker,
	notices NoticeSink,
	runs RunSink,
	cfg OrchestratorConfig,
	logger *logging.Logger,
) *PipelineOrchestrator {
	return &PipelineOrchestrator{
		venue:       venue,
		coordinator: coordinator,
		synthesizer: synthesizer,
		planner:     planner,
		executor:    executor,
		locker:      locker,
		notices:     notices,
		runs:        runs,
		config:      cfg,
		logger:      logger,
	}
}

// RunAll reviews every user's portfolio sequentially and persists one run
// summary at the end. Summary persistence failure is logged only; it does not
// retroactively fail the run.
func (o *PipelineOrchestrator) RunAll(ctx context.Context, users []models.UserAccount) *models.RunSummary {
	if o.config.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.config.RunTimeout)
		defer cancel()
	}

	runID := uuid.NewString()
	summary := &models.RunSummary{
		RunID:     runID,
		StartedAt: time.Now().UTC(),
		Metrics:   make(map[string]int64),
	}

	o.logger.WithFields(logging.Fields{"run_id": runID, "users": len(users)}).Info("pipeline run started")

	for _, user := range users {
		summary.UsersAnalyzed++
		observability.AddBreadcrumb(ctx, "pipeline", fmt.Sprintf("run %s: processing user %s", runID, user.UserID), sentry.LevelInfo)
		if err := o.runUserSafe(ctx, runID, user, summary); err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("user %s: %v", user.UserID, err))
			o.logger.WithError(err).WithField("user_id", user.UserID).Error("user pipeline run failed")
			observability.CaptureException(ctx, err)
			continue
		}
		summary.PortfoliosAnalyzed++
	}

	summary.CompletedAt = time.Now().UTC()
	summary.Metrics["duration_ms"] = summary.CompletedAt.Sub(summary.StartedAt).Milliseconds()

	if err := o.runs.Save(ctx, *summary); err != nil {
		o.logger.WithError(err).WithField("run_id", runID).Error("failed to persist run summary")
	}

	o.logger.WithFields(logging.Fields{
		"run_id":    runID,
		"users":     summary.UsersAnalyzed,
		"succeeded": summary.PortfoliosAnalyzed,
		"errors":    len(summary.Errors),
	}).Info("pipeline run complete")

	return summary
}

// runUserSafe isolates one user's run, converting panics into errors so a
// single bad portfolio cannot take down the fleet run.
func (o *PipelineOrchestrator) runUserSafe(ctx context.Context, runID string, user models.UserAccount, summary *models.RunSummary) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during user run: %v", r)
		}
	}()
	return o.runUser(ctx, runID, user, summary)
}

func (o *PipelineOrchestrator) runUser(ctx context.Context, runID string, user models.UserAccount, summary *models.RunSummary) error {
	entry := o.logger.WithFields(logging.Fields{"run_id": runID, "user_id": user.UserID})

	lock, err := o.locker.TryLock(ctx, locking.UserRunKey(user.UserID), o.config.UserLockTTL)
	if errors.Is(err, locking.ErrNotAcquired) {
		entry.Warn("portfolio review already in flight, skipping user")
		o.notice(ctx, user.UserID, runID, "A portfolio review is already running for this account; this run was skipped.")
		summary.Metrics["users_locked"]++
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to acquire run lock: %w", err)
	}
	defer func() {
		if releaseErr := lock.Release(context.WithoutCancel(ctx)); releaseErr != nil {
			entry.WithError(releaseErr).Warn("failed to release run lock")
		}
	}()

	positions, err := o.venue.GetPositions(ctx, user.UserID)
	if err != nil {
		return fatalErr("portfolio", fmt.Errorf("failed to fetch positions: %w", err))
	}
	account, err := o.venue.GetAccountSummary(ctx, user.UserID)
	if err != nil {
		return fatalErr("portfolio", fmt.Errorf("failed to fetch account summary: %w", err))
	}
	portfolio := models.PortfolioContext{
		TotalEquity: account.Equity,
		BuyingPower: account.BuyingPower,
		Cash:        account.Cash,
		Positions:   positions,
	}

	instruments := o.filterInstruments(BuildInstrumentList(positions, user.Watchlist))
	if len(instruments) == 0 {
		entry.Info("no instruments to review")
		o.notice(ctx, user.UserID, runID, "No holdings or watchlist items to review.")
		return nil
	}

	results, failures := o.coordinator.Run(ctx, instruments, portfolio)
	summary.Metrics["instruments_researched"] += int64(len(results))
	summary.Metrics["research_failures"] += int64(len(failures))
	for _, r := range results {
		summary.Metrics["llm_input_tokens"] += int64(r.InputTokens)
		summary.Metrics["llm_output_tokens"] += int64(r.OutputTokens)
	}

	gate := CheckGate(len(instruments), len(results), o.config.MinResearchSuccessRate)
	if !gate.Passed {
		o.notice(ctx, user.UserID, runID, fmt.Sprintf(
			"Portfolio review aborted: only %d of %d instruments were researched successfully.",
			gate.Succeeded, gate.Attempted))
		return fatalErr("gate", fmt.Errorf("research success rate %.2f below minimum %.2f", gate.SuccessRate, o.config.MinResearchSuccessRate))
	}

	batch, err := o.synthesizer.Synthesize(ctx, results, portfolio)
	if err != nil {
		o.notice(ctx, user.UserID, runID, "Portfolio review aborted: decision synthesis failed.")
		return err
	}
	if batch.Assessment != "" {
		if saveErr := o.notices.SaveAssessment(ctx, user.UserID, runID, batch.Assessment); saveErr != nil {
			entry.WithError(saveErr).Warn("failed to persist portfolio assessment")
		}
	}
	summary.Metrics["decisions"] += int64(len(batch.Decisions))

	plan := o.planner.BuildPlan(batch.Decisions, portfolio)
	if plan == nil {
		o.notice(ctx, user.UserID, runID, "Review complete: no decisions were produced, nothing to execute.")
		return nil
	}
	attachLinkage(plan, results)

	if len(plan.Orders) == 0 {
		o.notice(ctx, user.UserID, runID, "Review complete: "+plan.Notes)
		return nil
	}

	result, err := o.executor.Execute(ctx, user.UserID, runID, plan)
	if err != nil {
		return err
	}
	summary.Metrics["orders_executed"] += int64(result.Executed)
	summary.Metrics["orders_failed"] += int64(result.Failed)
	summary.Metrics["orders_skipped"] += int64(result.Skipped + plan.OrdersSkipped)

	o.notice(ctx, user.UserID, runID, executionNotice(plan, result))
	return nil
}

// filterInstruments applies the development-mode symbol allowlist. An empty
// allowlist passes everything through.
func (o *PipelineOrchestrator) filterInstruments(instruments []models.Instrument) []models.Instrument {
	if len(o.config.DevSymbols) == 0 {
		return instruments
	}
	allowed := make(map[string]bool, len(o.config.DevSymbols))
	for _, s := range o.config.DevSymbols {
		allowed[s] = true
	}
	filtered := instruments[:0]
	for _, inst := range instruments {
		if allowed[inst.Symbol] {
			filtered = append(filtered, inst)
		}
	}
	return filtered
}

// attachLinkage ties each planned order back to the research message that
// covered its symbol, so the venue call and audit trail carry provenance.
func attachLinkage(plan *models.OrderExecutionPlan, results []models.SymbolAnalysisResult) {
	bySymbol := make(map[string]models.SymbolAnalysisResult, len(results))
	for _, r := range results {
		bySymbol[r.Symbol] = r
	}
	for i := range plan.Orders {
		if r, ok := bySymbol[plan.Orders[i].Symbol]; ok {
			plan.Orders[i].SourceMessageID = r.ResultMessageID
			plan.Orders[i].AnalysisID = r.AnalysisID
		}
	}
}

func executionNotice(plan *models.OrderExecutionPlan, result *models.ExecutionResult) string {
	if result.Reason != "" {
		return fmt.Sprintf("Review complete but no orders were placed (%s).", result.Reason)
	}
	return fmt.Sprintf("Review complete: %d order(s) placed, %d failed, %d skipped. Plan: %s",
		result.Executed, result.Failed, result.Skipped, plan.Notes)
}

// notice persists a user-visible message; failures are logged, never raised.
func (o *PipelineOrchestrator) notice(ctx context.Context, userID, runID, text string) {
	if err := o.notices.SaveNotice(ctx, userID, runID, text); err != nil {
		o.logger.WithError(err).WithFields(logging.Fields{"user_id": userID, "run_id": runID}).Warn("failed to persist pipeline notice")
	}
}
