// Command pipeline runs the portfolio review pipeline: per-instrument
// research, one holistic decision pass, order planning and execution. By
// default it performs a single fleet-wide run and exits; with
// pipeline.schedule set it stays resident and runs on the cron schedule.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/HuskyDanny/FinancialAgent-sub001/internal/broker"
	"github.com/HuskyDanny/FinancialAgent-sub001/internal/config"
	"github.com/HuskyDanny/FinancialAgent-sub001/internal/database"
	"github.com/HuskyDanny/FinancialAgent-sub001/internal/llm"
	"github.com/HuskyDanny/FinancialAgent-sub001/internal/locking"
	"github.com/HuskyDanny/FinancialAgent-sub001/internal/logging"
	"github.com/HuskyDanny/FinancialAgent-sub001/internal/observability"
	"github.com/HuskyDanny/FinancialAgent-sub001/internal/pipeline"
	"github.com/HuskyDanny/FinancialAgent-sub001/internal/research"
	"github.com/HuskyDanny/FinancialAgent-sub001/internal/store"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "pipeline failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Local development convenience; production supplies real env vars.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logging.New(cfg.LogLevel, cfg.Environment)
	defer func() { _ = logger.Sync() }()
	if cfg.Environment == "development" {
		// Development always logs at debug, whatever log_level says.
		logger.SetLevel("debug")
	}

	if err := observability.InitSentry(cfg.Sentry, version, cfg.Environment); err != nil {
		logger.WithError(err).Warn("failed to initialize Sentry")
	}
	defer observability.Flush(context.Background())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgresConnection(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	redisClient, err := database.NewRedisConnection(cfg.Redis, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	defer redisClient.Close()

	venue := broker.NewHTTPClient(broker.Config{
		ServiceURL: cfg.Broker.ServiceURL,
		APIKey:     cfg.Broker.APIKey,
		APISecret:  cfg.Broker.APISecret,
		Timeout:    cfg.Broker.Timeout,
	})

	llmClient := llm.NewAnthropicClient(llm.ClientConfig{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		HTTPTimeout: cfg.LLM.Timeout,
	})
	defer func() { _ = llmClient.Close() }()

	agent := research.NewLLMAgent(llmClient, research.Config{
		ResearchModel: cfg.LLM.ResearchModel,
		DecisionModel: cfg.LLM.DecisionModel,
		MaxTokens:     cfg.LLM.MaxTokens,
	})

	orderStore := store.NewOrderStore(db, logger)
	messageStore := store.NewMessageStore(db, logger)
	runStore := store.NewRunStore(db, logger)
	userStore := store.NewUserStore(db, logger)

	coordinator := pipeline.NewResearchCoordinator(agent, messageStore, pipeline.ResearchCoordinatorConfig{
		BatchSize: cfg.Pipeline.ResearchBatchSize,
		AccountID: cfg.Pipeline.SystemAccountID,
	}, logger)
	synthesizer := pipeline.NewDecisionSynthesizer(agent, logger)
	planner := pipeline.NewExecutionPlanner(logger)
	executor := pipeline.NewOrderExecutor(venue, orderStore, messageStore, logger)
	locker := locking.NewLocker(redisClient.Client)

	orchestrator := pipeline.NewPipelineOrchestrator(
		venue, coordinator, synthesizer, planner, executor,
		locker, messageStore, runStore,
		pipeline.OrchestratorConfig{
			MinResearchSuccessRate: cfg.Pipeline.MinResearchSuccessRate,
			RunTimeout:             cfg.Pipeline.RunTimeout,
			UserLockTTL:            cfg.Pipeline.UserLockTTL,
			DevSymbols:             cfg.Pipeline.DevSymbols,
		},
		logger,
	)

	runOnce := func() {
		// The startup ping can be hours stale on a scheduled run, and without
		// Redis the per-user run locks cannot be taken.
		if err := redisClient.HealthCheck(ctx); err != nil {
			logger.WithError(err).Error("redis unavailable, skipping pipeline run")
			observability.CaptureException(ctx, err)
			return
		}
		users, err := userStore.ListActive(ctx)
		if err != nil {
			logger.WithError(err).Error("failed to list active users")
			observability.CaptureException(ctx, err)
			return
		}
		if len(users) == 0 {
			logger.Info("no active users enrolled, nothing to do")
			return
		}
		orchestrator.RunAll(ctx, users)
	}

	if cfg.Pipeline.Schedule == "" {
		runOnce()
		return nil
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Pipeline.Schedule, runOnce); err != nil {
		return fmt.Errorf("invalid pipeline schedule %q: %w", cfg.Pipeline.Schedule, err)
	}
	scheduler.Start()
	logger.WithField("schedule", cfg.Pipeline.Schedule).Info("pipeline scheduler started")

	<-ctx.Done()
	logger.Info("shutdown signal received")

	stopCtx := scheduler.Stop()
	<-stopCtx.Done()
	logger.Info("pipeline scheduler stopped")
	return nil
}
