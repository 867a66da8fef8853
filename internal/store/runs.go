package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/HuskyDanny/FinancialAgent-sub001/internal/database"
	"github.com/HuskyDanny/FinancialAgent-sub001/internal/logging"
	"github.com/HuskyDanny/FinancialAgent-sub001/internal/models"
)

// RunStore persists run-level summaries.
type RunStore struct {
	db     database.DBPool
	logger *logging.Logger
}

func NewRunStore(db database.DBPool, logger *logging.Logger) *RunStore {
	return &RunStore{db: db, logger: logger}
}

// Save writes one run summary. Errors and metrics are stored as JSON.
func (s *RunStore) Save(ctx context.Context, summary models.RunSummary) error {
	if summary.RunID == "" {
		return fmt.Errorf("run id is required")
	}

	errsJSON, err := json.Marshal(summary.Errors)
	if err != nil {
		return fmt.Errorf("failed to marshal run errors: %w", err)
	}
	metricsJSON, err := json.Marshal(summary.Metrics)
	if err != nil {
		return fmt.Errorf("failed to marshal run metrics: %w", err)
	}

	const query = `
		INSERT INTO pipeline_runs (run_id, started_at, completed_at, users_analyzed, portfolios_analyzed, errors, metrics)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := s.db.Exec(ctx, query,
		summary.RunID, summary.StartedAt, summary.CompletedAt,
		summary.UsersAnalyzed, summary.PortfoliosAnalyzed, errsJSON, metricsJSON,
	); err != nil {
		return fmt.Errorf("failed to save run record: %w", err)
	}

	s.logger.WithField("run_id", summary.RunID).Info("run record persisted")
	return nil
}
