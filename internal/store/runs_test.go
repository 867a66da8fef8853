package store

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HuskyDanny/FinancialAgent-sub001/internal/database"
	"github.com/HuskyDanny/FinancialAgent-sub001/internal/logging"
	"github.com/HuskyDanny/FinancialAgent-sub001/internal/models"
)

func TestRunStoreSave(t *testing.T) {
	db, mock, err := database.NewMockDBPool()
	require.NoError(t, err)
	t.Cleanup(db.Close)
	store := NewRunStore(db, logging.NewNop())

	now := time.Now().UTC()
	summary := models.RunSummary{
		RunID:              "run-1",
		StartedAt:          now,
		CompletedAt:        now.Add(time.Minute),
		UsersAnalyzed:      3,
		PortfoliosAnalyzed: 2,
		Errors:             []string{"user u3: gate failed"},
		Metrics:            map[string]int64{"orders_executed": 5},
	}

	mock.ExpectExec("INSERT INTO pipeline_runs").
		WithArgs("run-1", summary.StartedAt, summary.CompletedAt, 3, 2, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Save(context.Background(), summary))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunStoreSaveRequiresRunID(t *testing.T) {
	db, _, err := database.NewMockDBPool()
	require.NoError(t, err)
	t.Cleanup(db.Close)
	store := NewRunStore(db, logging.NewNop())

	err = store.Save(context.Background(), models.RunSummary{})
	assert.ErrorContains(t, err, "run id")
}
