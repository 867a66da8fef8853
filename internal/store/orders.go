// Package store holds the PostgreSQL repositories: order audit records,
// decision-log messages, and run records.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/HuskyDanny/FinancialAgent-sub001/internal/database"
	"github.com/HuskyDanny/FinancialAgent-sub001/internal/logging"
	"github.com/HuskyDanny/FinancialAgent-sub001/internal/models"
)

// OrderStore persists the permanent order audit trail. Records are insert-only:
// nothing here updates or deletes an audit row.
type OrderStore struct {
	db     database.DBPool
	logger *logging.Logger
}

func NewOrderStore(db database.DBPool, logger *logging.Logger) *OrderStore {
	return &OrderStore{db: db, logger: logger}
}

const orderColumns = "user_id, run_id, symbol, side, shares, estimated_price, estimated_cost, is_cover, external_order_id, status, filled_qty, filled_avg_price, error_message, source_message_id"

// SaveBatch inserts all successful order records in a single statement.
func (s *OrderStore) SaveBatch(ctx context.Context, records []models.OrderRecord) error {
	return s.insertBatch(ctx, records)
}

// SaveFailedBatch inserts all failed order records in a single statement.
// Failed records carry no external order id and a non-empty error message.
func (s *OrderStore) SaveFailedBatch(ctx context.Context, records []models.OrderRecord) error {
	for _, r := range records {
		if r.ErrorMessage == "" {
			return fmt.Errorf("failed order record for %s is missing an error message", r.Symbol)
		}
		if r.ExternalOrderID != nil {
			return fmt.Errorf("failed order record for %s must not carry an external order id", r.Symbol)
		}
	}
	return s.insertBatch(ctx, records)
}

func (s *OrderStore) insertBatch(ctx context.Context, records []models.OrderRecord) error {
	if len(records) == 0 {
		return nil
	}

	const fieldsPerRecord = 14
	placeholders := make([]string, 0, len(records))
	args := make([]any, 0, len(records)*fieldsPerRecord)
	for i, r := range records {
		base := i * fieldsPerRecord
		marks := make([]string, fieldsPerRecord)
		for j := range marks {
			marks[j] = fmt.Sprintf("$%d", base+j+1)
		}
		placeholders = append(placeholders, "("+strings.Join(marks, ", ")+")")
		args = append(args,
			r.UserID, r.RunID, r.Symbol, string(r.Side), r.Shares,
			r.EstimatedPrice, r.EstimatedCost, r.IsCover, r.ExternalOrderID,
			r.Status, r.FilledQty, r.FilledAvgPrice, r.ErrorMessage, r.SourceMessageID,
		)
	}

	query := fmt.Sprintf("INSERT INTO order_records (%s) VALUES %s", orderColumns, strings.Join(placeholders, ", "))
	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert %d order records: %w", len(records), err)
	}

	s.logger.WithFields(logging.Fields{"count": len(records)}).Debug("order records persisted")
	return nil
}
