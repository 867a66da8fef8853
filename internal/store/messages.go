package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/HuskyDanny/FinancialAgent-sub001/internal/database"
	"github.com/HuskyDanny/FinancialAgent-sub001/internal/logging"
	"github.com/HuskyDanny/FinancialAgent-sub001/internal/models"
)

// MessageStore persists research output and user-visible pipeline notices
// into per-instrument conversations under the system portfolio account.
type MessageStore struct {
	db     database.DBPool
	logger *logging.Logger
}

func NewMessageStore(db database.DBPool, logger *logging.Logger) *MessageStore {
	return &MessageStore{db: db, logger: logger}
}

// SaveResearch writes one research message and returns the conversation and
// message ids. The conversation is keyed (account, symbol) and created on
// first use.
func (s *MessageStore) SaveResearch(ctx context.Context, accountID, symbol, analysisID, text string) (conversationID, messageID string, err error) {
	if accountID == "" {
		return "", "", fmt.Errorf("account id is required")
	}
	if symbol == "" {
		return "", "", fmt.Errorf("symbol is required")
	}

	const convQuery = `
		INSERT INTO conversations (account_id, symbol)
		VALUES ($1, $2)
		ON CONFLICT (account_id, symbol) DO UPDATE SET updated_at = NOW()
		RETURNING id
	`
	if err := s.db.QueryRow(ctx, convQuery, accountID, symbol).Scan(&conversationID); err != nil {
		return "", "", fmt.Errorf("failed to resolve conversation for %s: %w", symbol, err)
	}

	messageID = uuid.NewString()
	const msgQuery = `
		INSERT INTO messages (id, conversation_id, kind, analysis_id, content)
		VALUES ($1, $2, 'research', $3, $4)
	`
	if _, err := s.db.Exec(ctx, msgQuery, messageID, conversationID, analysisID, text); err != nil {
		return "", "", fmt.Errorf("failed to save research message for %s: %w", symbol, err)
	}

	return conversationID, messageID, nil
}

// SaveNotice writes a user-visible notice into the user's decision log.
// Every abort path (gate failure, synthesis failure) goes through here so
// the pipeline never fails silently.
func (s *MessageStore) SaveNotice(ctx context.Context, userID, runID, notice string) error {
	const query = `
		INSERT INTO decision_log (id, user_id, run_id, kind, content)
		VALUES ($1, $2, $3, 'notice', $4)
	`
	if _, err := s.db.Exec(ctx, query, uuid.NewString(), userID, runID, notice); err != nil {
		return fmt.Errorf("failed to save notice for user %s: %w", userID, err)
	}
	return nil
}

// SaveAssessment records the synthesis portfolio assessment in the decision log.
func (s *MessageStore) SaveAssessment(ctx context.Context, userID, runID, assessment string) error {
	const query = `
		INSERT INTO decision_log (id, user_id, run_id, kind, content)
		VALUES ($1, $2, $3, 'assessment', $4)
	`
	if _, err := s.db.Exec(ctx, query, uuid.NewString(), userID, runID, assessment); err != nil {
		return fmt.Errorf("failed to save assessment for user %s: %w", userID, err)
	}
	return nil
}

// UpdateMetadataBatch marks originating messages as having produced a placed
// order, one transaction for the whole batch.
func (s *MessageStore) UpdateMetadataBatch(ctx context.Context, updates []models.MessageMetadataUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin metadata transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const query = `
		UPDATE messages
		SET order_placed = $1, external_order_id = $2
		WHERE id = $3
	`
	for _, u := range updates {
		if _, err := tx.Exec(ctx, query, u.OrderPlaced, u.ExternalOrderID, u.MessageID); err != nil {
			return fmt.Errorf("failed to update metadata for message %s: %w", u.MessageID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit metadata updates: %w", err)
	}

	s.logger.WithField("count", len(updates)).Debug("message metadata updated")
	return nil
}
