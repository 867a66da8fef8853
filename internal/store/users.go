package store

import (
	"context"
	"fmt"

	"github.com/HuskyDanny/FinancialAgent-sub001/internal/database"
	"github.com/HuskyDanny/FinancialAgent-sub001/internal/logging"
	"github.com/HuskyDanny/FinancialAgent-sub001/internal/models"
)

// UserStore reads the accounts enrolled in scheduled portfolio reviews.
type UserStore struct {
	db     database.DBPool
	logger *logging.Logger
}

func NewUserStore(db database.DBPool, logger *logging.Logger) *UserStore {
	return &UserStore{db: db, logger: logger}
}

// ListActive returns every active account together with its watchlist
// symbols, ordered by user id for deterministic fleet runs.
func (s *UserStore) ListActive(ctx context.Context) ([]models.UserAccount, error) {
	const query = `
		SELECT u.id, COALESCE(array_agg(w.symbol ORDER BY w.symbol) FILTER (WHERE w.symbol IS NOT NULL), '{}')
		FROM users u
		LEFT JOIN watchlist_items w ON w.user_id = u.id
		WHERE u.active = true
		GROUP BY u.id
		ORDER BY u.id`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list active users: %w", err)
	}
	defer rows.Close()

	var users []models.UserAccount
	for rows.Next() {
		var u models.UserAccount
		if err := rows.Scan(&u.UserID, &u.Watchlist); err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user rows: %w", err)
	}
	return users, nil
}
