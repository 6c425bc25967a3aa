package store

import (
	"context"
	"fmt"

	"tyre-assistant/internal/models"
)

// AppendConversation logs one answered exchange. Failures are reported
// but never block the answer path; the caller decides to ignore them.
func (s *Store) AppendConversation(ctx context.Context, entry *models.ConversationLogEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversation_logs (user_id, dealer_id, sales_rep_id, user_query, ai_response, session_id, query_timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW())`,
		entry.UserID, entry.DealerID, entry.SalesRepID,
		entry.UserQuery, entry.AIResponse, entry.SessionID)
	if err != nil {
		return fmt.Errorf("failed to append conversation log: %w", err)
	}
	return nil
}

// History returns the user's last n exchanges, oldest first.
func (s *Store) History(ctx context.Context, userID int64, n int) ([]models.Exchange, error) {
	var recent []models.Exchange
	err := s.db.SelectContext(ctx, &recent,
		`SELECT user_query, ai_response
		 FROM conversation_logs
		 WHERE user_id = $1
		 ORDER BY query_timestamp DESC
		 LIMIT $2`,
		userID, n)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation history: %w", err)
	}

	// Reverse to chronological order for prompt assembly.
	for i, j := 0, len(recent)-1; i < j; i, j = i+1, j-1 {
		recent[i], recent[j] = recent[j], recent[i]
	}
	return recent, nil
}
