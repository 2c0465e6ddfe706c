package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iamwavecut/groupwarden/internal/db"
)

func (c *sqliteClient) GetUserState(ctx context.Context, chatID, userID int64) (*db.UserState, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var state db.UserState
	err := c.db.GetContext(ctx, &state, `
		SELECT chat_id, user_id, message_count, window_start, recent_messages, warning_count
		FROM user_states
		WHERE chat_id = ? AND user_id = ?
	`, chatID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &state, nil
}

func (c *sqliteClient) SetUserState(ctx context.Context, state *db.UserState) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	query := `
		INSERT INTO user_states (chat_id, user_id, message_count, window_start, recent_messages, warning_count)
		VALUES (:chat_id, :user_id, :message_count, :window_start, :recent_messages, :warning_count)
		ON CONFLICT(chat_id, user_id) DO UPDATE SET
			message_count = excluded.message_count,
			window_start = excluded.window_start,
			recent_messages = excluded.recent_messages,
			warning_count = excluded.warning_count
	`
	_, err := c.db.NamedExecContext(ctx, query, state)
	return err
}
