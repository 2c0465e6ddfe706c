package sqlite

import (
	"context"

	"github.com/iamwavecut/groupwarden/internal/db"
)

const actionLogCap = 100

// AppendActionLog inserts the entry and trims the chat's log to the newest
// actionLogCap rows in one transaction.
func (c *sqliteClient) AppendActionLog(ctx context.Context, entry *db.ActionLogEntry) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO action_log (chat_id, admin_id, action, target_user_id, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, entry.ChatID, entry.AdminID, entry.Action, entry.TargetUserID, entry.Reason, entry.CreatedAt)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM action_log
		WHERE chat_id = ? AND id NOT IN (
			SELECT id FROM action_log WHERE chat_id = ? ORDER BY id DESC LIMIT ?
		)
	`, entry.ChatID, entry.ChatID, actionLogCap)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (c *sqliteClient) GetActionLog(ctx context.Context, chatID int64, limit int) ([]*db.ActionLogEntry, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	if limit <= 0 || limit > actionLogCap {
		limit = actionLogCap
	}
	var entries []*db.ActionLogEntry
	err := c.db.SelectContext(ctx, &entries, `
		SELECT chat_id, admin_id, action, target_user_id, reason, created_at
		FROM action_log
		WHERE chat_id = ?
		ORDER BY id DESC
		LIMIT ?
	`, chatID, limit)
	return entries, err
}
