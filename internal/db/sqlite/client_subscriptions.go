package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iamwavecut/groupwarden/internal/db"
)

func (c *sqliteClient) UpsertSubVerification(ctx context.Context, v *db.SubVerification) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	query := `
		INSERT INTO sub_verifications (user_id, chat_id, message_id, channel, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			chat_id = excluded.chat_id,
			message_id = excluded.message_id,
			channel = excluded.channel,
			created_at = excluded.created_at
	`
	_, err := c.db.ExecContext(ctx, query, v.UserID, v.ChatID, v.MessageID, v.Channel, v.CreatedAt)
	return err
}

func (c *sqliteClient) GetSubVerification(ctx context.Context, userID int64) (*db.SubVerification, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var v db.SubVerification
	err := c.db.GetContext(ctx, &v, `
		SELECT user_id, chat_id, message_id, channel, created_at
		FROM sub_verifications
		WHERE user_id = ?
	`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &v, nil
}

func (c *sqliteClient) DeleteSubVerification(ctx context.Context, userID int64) (bool, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	res, err := c.db.ExecContext(ctx, `DELETE FROM sub_verifications WHERE user_id = ?`, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *sqliteClient) GetExpiredSubVerifications(ctx context.Context, before time.Time) ([]*db.SubVerification, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var vs []*db.SubVerification
	err := c.db.SelectContext(ctx, &vs, `
		SELECT user_id, chat_id, message_id, channel, created_at
		FROM sub_verifications
		WHERE created_at <= ?
	`, before)
	return vs, err
}
