package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iamwavecut/groupwarden/internal/db"
)

func (c *sqliteClient) UpsertChallenge(ctx context.Context, challenge *db.Challenge) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	query := `
		INSERT INTO captcha_challenges (
			user_id, chat_id, question, answer, success_uuid, challenge_message_id, created_at, expires_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			chat_id = excluded.chat_id,
			question = excluded.question,
			answer = excluded.answer,
			success_uuid = excluded.success_uuid,
			challenge_message_id = excluded.challenge_message_id,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at
	`
	_, err := c.db.ExecContext(ctx, query,
		challenge.UserID,
		challenge.ChatID,
		challenge.Question,
		challenge.Answer,
		challenge.SuccessUUID,
		challenge.ChallengeMessageID,
		challenge.CreatedAt,
		challenge.ExpiresAt,
	)
	return err
}

func (c *sqliteClient) GetChallenge(ctx context.Context, userID int64) (*db.Challenge, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var challenge db.Challenge
	err := c.db.GetContext(ctx, &challenge, `
		SELECT user_id, chat_id, question, answer, success_uuid, challenge_message_id, created_at, expires_at
		FROM captcha_challenges
		WHERE user_id = ?
	`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &challenge, nil
}

// DeleteChallenge is the single atomic check-and-delete that serializes the
// expiry sweep against a concurrent solve: only one caller observes true.
func (c *sqliteClient) DeleteChallenge(ctx context.Context, userID int64) (bool, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	res, err := c.db.ExecContext(ctx, `DELETE FROM captcha_challenges WHERE user_id = ?`, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *sqliteClient) GetExpiredChallenges(ctx context.Context, now time.Time) ([]*db.Challenge, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var challenges []*db.Challenge
	err := c.db.SelectContext(ctx, &challenges, `
		SELECT user_id, chat_id, question, answer, success_uuid, challenge_message_id, created_at, expires_at
		FROM captcha_challenges
		WHERE expires_at <= ?
	`, now)
	return challenges, err
}
