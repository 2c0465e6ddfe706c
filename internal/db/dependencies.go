package db

import (
	"context"
	"time"
)

// Client is the record store contract. All operations are atomic per key;
// no ordering is guaranteed across keys.
type Client interface {
	Close() error

	GetSettings(ctx context.Context, chatID int64) (*Settings, error)
	SetSettings(ctx context.Context, settings *Settings) error

	GetUserState(ctx context.Context, chatID, userID int64) (*UserState, error)
	SetUserState(ctx context.Context, state *UserState) error

	UpsertChallenge(ctx context.Context, challenge *Challenge) error
	GetChallenge(ctx context.Context, userID int64) (*Challenge, error)
	// DeleteChallenge reports whether a record was actually removed, which
	// makes the expiry sweep and a concurrent solve race exactly-once.
	DeleteChallenge(ctx context.Context, userID int64) (bool, error)
	GetExpiredChallenges(ctx context.Context, now time.Time) ([]*Challenge, error)

	UpsertSubVerification(ctx context.Context, v *SubVerification) error
	GetSubVerification(ctx context.Context, userID int64) (*SubVerification, error)
	DeleteSubVerification(ctx context.Context, userID int64) (bool, error)
	GetExpiredSubVerifications(ctx context.Context, before time.Time) ([]*SubVerification, error)

	AppendActionLog(ctx context.Context, entry *ActionLogEntry) error
	GetActionLog(ctx context.Context, chatID int64, limit int) ([]*ActionLogEntry, error)
}
