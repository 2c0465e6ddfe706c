package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"

	"github.com/jmoiron/sqlx"
	migrate "github.com/rubenv/sql-migrate"
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/iamwavecut/groupwarden/internal/db"
	"github.com/iamwavecut/groupwarden/resources"
)

type sqliteClient struct {
	db    *sqlx.DB
	mutex sync.RWMutex
}

func NewSQLiteClient(ctx context.Context, dir, name string) (*sqliteClient, error) {
	dbx, err := sqlx.Open("sqlite", filepath.Join(dir, name))
	if err != nil {
		return nil, err
	}
	dbx.SetMaxOpenConns(42)

	migrationsSource := &migrate.EmbedFileSystemMigrationSource{
		FileSystem: resources.FS,
		Root:       "migrations",
	}
	n, err := migrate.ExecContext(ctx, dbx.DB, "sqlite3", migrationsSource, migrate.Up)
	if err != nil {
		_ = dbx.Close()
		return nil, err
	}
	if n > 0 {
		log.Infof("applied %d migrations", n)
	}

	return &sqliteClient{db: dbx}, nil
}

func (c *sqliteClient) Close() error {
	return c.db.Close()
}

// GetSettings returns nil when the chat has never been configured; callers
// substitute db.DefaultSettings.
func (c *sqliteClient) GetSettings(ctx context.Context, chatID int64) (*db.Settings, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var settings db.Settings
	err := c.db.GetContext(ctx, &settings, `
		SELECT id, anti_spam_enabled, welcome_enabled, flood_protection, captcha_enabled,
			link_policy, forward_policy, banned_words, whitelisted_domains, required_channels,
			media_policy, log_channel, language
		FROM chats WHERE id = ?
	`, chatID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &settings, nil
}

func (c *sqliteClient) SetSettings(ctx context.Context, settings *db.Settings) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	query := `
		INSERT INTO chats (
			id, anti_spam_enabled, welcome_enabled, flood_protection, captcha_enabled,
			link_policy, forward_policy, banned_words, whitelisted_domains, required_channels,
			media_policy, log_channel, language
		) VALUES (
			:id, :anti_spam_enabled, :welcome_enabled, :flood_protection, :captcha_enabled,
			:link_policy, :forward_policy, :banned_words, :whitelisted_domains, :required_channels,
			:media_policy, :log_channel, :language
		)
		ON CONFLICT(id) DO UPDATE SET
			anti_spam_enabled = excluded.anti_spam_enabled,
			welcome_enabled = excluded.welcome_enabled,
			flood_protection = excluded.flood_protection,
			captcha_enabled = excluded.captcha_enabled,
			link_policy = excluded.link_policy,
			forward_policy = excluded.forward_policy,
			banned_words = excluded.banned_words,
			whitelisted_domains = excluded.whitelisted_domains,
			required_channels = excluded.required_channels,
			media_policy = excluded.media_policy,
			log_channel = excluded.log_channel,
			language = excluded.language
	`
	_, err := c.db.NamedExecContext(ctx, query, settings)
	return err
}
