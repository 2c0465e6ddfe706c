package bot

import (
	"context"

	api "github.com/OvyFlash/telegram-bot-api"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/groupwarden/internal/config"
	"github.com/iamwavecut/groupwarden/internal/db"
	apperrors "github.com/iamwavecut/groupwarden/internal/errors"
)

const settingsCacheSize = 1024

type service struct {
	bot   *api.BotAPI
	db    db.Client
	cache *lru.Cache[int64, *db.Settings]
}

func NewService(bot *api.BotAPI, dbClient db.Client) (*service, error) {
	cache, err := lru.New[int64, *db.Settings](settingsCacheSize)
	if err != nil {
		return nil, errors.WithMessage(err, "can't create settings cache")
	}
	return &service{
		bot:   bot,
		db:    dbClient,
		cache: cache,
	}, nil
}

func (s *service) GetBot() *api.BotAPI {
	return s.bot
}

func (s *service) GetDB() db.Client {
	return s.db
}

// GetSettings never returns nil settings on a nil error. A chat with no
// stored row gets the documented defaults, and a row whose JSON columns fail
// to scan is treated the same way rather than blocking moderation.
//
// Every caller gets its own copy. The cached record is never handed out, so
// in-place edits by one handler cannot leak to concurrent readers or survive
// a failed SetSettings.
func (s *service) GetSettings(ctx context.Context, chatID int64) (*db.Settings, error) {
	if cached, ok := s.cache.Get(chatID); ok {
		return cached.Clone(), nil
	}

	settings, err := s.db.GetSettings(ctx, chatID)
	if err != nil {
		if errors.Is(err, apperrors.ErrBadConfig) {
			log.WithField("chat_id", chatID).WithError(err).Warn("corrupt chat settings, using defaults")
			settings = db.DefaultSettings(chatID)
			s.cache.Add(chatID, settings)
			return settings.Clone(), nil
		}
		return nil, errors.WithMessage(err, "can't get chat settings")
	}
	if settings == nil {
		settings = db.DefaultSettings(chatID)
	}
	s.cache.Add(chatID, settings)
	return settings.Clone(), nil
}

func (s *service) SetSettings(ctx context.Context, settings *db.Settings) error {
	if err := s.db.SetSettings(ctx, settings); err != nil {
		return errors.WithMessage(err, "can't save chat settings")
	}
	s.cache.Add(settings.ID, settings.Clone())
	return nil
}

func (s *service) GetLanguage(ctx context.Context, chatID int64, user *api.User) string {
	if settings, err := s.GetSettings(ctx, chatID); err == nil && settings.Language != "" {
		return settings.Language
	}
	if user != nil && user.LanguageCode != "" {
		return user.LanguageCode
	}
	return config.Get().DefaultLanguage
}
