package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/groupwarden/internal/audit"
	"github.com/iamwavecut/groupwarden/internal/bot"
	"github.com/iamwavecut/groupwarden/internal/captcha"
	"github.com/iamwavecut/groupwarden/internal/config"
	"github.com/iamwavecut/groupwarden/internal/db"
	"github.com/iamwavecut/groupwarden/internal/i18n"
)

const (
	updateTypeCallbackQuery  updateType = "callback_query"
	updateTypeNewChatMembers updateType = "new_chat_members"
	updateTypeTextMessage    updateType = "text_message"
	updateTypeIgnore         updateType = "ignore"
)

type updateType string

// Gatekeeper challenges every new member with a captcha before they may
// participate. Unanswered challenges expire on a background sweep; the member
// is removed but not permanently banned, so they may try joining again.
type Gatekeeper struct {
	s    bot.Service
	gen  *captcha.Generator
	sink *audit.Sink
	cfg  config.Captcha

	logger         *log.Entry
	workerCancel   context.CancelFunc
	workerWG       sync.WaitGroup
	startStopMutex sync.Mutex
	started        bool
}

func NewGatekeeper(s bot.Service, gen *captcha.Generator, sink *audit.Sink, cfg config.Captcha) *Gatekeeper {
	return &Gatekeeper{
		s:    s,
		gen:  gen,
		sink: sink,
		cfg:  cfg,
	}
}

func (g *Gatekeeper) Start(ctx context.Context) error {
	g.startStopMutex.Lock()
	defer g.startStopMutex.Unlock()
	if g.started {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	g.workerCancel = cancel

	g.workerWG.Add(1)
	go func() {
		defer g.workerWG.Done()
		ticker := time.NewTicker(g.cfg.SweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				if err := g.processExpiredChallenges(runCtx); err != nil && !errors.Is(err, context.Canceled) {
					g.getLogEntry().WithField("error", err.Error()).Error("failed to process expired challenges")
				}
			}
		}
	}()

	g.started = true
	return nil
}

func (g *Gatekeeper) Stop(ctx context.Context) error {
	g.startStopMutex.Lock()
	if !g.started {
		g.startStopMutex.Unlock()
		return nil
	}
	g.started = false
	cancel := g.workerCancel
	g.startStopMutex.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		g.workerWG.Wait()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (g *Gatekeeper) Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (proceed bool, err error) {
	if chat == nil || user == nil {
		return true, nil
	}

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	default:
	}

	switch g.determineUpdateType(u) {
	case updateTypeCallbackQuery:
		if !isChallengeCallbackData(u.CallbackQuery.Data) {
			return true, nil
		}
		return false, g.handleCallback(ctx, u, chat, user)
	case updateTypeNewChatMembers:
		settings, err := g.fetchSettings(ctx, chat.ID)
		if err != nil {
			return true, err
		}
		return true, g.handleNewChatMembers(ctx, u.Message, chat, settings)
	case updateTypeTextMessage:
		return g.handleTextAnswer(ctx, u.Message, chat, user)
	default:
		return true, nil
	}
}

func (g *Gatekeeper) determineUpdateType(u *api.Update) updateType {
	if u.CallbackQuery != nil {
		return updateTypeCallbackQuery
	}
	if u.Message != nil {
		if u.Message.NewChatMembers != nil {
			return updateTypeNewChatMembers
		}
		if u.Message.Text != "" {
			return updateTypeTextMessage
		}
	}
	return updateTypeIgnore
}

func isChallengeCallbackData(data string) bool {
	parts := strings.Split(data, ";")
	if len(parts) != 2 {
		return false
	}
	if parts[0] == "" || parts[1] == "" {
		return false
	}
	if _, err := strconv.ParseInt(parts[0], 10, 64); err != nil {
		return false
	}
	return true
}

func (g *Gatekeeper) fetchSettings(ctx context.Context, chatID int64) (*db.Settings, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	settings, err := g.s.GetSettings(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	if settings == nil {
		settings = db.DefaultSettings(chatID)
	}
	return settings, nil
}

func (g *Gatekeeper) sendWelcome(ctx context.Context, chatID int64, chatTitle string, user *api.User, settings *db.Settings) {
	if !settings.WelcomeEnabled {
		return
	}
	language := g.s.GetLanguage(ctx, chatID, user)
	text := fmt.Sprintf(
		i18n.Get("Welcome to %s, %s! Please be respectful and follow the chat rules.", language),
		chatTitle, bot.GetFullName(user),
	)
	if _, err := g.s.GetBot().Send(api.NewMessage(chatID, text)); err != nil {
		g.getLogEntry().WithField("error", err.Error()).Warn("cant send welcome message")
	}
}

func (g *Gatekeeper) getLogEntry() *log.Entry {
	if g.logger == nil {
		g.logger = log.WithField("handler", "gatekeeper")
	}
	return g.logger
}
