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
	"github.com/samber/lo"

	"github.com/iamwavecut/groupwarden/internal/audit"
	"github.com/iamwavecut/groupwarden/internal/bot"
	"github.com/iamwavecut/groupwarden/internal/config"
	"github.com/iamwavecut/groupwarden/internal/db"
	apperrors "github.com/iamwavecut/groupwarden/internal/errors"
	"github.com/iamwavecut/groupwarden/internal/i18n"
	"github.com/iamwavecut/groupwarden/internal/observability"
)

const subscriptionCallbackPrefix = "sub;"

// SubscriptionGate holds new members restricted until they join every
// required channel. Verification is pull-based: the member presses a button
// once subscribed and the gate re-checks all channels.
type SubscriptionGate struct {
	s    bot.Service
	sink *audit.Sink
	cfg  config.Subscription

	logger         *log.Entry
	workerCancel   context.CancelFunc
	workerWG       sync.WaitGroup
	startStopMutex sync.Mutex
	started        bool
}

func NewSubscriptionGate(s bot.Service, sink *audit.Sink, cfg config.Subscription) *SubscriptionGate {
	return &SubscriptionGate{
		s:    s,
		sink: sink,
		cfg:  cfg,
	}
}

func (sg *SubscriptionGate) Start(ctx context.Context) error {
	sg.startStopMutex.Lock()
	defer sg.startStopMutex.Unlock()
	if sg.started {
		return nil
	}
	if sg.cfg.TTL <= 0 {
		// Without a TTL pending verifications never expire, no sweep needed.
		sg.started = true
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	sg.workerCancel = cancel

	sg.workerWG.Add(1)
	go func() {
		defer sg.workerWG.Done()
		ticker := time.NewTicker(sg.cfg.SweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				if err := sg.processExpired(runCtx); err != nil && !errors.Is(err, context.Canceled) {
					sg.getLogEntry().WithField("error", err.Error()).Error("failed to process expired verifications")
				}
			}
		}
	}()

	sg.started = true
	return nil
}

func (sg *SubscriptionGate) Stop(ctx context.Context) error {
	sg.startStopMutex.Lock()
	if !sg.started {
		sg.startStopMutex.Unlock()
		return nil
	}
	sg.started = false
	cancel := sg.workerCancel
	sg.startStopMutex.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		sg.workerWG.Wait()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (sg *SubscriptionGate) Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (bool, error) {
	if !sg.cfg.Enabled || chat == nil || user == nil {
		return true, nil
	}

	if u.CallbackQuery != nil {
		if !strings.HasPrefix(u.CallbackQuery.Data, subscriptionCallbackPrefix) {
			return true, nil
		}
		return false, sg.handleCallback(ctx, u, chat, user)
	}

	if u.Message != nil && u.Message.NewChatMembers != nil {
		settings, err := sg.s.GetSettings(ctx, chat.ID)
		if err != nil {
			return true, errors.WithMessage(err, "cant get settings")
		}
		channels := sg.requiredChannels(settings)
		if len(channels) == 0 {
			return true, nil
		}
		for i := range u.Message.NewChatMembers {
			member := &u.Message.NewChatMembers[i]
			if member.IsBot {
				continue
			}
			if err := sg.gateMember(ctx, chat, member, channels); err != nil {
				sg.getLogEntry().WithFields(log.Fields{
					"user_id": member.ID,
					"error":   err.Error(),
				}).Error("cant gate new member")
			}
		}
	}
	return true, nil
}

func (sg *SubscriptionGate) requiredChannels(settings *db.Settings) []string {
	channels := []string(settings.RequiredChannels)
	if len(channels) == 0 && sg.cfg.RequiredChannel != "" {
		channels = []string{sg.cfg.RequiredChannel}
	}
	return lo.Map(channels, func(ch string, _ int) string {
		return strings.TrimPrefix(ch, "@")
	})
}

// missingChannels returns the required channels the user has not joined.
// A channel the bot itself cannot inspect is skipped rather than blocking
// the member.
func (sg *SubscriptionGate) missingChannels(channels []string, userID int64) []string {
	return lo.Filter(channels, func(channel string, _ int) bool {
		member, err := bot.IsChannelMember(sg.s.GetBot(), channel, userID)
		if err != nil {
			sg.getLogEntry().WithFields(log.Fields{
				"channel": channel,
				"error":   err.Error(),
			}).Warn("cant check channel membership")
			return false
		}
		return !member
	})
}

func (sg *SubscriptionGate) gateMember(ctx context.Context, chat *api.Chat, user *api.User, channels []string) error {
	missing := sg.missingChannels(channels, user.ID)
	if len(missing) == 0 {
		return nil
	}

	b := sg.s.GetBot()
	if err := bot.RestrictChatting(ctx, b, user.ID, chat.ID, time.Time{}); err != nil {
		sg.getLogEntry().WithField("error", err.Error()).Warn("cant restrict unverified member")
	}

	language := sg.s.GetLanguage(ctx, chat.ID, user)
	text := fmt.Sprintf(
		i18n.Get("%s, to chat here you need to subscribe to: %s. Press the button once you're done.", language),
		bot.GetFullName(user), "@"+strings.Join(missing, ", @"),
	)

	rows := make([][]api.InlineKeyboardButton, 0, len(missing)+1)
	for _, channel := range missing {
		rows = append(rows, api.NewInlineKeyboardRow(
			api.NewInlineKeyboardButtonURL("@"+channel, "https://t.me/"+channel),
		))
	}
	rows = append(rows, api.NewInlineKeyboardRow(
		api.NewInlineKeyboardButtonData(
			i18n.Get("I've subscribed", language),
			subscriptionCallbackPrefix+strconv.FormatInt(user.ID, 10),
		),
	))

	msg := api.NewMessage(chat.ID, text)
	msg.ReplyMarkup = api.NewInlineKeyboardMarkup(rows...)
	sent, err := b.Send(msg)
	if err != nil {
		return errors.WithMessage(err, "cant send subscription prompt")
	}

	return sg.s.GetDB().UpsertSubVerification(ctx, &db.SubVerification{
		UserID:    user.ID,
		ChatID:    chat.ID,
		MessageID: sent.MessageID,
		Channel:   missing[0],
		CreatedAt: time.Now(),
	})
}

func (sg *SubscriptionGate) handleCallback(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) error {
	entry := sg.getLogEntry().WithField("method", "handleCallback")
	b := sg.s.GetBot()
	cq := u.CallbackQuery
	language := sg.s.GetLanguage(ctx, chat.ID, user)

	targetID, err := strconv.ParseInt(strings.TrimPrefix(cq.Data, subscriptionCallbackPrefix), 10, 64)
	if err != nil {
		return errors.WithMessage(err, "cant parse callback data")
	}
	if user.ID != targetID {
		if _, err := b.Request(api.NewCallback(cq.ID, i18n.Get("This challenge isn't your concern", language))); err != nil {
			entry.WithField("error", err.Error()).Error("cant answer callback query")
		}
		return nil
	}

	verification, err := sg.s.GetDB().GetSubVerification(ctx, user.ID)
	if err != nil {
		return errors.WithMessage(err, "cant fetch verification")
	}
	if verification == nil || verification.ChatID != chat.ID {
		if _, err := b.Request(api.NewCallback(cq.ID, i18n.Get("Nothing pending for you here", language))); err != nil {
			entry.WithField("error", err.Error()).Error("cant answer callback query")
		}
		return nil
	}

	settings, err := sg.s.GetSettings(ctx, chat.ID)
	if err != nil {
		return errors.WithMessage(err, "cant get settings")
	}
	missing := sg.missingChannels(sg.requiredChannels(settings), user.ID)
	if len(missing) > 0 {
		if _, err := b.Request(api.NewCallbackWithAlert(cq.ID,
			fmt.Sprintf(i18n.Get("You're still missing: %s", language), "@"+strings.Join(missing, ", @")),
		)); err != nil {
			entry.WithField("error", err.Error()).Error("cant answer callback query")
		}
		return nil
	}

	removed, err := sg.s.GetDB().DeleteSubVerification(ctx, user.ID)
	if err != nil {
		return errors.WithMessage(err, "cant delete verification")
	}
	if !removed {
		return nil
	}

	if _, err := b.Request(api.NewCallback(cq.ID, i18n.Get("Welcome, friend!", language))); err != nil {
		entry.WithField("error", err.Error()).Error("cant answer callback query")
	}
	if err := bot.UnrestrictChatting(ctx, b, user.ID, chat.ID); err != nil {
		entry.WithField("error", err.Error()).Warn("cant unrestrict member")
	}
	if verification.MessageID != 0 {
		if err := bot.DeleteChatMessage(ctx, b, chat.ID, verification.MessageID); err != nil {
			entry.WithField("error", err.Error()).Warn("cant delete gate message")
		}
	}

	observability.RecordChallengeOutcome("subscription", "passed")
	if sg.sink != nil {
		sg.sink.NotifyJoin(ctx, chat.ID, chat.Title, bot.GetUN(user), "subscription verified")
	}
	return nil
}

func (sg *SubscriptionGate) processExpired(ctx context.Context) error {
	entry := sg.getLogEntry().WithField("method", "processExpired")

	expired, err := sg.s.GetDB().GetExpiredSubVerifications(ctx, time.Now().Add(-sg.cfg.TTL))
	if err != nil {
		return errors.WithMessage(err, "cant get expired verifications")
	}
	for _, verification := range expired {
		removed, err := sg.s.GetDB().DeleteSubVerification(ctx, verification.UserID)
		if err != nil {
			entry.WithField("error", err.Error()).Error("cant delete verification")
			continue
		}
		if !removed {
			continue
		}
		b := sg.s.GetBot()
		if verification.MessageID != 0 {
			if err := bot.DeleteChatMessage(ctx, b, verification.ChatID, verification.MessageID); err != nil {
				entry.WithField("error", err.Error()).Warn("cant delete gate message")
			}
		}
		if err := bot.BanUserFromChat(ctx, b, verification.UserID, verification.ChatID, 0); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			entry.WithField("error", err.Error()).Error("cant remove member")
			continue
		}
		if err := bot.UnbanUserFromChat(ctx, b, verification.UserID, verification.ChatID); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			entry.WithField("error", err.Error()).Warn("cant lift removal ban")
		}
		observability.RecordChallengeOutcome("subscription", "expired")
	}
	return nil
}

func (sg *SubscriptionGate) getLogEntry() *log.Entry {
	if sg.logger == nil {
		sg.logger = log.WithField("handler", "subscription")
	}
	return sg.logger
}
