package handlers

import (
	"context"
	"fmt"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.uber.org/zap"

	"github.com/iamwavecut/groupwarden/internal/audit"
	"github.com/iamwavecut/groupwarden/internal/bot"
	"github.com/iamwavecut/groupwarden/internal/db"
	apperrors "github.com/iamwavecut/groupwarden/internal/errors"
	"github.com/iamwavecut/groupwarden/internal/i18n"
	"github.com/iamwavecut/groupwarden/internal/infra"
	"github.com/iamwavecut/groupwarden/internal/moderation"
	"github.com/iamwavecut/groupwarden/internal/observability"
)

type stateKey struct {
	chatID int64
	userID int64
}

// Reactor runs every group message through the decision core and executes
// the merged verdict. State reads and writes for one (chat, user) pair are
// serialized; platform calls happen outside the lock.
type Reactor struct {
	s      bot.Service
	core   *moderation.Core
	ladder *moderation.Ladder
	sink   *audit.Sink
	locks  *infra.KeyedMutex[stateKey]

	logger *log.Entry
}

func NewReactor(s bot.Service, core *moderation.Core, ladder *moderation.Ladder, sink *audit.Sink) *Reactor {
	return &Reactor{
		s:      s,
		core:   core,
		ladder: ladder,
		sink:   sink,
		locks:  infra.NewKeyedMutex[stateKey](),
	}
}

func (r *Reactor) Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (bool, error) {
	msg := u.Message
	if msg == nil || chat == nil || user == nil {
		return true, nil
	}
	if !chat.IsGroup() && !chat.IsSuperGroup() {
		return true, nil
	}
	if user.IsBot || msg.NewChatMembers != nil || msg.LeftChatMember != nil {
		return true, nil
	}

	done := observability.StartMessageProcessing()
	entry := r.getLogEntry().WithFields(log.Fields{
		"chat_id": chat.ID,
		"user_id": user.ID,
	})

	settings, err := r.s.GetSettings(ctx, chat.ID)
	if err != nil {
		done("error")
		return true, errors.WithMessage(err, "can't get settings")
	}

	isAdmin, err := bot.UserIsAdmin(r.s.GetBot(), chat.ID, user.ID)
	if err != nil {
		entry.WithError(err).Warn("can't resolve admin status, treating as regular member")
	}
	if isAdmin {
		done("skipped")
		return true, nil
	}

	verdict, state, err := r.evaluate(ctx, chat.ID, user.ID, settings, msg)
	if err != nil {
		done("error")
		return true, err
	}

	observability.RecordVerdict(verdict.Action.String(), verdict.Categories)
	if verdict.Action == moderation.ActionNone {
		done("clean")
		return true, nil
	}

	done("violation")
	entry.WithFields(log.Fields{
		"action":  verdict.Action.String(),
		"reasons": verdict.Reasons,
	}).Info("message violates chat rules")
	if logger := observability.Logger; logger != nil {
		logger.Info("verdict",
			zap.Int64("chat_id", chat.ID),
			zap.Int64("user_id", user.ID),
			zap.String("action", verdict.Action.String()),
			zap.Strings("categories", verdict.Categories),
			zap.Int("warnings", state.WarningCount),
		)
	}

	if err := r.execute(ctx, verdict, state, settings, chat, user, msg); err != nil {
		if apperrors.IsRetriable(err) {
			entry.WithError(err).Warn("can't execute verdict, transient platform failure")
		} else {
			entry.WithError(err).Error("can't execute verdict")
		}
	}
	return false, nil
}

// evaluate holds the per-user lock across the read-evaluate-write of the
// moderation state and nothing else.
func (r *Reactor) evaluate(ctx context.Context, chatID, userID int64, settings *db.Settings, msg *api.Message) (moderation.Verdict, *db.UserState, error) {
	key := stateKey{chatID: chatID, userID: userID}
	r.locks.Lock(key)
	defer r.locks.Unlock(key)

	state, err := r.s.GetDB().GetUserState(ctx, chatID, userID)
	if err != nil {
		return moderation.Verdict{}, nil, errors.WithMessage(err, "can't get user state")
	}
	if state == nil {
		state = db.NewUserState(chatID, userID)
	}

	verdict := r.core.Evaluate(state, settings, bot.AdaptMessage(msg), time.Now())

	if verdict.Action == moderation.ActionWarn || verdict.Action == moderation.ActionDelete {
		state.WarningCount++
	}

	if err := r.s.GetDB().SetUserState(ctx, state); err != nil {
		return moderation.Verdict{}, nil, errors.WithMessage(err, "can't save user state")
	}
	return verdict, state, nil
}

func (r *Reactor) execute(ctx context.Context, verdict moderation.Verdict, state *db.UserState, settings *db.Settings, chat *api.Chat, user *api.User, msg *api.Message) error {
	b := r.s.GetBot()
	language := r.s.GetLanguage(ctx, chat.ID, user)
	userName := bot.GetUN(user)

	if verdict.DeleteMessage {
		// A message that is already gone counts as deleted.
		if err := bot.DeleteChatMessage(ctx, b, chat.ID, msg.MessageID); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			if errors.Is(err, apperrors.ErrPermission) {
				r.getLogEntry().WithError(err).Error("bot lacks rights to delete messages")
			} else {
				r.getLogEntry().WithError(err).Warn("can't delete offending message")
			}
		}
	}

	action := verdict.Action
	var muteDuration time.Duration
	if action == moderation.ActionWarn || action == moderation.ActionDelete {
		// Content violations escalate through the warning ladder.
		action = r.ladder.Action(state.WarningCount)
		muteDuration = r.ladder.MuteDuration(state.WarningCount)
	} else if action == moderation.ActionMute {
		muteDuration = r.ladder.MuteDuration(2)
	}

	var notice string
	switch action {
	case moderation.ActionBan:
		// A member who already left is a success for a ban intent.
		if err := bot.BanUserFromChat(ctx, b, user.ID, chat.ID, 0); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			return errors.WithMessage(err, "can't ban user")
		}
		notice = fmt.Sprintf(i18n.Get("%s has been banned for repeated violations", language), userName)
	case moderation.ActionMute:
		if err := bot.RestrictChatting(ctx, b, user.ID, chat.ID, time.Now().Add(muteDuration)); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			return errors.WithMessage(err, "can't mute user")
		}
		notice = fmt.Sprintf(i18n.Get("%s has been muted for %s", language), userName, muteDuration)
	default:
		notice = fmt.Sprintf(
			i18n.Get("%s, please follow the chat rules (warning %d of %d)", language),
			userName, state.WarningCount, r.ladder.MaxWarnings,
		)
	}
	if notice != "" {
		if _, err := b.Send(api.NewMessage(chat.ID, notice)); err != nil {
			r.getLogEntry().WithError(err).Warn("can't send violation notice")
		}
	}

	reason := ""
	if len(verdict.Reasons) > 0 {
		reason = verdict.Reasons[0]
	}
	if err := r.sink.Append(ctx, &db.ActionLogEntry{
		ChatID:       chat.ID,
		Action:       action.String(),
		TargetUserID: user.ID,
		Reason:       reason,
	}); err != nil {
		r.getLogEntry().WithError(err).Warn("can't record moderation action")
	}
	r.sink.NotifySpam(ctx, chat.ID, chat.Title, userName, verdict.Reasons, action.String())

	return nil
}

func (r *Reactor) getLogEntry() *log.Entry {
	if r.logger == nil {
		r.logger = log.WithField("handler", "moderation")
	}
	return r.logger
}
