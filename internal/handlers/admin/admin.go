package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/groupwarden/internal/audit"
	"github.com/iamwavecut/groupwarden/internal/bot"
	"github.com/iamwavecut/groupwarden/internal/i18n"
	"github.com/iamwavecut/groupwarden/internal/moderation"
)

// Admin routes moderator commands. Every command except /start and /help
// requires the sender to be a chat admin able to restrict members.
type Admin struct {
	s      bot.Service
	ladder *moderation.Ladder
	sink   *audit.Sink

	logger *log.Entry
}

func NewAdmin(s bot.Service, ladder *moderation.Ladder, sink *audit.Sink) *Admin {
	return &Admin{
		s:      s,
		ladder: ladder,
		sink:   sink,
	}
}

func (a *Admin) Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (bool, error) {
	msg := u.Message
	if msg == nil || chat == nil || user == nil || !msg.IsCommand() {
		return true, nil
	}

	entry := a.getLogEntry().WithFields(log.Fields{
		"chat_id": chat.ID,
		"user_id": user.ID,
		"command": msg.Command(),
	})
	language := a.s.GetLanguage(ctx, chat.ID, user)

	switch msg.Command() {
	case "start":
		_, _ = a.s.GetBot().Send(api.NewMessage(chat.ID, i18n.Get("Bot started successfully", language)))
		return false, nil
	case "help":
		_, _ = a.s.GetBot().Send(api.NewMessage(chat.ID, i18n.Get(helpText, language)))
		return false, nil
	}

	if !chat.IsGroup() && !chat.IsSuperGroup() {
		return true, nil
	}

	isAdmin, err := bot.UserIsAdmin(a.s.GetBot(), chat.ID, user.ID)
	if err != nil {
		return false, errors.WithMessage(err, "cant resolve admin status")
	}
	if !isAdmin {
		entry.Debug("command from non-admin ignored")
		_, _ = a.s.GetBot().Send(api.NewMessage(chat.ID, i18n.Get("This command is for admins only", language)))
		return false, nil
	}

	var cmdErr error
	switch msg.Command() {
	case "ban":
		cmdErr = a.handleBan(ctx, msg, chat, user, language)
	case "unban":
		cmdErr = a.handleUnban(ctx, msg, chat, user, language)
	case "kick":
		cmdErr = a.handleKick(ctx, msg, chat, user, language)
	case "mute":
		cmdErr = a.handleMute(ctx, msg, chat, user, language)
	case "unmute":
		cmdErr = a.handleUnmute(ctx, msg, chat, user, language)
	case "warn":
		cmdErr = a.handleWarn(ctx, msg, chat, user, language)
	case "resetwarnings":
		cmdErr = a.handleResetWarnings(ctx, msg, chat, user, language)
	case "addword":
		cmdErr = a.handleAddWord(ctx, msg, chat, language)
	case "removeword":
		cmdErr = a.handleRemoveWord(ctx, msg, chat, language)
	case "channels":
		cmdErr = a.handleChannels(ctx, msg, chat, language)
	case "captcha":
		cmdErr = a.handleCaptchaToggle(ctx, msg, chat, language)
	case "setuplog":
		cmdErr = a.handleSetupLog(ctx, msg, chat, language)
	case "settings":
		cmdErr = a.handleShowSettings(ctx, chat, language)
	default:
		return true, nil
	}
	if cmdErr != nil {
		entry.WithField("error", cmdErr.Error()).Error("command failed")
		_, _ = a.s.GetBot().Send(api.NewMessage(chat.ID, i18n.Get("Something went wrong, please try again", language)))
	}
	return false, nil
}

const helpText = "Available commands:\n" +
	"/ban - ban the user you reply to\n" +
	"/unban <user id> - lift a ban\n" +
	"/kick - remove the user you reply to\n" +
	"/mute [duration] - mute the user you reply to\n" +
	"/unmute - unmute the user you reply to\n" +
	"/warn - warn the user you reply to\n" +
	"/resetwarnings - clear warnings for the user you reply to\n" +
	"/addword <word> - add a banned word\n" +
	"/removeword <word> - remove a banned word\n" +
	"/channels add|remove <@channel> - manage required channels\n" +
	"/captcha on|off - toggle the entry captcha\n" +
	"/setuplog <@channel> - mirror moderation events to a channel\n" +
	"/settings - show current configuration"

// resolveTarget finds the command's subject: the replied-to message author,
// or a numeric user ID given as the first argument.
func (a *Admin) resolveTarget(msg *api.Message) (*api.User, int64, error) {
	if msg.ReplyToMessage != nil && msg.ReplyToMessage.From != nil {
		return msg.ReplyToMessage.From, msg.ReplyToMessage.From.ID, nil
	}
	args := strings.Fields(msg.CommandArguments())
	if len(args) > 0 {
		if id, err := strconv.ParseInt(args[0], 10, 64); err == nil {
			return nil, id, nil
		}
	}
	return nil, 0, errors.New("no target: reply to a message or pass a user ID")
}

func targetName(user *api.User, userID int64) string {
	if user != nil {
		return bot.GetUN(user)
	}
	return strconv.FormatInt(userID, 10)
}

// parseDuration accepts the short forms admins actually type: 30m, 2h, 7d.
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, errors.New("empty duration")
	}
	if strings.HasSuffix(s, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil {
			return 0, errors.WithMessage(err, "bad day count")
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}

func formatDuration(d time.Duration) string {
	if d >= 24*time.Hour && d%(24*time.Hour) == 0 {
		return fmt.Sprintf("%dd", int(d/(24*time.Hour)))
	}
	return d.String()
}

func (a *Admin) getLogEntry() *log.Entry {
	if a.logger == nil {
		a.logger = log.WithField("handler", "admin")
	}
	return a.logger
}
