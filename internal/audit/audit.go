package audit

import (
	"context"
	"strings"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/iamwavecut/tool"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/groupwarden/internal/db"
)

// Sink records administrative actions durably and, when configured, mirrors
// notable events to an external log channel. A chat's own log channel from
// its settings wins over the process-wide default. Channel delivery is best
// effort: a failed send is logged and never propagated to the caller.
type Sink struct {
	store          db.Client
	bot            *api.BotAPI
	defaultChannel string
}

func NewSink(store db.Client, bot *api.BotAPI, logChannelUsername string) *Sink {
	return &Sink{
		store:          store,
		bot:            bot,
		defaultChannel: strings.TrimPrefix(logChannelUsername, "@"),
	}
}

// Append persists an action record. Unlike channel notifications, persistence
// failures are returned so callers can surface them.
func (s *Sink) Append(ctx context.Context, entry *db.ActionLogEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if err := s.store.AppendActionLog(ctx, entry); err != nil {
		return errors.WithMessage(err, "can't append action log")
	}
	return nil
}

func (s *Sink) NotifyAction(ctx context.Context, chatID int64, chatTitle, adminName, action, targetName, reason string) {
	s.send(ctx, chatID, tool.ExecTemplate(
		"🔨 Moderation action\nGroup: {{ .chat }}\nAdmin: {{ .admin }}\nAction: {{ .action }}\nUser: {{ .target }}\nReason: {{ .reason }}",
		map[string]any{
			"chat":   chatTitle,
			"admin":  adminName,
			"action": strings.ToUpper(action),
			"target": targetName,
			"reason": reason,
		},
	))
}

func (s *Sink) NotifySpam(ctx context.Context, chatID int64, chatTitle, userName string, reasons []string, action string) {
	s.send(ctx, chatID, tool.ExecTemplate(
		"🚫 Spam detected\nGroup: {{ .chat }}\nUser: {{ .user }}\nReasons: {{ .reasons }}\nAction: {{ .action }}",
		map[string]any{
			"chat":    chatTitle,
			"user":    userName,
			"reasons": strings.Join(reasons, "; "),
			"action":  action,
		},
	))
}

func (s *Sink) NotifyJoin(ctx context.Context, chatID int64, chatTitle, userName, outcome string) {
	s.send(ctx, chatID, tool.ExecTemplate(
		"👋 Member event\nGroup: {{ .chat }}\nUser: {{ .user }}\nOutcome: {{ .outcome }}",
		map[string]any{
			"chat":    chatTitle,
			"user":    userName,
			"outcome": outcome,
		},
	))
}

func (s *Sink) channelFor(ctx context.Context, chatID int64) string {
	if s.store != nil && chatID != 0 {
		if settings, err := s.store.GetSettings(ctx, chatID); err == nil && settings != nil && settings.LogChannel != "" {
			return strings.TrimPrefix(settings.LogChannel, "@")
		}
	}
	return s.defaultChannel
}

func (s *Sink) send(ctx context.Context, chatID int64, text string) {
	channel := s.channelFor(ctx, chatID)
	if channel == "" || s.bot == nil {
		return
	}
	msg := api.NewMessageToChannel("@"+channel, text)
	if _, err := s.bot.Send(msg); err != nil {
		log.WithField("channel", channel).WithError(err).Warn("can't deliver log channel message")
	}
}
