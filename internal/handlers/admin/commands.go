package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/iamwavecut/groupwarden/internal/bot"
	"github.com/iamwavecut/groupwarden/internal/db"
	"github.com/iamwavecut/groupwarden/internal/i18n"
	"github.com/iamwavecut/groupwarden/internal/moderation"
)

func (a *Admin) handleBan(ctx context.Context, msg *api.Message, chat *api.Chat, admin *api.User, language string) error {
	target, targetID, err := a.resolveTarget(msg)
	if err != nil {
		a.replyUsage(chat.ID, "/ban", language)
		return nil
	}
	if err := bot.BanUserFromChat(ctx, a.s.GetBot(), targetID, chat.ID, 0); err != nil {
		return err
	}
	a.record(ctx, chat, admin, "ban", targetID, msg.CommandArguments())
	a.announce(chat.ID, fmt.Sprintf(i18n.Get("%s has been banned", language), targetName(target, targetID)))
	return nil
}

func (a *Admin) handleUnban(ctx context.Context, msg *api.Message, chat *api.Chat, admin *api.User, language string) error {
	target, targetID, err := a.resolveTarget(msg)
	if err != nil {
		a.replyUsage(chat.ID, "/unban <user id>", language)
		return nil
	}
	if err := bot.UnbanUserFromChat(ctx, a.s.GetBot(), targetID, chat.ID); err != nil {
		return err
	}
	a.record(ctx, chat, admin, "unban", targetID, "")
	a.announce(chat.ID, fmt.Sprintf(i18n.Get("%s has been unbanned", language), targetName(target, targetID)))
	return nil
}

func (a *Admin) handleKick(ctx context.Context, msg *api.Message, chat *api.Chat, admin *api.User, language string) error {
	target, targetID, err := a.resolveTarget(msg)
	if err != nil {
		a.replyUsage(chat.ID, "/kick", language)
		return nil
	}
	b := a.s.GetBot()
	if err := bot.BanUserFromChat(ctx, b, targetID, chat.ID, 0); err != nil {
		return err
	}
	if err := bot.UnbanUserFromChat(ctx, b, targetID, chat.ID); err != nil {
		return err
	}
	a.record(ctx, chat, admin, "kick", targetID, msg.CommandArguments())
	a.announce(chat.ID, fmt.Sprintf(i18n.Get("%s has been removed from the group", language), targetName(target, targetID)))
	return nil
}

func (a *Admin) handleMute(ctx context.Context, msg *api.Message, chat *api.Chat, admin *api.User, language string) error {
	target, targetID, err := a.resolveTarget(msg)
	if err != nil {
		a.replyUsage(chat.ID, "/mute [duration]", language)
		return nil
	}

	duration := a.ladder.MuteDuration(2)
	args := strings.Fields(msg.CommandArguments())
	// With a numeric-ID target the duration is the second argument.
	durationArg := ""
	if msg.ReplyToMessage != nil && len(args) > 0 {
		durationArg = args[0]
	} else if len(args) > 1 {
		durationArg = args[1]
	}
	if durationArg != "" {
		parsed, err := parseDuration(durationArg)
		if err != nil {
			a.replyUsage(chat.ID, "/mute 30m|2h|1d", language)
			return nil
		}
		duration = parsed
	}

	if err := bot.RestrictChatting(ctx, a.s.GetBot(), targetID, chat.ID, time.Now().Add(duration)); err != nil {
		return err
	}
	a.record(ctx, chat, admin, "mute", targetID, formatDuration(duration))
	a.announce(chat.ID, fmt.Sprintf(i18n.Get("%s has been muted for %s", language), targetName(target, targetID), formatDuration(duration)))
	return nil
}

func (a *Admin) handleUnmute(ctx context.Context, msg *api.Message, chat *api.Chat, admin *api.User, language string) error {
	target, targetID, err := a.resolveTarget(msg)
	if err != nil {
		a.replyUsage(chat.ID, "/unmute", language)
		return nil
	}
	if err := bot.UnrestrictChatting(ctx, a.s.GetBot(), targetID, chat.ID); err != nil {
		return err
	}
	a.record(ctx, chat, admin, "unmute", targetID, "")
	a.announce(chat.ID, fmt.Sprintf(i18n.Get("%s has been unmuted", language), targetName(target, targetID)))
	return nil
}

// handleWarn pushes the target one step up the escalation ladder, applying
// the resulting action immediately.
func (a *Admin) handleWarn(ctx context.Context, msg *api.Message, chat *api.Chat, admin *api.User, language string) error {
	target, targetID, err := a.resolveTarget(msg)
	if err != nil {
		a.replyUsage(chat.ID, "/warn", language)
		return nil
	}

	store := a.s.GetDB()
	state, err := store.GetUserState(ctx, chat.ID, targetID)
	if err != nil {
		return errors.WithMessage(err, "cant get user state")
	}
	if state == nil {
		state = db.NewUserState(chat.ID, targetID)
	}
	state.WarningCount++
	if err := store.SetUserState(ctx, state); err != nil {
		return errors.WithMessage(err, "cant save user state")
	}

	name := targetName(target, targetID)
	reason := msg.CommandArguments()
	a.record(ctx, chat, admin, "warn", targetID, reason)

	switch a.ladder.Action(state.WarningCount) {
	case moderation.ActionBan:
		if err := bot.BanUserFromChat(ctx, a.s.GetBot(), targetID, chat.ID, 0); err != nil {
			return err
		}
		a.announce(chat.ID, fmt.Sprintf(i18n.Get("%s has been banned for repeated violations", language), name))
	case moderation.ActionMute:
		duration := a.ladder.MuteDuration(state.WarningCount)
		if err := bot.RestrictChatting(ctx, a.s.GetBot(), targetID, chat.ID, time.Now().Add(duration)); err != nil {
			return err
		}
		a.announce(chat.ID, fmt.Sprintf(i18n.Get("%s has been muted for %s", language), name, formatDuration(duration)))
	default:
		a.announce(chat.ID, fmt.Sprintf(
			i18n.Get("%s, please follow the chat rules (warning %d of %d)", language),
			name, state.WarningCount, a.ladder.MaxWarnings,
		))
	}
	return nil
}

func (a *Admin) handleResetWarnings(ctx context.Context, msg *api.Message, chat *api.Chat, admin *api.User, language string) error {
	target, targetID, err := a.resolveTarget(msg)
	if err != nil {
		a.replyUsage(chat.ID, "/resetwarnings", language)
		return nil
	}

	store := a.s.GetDB()
	state, err := store.GetUserState(ctx, chat.ID, targetID)
	if err != nil {
		return errors.WithMessage(err, "cant get user state")
	}
	if state != nil && state.WarningCount > 0 {
		state.WarningCount = 0
		if err := store.SetUserState(ctx, state); err != nil {
			return errors.WithMessage(err, "cant save user state")
		}
	}
	a.record(ctx, chat, admin, "resetwarnings", targetID, "")
	a.announce(chat.ID, fmt.Sprintf(i18n.Get("Warnings cleared for %s", language), targetName(target, targetID)))
	return nil
}

func (a *Admin) handleAddWord(ctx context.Context, msg *api.Message, chat *api.Chat, language string) error {
	word := strings.ToLower(strings.TrimSpace(msg.CommandArguments()))
	if word == "" {
		a.replyUsage(chat.ID, "/addword <word>", language)
		return nil
	}
	settings, err := a.s.GetSettings(ctx, chat.ID)
	if err != nil {
		return err
	}
	if lo.Contains(settings.BannedWords, word) {
		a.announce(chat.ID, i18n.Get("That word is already banned", language))
		return nil
	}
	settings.BannedWords = append(settings.BannedWords, word)
	if err := a.s.SetSettings(ctx, settings); err != nil {
		return err
	}
	a.announce(chat.ID, i18n.Get("Banned word added", language))
	return nil
}

func (a *Admin) handleRemoveWord(ctx context.Context, msg *api.Message, chat *api.Chat, language string) error {
	word := strings.ToLower(strings.TrimSpace(msg.CommandArguments()))
	if word == "" {
		a.replyUsage(chat.ID, "/removeword <word>", language)
		return nil
	}
	settings, err := a.s.GetSettings(ctx, chat.ID)
	if err != nil {
		return err
	}
	filtered := lo.Without(settings.BannedWords, word)
	if len(filtered) == len(settings.BannedWords) {
		a.announce(chat.ID, i18n.Get("That word isn't on the list", language))
		return nil
	}
	settings.BannedWords = filtered
	if err := a.s.SetSettings(ctx, settings); err != nil {
		return err
	}
	a.announce(chat.ID, i18n.Get("Banned word removed", language))
	return nil
}

func (a *Admin) handleChannels(ctx context.Context, msg *api.Message, chat *api.Chat, language string) error {
	args := strings.Fields(msg.CommandArguments())
	if len(args) < 2 {
		a.replyUsage(chat.ID, "/channels add|remove <@channel>", language)
		return nil
	}
	channel := strings.TrimPrefix(args[1], "@")

	settings, err := a.s.GetSettings(ctx, chat.ID)
	if err != nil {
		return err
	}
	switch args[0] {
	case "add":
		if lo.Contains(settings.RequiredChannels, channel) {
			a.announce(chat.ID, i18n.Get("That channel is already required", language))
			return nil
		}
		settings.RequiredChannels = append(settings.RequiredChannels, channel)
	case "remove":
		filtered := lo.Without(settings.RequiredChannels, channel)
		if len(filtered) == len(settings.RequiredChannels) {
			a.announce(chat.ID, i18n.Get("That channel isn't required", language))
			return nil
		}
		settings.RequiredChannels = filtered
	default:
		a.replyUsage(chat.ID, "/channels add|remove <@channel>", language)
		return nil
	}
	if err := a.s.SetSettings(ctx, settings); err != nil {
		return err
	}
	a.announce(chat.ID, i18n.Get("Required channels updated", language))
	return nil
}

func (a *Admin) handleCaptchaToggle(ctx context.Context, msg *api.Message, chat *api.Chat, language string) error {
	arg := strings.ToLower(strings.TrimSpace(msg.CommandArguments()))
	if arg != "on" && arg != "off" {
		a.replyUsage(chat.ID, "/captcha on|off", language)
		return nil
	}
	settings, err := a.s.GetSettings(ctx, chat.ID)
	if err != nil {
		return err
	}
	settings.CaptchaEnabled = arg == "on"
	if err := a.s.SetSettings(ctx, settings); err != nil {
		return err
	}
	if settings.CaptchaEnabled {
		a.announce(chat.ID, i18n.Get("Entry captcha enabled", language))
	} else {
		a.announce(chat.ID, i18n.Get("Entry captcha disabled", language))
	}
	return nil
}

func (a *Admin) handleSetupLog(ctx context.Context, msg *api.Message, chat *api.Chat, language string) error {
	channel := strings.TrimPrefix(strings.TrimSpace(msg.CommandArguments()), "@")
	if channel == "" {
		a.replyUsage(chat.ID, "/setuplog <@channel>", language)
		return nil
	}
	settings, err := a.s.GetSettings(ctx, chat.ID)
	if err != nil {
		return err
	}
	settings.LogChannel = channel
	if err := a.s.SetSettings(ctx, settings); err != nil {
		return err
	}
	a.announce(chat.ID, fmt.Sprintf(i18n.Get("Moderation events will be mirrored to @%s", language), channel))
	return nil
}

func (a *Admin) handleShowSettings(ctx context.Context, chat *api.Chat, language string) error {
	settings, err := a.s.GetSettings(ctx, chat.ID)
	if err != nil {
		return err
	}
	onOff := func(v bool) string {
		if v {
			return i18n.Get("on", language)
		}
		return i18n.Get("off", language)
	}
	text := fmt.Sprintf(
		"Anti-spam: %s\nFlood protection: %s\nEntry captcha: %s\nWelcome messages: %s\n"+
			"Link policy: %s\nForward policy: %s\nBanned words: %d\nRequired channels: %s\nLog channel: %s",
		onOff(settings.AntiSpamEnabled), onOff(settings.FloodProtection),
		onOff(settings.CaptchaEnabled), onOff(settings.WelcomeEnabled),
		settings.LinkPolicy, settings.ForwardPolicy,
		len(settings.BannedWords),
		strings.Join(settings.RequiredChannels, ", "),
		settings.LogChannel,
	)
	a.announce(chat.ID, text)
	return nil
}

func (a *Admin) record(ctx context.Context, chat *api.Chat, admin *api.User, action string, targetID int64, reason string) {
	if a.sink == nil {
		return
	}
	if err := a.sink.Append(ctx, &db.ActionLogEntry{
		ChatID:       chat.ID,
		AdminID:      admin.ID,
		Action:       action,
		TargetUserID: targetID,
		Reason:       reason,
	}); err != nil {
		a.getLogEntry().WithField("error", err.Error()).Warn("cant record admin action")
	}
	a.sink.NotifyAction(ctx, chat.ID, chat.Title, bot.GetUN(admin), action, fmt.Sprintf("%d", targetID), reason)
}

func (a *Admin) replyUsage(chatID int64, usage string, language string) {
	a.announce(chatID, fmt.Sprintf(i18n.Get("Usage: %s", language), usage))
}

func (a *Admin) announce(chatID int64, text string) {
	if _, err := a.s.GetBot().Send(api.NewMessage(chatID, text)); err != nil {
		a.getLogEntry().WithField("error", err.Error()).Warn("cant send reply")
	}
}
