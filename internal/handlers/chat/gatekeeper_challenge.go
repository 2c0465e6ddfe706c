package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pborman/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/groupwarden/internal/bot"
	"github.com/iamwavecut/groupwarden/internal/captcha"
	"github.com/iamwavecut/groupwarden/internal/db"
	apperrors "github.com/iamwavecut/groupwarden/internal/errors"
	"github.com/iamwavecut/groupwarden/internal/i18n"
	"github.com/iamwavecut/groupwarden/internal/observability"
)

func (g *Gatekeeper) handleNewChatMembers(ctx context.Context, msg *api.Message, chat *api.Chat, settings *db.Settings) error {
	entry := g.getLogEntry().WithField("method", "handleNewChatMembers")

	for i := range msg.NewChatMembers {
		member := &msg.NewChatMembers[i]
		if member.IsBot {
			continue
		}
		if !settings.CaptchaEnabled {
			g.sendWelcome(ctx, chat.ID, chat.Title, member, settings)
			continue
		}
		if err := g.startChallenge(ctx, chat, member, settings); err != nil {
			entry.WithFields(log.Fields{
				"user_id": member.ID,
				"error":   err.Error(),
			}).Error("cant start challenge")
		}
	}
	return nil
}

func (g *Gatekeeper) startChallenge(ctx context.Context, chat *api.Chat, user *api.User, settings *db.Settings) error {
	b := g.s.GetBot()
	language := g.s.GetLanguage(ctx, chat.ID, user)

	question, err := g.gen.Generate(captcha.ParseDifficulty(g.cfg.Difficulty))
	if err != nil {
		return errors.WithMessage(err, "cant generate captcha")
	}

	// Button challenges restrict the member until they answer. Free-text
	// trivia leaves them able to type, the timeout sweep still removes
	// members who never answer.
	if len(question.Options) > 0 {
		if err := bot.RestrictChatting(ctx, b, user.ID, chat.ID, time.Time{}); err != nil {
			g.getLogEntry().WithField("error", err.Error()).Warn("cant restrict new member")
		}
	}

	timeoutMinutes := int(g.cfg.Timeout.Minutes())
	if timeoutMinutes < 1 {
		timeoutMinutes = 1
	}
	text := fmt.Sprintf(
		i18n.Get("Hello %s! To verify you're human, please answer: %s You have %d minutes.", language),
		bot.GetFullName(user), question.Prompt, timeoutMinutes,
	)
	challengeMsg := api.NewMessage(chat.ID, text)

	successUUID := uuid.New()
	if len(question.Options) > 0 {
		buttons := make([]api.InlineKeyboardButton, 0, len(question.Options))
		for _, option := range question.Options {
			data := strconv.FormatInt(user.ID, 10) + ";" + uuid.New()
			if option == question.Answer {
				data = strconv.FormatInt(user.ID, 10) + ";" + successUUID
			}
			buttons = append(buttons, api.NewInlineKeyboardButtonData(option, data))
		}
		challengeMsg.ReplyMarkup = api.NewInlineKeyboardMarkup(api.NewInlineKeyboardRow(buttons...))
	}

	sent, err := b.Send(challengeMsg)
	if err != nil {
		return errors.WithMessage(err, "cant send challenge message")
	}

	now := time.Now()
	challenge := &db.Challenge{
		UserID:             user.ID,
		ChatID:             chat.ID,
		Question:           question.Prompt,
		Answer:             question.Answer,
		SuccessUUID:        successUUID,
		ChallengeMessageID: sent.MessageID,
		CreatedAt:          now,
		ExpiresAt:          now.Add(g.cfg.Timeout),
	}
	if err := g.s.GetDB().UpsertChallenge(ctx, challenge); err != nil {
		return errors.WithMessage(err, "cant store challenge")
	}
	return nil
}

type challengeOutcome int

const (
	challengeOutcomeNone challengeOutcome = iota
	challengeOutcomeRetry
	challengeOutcomeExpired
	challengeOutcomePassed
)

// resolveButtonAnswer decides what a button press means for a pending
// challenge. Expiry is checked before correctness, so a late press loses
// even with the right answer. A wrong press never resolves the challenge;
// the record stays PENDING and the member may keep trying until it expires.
func resolveButtonAnswer(challenge *db.Challenge, chatID int64, answerUUID string, now time.Time) challengeOutcome {
	if challenge == nil || challenge.ChatID != chatID {
		return challengeOutcomeNone
	}
	if now.After(challenge.ExpiresAt) {
		return challengeOutcomeExpired
	}
	if challenge.SuccessUUID != answerUUID {
		return challengeOutcomeRetry
	}
	return challengeOutcomePassed
}

func (g *Gatekeeper) handleCallback(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) error {
	entry := g.getLogEntry().WithField("method", "handleCallback")
	b := g.s.GetBot()
	cq := u.CallbackQuery
	language := g.s.GetLanguage(ctx, chat.ID, user)

	parts := strings.Split(cq.Data, ";")
	joinerID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return errors.WithMessage(err, "cant parse callback data")
	}
	answerUUID := parts[1]

	if user.ID != joinerID {
		if _, err := b.Request(api.NewCallback(cq.ID, i18n.Get("This challenge isn't your concern", language))); err != nil {
			entry.WithField("error", err.Error()).Error("cant answer callback query")
		}
		return nil
	}

	challenge, err := g.s.GetDB().GetChallenge(ctx, joinerID)
	if err != nil {
		return errors.WithMessage(err, "cant fetch challenge")
	}

	switch resolveButtonAnswer(challenge, chat.ID, answerUUID, time.Now()) {
	case challengeOutcomeNone:
		if _, err := b.Request(api.NewCallback(cq.ID, i18n.Get("No pending challenge for you here", language))); err != nil {
			entry.WithField("error", err.Error()).Error("cant answer callback query")
		}
		return nil
	case challengeOutcomeExpired:
		if _, err := b.Request(api.NewCallbackWithAlert(cq.ID, i18n.Get("Time's up, you may try joining again later", language))); err != nil {
			entry.WithField("error", err.Error()).Error("cant answer callback query")
		}
		return g.failChallenge(ctx, challenge, "expired")
	case challengeOutcomeRetry:
		if _, err := b.Request(api.NewCallbackWithAlert(cq.ID, i18n.Get("Incorrect answer, please try again", language))); err != nil {
			entry.WithField("error", err.Error()).Error("cant answer callback query")
		}
		return nil
	}

	if _, err := b.Request(api.NewCallback(cq.ID, i18n.Get("Welcome, friend!", language))); err != nil {
		entry.WithField("error", err.Error()).Error("cant answer callback query")
	}
	return g.completeChallenge(ctx, challenge, user)
}

// handleTextAnswer resolves a free-text reply against the member's pending
// challenge. Members with no pending challenge proceed to the next handler.
func (g *Gatekeeper) handleTextAnswer(ctx context.Context, msg *api.Message, chat *api.Chat, user *api.User) (bool, error) {
	challenge, err := g.s.GetDB().GetChallenge(ctx, user.ID)
	if err != nil {
		return true, errors.WithMessage(err, "cant fetch challenge")
	}
	if challenge == nil || challenge.ChatID != chat.ID {
		return true, nil
	}

	if time.Now().After(challenge.ExpiresAt) {
		return false, g.failChallenge(ctx, challenge, "expired")
	}

	if !captcha.Verify(challenge.Answer, msg.Text) {
		language := g.s.GetLanguage(ctx, chat.ID, user)
		if _, err := g.s.GetBot().Send(api.NewMessage(chat.ID, i18n.Get("Incorrect answer, please try again", language))); err != nil {
			g.getLogEntry().WithField("error", err.Error()).Warn("cant send retry prompt")
		}
		return false, nil
	}

	return false, g.completeChallenge(ctx, challenge, user)
}

func (g *Gatekeeper) completeChallenge(ctx context.Context, challenge *db.Challenge, user *api.User) error {
	entry := g.getLogEntry().WithField("method", "completeChallenge")
	b := g.s.GetBot()

	removed, err := g.s.GetDB().DeleteChallenge(ctx, challenge.UserID)
	if err != nil {
		return errors.WithMessage(err, "cant delete challenge")
	}
	if !removed {
		// The sweep got there first, the member is already gone.
		return nil
	}

	if err := bot.UnrestrictChatting(ctx, b, challenge.UserID, challenge.ChatID); err != nil {
		entry.WithField("error", err.Error()).Warn("cant unrestrict member")
	}
	if challenge.ChallengeMessageID != 0 {
		if err := bot.DeleteChatMessage(ctx, b, challenge.ChatID, challenge.ChallengeMessageID); err != nil {
			entry.WithField("error", err.Error()).Warn("cant delete challenge message")
		}
	}

	observability.RecordChallengeOutcome("captcha", "passed")

	title := ""
	if chatInfo, err := b.GetChat(api.ChatInfoConfig{
		ChatConfig: api.ChatConfig{ChatID: challenge.ChatID},
	}); err == nil {
		title = chatInfo.Title
	}
	if g.sink != nil {
		g.sink.NotifyJoin(ctx, challenge.ChatID, title, bot.GetUN(user), "captcha passed")
	}

	settings, err := g.fetchSettings(ctx, challenge.ChatID)
	if err == nil {
		g.sendWelcome(ctx, challenge.ChatID, title, user, settings)
	}
	return nil
}

func (g *Gatekeeper) failChallenge(ctx context.Context, challenge *db.Challenge, outcome string) error {
	entry := g.getLogEntry().WithField("method", "failChallenge")
	b := g.s.GetBot()

	removed, err := g.s.GetDB().DeleteChallenge(ctx, challenge.UserID)
	if err != nil {
		return errors.WithMessage(err, "cant delete challenge")
	}
	if !removed {
		return nil
	}

	if challenge.ChallengeMessageID != 0 {
		if err := bot.DeleteChatMessage(ctx, b, challenge.ChatID, challenge.ChallengeMessageID); err != nil {
			entry.WithField("error", err.Error()).Warn("cant delete challenge message")
		}
	}

	memberName := strconv.FormatInt(challenge.UserID, 10)
	if member, err := b.GetChatMember(api.GetChatMemberConfig{
		ChatConfigWithUser: api.ChatConfigWithUser{
			UserID:     challenge.UserID,
			ChatConfig: api.ChatConfig{ChatID: challenge.ChatID},
		},
	}); err == nil && member.User != nil {
		memberName = bot.GetUN(member.User)
	}

	// Kick, not ban: ban then immediately unban so the member may rejoin
	// and face a fresh challenge. A member who already left counts as
	// removed.
	if err := bot.BanUserFromChat(ctx, b, challenge.UserID, challenge.ChatID, 0); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		entry.WithField("error", err.Error()).Error("cant remove member")
		return err
	}
	if err := bot.UnbanUserFromChat(ctx, b, challenge.UserID, challenge.ChatID); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		entry.WithField("error", err.Error()).Warn("cant lift removal ban")
	}

	language := g.s.GetLanguage(ctx, challenge.ChatID, nil)
	notice := fmt.Sprintf(i18n.Get("%s was removed for failing verification", language), memberName)
	if _, err := b.Send(api.NewMessage(challenge.ChatID, notice)); err != nil {
		entry.WithField("error", err.Error()).Warn("cant send removal notice")
	}

	observability.RecordChallengeOutcome("captcha", outcome)

	if g.sink != nil {
		title := ""
		if chatInfo, err := b.GetChat(api.ChatInfoConfig{
			ChatConfig: api.ChatConfig{ChatID: challenge.ChatID},
		}); err == nil {
			title = chatInfo.Title
		}
		g.sink.NotifyJoin(ctx, challenge.ChatID, title, memberName, "captcha "+outcome)
	}
	return nil
}

func (g *Gatekeeper) processExpiredChallenges(ctx context.Context) error {
	entry := g.getLogEntry().WithField("method", "processExpiredChallenges")

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	expired, err := g.s.GetDB().GetExpiredChallenges(ctx, time.Now())
	if err != nil {
		return errors.WithMessage(err, "cant get expired challenges")
	}
	for _, challenge := range expired {
		if err := g.failChallenge(ctx, challenge, "expired"); err != nil {
			entry.WithFields(log.Fields{
				"user_id": challenge.UserID,
				"chat_id": challenge.ChatID,
				"error":   err.Error(),
			}).Error("cant process expired challenge")
		}
	}
	return nil
}
