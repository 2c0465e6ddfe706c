package bot

import (
	"context"
	"strings"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/groupwarden/internal/config"
	apperrors "github.com/iamwavecut/groupwarden/internal/errors"
	"github.com/iamwavecut/groupwarden/internal/rules"
)

const (
	UpdateTimeout = 5 * time.Minute
)

type UpdateProcessor struct {
	s              Service
	updateHandlers []Handler
}

var registeredHandlers = make(map[string]Handler)

func RegisterUpdateHandler(title string, handler Handler) {
	registeredHandlers[title] = handler
}

func NewUpdateProcessor(s Service) *UpdateProcessor {
	enabledHandlers := make([]Handler, 0)
	for _, handlerName := range config.Get().EnabledHandlers {
		if _, ok := registeredHandlers[handlerName]; !ok || registeredHandlers[handlerName] == nil {
			log.Warnf("no registered handler: %s", handlerName)
			continue
		}
		enabledHandlers = append(enabledHandlers, registeredHandlers[handlerName])
	}

	return &UpdateProcessor{
		s:              s,
		updateHandlers: enabledHandlers,
	}
}

func (up *UpdateProcessor) Process(ctx context.Context, u *api.Update) error {
	if u == nil {
		return errors.New("update is nil")
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		var updateTime time.Time
		switch {
		case u.Message != nil:
			updateTime = time.Unix(int64(u.Message.Date), 0)
		case u.EditedMessage != nil:
			updateTime = time.Unix(int64(u.EditedMessage.Date), 0)
		default:
			updateTime = time.Now()
		}

		if time.Since(updateTime) > UpdateTimeout {
			log.WithFields(log.Fields{
				"update_time": updateTime,
				"age":         time.Since(updateTime),
			}).Debug("Skipping outdated update")
			return nil
		}

		chat := u.FromChat()
		if chat == nil {
			switch {
			case u.ChatJoinRequest != nil:
				chat = &u.ChatJoinRequest.Chat
			case u.MyChatMember != nil:
				chat = &u.MyChatMember.Chat
			case u.ChatMember != nil:
				chat = &u.ChatMember.Chat
			}
		}

		user := u.SentFrom()
		if user == nil {
			switch {
			case u.ChatJoinRequest != nil:
				user = &u.ChatJoinRequest.From
			case u.MyChatMember != nil:
				user = &u.MyChatMember.From
			case u.ChatMember != nil:
				user = &u.ChatMember.From
			}
		}

		for _, handler := range up.updateHandlers {
			if handler == nil {
				continue
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
				proceed, err := handler.Handle(ctx, u, chat, user)
				if err != nil {
					return errors.WithMessage(err, "handling error")
				}
				if !proceed {
					log.Trace("not proceeding")
					return nil
				}
			}
		}
		return nil
	}
}

func DeleteChatMessage(ctx context.Context, bot *api.BotAPI, chatID int64, messageID int) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		if _, err := bot.Request(api.NewDeleteMessage(chatID, messageID)); err != nil {
			return apperrors.Classify(errors.WithMessage(err, "can't delete message"))
		}
		return nil
	}
}

func BanUserFromChat(ctx context.Context, bot *api.BotAPI, userID int64, chatID int64, untilUnix int64) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		if _, err := bot.Request(api.BanChatMemberConfig{
			ChatMemberConfig: api.ChatMemberConfig{
				ChatConfig: api.ChatConfig{
					ChatID: chatID,
				},
				UserID: userID,
			},
			UntilDate:      untilUnix,
			RevokeMessages: true,
		}); err != nil {
			return apperrors.Classify(errors.WithMessage(err, "can't ban"))
		}
		return nil
	}
}

// UnbanUserFromChat lifts a ban so that a kicked user may rejoin. Used after
// a failed entry challenge, where the intent is removal, not a permanent ban.
func UnbanUserFromChat(ctx context.Context, bot *api.BotAPI, userID int64, chatID int64) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		if _, err := bot.Request(api.UnbanChatMemberConfig{
			ChatMemberConfig: api.ChatMemberConfig{
				ChatConfig: api.ChatConfig{
					ChatID: chatID,
				},
				UserID: userID,
			},
			OnlyIfBanned: true,
		}); err != nil {
			return apperrors.Classify(errors.WithMessage(err, "can't unban"))
		}
		return nil
	}
}

func chatPermissions(allow bool) *api.ChatPermissions {
	return &api.ChatPermissions{
		CanSendMessages:       allow,
		CanSendAudios:         allow,
		CanSendDocuments:      allow,
		CanSendPhotos:         allow,
		CanSendVideos:         allow,
		CanSendVideoNotes:     allow,
		CanSendVoiceNotes:     allow,
		CanSendPolls:          allow,
		CanSendOtherMessages:  allow,
		CanAddWebPagePreviews: allow,
		CanChangeInfo:         allow,
		CanInviteUsers:        allow,
		CanPinMessages:        allow,
		CanManageTopics:       allow,
	}
}

// RestrictChatting removes all send permissions until the given time. A zero
// until restricts indefinitely, pending an explicit unrestrict.
func RestrictChatting(ctx context.Context, bot *api.BotAPI, userID int64, chatID int64, until time.Time) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		cfg := api.RestrictChatMemberConfig{
			ChatMemberConfig: api.ChatMemberConfig{
				ChatConfig: api.ChatConfig{
					ChatID: chatID,
				},
				UserID: userID,
			},
			Permissions: chatPermissions(false),
		}
		if !until.IsZero() {
			cfg.UntilDate = until.Unix()
		}
		if _, err := bot.Request(cfg); err != nil {
			return apperrors.Classify(errors.WithMessage(err, "can't restrict"))
		}
		return nil
	}
}

func UnrestrictChatting(ctx context.Context, bot *api.BotAPI, userID int64, chatID int64) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		if _, err := bot.Request(api.RestrictChatMemberConfig{
			ChatMemberConfig: api.ChatMemberConfig{
				ChatConfig: api.ChatConfig{
					ChatID: chatID,
				},
				UserID: userID,
			},
			UntilDate:   time.Now().Add(10 * time.Minute).Unix(),
			Permissions: chatPermissions(true),
		}); err != nil {
			return apperrors.Classify(errors.WithMessage(err, "can't unrestrict"))
		}
		return nil
	}
}

// UserIsAdmin reports whether the user may run privileged commands in the
// chat: the creator, or an administrator allowed to restrict members.
func UserIsAdmin(bot *api.BotAPI, chatID, userID int64) (bool, error) {
	chatMember, err := bot.GetChatMember(api.GetChatMemberConfig{
		ChatConfigWithUser: api.ChatConfigWithUser{
			UserID: userID,
			ChatConfig: api.ChatConfig{
				ChatID: chatID,
			},
		},
	})
	if err != nil {
		return false, apperrors.Classify(errors.WithMessage(err, "can't get chat member"))
	}
	return chatMember.IsCreator() || (chatMember.IsAdministrator() && chatMember.CanRestrictMembers), nil
}

// IsChannelMember checks membership in a channel by public @username.
func IsChannelMember(bot *api.BotAPI, channelUsername string, userID int64) (bool, error) {
	chatMember, err := bot.GetChatMember(api.GetChatMemberConfig{
		ChatConfigWithUser: api.ChatConfigWithUser{
			UserID: userID,
			ChatConfig: api.ChatConfig{
				SuperGroupUsername: "@" + strings.TrimPrefix(channelUsername, "@"),
			},
		},
	})
	if err != nil {
		return false, apperrors.Classify(errors.WithMessage(err, "can't check channel membership"))
	}
	switch chatMember.Status {
	case "creator", "administrator", "member":
		return true, nil
	}
	return false, nil
}

func GetUpdatesChans(ctx context.Context, bot *api.BotAPI, config api.UpdateConfig) (api.UpdatesChannel, chan error) {
	ch := make(chan api.Update, bot.Buffer)
	chErr := make(chan error)

	go func() {
		defer close(ch)
		defer close(chErr)
		for {
			select {
			case <-ctx.Done():
				chErr <- ctx.Err()
				return
			default:
				updates, err := bot.GetUpdates(config)
				if err != nil {
					chErr <- err
					return
				}

				for _, update := range updates {
					if update.UpdateID >= config.Offset {
						config.Offset = update.UpdateID + 1
						select {
						case ch <- update:
						case <-ctx.Done():
							chErr <- ctx.Err()
							return
						}
					}
				}
			}
		}
	}()

	return ch, chErr
}

func GetUN(user *api.User) string {
	if user == nil {
		return ""
	}
	userName := user.UserName
	if len(userName) == 0 {
		userName = user.FirstName + " " + user.LastName
		userName = strings.TrimSpace(userName)
	}
	return userName
}

func GetFullName(user *api.User) string {
	if user == nil {
		return ""
	}
	fullName := user.FirstName + " " + user.LastName
	fullName = strings.TrimSpace(fullName)
	if len(fullName) == 0 {
		fullName = user.UserName
	}
	return fullName
}

// AdaptMessage converts a platform message into the rule engine's
// transport-free view.
func AdaptMessage(msg *api.Message) rules.Message {
	if msg == nil {
		return rules.Message{}
	}

	adapted := rules.Message{
		Text:         strings.TrimSpace(msg.Text + " " + msg.Caption),
		HasPhoto:     msg.Photo != nil,
		HasVideo:     msg.Video != nil,
		HasAudio:     msg.Audio != nil || msg.Voice != nil,
		HasSticker:   msg.Sticker != nil,
		HasAnimation: msg.Animation != nil,
	}
	if msg.Document != nil {
		adapted.Document = &rules.Document{
			FileName: msg.Document.FileName,
			FileSize: int64(msg.Document.FileSize),
		}
	}
	if origin := msg.ForwardOrigin; origin != nil {
		forward := &rules.Forward{}
		switch origin.Type {
		case "channel":
			forward.FromChannel = true
		case "chat":
			forward.FromGroup = true
		case "user":
			if origin.SenderUser != nil && origin.SenderUser.IsBot {
				forward.FromBot = true
			}
		}
		adapted.Forward = forward
	}
	return adapted
}
