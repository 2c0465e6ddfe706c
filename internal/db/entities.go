package db

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	apperrors "github.com/iamwavecut/groupwarden/internal/errors"
)

type (
	// Settings is the per-chat moderation configuration. A missing row is
	// indistinguishable from DefaultSettings.
	Settings struct {
		ID                 int64       `db:"id"`
		AntiSpamEnabled    bool        `db:"anti_spam_enabled"`
		WelcomeEnabled     bool        `db:"welcome_enabled"`
		FloodProtection    bool        `db:"flood_protection"`
		CaptchaEnabled     bool        `db:"captcha_enabled"`
		LinkPolicy         string      `db:"link_policy"`
		ForwardPolicy      string      `db:"forward_policy"`
		BannedWords        StringList  `db:"banned_words"`
		WhitelistedDomains StringList  `db:"whitelisted_domains"`
		RequiredChannels   StringList  `db:"required_channels"`
		Media              MediaPolicy `db:"media_policy"`
		LogChannel         string      `db:"log_channel"`
		Language           string      `db:"language"`
	}

	// UserState is per-(chat,user) moderation state: the rolling flood
	// window, the recent-message history, and the warning counter. Created
	// lazily on first observed message, never deleted automatically.
	UserState struct {
		ChatID         int64      `db:"chat_id"`
		UserID         int64      `db:"user_id"`
		MessageCount   int        `db:"message_count"`
		WindowStart    time.Time  `db:"window_start"`
		RecentMessages StringList `db:"recent_messages"`
		WarningCount   int        `db:"warning_count"`
	}

	// Challenge is a pending entry captcha. Keyed by user alone: a user
	// joining a second group overwrites the first pending captcha.
	Challenge struct {
		UserID             int64     `db:"user_id"`
		ChatID             int64     `db:"chat_id"`
		Question           string    `db:"question"`
		Answer             string    `db:"answer"`
		SuccessUUID        string    `db:"success_uuid"`
		ChallengeMessageID int       `db:"challenge_message_id"`
		CreatedAt          time.Time `db:"created_at"`
		ExpiresAt          time.Time `db:"expires_at"`
	}

	// SubVerification is a pending channel-subscription gate. Channel holds
	// the channel that most recently failed the membership check.
	SubVerification struct {
		UserID    int64     `db:"user_id"`
		ChatID    int64     `db:"chat_id"`
		MessageID int       `db:"message_id"`
		Channel   string    `db:"channel"`
		CreatedAt time.Time `db:"created_at"`
	}

	ActionLogEntry struct {
		ChatID       int64     `db:"chat_id"`
		AdminID      int64     `db:"admin_id"`
		Action       string    `db:"action"`
		TargetUserID int64     `db:"target_user_id"`
		Reason       string    `db:"reason"`
		CreatedAt    time.Time `db:"created_at"`
	}

	StringList []string
)

// Clone returns a deep copy. Cached settings are shared between handlers,
// so mutations must happen on a copy and go back through SetSettings.
func (s *Settings) Clone() *Settings {
	if s == nil {
		return nil
	}
	clone := *s
	clone.BannedWords = append(StringList(nil), s.BannedWords...)
	clone.WhitelistedDomains = append(StringList(nil), s.WhitelistedDomains...)
	clone.RequiredChannels = append(StringList(nil), s.RequiredChannels...)
	return &clone
}

// Link and forward policy values stored in Settings.
const (
	LinkPolicyStrict     = "strict"
	LinkPolicyModerate   = "moderate"
	LinkPolicyPermissive = "permissive"

	ForwardPolicyAllow    = "allow"
	ForwardPolicyRestrict = "restrict"
	ForwardPolicyBlock    = "block"
)

type MediaPolicy struct {
	BlockAll       bool  `json:"block_all_media"`
	BlockImages    bool  `json:"block_images"`
	BlockVideos    bool  `json:"block_videos"`
	BlockAudio     bool  `json:"block_audio"`
	BlockDocuments bool  `json:"block_documents"`
	BlockStickers  bool  `json:"block_stickers"`
	BlockGIFs      bool  `json:"block_gifs"`
	MaxFileSize    int64 `json:"max_file_size"`
}

func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		s = StringList{}
	}
	return json.Marshal(s)
}

func (s *StringList) Scan(v any) error {
	if v == nil {
		*s = StringList{}
		return nil
	}
	switch data := v.(type) {
	case string:
		return scanJSON([]byte(data), s)
	case []byte:
		return scanJSON(data, s)
	default:
		return fmt.Errorf("cannot scan type %T into StringList", v)
	}
}

func (m MediaPolicy) Value() (driver.Value, error) {
	return json.Marshal(m)
}

func (m *MediaPolicy) Scan(v any) error {
	if v == nil {
		*m = MediaPolicy{}
		return nil
	}
	switch data := v.(type) {
	case string:
		return scanJSON([]byte(data), m)
	case []byte:
		return scanJSON(data, m)
	default:
		return fmt.Errorf("cannot scan type %T into MediaPolicy", v)
	}
}

func scanJSON(data []byte, target any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrBadConfig, err)
	}
	return nil
}
