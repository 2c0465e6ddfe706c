package db

const DefaultMaxFileSize = 20 * 1024 * 1024

// DefaultSettings is the documented default configuration for a chat that
// has never been configured. Retrieval of an unknown chat must be
// indistinguishable from these values.
func DefaultSettings(chatID int64) *Settings {
	return &Settings{
		ID:                 chatID,
		AntiSpamEnabled:    true,
		WelcomeEnabled:     true,
		FloodProtection:    true,
		CaptchaEnabled:     false,
		LinkPolicy:         LinkPolicyModerate,
		ForwardPolicy:      ForwardPolicyAllow,
		BannedWords:        StringList{},
		WhitelistedDomains: StringList{},
		RequiredChannels:   StringList{},
		Media:              MediaPolicy{MaxFileSize: DefaultMaxFileSize},
		Language:           "en",
	}
}

// NewUserState returns the zero moderation state for a (chat,user) pair.
func NewUserState(chatID, userID int64) *UserState {
	return &UserState{
		ChatID:         chatID,
		UserID:         userID,
		RecentMessages: StringList{},
	}
}
