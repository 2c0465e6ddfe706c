package rules

import (
	"strings"
	"testing"

	"github.com/iamwavecut/groupwarden/internal/config"
	"github.com/iamwavecut/groupwarden/internal/db"
)

func allFlags() config.Spam {
	return config.Spam{
		EnableBannedWords:   true,
		EnableLinkFilter:    true,
		EnableMediaFilter:   true,
		EnableForwardFilter: true,
	}
}

func TestCheckBannedWordsDefaults(t *testing.T) {
	t.Parallel()
	engine := NewEngine(allFlags())
	settings := db.DefaultSettings(1)

	result := engine.CheckBannedWords(settings, "get FREE MONEY today")
	if !result.Violation {
		t.Fatal("expected violation for default banned word")
	}
	if result.Hint != HintDelete {
		t.Errorf("got hint %v, want HintDelete", result.Hint)
	}

	result = engine.CheckBannedWords(settings, "hello there")
	if result.Violation {
		t.Errorf("unexpected violation: %v", result.Reasons)
	}
}

func TestCheckBannedWordsCustomList(t *testing.T) {
	t.Parallel()
	engine := NewEngine(allFlags())
	settings := db.DefaultSettings(1)
	settings.BannedWords = db.StringList{"wolf"}

	if result := engine.CheckBannedWords(settings, "casino talk"); result.Violation {
		t.Error("custom list should replace defaults")
	}
	if result := engine.CheckBannedWords(settings, "cry Wolf"); !result.Violation {
		t.Error("expected violation, matching is case insensitive")
	}
}

func TestCheckLinksSuspicious(t *testing.T) {
	t.Parallel()
	engine := NewEngine(allFlags())
	settings := db.DefaultSettings(1)

	result := engine.CheckLinks(settings, "check https://bit.ly/abc123 now")
	if !result.Violation {
		t.Fatal("expected violation for shortener link")
	}
	if result.Hint != HintWarn {
		t.Errorf("moderate policy should warn, got %v", result.Hint)
	}
}

func TestCheckLinksStrictWhitelist(t *testing.T) {
	t.Parallel()
	engine := NewEngine(allFlags())
	settings := db.DefaultSettings(1)
	settings.LinkPolicy = db.LinkPolicyStrict
	settings.WhitelistedDomains = db.StringList{"example.com"}

	result := engine.CheckLinks(settings, "see https://evil.net/page")
	if !result.Violation {
		t.Fatal("strict policy should flag non-whitelisted link")
	}
	if result.Hint != HintDelete {
		t.Errorf("strict policy should delete, got %v", result.Hint)
	}

	result = engine.CheckLinks(settings, "docs at https://example.com/help")
	if result.Violation {
		t.Errorf("whitelisted link flagged: %v", result.Reasons)
	}
}

func TestCheckLinksStrictShortenerDoubleReason(t *testing.T) {
	t.Parallel()
	engine := NewEngine(allFlags())
	settings := db.DefaultSettings(1)
	settings.LinkPolicy = db.LinkPolicyStrict
	settings.WhitelistedDomains = db.StringList{"example.com"}

	// A non-whitelisted shortener trips both link checks on one URL.
	result := engine.CheckLinks(settings, "click https://bit.ly/xyz now")
	if !result.Violation {
		t.Fatal("expected violation")
	}
	if len(result.Reasons) != 2 {
		t.Fatalf("got %d reasons, want 2: %v", len(result.Reasons), result.Reasons)
	}
	if !strings.Contains(result.Reasons[0], "shortener") {
		t.Errorf("first reason should name the shortener category: %q", result.Reasons[0])
	}
	if !strings.Contains(result.Reasons[1], "not whitelisted") {
		t.Errorf("second reason should flag the whitelist miss: %q", result.Reasons[1])
	}
	if result.Hint != HintDelete {
		t.Errorf("strict policy should delete, got %v", result.Hint)
	}
	if len(result.Categories) != 1 || result.Categories[0] != CategoryLinks {
		t.Errorf("categories should collapse to %q once, got %v", CategoryLinks, result.Categories)
	}
}

func TestCheckLinksBareDomain(t *testing.T) {
	t.Parallel()
	engine := NewEngine(allFlags())
	settings := db.DefaultSettings(1)

	result := engine.CheckLinks(settings, "visit tinyurl.com for details")
	if !result.Violation {
		t.Fatal("expected violation for bare suspicious domain")
	}
	if !strings.Contains(result.Reasons[0], "tinyurl.com") {
		t.Errorf("reason should name the domain: %q", result.Reasons[0])
	}
}

func TestCheckMediaFileSize(t *testing.T) {
	t.Parallel()
	engine := NewEngine(allFlags())
	settings := db.DefaultSettings(1)

	msg := Message{Document: &Document{FileName: "report.pdf", FileSize: 25 * 1024 * 1024}}
	result := engine.CheckMedia(settings, msg)
	if !result.Violation {
		t.Fatal("25MB document should exceed the 20MB default cap")
	}

	msg.Document.FileSize = 10 * 1024 * 1024
	if result := engine.CheckMedia(settings, msg); result.Violation {
		t.Errorf("10MB document flagged: %v", result.Reasons)
	}
}

func TestCheckMediaDangerousExtension(t *testing.T) {
	t.Parallel()
	engine := NewEngine(allFlags())
	settings := db.DefaultSettings(1)

	msg := Message{Document: &Document{FileName: "Setup.EXE", FileSize: 1024}}
	result := engine.CheckMedia(settings, msg)
	if !result.Violation {
		t.Fatal("expected violation for executable attachment")
	}
	if result.Hint != HintDelete {
		t.Errorf("got hint %v, want HintDelete", result.Hint)
	}
}

func TestCheckMediaBlockAll(t *testing.T) {
	t.Parallel()
	engine := NewEngine(allFlags())
	settings := db.DefaultSettings(1)
	settings.Media.BlockAll = true

	if result := engine.CheckMedia(settings, Message{HasPhoto: true}); !result.Violation {
		t.Error("block_all should flag photos")
	}
	if result := engine.CheckMedia(settings, Message{Text: "plain"}); result.Violation {
		t.Error("block_all should not flag text-only messages")
	}
}

func TestCheckMediaPerType(t *testing.T) {
	t.Parallel()
	engine := NewEngine(allFlags())
	settings := db.DefaultSettings(1)
	settings.Media.BlockStickers = true

	if result := engine.CheckMedia(settings, Message{HasSticker: true}); !result.Violation {
		t.Error("expected sticker violation")
	}
	if result := engine.CheckMedia(settings, Message{HasPhoto: true}); result.Violation {
		t.Error("photos are not blocked by this policy")
	}
}

func TestCheckForwards(t *testing.T) {
	t.Parallel()
	engine := NewEngine(allFlags())

	cases := []struct {
		name    string
		policy  string
		forward *Forward
		want    bool
	}{
		{"allow passes channel", db.ForwardPolicyAllow, &Forward{FromChannel: true}, false},
		{"block flags any forward", db.ForwardPolicyBlock, &Forward{}, true},
		{"restrict flags channel", db.ForwardPolicyRestrict, &Forward{FromChannel: true}, true},
		{"restrict flags bot", db.ForwardPolicyRestrict, &Forward{FromBot: true}, true},
		{"restrict passes user forward", db.ForwardPolicyRestrict, &Forward{}, false},
		{"non-forward passes", db.ForwardPolicyBlock, nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			settings := db.DefaultSettings(1)
			settings.ForwardPolicy = tc.policy
			result := engine.CheckForwards(settings, Message{Forward: tc.forward})
			if result.Violation != tc.want {
				t.Errorf("violation = %v, want %v (%v)", result.Violation, tc.want, result.Reasons)
			}
		})
	}
}

func TestCheckAllAccumulates(t *testing.T) {
	t.Parallel()
	engine := NewEngine(allFlags())
	settings := db.DefaultSettings(1)
	settings.ForwardPolicy = db.ForwardPolicyBlock

	msg := Message{
		Text:    "free money at bit.ly/x https://bit.ly/x",
		Forward: &Forward{FromChannel: true},
	}
	result := engine.CheckAll(settings, msg)
	if !result.Violation {
		t.Fatal("expected violations")
	}
	if len(result.Reasons) < 3 {
		t.Errorf("expected accumulated reasons from several checks, got %v", result.Reasons)
	}
	if result.Hint != HintDelete {
		t.Errorf("got hint %v, want HintDelete", result.Hint)
	}
}

func TestDisabledChecksPass(t *testing.T) {
	t.Parallel()
	engine := NewEngine(config.Spam{})
	settings := db.DefaultSettings(1)

	msg := Message{
		Text:     "crypto https://bit.ly/x",
		Document: &Document{FileName: "virus.exe", FileSize: 100 * 1024 * 1024},
		Forward:  &Forward{FromChannel: true},
	}
	if result := engine.CheckAll(settings, msg); result.Violation {
		t.Errorf("all checks disabled, got violations: %v", result.Reasons)
	}
}
