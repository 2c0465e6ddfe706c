package rules

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/samber/lo"

	"github.com/iamwavecut/groupwarden/internal/config"
	"github.com/iamwavecut/groupwarden/internal/db"
)

// Hint is a rule check's recommended handling; the decision core merges
// hints from all checks into a single ranked action.
type Hint int

const (
	HintNone Hint = iota
	HintWarn
	HintDelete
)

// Check categories. Metrics label by these instead of the free-form reason
// strings, which embed user-controlled domains and filenames.
const (
	CategoryBannedWords = "banned_words"
	CategoryLinks       = "links"
	CategoryMedia       = "media"
	CategoryForwards    = "forwards"
)

type CheckResult struct {
	Violation  bool
	Reasons    []string
	Categories []string
	Hint       Hint
}

func (r *CheckResult) add(category, reason string, hint Hint) {
	r.Violation = true
	r.Reasons = append(r.Reasons, reason)
	if !lo.Contains(r.Categories, category) {
		r.Categories = append(r.Categories, category)
	}
	if hint > r.Hint {
		r.Hint = hint
	}
}

func (r *CheckResult) merge(other CheckResult) {
	if !other.Violation {
		return
	}
	r.Violation = true
	r.Reasons = append(r.Reasons, other.Reasons...)
	r.Categories = lo.Uniq(append(r.Categories, other.Categories...))
	if other.Hint > r.Hint {
		r.Hint = other.Hint
	}
}

var (
	urlPattern    = regexp.MustCompile(`https?://[^\s<>"']+`)
	domainPattern = regexp.MustCompile(`(?:^|\s)((?:[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]{2,})`)
)

// Engine evaluates a message against a chat's configured rule sets. Feature
// flags from the process config gate whole checks in addition to per-chat
// policy.
type Engine struct {
	flags config.Spam
}

func NewEngine(flags config.Spam) *Engine {
	return &Engine{flags: flags}
}

// CheckAll runs every rule check, accumulating reasons; checks never
// short-circuit each other.
func (e *Engine) CheckAll(settings *db.Settings, msg Message) CheckResult {
	var result CheckResult
	if msg.Text != "" {
		result.merge(e.CheckBannedWords(settings, msg.Text))
		result.merge(e.CheckLinks(settings, msg.Text))
	}
	result.merge(e.CheckMedia(settings, msg))
	result.merge(e.CheckForwards(settings, msg))
	return result
}

func (e *Engine) CheckBannedWords(settings *db.Settings, text string) CheckResult {
	var result CheckResult
	if !e.flags.EnableBannedWords {
		return result
	}

	words := []string(settings.BannedWords)
	if len(words) == 0 {
		words = defaultBannedWords
	}

	textLower := strings.ToLower(text)
	found := lo.Filter(words, func(word string, _ int) bool {
		return strings.Contains(textLower, strings.ToLower(word))
	})
	if len(found) > 0 {
		result.add(CategoryBannedWords, fmt.Sprintf("Contains banned word(s): %s", strings.Join(found, ", ")), HintDelete)
	}
	return result
}

func (e *Engine) CheckLinks(settings *db.Settings, text string) CheckResult {
	var result CheckResult
	if !e.flags.EnableLinkFilter {
		return result
	}

	hint := HintWarn
	if settings.LinkPolicy == db.LinkPolicyStrict {
		hint = HintDelete
	}

	for _, raw := range urlPattern.FindAllString(text, -1) {
		parsed, err := url.Parse(raw)
		if err != nil {
			continue
		}
		domain := strings.ToLower(parsed.Hostname())
		if category, ok := matchSuspicious(domain); ok {
			result.add(CategoryLinks, fmt.Sprintf("Suspicious %s link: %s", category, domain), hint)
		}
		if settings.LinkPolicy == db.LinkPolicyStrict && !isWhitelisted(domain, settings.WhitelistedDomains) {
			result.add(CategoryLinks, fmt.Sprintf("External link not whitelisted: %s", domain), hint)
		}
	}

	for _, match := range domainPattern.FindAllStringSubmatch(text, -1) {
		domain := strings.ToLower(strings.Trim(match[1], "."))
		if category, ok := matchSuspicious(domain); ok {
			result.add(CategoryLinks, fmt.Sprintf("Suspicious %s domain mentioned: %s", category, domain), hint)
		}
	}

	return result
}

func (e *Engine) CheckMedia(settings *db.Settings, msg Message) CheckResult {
	var result CheckResult
	if !e.flags.EnableMediaFilter {
		return result
	}

	policy := settings.Media
	if policy.BlockAll {
		if msg.HasAnyMedia() {
			result.add(CategoryMedia, "Media content not allowed in this group", HintDelete)
		}
	} else {
		if msg.HasPhoto && policy.BlockImages {
			result.add(CategoryMedia, "Images not allowed", HintDelete)
		}
		if msg.HasVideo && policy.BlockVideos {
			result.add(CategoryMedia, "Videos not allowed", HintDelete)
		}
		if msg.HasAudio && policy.BlockAudio {
			result.add(CategoryMedia, "Audio files not allowed", HintDelete)
		}
		if msg.Document != nil && policy.BlockDocuments {
			result.add(CategoryMedia, "Documents not allowed", HintDelete)
		}
		if msg.HasSticker && policy.BlockStickers {
			result.add(CategoryMedia, "Stickers not allowed", HintDelete)
		}
		if msg.HasAnimation && policy.BlockGIFs {
			result.add(CategoryMedia, "GIFs/animations not allowed", HintDelete)
		}
	}

	if msg.Document != nil {
		maxSize := policy.MaxFileSize
		if maxSize <= 0 {
			maxSize = db.DefaultMaxFileSize
		}
		if msg.Document.FileSize > maxSize {
			result.add(CategoryMedia, fmt.Sprintf("File too large: %.1fMB (max: %dMB)",
				float64(msg.Document.FileSize)/1024/1024, maxSize/1024/1024), HintDelete)
		}

		name := strings.ToLower(msg.Document.FileName)
		if lo.SomeBy(dangerousExtensions, func(ext string) bool { return strings.HasSuffix(name, ext) }) {
			result.add(CategoryMedia, fmt.Sprintf("Potentially harmful file type: %s", msg.Document.FileName), HintDelete)
		}
	}

	return result
}

func (e *Engine) CheckForwards(settings *db.Settings, msg Message) CheckResult {
	var result CheckResult
	if !e.flags.EnableForwardFilter {
		return result
	}
	if msg.Forward == nil || settings.ForwardPolicy == db.ForwardPolicyAllow {
		return result
	}

	switch settings.ForwardPolicy {
	case db.ForwardPolicyBlock:
		result.add(CategoryForwards, "Forwarded messages not allowed", HintDelete)
	case db.ForwardPolicyRestrict:
		if msg.Forward.FromChannel {
			result.add(CategoryForwards, "Messages forwarded from channels not allowed", HintDelete)
		}
		if msg.Forward.FromGroup {
			result.add(CategoryForwards, "Messages forwarded from other groups not allowed", HintDelete)
		}
		if msg.Forward.FromBot {
			result.add(CategoryForwards, "Messages forwarded from bots not allowed", HintDelete)
		}
	}
	return result
}

func matchSuspicious(domain string) (string, bool) {
	for category, domains := range suspiciousDomains {
		if lo.SomeBy(domains, func(bad string) bool { return strings.Contains(domain, bad) }) {
			return category, true
		}
	}
	return "", false
}

func isWhitelisted(domain string, whitelist db.StringList) bool {
	return lo.SomeBy(whitelist, func(allowed string) bool {
		return strings.Contains(domain, strings.ToLower(allowed))
	})
}
