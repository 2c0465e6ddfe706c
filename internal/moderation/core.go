package moderation

import (
	"time"

	"github.com/iamwavecut/groupwarden/internal/db"
	"github.com/iamwavecut/groupwarden/internal/detector"
	"github.com/iamwavecut/groupwarden/internal/rules"
)

// Detector categories, matching the rule engine's bounded set.
const (
	CategoryFlood  = "flood"
	CategoryRepeat = "repeat"
)

// Core merges the spam detector and the rule engine into a single verdict
// per message. It is storage-free: the caller loads and persists UserState
// around each call.
type Core struct {
	detector *detector.Detector
	engine   *rules.Engine
}

func NewCore(det *detector.Detector, engine *rules.Engine) *Core {
	return &Core{detector: det, engine: engine}
}

// Evaluate records the message into the user's rolling state and runs every
// enabled check. State mutation happens even when the chat has anti-spam
// switched off, so that re-enabling it later starts from accurate counters.
func (c *Core) Evaluate(state *db.UserState, settings *db.Settings, msg rules.Message, now time.Time) Verdict {
	var verdict Verdict

	detected := c.detector.RecordMessage(state, msg.Text, now)
	if settings.FloodProtection && detected.Flood {
		verdict.raise(ActionMute, "Flooding: too many messages in a short period")
		verdict.tag(CategoryFlood)
	}
	if settings.AntiSpamEnabled && detected.Repeated {
		verdict.raise(ActionWarn, "Spam: repeated similar messages")
		verdict.tag(CategoryRepeat)
	}

	if settings.AntiSpamEnabled {
		checked := c.engine.CheckAll(settings, msg)
		if checked.Violation {
			action := ActionWarn
			if checked.Hint == rules.HintDelete {
				action = ActionDelete
			}
			verdict.raise(action, checked.Reasons...)
			verdict.tag(checked.Categories...)
		}
	}

	return verdict
}
