package moderation

import "github.com/samber/lo"

// Action is a ranked enforcement outcome. Merging two verdicts keeps the
// harsher action, so the order of the constants matters.
type Action int

const (
	ActionNone Action = iota
	ActionWarn
	ActionDelete
	ActionMute
	ActionBan
)

func (a Action) String() string {
	switch a {
	case ActionWarn:
		return "warn"
	case ActionDelete:
		return "delete"
	case ActionMute:
		return "mute"
	case ActionBan:
		return "ban"
	default:
		return "none"
	}
}

func MaxAction(a, b Action) Action {
	if b > a {
		return b
	}
	return a
}

// Verdict is the merged result of all detectors and rule checks for one
// message.
type Verdict struct {
	Action  Action
	Reasons []string

	// Categories holds the bounded check identifiers that fired, for
	// metrics. Reasons stay free-form for humans.
	Categories []string

	// DeleteMessage is set independently of Action so that a mute or ban
	// still removes the offending message when any check asked for it.
	DeleteMessage bool
}

func (v *Verdict) raise(action Action, reasons ...string) {
	v.Action = MaxAction(v.Action, action)
	v.Reasons = append(v.Reasons, reasons...)
	if action >= ActionDelete {
		v.DeleteMessage = true
	}
}

func (v *Verdict) tag(categories ...string) {
	v.Categories = lo.Uniq(append(v.Categories, categories...))
}
