package moderation

import "time"

// Ladder maps a user's accumulated warning count to an escalated action.
// Mute durations grow with repeat offenses, capped at the last configured
// duration.
type Ladder struct {
	MaxWarnings   int
	MuteDurations []time.Duration
}

func NewLadder(maxWarnings int, muteDurations []time.Duration) *Ladder {
	if maxWarnings <= 0 {
		maxWarnings = 3
	}
	if len(muteDurations) == 0 {
		muteDurations = []time.Duration{10 * time.Minute, time.Hour, 24 * time.Hour}
	}
	return &Ladder{MaxWarnings: maxWarnings, MuteDurations: muteDurations}
}

// Action returns the escalation step for a warning count that has already
// been incremented for the current offense.
func (l *Ladder) Action(count int) Action {
	switch {
	case count >= l.MaxWarnings:
		return ActionBan
	case count >= 2:
		return ActionMute
	default:
		return ActionWarn
	}
}

// MuteDuration picks the mute length for the given warning count. The first
// mute lands on the first duration.
func (l *Ladder) MuteDuration(count int) time.Duration {
	idx := count - 2
	if idx < 0 {
		idx = 0
	}
	if idx >= len(l.MuteDurations) {
		idx = len(l.MuteDurations) - 1
	}
	return l.MuteDurations[idx]
}
