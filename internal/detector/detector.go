package detector

import (
	"strings"
	"time"
	"unicode"

	"github.com/iamwavecut/groupwarden/internal/db"
)

const (
	floodWindow   = 60 * time.Second
	historyLength = 10
)

type (
	// Detector implements the stateful flood and repeated-content checks.
	// It mutates the passed UserState; persisting it is the caller's job.
	Detector struct {
		FloodLimit          int
		SpamThreshold       int
		SimilarityThreshold float64
	}

	Result struct {
		Flood    bool
		Repeated bool
	}
)

func New(floodLimit, spamThreshold int, similarityThreshold float64) *Detector {
	return &Detector{
		FloodLimit:          floodLimit,
		SpamThreshold:       spamThreshold,
		SimilarityThreshold: similarityThreshold,
	}
}

// RecordMessage advances the flood window and the similarity history for one
// observed message. State is updated even when nothing fires: the window and
// history must stay current regardless of the outcome.
func (d *Detector) RecordMessage(state *db.UserState, text string, now time.Time) Result {
	var result Result

	if now.Sub(state.WindowStart) > floodWindow {
		state.MessageCount = 1
		state.WindowStart = now
	} else {
		state.MessageCount++
	}
	result.Flood = state.MessageCount > d.FloodLimit

	// The current message counts as an occurrence: the third identical
	// send trips the default threshold of 3, not the fourth.
	normalized := Normalize(text)
	occurrences := 1
	for _, previous := range state.RecentMessages {
		if Similarity(normalized, previous) >= d.SimilarityThreshold {
			occurrences++
		}
	}
	result.Repeated = occurrences >= d.SpamThreshold

	state.RecentMessages = append(state.RecentMessages, normalized)
	if len(state.RecentMessages) > historyLength {
		state.RecentMessages = state.RecentMessages[len(state.RecentMessages)-historyLength:]
	}

	return result
}

// Normalize lowercases, collapses whitespace and strips punctuation so that
// trivially mutated repeats still compare as equal.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	space := false
	for _, r := range strings.ToLower(strings.TrimSpace(text)) {
		switch {
		case unicode.IsSpace(r):
			space = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			// dropped
		default:
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Similarity is a longest-common-subsequence ratio in [0,1]:
// 2*LCS(a,b) / (len(a)+len(b)). Identical strings score 1, disjoint 0.
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}

	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			if ra[i-1] == rb[j-1] {
				cur[j] = prev[j-1] + 1
			} else if prev[j] >= cur[j-1] {
				cur[j] = prev[j]
			} else {
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	lcs := prev[len(rb)]
	return 2 * float64(lcs) / float64(len(ra)+len(rb))
}
