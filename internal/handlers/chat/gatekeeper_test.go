package handlers

import (
	"testing"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"

	"github.com/iamwavecut/groupwarden/internal/db"
)

func TestIsChallengeCallbackData(t *testing.T) {
	t.Parallel()
	cases := []struct {
		data string
		want bool
	}{
		{"123;some-uuid", true},
		{"123;", false},
		{";uuid", false},
		{"abc;uuid", false},
		{"123", false},
		{"123;uuid;extra", false},
		{"sub;123", false},
	}
	for _, tc := range cases {
		if got := isChallengeCallbackData(tc.data); got != tc.want {
			t.Errorf("isChallengeCallbackData(%q) = %v, want %v", tc.data, got, tc.want)
		}
	}
}

func TestResolveButtonAnswer(t *testing.T) {
	t.Parallel()
	now := time.Now()
	pending := &db.Challenge{
		ChatID:      10,
		SuccessUUID: "right",
		ExpiresAt:   now.Add(time.Minute),
	}
	stale := &db.Challenge{
		ChatID:      10,
		SuccessUUID: "right",
		ExpiresAt:   now.Add(-time.Minute),
	}

	cases := []struct {
		name      string
		challenge *db.Challenge
		chatID    int64
		answer    string
		want      challengeOutcome
	}{
		{"correct answer passes", pending, 10, "right", challengeOutcomePassed},
		{"wrong answer stays pending", pending, 10, "wrong", challengeOutcomeRetry},
		{"expiry wins over a correct late answer", stale, 10, "right", challengeOutcomeExpired},
		{"expired wrong answer still expires", stale, 10, "wrong", challengeOutcomeExpired},
		{"no challenge", nil, 10, "right", challengeOutcomeNone},
		{"challenge in another chat", pending, 11, "right", challengeOutcomeNone},
	}
	for _, tc := range cases {
		if got := resolveButtonAnswer(tc.challenge, tc.chatID, tc.answer, now); got != tc.want {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestWrongButtonAnswerLeavesChallengeUntouched(t *testing.T) {
	t.Parallel()
	challenge := &db.Challenge{
		ChatID:      10,
		SuccessUUID: "right",
		ExpiresAt:   time.Now().Add(time.Minute),
	}
	before := *challenge

	if got := resolveButtonAnswer(challenge, 10, "wrong", time.Now()); got != challengeOutcomeRetry {
		t.Fatalf("expected retry outcome, got %v", got)
	}
	if *challenge != before {
		t.Fatalf("challenge record changed on a wrong answer: %+v", challenge)
	}
}

func TestDetermineUpdateType(t *testing.T) {
	t.Parallel()
	g := &Gatekeeper{}

	cases := []struct {
		name string
		u    *api.Update
		want updateType
	}{
		{"callback", &api.Update{CallbackQuery: &api.CallbackQuery{}}, updateTypeCallbackQuery},
		{"new members", &api.Update{Message: &api.Message{NewChatMembers: []api.User{{}}}}, updateTypeNewChatMembers},
		{"text", &api.Update{Message: &api.Message{Text: "hi"}}, updateTypeTextMessage},
		{"photo only", &api.Update{Message: &api.Message{}}, updateTypeIgnore},
		{"empty", &api.Update{}, updateTypeIgnore},
	}
	for _, tc := range cases {
		if got := g.determineUpdateType(tc.u); got != tc.want {
			t.Errorf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}
}
