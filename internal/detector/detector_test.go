package detector

import (
	"fmt"
	"testing"
	"time"

	"github.com/iamwavecut/groupwarden/internal/db"
)

func TestFloodTriggersOnSixthMessageInWindow(t *testing.T) {
	t.Parallel()

	d := New(5, 3, 0.8)
	state := db.NewUserState(-1, 1)
	now := time.Unix(1700000000, 0)

	for i := 0; i < 5; i++ {
		res := d.RecordMessage(state, fmt.Sprintf("message %d", i), now.Add(time.Duration(i)*time.Second))
		if res.Flood {
			t.Fatalf("message %d should not flood", i+1)
		}
	}
	res := d.RecordMessage(state, "message 6", now.Add(6*time.Second))
	if !res.Flood {
		t.Fatalf("sixth message within the window should flood")
	}
}

func TestFloodWindowResetsAfterSixtySeconds(t *testing.T) {
	t.Parallel()

	d := New(5, 3, 0.8)
	state := db.NewUserState(-1, 1)
	now := time.Unix(1700000000, 0)

	for i := 0; i < 6; i++ {
		d.RecordMessage(state, fmt.Sprintf("message %d", i), now.Add(time.Duration(i)*time.Second))
	}

	res := d.RecordMessage(state, "later", now.Add(2*time.Minute))
	if res.Flood {
		t.Fatalf("first message of a new window should not flood")
	}
	if state.MessageCount != 1 {
		t.Fatalf("expected window reset to count 1, got %d", state.MessageCount)
	}
}

func TestRepeatedContentTriggersOnThirdIdenticalMessage(t *testing.T) {
	t.Parallel()

	d := New(100, 3, 0.8)
	state := db.NewUserState(-1, 1)
	now := time.Unix(1700000000, 0)

	first := d.RecordMessage(state, "Buy cheap followers now!", now)
	second := d.RecordMessage(state, "Buy cheap followers now!", now.Add(time.Second))
	third := d.RecordMessage(state, "buy CHEAP followers   now", now.Add(2*time.Second))

	if first.Repeated || second.Repeated {
		t.Fatalf("repetition should not fire before the third occurrence (got %v %v)",
			first.Repeated, second.Repeated)
	}
	if !third.Repeated {
		t.Fatalf("third occurrence of the same normalized text should fire")
	}
}

func TestHistoryCappedAtTen(t *testing.T) {
	t.Parallel()

	d := New(100, 3, 0.8)
	state := db.NewUserState(-1, 1)
	now := time.Unix(1700000000, 0)

	for i := 0; i < 15; i++ {
		d.RecordMessage(state, fmt.Sprintf("distinct message number %d", i), now.Add(time.Duration(i)*time.Second))
	}
	if len(state.RecentMessages) != 10 {
		t.Fatalf("expected history capped at 10, got %d", len(state.RecentMessages))
	}
	if state.RecentMessages[0] != "distinct message number 5" {
		t.Fatalf("expected oldest entries evicted, got %q first", state.RecentMessages[0])
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"  Hello,   WORLD!!! ", "hello world"},
		{"buy\tnow\n\nplease...", "buy now please"},
		{"«спам»", "спам"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Fatalf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSimilarity(t *testing.T) {
	t.Parallel()

	if got := Similarity("same text", "same text"); got != 1 {
		t.Fatalf("identical strings should score 1, got %v", got)
	}
	if got := Similarity("abc", "xyz"); got != 0 {
		t.Fatalf("disjoint strings should score 0, got %v", got)
	}
	got := Similarity("join my channel today", "join my channel")
	if got < 0.8 {
		t.Fatalf("near-duplicate should score high, got %v", got)
	}
	if got := Similarity("", "something"); got != 0 {
		t.Fatalf("empty vs non-empty should score 0, got %v", got)
	}
}
