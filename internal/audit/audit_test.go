package audit

import (
	"context"
	"testing"

	"github.com/iamwavecut/groupwarden/internal/db"
)

type fakeStore struct {
	db.Client
	settings map[int64]*db.Settings
	entries  []*db.ActionLogEntry
}

func (f *fakeStore) GetSettings(_ context.Context, chatID int64) (*db.Settings, error) {
	return f.settings[chatID], nil
}

func (f *fakeStore) AppendActionLog(_ context.Context, entry *db.ActionLogEntry) error {
	f.entries = append(f.entries, entry)
	return nil
}

func TestChannelForPrefersChatSetting(t *testing.T) {
	t.Parallel()
	store := &fakeStore{settings: map[int64]*db.Settings{}}
	sink := NewSink(store, nil, "@global_log")

	if got := sink.channelFor(context.Background(), 1); got != "global_log" {
		t.Errorf("no chat setting: got %q", got)
	}

	settings := db.DefaultSettings(2)
	settings.LogChannel = "@chat_log"
	store.settings[2] = settings
	if got := sink.channelFor(context.Background(), 2); got != "chat_log" {
		t.Errorf("chat setting should win: got %q", got)
	}
}

func TestAppendStampsCreatedAt(t *testing.T) {
	t.Parallel()
	store := &fakeStore{}
	sink := NewSink(store, nil, "")

	entry := &db.ActionLogEntry{ChatID: 1, Action: "ban", TargetUserID: 7}
	if err := sink.Append(context.Background(), entry); err != nil {
		t.Fatalf("append: %v", err)
	}
	if len(store.entries) != 1 {
		t.Fatalf("got %d entries", len(store.entries))
	}
	if store.entries[0].CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be stamped")
	}
}
