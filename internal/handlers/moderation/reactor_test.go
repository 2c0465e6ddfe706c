package handlers

import (
	"context"
	"testing"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"

	"github.com/iamwavecut/groupwarden/internal/config"
	"github.com/iamwavecut/groupwarden/internal/db"
	"github.com/iamwavecut/groupwarden/internal/detector"
	"github.com/iamwavecut/groupwarden/internal/moderation"
	"github.com/iamwavecut/groupwarden/internal/rules"
)

type memoryStore struct {
	db.Client
	states map[stateKey]*db.UserState
}

func newMemoryStore() *memoryStore {
	return &memoryStore{states: map[stateKey]*db.UserState{}}
}

func (m *memoryStore) GetUserState(_ context.Context, chatID, userID int64) (*db.UserState, error) {
	return m.states[stateKey{chatID: chatID, userID: userID}], nil
}

func (m *memoryStore) SetUserState(_ context.Context, state *db.UserState) error {
	m.states[stateKey{chatID: state.ChatID, userID: state.UserID}] = state
	return nil
}

type stubService struct {
	store *memoryStore
}

func (s *stubService) GetBot() *api.BotAPI { return nil }
func (s *stubService) GetDB() db.Client    { return s.store }
func (s *stubService) GetSettings(_ context.Context, chatID int64) (*db.Settings, error) {
	return db.DefaultSettings(chatID), nil
}
func (s *stubService) SetSettings(context.Context, *db.Settings) error { return nil }
func (s *stubService) GetLanguage(context.Context, int64, *api.User) string {
	return "en"
}

func newTestReactor(store *memoryStore) *Reactor {
	det := detector.New(5, 3, 0.8)
	engine := rules.NewEngine(config.Spam{
		EnableBannedWords:   true,
		EnableLinkFilter:    true,
		EnableMediaFilter:   true,
		EnableForwardFilter: true,
	})
	core := moderation.NewCore(det, engine)
	ladder := moderation.NewLadder(3, []time.Duration{10 * time.Minute, time.Hour, 24 * time.Hour})
	return NewReactor(&stubService{store: store}, core, ladder, nil)
}

func TestEvaluateCleanMessagePersistsState(t *testing.T) {
	t.Parallel()
	store := newMemoryStore()
	r := newTestReactor(store)

	verdict, state, err := r.evaluate(context.Background(), 1, 2, db.DefaultSettings(1), &api.Message{Text: "hello"})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if verdict.Action != moderation.ActionNone {
		t.Fatalf("got %v: %v", verdict.Action, verdict.Reasons)
	}
	if state.WarningCount != 0 {
		t.Errorf("clean message incremented warnings to %d", state.WarningCount)
	}
	saved := store.states[stateKey{chatID: 1, userID: 2}]
	if saved == nil || saved.MessageCount != 1 {
		t.Errorf("state not persisted: %+v", saved)
	}
}

func TestEvaluateContentViolationIncrementsWarnings(t *testing.T) {
	t.Parallel()
	store := newMemoryStore()
	r := newTestReactor(store)
	settings := db.DefaultSettings(1)

	verdict, state, err := r.evaluate(context.Background(), 1, 2, settings, &api.Message{Text: "free money for everyone"})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if verdict.Action != moderation.ActionDelete {
		t.Fatalf("got %v: %v", verdict.Action, verdict.Reasons)
	}
	if state.WarningCount != 1 {
		t.Errorf("warning count = %d, want 1", state.WarningCount)
	}
}

func TestEvaluateFloodDoesNotConsumeWarning(t *testing.T) {
	t.Parallel()
	store := newMemoryStore()
	r := newTestReactor(store)
	settings := db.DefaultSettings(1)

	texts := []string{"good morning", "anyone around", "what a nice day", "check the pinned note", "lunch plans question", "see you all later"}
	var verdict moderation.Verdict
	var state *db.UserState
	var err error
	for _, text := range texts {
		verdict, state, err = r.evaluate(context.Background(), 1, 2, settings, &api.Message{Text: text})
		if err != nil {
			t.Fatalf("evaluate: %v", err)
		}
	}
	if verdict.Action != moderation.ActionMute {
		t.Fatalf("6th rapid message should mute, got %v", verdict.Action)
	}
	if state.WarningCount != 0 {
		t.Errorf("flood mute should not touch the warning ladder, count=%d", state.WarningCount)
	}
}
