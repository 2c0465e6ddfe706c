package bot

import (
	"context"
	"errors"
	"testing"

	"github.com/iamwavecut/groupwarden/internal/db"
)

type settingsStore struct {
	db.Client
	rows   map[int64]*db.Settings
	setErr error
}

func newSettingsStore() *settingsStore {
	return &settingsStore{rows: map[int64]*db.Settings{}}
}

func (s *settingsStore) GetSettings(_ context.Context, chatID int64) (*db.Settings, error) {
	return s.rows[chatID], nil
}

func (s *settingsStore) SetSettings(_ context.Context, settings *db.Settings) error {
	if s.setErr != nil {
		return s.setErr
	}
	s.rows[settings.ID] = settings
	return nil
}

func TestGetSettingsReturnsIsolatedCopies(t *testing.T) {
	t.Parallel()
	s, err := NewService(nil, newSettingsStore())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	ctx := context.Background()

	first, err := s.GetSettings(ctx, -1)
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	second, err := s.GetSettings(ctx, -1)
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	if first == second {
		t.Fatalf("expected distinct settings copies, got the same pointer")
	}

	first.BannedWords = append(first.BannedWords, "mutated-by-one-caller")
	first.CaptchaEnabled = true

	third, err := s.GetSettings(ctx, -1)
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	if len(third.BannedWords) != 0 || third.CaptchaEnabled {
		t.Fatalf("caller mutation leaked into the cache: %+v", third)
	}
}

func TestSetSettingsFailureKeepsCacheUnchanged(t *testing.T) {
	t.Parallel()
	store := newSettingsStore()
	s, err := NewService(nil, store)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	ctx := context.Background()

	settings, err := s.GetSettings(ctx, -1)
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}

	store.setErr = errors.New("disk full")
	settings.BannedWords = append(settings.BannedWords, "unpersisted")
	if err := s.SetSettings(ctx, settings); err == nil {
		t.Fatalf("expected persistence error")
	}

	reread, err := s.GetSettings(ctx, -1)
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	if len(reread.BannedWords) != 0 {
		t.Fatalf("failed save leaked into reads: %+v", reread.BannedWords)
	}
}

func TestSetSettingsUpdatesSubsequentReads(t *testing.T) {
	t.Parallel()
	s, err := NewService(nil, newSettingsStore())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	ctx := context.Background()

	settings, err := s.GetSettings(ctx, -1)
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	settings.BannedWords = append(settings.BannedWords, "spamword")
	if err := s.SetSettings(ctx, settings); err != nil {
		t.Fatalf("set settings: %v", err)
	}

	reread, err := s.GetSettings(ctx, -1)
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	if len(reread.BannedWords) != 1 || reread.BannedWords[0] != "spamword" {
		t.Fatalf("saved settings not visible on reread: %+v", reread.BannedWords)
	}
}
