package bot

import (
	"testing"

	api "github.com/OvyFlash/telegram-bot-api"
)

func TestGetUN(t *testing.T) {
	t.Parallel()
	if got := GetUN(nil); got != "" {
		t.Errorf("nil user: %q", got)
	}
	if got := GetUN(&api.User{UserName: "johndoe"}); got != "johndoe" {
		t.Errorf("got %q", got)
	}
	if got := GetUN(&api.User{FirstName: "John", LastName: "Doe"}); got != "John Doe" {
		t.Errorf("got %q", got)
	}
}

func TestGetFullName(t *testing.T) {
	t.Parallel()
	if got := GetFullName(&api.User{FirstName: "John"}); got != "John" {
		t.Errorf("got %q", got)
	}
	if got := GetFullName(&api.User{UserName: "johndoe"}); got != "johndoe" {
		t.Errorf("got %q", got)
	}
}

func TestAdaptMessage(t *testing.T) {
	t.Parallel()

	if adapted := AdaptMessage(nil); adapted.Text != "" || adapted.HasAnyMedia() {
		t.Error("nil message should adapt to empty")
	}

	msg := &api.Message{
		Text: "hello",
		Document: &api.Document{
			FileName: "file.pdf",
			FileSize: 1024,
		},
	}
	adapted := AdaptMessage(msg)
	if adapted.Text != "hello" {
		t.Errorf("text %q", adapted.Text)
	}
	if adapted.Document == nil || adapted.Document.FileName != "file.pdf" || adapted.Document.FileSize != 1024 {
		t.Errorf("document %+v", adapted.Document)
	}

	msg = &api.Message{
		Caption:       "look",
		ForwardOrigin: &api.MessageOrigin{Type: "channel"},
	}
	adapted = AdaptMessage(msg)
	if adapted.Text != "look" {
		t.Errorf("caption should become text, got %q", adapted.Text)
	}
	if adapted.Forward == nil || !adapted.Forward.FromChannel {
		t.Errorf("forward %+v", adapted.Forward)
	}

	msg = &api.Message{
		ForwardOrigin: &api.MessageOrigin{Type: "user", SenderUser: &api.User{IsBot: true}},
	}
	adapted = AdaptMessage(msg)
	if adapted.Forward == nil || !adapted.Forward.FromBot {
		t.Errorf("bot forward %+v", adapted.Forward)
	}
}
