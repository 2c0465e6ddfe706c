package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassify(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"deleted message", fmt.Errorf("Bad Request: message to delete not found"), ErrNotFound},
		{"left member", fmt.Errorf("Bad Request: USER_NOT_PARTICIPANT"), ErrNotFound},
		{"missing chat", fmt.Errorf("Bad Request: chat not found"), ErrNotFound},
		{"demoted bot", fmt.Errorf("Bad Request: not enough rights to restrict/unrestrict chat member"), ErrPermission},
		{"admin required", fmt.Errorf("Bad Request: CHAT_ADMIN_REQUIRED"), ErrPermission},
		{"flaky network", fmt.Errorf("Post \"https://api.telegram.org\": connection reset"), ErrTransport},
	}
	for _, tc := range cases {
		classified := Classify(tc.err)
		if !errors.Is(classified, tc.want) {
			t.Errorf("%s: Classify(%v) = %v, want kind %v", tc.name, tc.err, classified, tc.want)
		}
		if !errors.Is(classified, tc.err) {
			t.Errorf("%s: classification lost the original error", tc.name)
		}
	}
}

func TestClassifyNil(t *testing.T) {
	t.Parallel()
	if got := Classify(nil); got != nil {
		t.Fatalf("Classify(nil) = %v, want nil", got)
	}
}

func TestIsRetriable(t *testing.T) {
	t.Parallel()
	if !IsRetriable(Classify(fmt.Errorf("connection timed out"))) {
		t.Fatalf("transport failures should be retriable")
	}
	if IsRetriable(Classify(fmt.Errorf("CHAT_ADMIN_REQUIRED"))) {
		t.Fatalf("permission failures are not retriable")
	}
	if IsRetriable(Classify(fmt.Errorf("user not found"))) {
		t.Fatalf("not-found failures are not retriable")
	}
}
