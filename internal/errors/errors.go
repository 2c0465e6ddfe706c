package errors

import (
	"errors"
	"strings"
)

// Collaborator failure taxonomy. Platform calls are classified into one of
// these so call sites can decide between retry, denial, and no-op.
var (
	// ErrTransport means the platform call failed in flight; the action
	// could not be confirmed. State already persisted is not rolled back.
	ErrTransport = errors.New("transport error")
	// ErrPermission means the bot lacks rights for the requested action.
	ErrPermission = errors.New("permission denied")
	// ErrNotFound means the target user, member, or message is gone.
	// Delete/restrict intents treat this as success.
	ErrNotFound = errors.New("not found")
	// ErrBadConfig means a stored record is malformed; callers substitute
	// documented defaults instead of failing the evaluation.
	ErrBadConfig = errors.New("malformed config")
)

var permissionMarkers = []string{
	"not enough rights",
	"CHAT_ADMIN_REQUIRED",
	"need administrator rights",
	"USER_ADMIN_INVALID",
}

var notFoundMarkers = []string{
	"message to delete not found",
	"MESSAGE_ID_INVALID",
	"PARTICIPANT_ID_INVALID",
	"user not found",
	"chat not found",
	"USER_NOT_PARTICIPANT",
}

// Classify maps a raw telegram-bot-api error onto the taxonomy. The API
// reports everything as a flat description string, so matching is textual.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	for _, marker := range notFoundMarkers {
		if strings.Contains(msg, marker) {
			return errors.Join(ErrNotFound, err)
		}
	}
	for _, marker := range permissionMarkers {
		if strings.Contains(msg, marker) {
			return errors.Join(ErrPermission, err)
		}
	}
	return errors.Join(ErrTransport, err)
}

// IsRetriable reports whether the failure is worth retrying at all.
func IsRetriable(err error) bool {
	return errors.Is(err, ErrTransport)
}
