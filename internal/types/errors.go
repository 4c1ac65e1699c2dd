package types

import (
	"errors"
	"fmt"
)

var (
	// ErrGatewayUnavailable marks a failed or timed out language model call.
	ErrGatewayUnavailable = errors.New("language model gateway unavailable")
	// ErrIndexUnavailable marks a failed or timed out fact index read or write.
	ErrIndexUnavailable = errors.New("fact index unavailable")
	// ErrNoMessages is returned when curation runs on an empty session.
	ErrNoMessages = errors.New("no messages to extract")
	// ErrSessionClosed is returned for operations on a logged out session.
	ErrSessionClosed = errors.New("session closed")
	// ErrConversationNotFound is returned when a conversation id is unknown for its owner.
	ErrConversationNotFound = errors.New("conversation not found")
)

// IndexError annotates err with msg and marks it as ErrIndexUnavailable
// unless it already is.
func IndexError(msg string, err error) error {
	if errors.Is(err, ErrIndexUnavailable) {
		return fmt.Errorf("%s: %w", msg, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrIndexUnavailable, msg, err)
}
