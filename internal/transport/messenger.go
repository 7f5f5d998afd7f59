// Package transport defines the chat transport contract: an ordered stream
// of inbound messages per channel, plus "send text, then await the next
// message matching a predicate, with timeout".
package transport

import (
	"context"
	"errors"
	"time"
)

// DefaultAwaitTimeout applies when AwaitNext is called with timeout 0.
const DefaultAwaitTimeout = 3 * time.Second

// ErrForbidden is returned when the platform denies an action in a channel.
// Callers lock the channel out for the rest of the session.
var ErrForbidden = errors.New("forbidden")

// Messenger is the transport adapter every component talks through.
type Messenger interface {
	// Send posts text to a channel and returns the created message.
	Send(ctx context.Context, channelID, text string) (*Message, error)

	// AwaitNext blocks until a message matching match arrives in the
	// channel, or the timeout expires. Timeout 0 means DefaultAwaitTimeout;
	// a negative timeout waits until ctx is done. Expiry returns (nil, nil):
	// a miss, not an error.
	AwaitNext(ctx context.Context, channelID string, match MatchFunc, timeout time.Duration) (*Message, error)

	// History returns up to limit most recent messages in the channel,
	// newest first.
	History(ctx context.Context, channelID string, limit int) ([]*Message, error)

	// SendDM delivers text and an optional embed to a user's direct channel.
	SendDM(ctx context.Context, userID, text string, embed *Embed) (*Message, error)

	// Pin pins a message in its channel.
	Pin(ctx context.Context, m *Message) error

	// ClickButton activates the component with the given label on m.
	ClickButton(ctx context.Context, m *Message, label string) error

	// Delete removes a message.
	Delete(ctx context.Context, m *Message) error

	// DownloadImage fetches the raw bytes behind an image URL.
	DownloadImage(ctx context.Context, url string) ([]byte, error)
}
